// Package session keeps warm readers for returning clients so that a player
// seeking around a stream reuses the window it already fetched.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"splitstream/pkg/exactread"
	"splitstream/pkg/logger"
)

var ErrPoolClosed = errors.New("session: pool closed")

// Opener creates a fresh reader with its own sources.
type Opener func() (*exactread.Reader, error)

// idle is a parked reader. r is nil once the reader has been handed out, so
// the eviction callback knows not to close it.
type idle struct {
	r        *exactread.Reader
	parkedAt time.Time
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Idle      int   `json:"idle"`
	Leased    int   `json:"leased"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	TTLSecs   int64 `json:"ttl_seconds"`
}

// Pool parks at most one idle reader per key and at most size readers in
// total, least recently used first out. A reader is owned by exactly one
// caller between Acquire and Release.
type Pool struct {
	open  Opener
	ttl   time.Duration
	cache *lru.Cache[string, *idle]

	mu     sync.Mutex
	stats  Stats
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewPool returns a pool holding up to size idle readers. Readers idle for
// longer than ttl are closed; a zero ttl disables expiry.
func NewPool(size int, ttl time.Duration, open Opener) (*Pool, error) {
	p := &Pool{
		open: open,
		ttl:  ttl,
		done: make(chan struct{}),
	}
	cache, err := lru.NewWithEvict(size, p.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create reader pool: %w", err)
	}
	p.cache = cache

	if ttl > 0 {
		p.wg.Add(1)
		go p.cleanupLoop()
	}
	return p, nil
}

// onEvict runs synchronously inside cache calls, which are all made with
// p.mu held.
func (p *Pool) onEvict(key string, v *idle) {
	if v.r == nil {
		return
	}
	p.stats.Evictions++
	logger.Debug("Evicting idle reader", "key", key)
	v.r.Close()
}

// Acquire hands out the idle reader parked under key, or opens a new one.
func (p *Pool) Acquire(key string) (*exactread.Reader, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if v, ok := p.cache.Peek(key); ok {
		r := v.r
		v.r = nil
		p.cache.Remove(key)
		p.stats.Hits++
		p.stats.Leased++
		p.mu.Unlock()
		logger.Trace("Reusing reader", "key", key, "position", r.Position())
		return r, nil
	}
	p.stats.Misses++
	p.mu.Unlock()

	r, err := p.open()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.stats.Leased++
	p.mu.Unlock()
	return r, nil
}

// Release parks r under key. A reader already parked there is closed.
// Releasing into a closed pool closes r.
func (p *Pool) Release(key string, r *exactread.Reader) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Leased--
	if p.closed {
		r.Close()
		return
	}
	if old, ok := p.cache.Peek(key); ok {
		old.r.Close()
		old.r = nil
		p.cache.Remove(key)
	}
	p.cache.Add(key, &idle{r: r, parkedAt: time.Now()})
}

// Discard drops a leased reader that must not be reused, for example after
// an I/O error.
func (p *Pool) Discard(r *exactread.Reader) {
	if r == nil {
		return
	}
	r.Close()
	p.mu.Lock()
	p.stats.Leased--
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Idle = p.cache.Len()
	s.TTLSecs = int64(p.ttl.Seconds())
	return s
}

// Close closes every idle reader and stops the cleanup loop. Readers still
// leased are closed when they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.cache.Purge()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) cleanupLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(max(p.ttl/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.expire(now)
		}
	}
}

// expire closes readers parked for longer than the ttl.
func (p *Pool) expire(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.cache.Keys() {
		v, ok := p.cache.Peek(key)
		if !ok || now.Sub(v.parkedAt) <= p.ttl {
			continue
		}
		v.r.Close()
		v.r = nil
		p.cache.Remove(key)
		p.stats.Expired++
	}
}
