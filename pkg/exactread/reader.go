// Package exactread provides a seekable reader that caches a sliding window
// of its source so that sequential and near-sequential access pays for each
// byte only once.
package exactread

import (
	"errors"
	"fmt"
	"io"

	"splitstream/pkg/concat"
	"splitstream/pkg/logger"
	"splitstream/pkg/ringbuf"
	"splitstream/pkg/source"
)

// ErrClosed is returned by operations on a closed Reader.
var ErrClosed = errors.New("exactread: reader closed")

// Stats counts the work done by a Reader.
type Stats struct {
	Fetches      int64 `json:"fetches"`
	FetchedBytes int64 `json:"fetched_bytes"`
	Hits         int64 `json:"hits"`
	TailExtends  int64 `json:"tail_extends"`
	FrontExtends int64 `json:"front_extends"`
	Reloads      int64 `json:"reloads"`
	Seeks        int64 `json:"seeks"`
}

// Reader is a buffered, seekable view over a Source.
//
// The cache holds the logical range [winStart, winStart+buf.Len()). A
// position equal to the end of the window still counts as inside it, so
// reading can continue from there without a reload. Seeking outside the
// window records a pending target which the next read resolves.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	src  source.Source
	size int64

	buf      *ringbuf.Ring
	winStart int64
	off      int

	pending    int64
	hasPending bool

	// srcPos is the physical position of src, or -1 when unknown.
	srcPos int64

	readAhead int
	maxWindow int
	scratch   []byte

	stats  Stats
	closed bool
}

var _ io.ReadSeekCloser = (*Reader)(nil)

type Option func(*Reader)

// WithReadAhead sets the minimum number of bytes fetched whenever the window
// has to grow or be reloaded. It is capped by the window bound, if any.
func WithReadAhead(n int) Option {
	return func(r *Reader) { r.readAhead = max(n, 0) }
}

// WithMaxWindow bounds the number of cached bytes. When a read leaves more
// than n bytes cached, bytes behind the cursor are dropped first. Zero means
// unbounded.
func WithMaxWindow(n int) Option {
	return func(r *Reader) { r.maxWindow = max(n, 0) }
}

// WithInitialCapacity preallocates the cache.
func WithInitialCapacity(n int) Option {
	return func(r *Reader) { r.buf.Reserve(max(n, 0)) }
}

// New returns a Reader over src. The source is expected to be positioned at
// its start.
func New(src source.Source, opts ...Option) *Reader {
	r := &Reader{
		src:  src,
		size: src.Size(),
		buf:  ringbuf.New(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewSingle returns a Reader over one file.
func NewSingle(f *source.File, opts ...Option) *Reader {
	return New(f, opts...)
}

// NewMulti returns a Reader over the concatenation of files.
func NewMulti(files []*source.File, opts ...Option) *Reader {
	return New(concat.New(files...), opts...)
}

// Size returns the total size of the source.
func (r *Reader) Size() int64 { return r.size }

// Source returns the underlying source.
func (r *Reader) Source() source.Source { return r.src }

// Stats returns a snapshot of the counters.
func (r *Reader) Stats() Stats { return r.stats }

// Position returns the logical read cursor.
func (r *Reader) Position() int64 {
	if r.hasPending {
		return r.pending
	}
	return r.winStart + int64(r.off)
}

// Window returns the cached logical range [start, end).
func (r *Reader) Window() (start, end int64) {
	return r.winStart, r.winEnd()
}

func (r *Reader) winEnd() int64 {
	return r.winStart + int64(r.buf.Len())
}

func (r *Reader) inWindow(pos int64) bool {
	return pos >= r.winStart && pos <= r.winEnd()
}

// Seek sets the logical cursor. A target inside the window only moves the
// cursor. Any other target is recorded for the next read and the source is
// positioned there.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	target, err := source.Resolve(r.size, r.Position(), offset, whence)
	if err != nil {
		return 0, err
	}

	if r.inWindow(target) {
		r.off = int(target - r.winStart)
		r.hasPending = false
		return target, nil
	}

	if err := r.seekSource(target); err != nil {
		return 0, err
	}
	r.pending = target
	r.hasPending = true
	logger.Trace("Seek outside window", "target", target, "window_start", r.winStart, "window_end", r.winEnd())
	return target, nil
}

func (r *Reader) seekSource(pos int64) error {
	got, err := r.src.Seek(pos, io.SeekStart)
	if err != nil {
		r.srcPos = -1
		return fmt.Errorf("seek source to %d: %w", pos, err)
	}
	r.srcPos = got
	r.stats.Seeks++
	return nil
}

// Read copies bytes from the cursor into p, fetching what the window lacks.
// At the end of the stream it returns fewer bytes than len(p); when no byte
// is left it returns 0, io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := r.reserve(len(p)); err != nil {
		return 0, err
	}

	n := r.buf.CopyTo(p, r.off)
	if n == 0 {
		return 0, io.EOF
	}
	r.off += n
	r.trim()
	return n, nil
}

// Reserve makes up to n bytes from the cursor resident without consuming
// them and returns how many are available.
func (r *Reader) Reserve(n int) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("exactread: negative reserve %d", n)
	}
	if err := r.reserve(n); err != nil {
		return 0, err
	}
	return min(n, r.buf.Len()-r.off), nil
}

// reserve reconciles the window with the cursor so that n bytes from it
// are cached, or as many as the stream still holds.
func (r *Reader) reserve(n int) error {
	st := r.classify(n)
	logger.Trace("Reserve", "state", st, "n", n, "position", r.Position(), "window_start", r.winStart, "window_end", r.winEnd())

	switch st {
	case stateHit:
		r.stats.Hits++
		if r.hasPending {
			r.off = int(r.pending - r.winStart)
			r.hasPending = false
		}

	case stateFrontExtend:
		r.stats.FrontExtends++
		target := r.pending
		r.hasPending = false
		gap := int(r.winStart - target)
		data, err := r.fetch(target, gap)
		if len(data) == gap {
			r.buf.PushFront(data)
			r.winStart = target
			r.off = 0
		} else {
			// The gap could not be filled, so the cached suffix is no longer adjacent.
			r.reset(target)
			r.buf.PushBack(data)
		}
		if err != nil {
			return err
		}

	case stateFullReload:
		r.stats.Reloads++
		target := r.pending
		r.hasPending = false
		r.reset(target)
		if err := r.extend(n); err != nil {
			return err
		}

	case stateEmpty, stateTailExtend:
		r.stats.TailExtends++
		if err := r.extend(r.off + n - r.buf.Len()); err != nil {
			return err
		}
	}

	// A hit on a pending target may still leave the tail of the request
	// outside the window.
	if st == stateHit && r.buf.Len()-r.off < n {
		r.stats.TailExtends++
		return r.extend(r.off + n - r.buf.Len())
	}
	return nil
}

// extend appends at least need bytes (and at least the read-ahead) at the
// end of the window, bounded by the stream size.
func (r *Reader) extend(need int) error {
	if need <= 0 {
		return nil
	}
	at := r.winEnd()
	if at >= r.size {
		return nil
	}
	ahead := r.readAhead
	if r.maxWindow > 0 {
		ahead = min(ahead, r.maxWindow)
	}
	count := int(min(int64(max(need, ahead)), r.size-at))
	data, err := r.fetch(at, count)
	r.buf.PushBack(data)
	return err
}

// fetch reads up to count bytes at logical offset at. A short read at the
// end of the source is not an error.
func (r *Reader) fetch(at int64, count int) ([]byte, error) {
	if count <= 0 {
		return nil, nil
	}
	if r.srcPos != at {
		if err := r.seekSource(at); err != nil {
			return nil, err
		}
	}
	if cap(r.scratch) < count {
		r.scratch = make([]byte, count)
	}
	data := r.scratch[:count]

	n, err := io.ReadFull(r.src, data)
	r.srcPos += int64(n)
	r.stats.Fetches++
	r.stats.FetchedBytes += int64(n)

	// io.ReadFull reports a short source with these exact values; wrapped
	// errors come from the source itself and are passed on.
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		logger.Debug("Short fetch", "offset", at, "requested", count, "got", n)
		err = nil
	}
	if err != nil {
		r.srcPos = -1
		err = fmt.Errorf("fetch %d bytes at %d: %w", count, at, err)
	}
	return data[:n], err
}

// reset empties the window and moves it to pos.
func (r *Reader) reset(pos int64) {
	r.buf.Clear()
	if r.maxWindow > 0 && r.buf.Cap() > 2*r.maxWindow {
		r.buf.ShrinkTo(r.maxWindow)
	}
	r.winStart = pos
	r.off = 0
}

// trim enforces the window bound after a read.
func (r *Reader) trim() {
	if r.maxWindow == 0 || r.buf.Len() <= r.maxWindow {
		return
	}
	excess := r.buf.Len() - r.maxWindow
	behind := min(r.off, excess)
	r.buf.PopFront(behind)
	r.winStart += int64(behind)
	r.off -= behind
	if rest := excess - behind; rest > 0 {
		r.buf.PopBack(rest)
	}
}

// Close releases the cache and closes the source if it is closable.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = ringbuf.New(0)
	r.scratch = nil
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
