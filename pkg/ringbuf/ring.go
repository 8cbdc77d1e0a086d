// Package ringbuf implements a growable circular byte buffer with amortized
// O(1) push and pop at both ends. The contents are exposed as at most two
// contiguous slices because of wraparound.
package ringbuf

import (
	"fmt"
	"math"
)

// minCapacity is the smallest non-zero capacity a growing ring allocates.
const minCapacity = 8

// Ring is a circular byte buffer over a single allocation.
//
// buf[head] holds logical element 0 when the ring is not empty.
// head < len(buf) unless len(buf) == 0, in which case head == 0.
// Valid elements occupy [head, head+n) modulo len(buf).
//
// The zero value is an empty ring with no capacity. A Ring is not safe for
// concurrent use.
type Ring struct {
	buf  []byte
	head int
	n    int
}

// New returns an empty ring with room for capacity bytes.
func New(capacity int) *Ring {
	if capacity < 0 {
		panic("ringbuf: negative capacity")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Len returns the number of bytes held.
func (r *Ring) Len() int { return r.n }

// Cap returns the number of byte slots in the allocation.
func (r *Ring) Cap() int { return len(r.buf) }

// IsEmpty reports whether the ring holds no bytes.
func (r *Ring) IsEmpty() bool { return r.n == 0 }

func (r *Ring) isFull() bool { return r.n == len(r.buf) }

// IsContiguous reports whether the contents occupy one physical run.
func (r *Ring) IsContiguous() bool {
	return r.head <= len(r.buf)-r.n
}

func wrapIndex(idx, capacity int) int {
	if idx >= capacity {
		return idx - capacity
	}
	return idx
}

func (r *Ring) wrapAdd(idx, addend int) int {
	return wrapIndex(idx+addend, len(r.buf))
}

func (r *Ring) wrapSub(idx, subtrahend int) int {
	return wrapIndex(idx-subtrahend+len(r.buf), len(r.buf))
}

func (r *Ring) physical(idx int) int {
	return r.wrapAdd(r.head, idx)
}

// Reserve makes room for at least additional more bytes without further
// allocation.
func (r *Ring) Reserve(additional int) {
	if additional < 0 {
		panic("ringbuf: negative reserve")
	}
	needed := r.n + additional
	if needed < r.n {
		panic("ringbuf: capacity overflow")
	}
	if needed > len(r.buf) {
		r.grow(needed)
	}
}

func (r *Ring) grow(needed int) {
	oldCap := len(r.buf)
	if oldCap > math.MaxInt/2 {
		panic("ringbuf: capacity overflow")
	}
	newCap := max(oldCap*2, needed, minCapacity)

	buf := make([]byte, newCap)
	copy(buf, r.buf)
	r.buf = buf
	r.handleCapacityIncrease(oldCap)
}

// handleCapacityIncrease repairs the layout after the allocation grew from
// oldCap by moving the shorter of the two wrapped segments.
//
//	H := head
//	L := last element
//
//	   H           L
//	  [o o o o o o o . ]
//	   H           L
//	A [o o o o o o o . . . . . . . . . ]
//	       L H
//	  [o o o o o o o o ]
//	         H           L
//	B [. . . o o o o o o o . . . . . . ]
//	             L H
//	  [o o o o o o o o ]
//	           L                   H
//	C [o o o o o . . . . . . . . . o o ]
func (r *Ring) handleCapacityIncrease(oldCap int) {
	newCap := len(r.buf)
	if r.head <= oldCap-r.n {
		// A: nothing wraps.
		return
	}

	headLen := oldCap - r.head
	tailLen := r.n - headLen
	if headLen > tailLen && newCap-oldCap >= tailLen {
		// B
		r.copy(0, oldCap, tailLen)
		return
	}

	// C: regions may overlap when the allocation grew by less than headLen.
	newHead := newCap - headLen
	r.copy(r.head, newHead, headLen)
	r.head = newHead
}

// copy moves n bytes between physical offsets; overlapping runs are safe.
func (r *Ring) copy(src, dst, n int) {
	copy(r.buf[dst:dst+n], r.buf[src:src+n])
}

// copySlice writes p at physical offset dst, wrapping past the end.
func (r *Ring) copySlice(dst int, p []byte) {
	headRoom := len(r.buf) - dst
	if len(p) <= headRoom {
		copy(r.buf[dst:], p)
		return
	}
	copy(r.buf[dst:], p[:headRoom])
	copy(r.buf, p[headRoom:])
}

// wrapCopy moves a run of n bytes from physical offset src to dst where
// either run may wrap past the end of the allocation and the runs may
// overlap. The copy order never overwrites source bytes before they are read.
func (r *Ring) wrapCopy(src, dst, n int) {
	capacity := len(r.buf)
	diff := src - dst
	if diff < 0 {
		diff = -diff
	}
	if min(diff, capacity-diff)+n > capacity {
		panic(fmt.Sprintf("ringbuf: wrapCopy dst=%d src=%d len=%d cap=%d", dst, src, n, capacity))
	}
	if src == dst || n == 0 {
		return
	}

	dstAfterSrc := r.wrapSub(dst, src) < n
	srcPreWrap := capacity - src
	dstPreWrap := capacity - dst
	srcWraps := srcPreWrap < n
	dstWraps := dstPreWrap < n

	switch {
	case !srcWraps && !dstWraps:
		//        S . . .
		// 1 [_ _ A A B B C C _]
		// 2 [_ _ A A A A B B _]
		//            D . . .
		r.copy(src, dst, n)

	case !dstAfterSrc && !srcWraps && dstWraps:
		//    S . . .
		// 1 [A A B B _ _ _ C C]
		// 2 [A A B B _ _ _ A A]
		// 3 [B B B B _ _ _ A A]
		//    . .           D .
		r.copy(src, dst, dstPreWrap)
		r.copy(src+dstPreWrap, 0, n-dstPreWrap)

	case dstAfterSrc && !srcWraps && dstWraps:
		//              S . . .
		// 1 [C C _ _ _ A A B B]
		// 2 [B B _ _ _ A A B B]
		// 3 [B B _ _ _ A A A A]
		//    . .           D .
		r.copy(src+dstPreWrap, 0, n-dstPreWrap)
		r.copy(src, dst, dstPreWrap)

	case !dstAfterSrc && srcWraps && !dstWraps:
		//    . .           S .
		// 1 [C C _ _ _ A A B B]
		// 2 [C C _ _ _ B B B B]
		// 3 [C C _ _ _ B B C C]
		//              D . . .
		r.copy(src, dst, srcPreWrap)
		r.copy(0, dst+srcPreWrap, n-srcPreWrap)

	case dstAfterSrc && srcWraps && !dstWraps:
		//    . .           S .
		// 1 [A A B B _ _ _ C C]
		// 2 [A A A A _ _ _ C C]
		// 3 [C C A A _ _ _ C C]
		//    D . . .
		r.copy(0, dst+srcPreWrap, n-srcPreWrap)
		r.copy(src, dst, srcPreWrap)

	case !dstAfterSrc && srcWraps && dstWraps:
		//    . . .         S .
		// 1 [A B C D _ E F G H]
		// 2 [A B C D _ E G H H]
		// 3 [A B C D _ E G H A]
		// 4 [B C C D _ E G H A]
		//    . .         D . .
		delta := dstPreWrap - srcPreWrap
		r.copy(src, dst, srcPreWrap)
		r.copy(0, dst+srcPreWrap, delta)
		r.copy(delta, 0, n-dstPreWrap)

	default:
		// dst after src, both wrap.
		//    . .         S . .
		// 1 [A B C D _ E F G H]
		// 2 [A A B D _ E F G H]
		// 3 [H A B D _ E F G H]
		// 4 [H A B D _ E F F G]
		//    . . .         D .
		delta := srcPreWrap - dstPreWrap
		r.copy(0, delta, n-srcPreWrap)
		r.copy(capacity-delta, 0, delta)
		r.copy(src, dst, dstPreWrap)
	}
}

// PushBack appends p after the last byte.
func (r *Ring) PushBack(p []byte) {
	if len(p) == 0 {
		return
	}
	r.Reserve(len(p))
	r.copySlice(r.physical(r.n), p)
	r.n += len(p)
}

// PushFront prepends p before the first byte, preserving the order of p.
func (r *Ring) PushFront(p []byte) {
	if len(p) == 0 {
		return
	}
	r.Reserve(len(p))
	r.head = r.wrapSub(r.head, len(p))
	r.copySlice(r.head, p)
	r.n += len(p)
}

// PopFront drops up to count bytes from the front and returns how many were dropped.
func (r *Ring) PopFront(count int) int {
	k := min(max(count, 0), r.n)
	r.head = r.physical(k)
	r.n -= k
	if r.n == 0 {
		r.head = 0
	}
	return k
}

// PopBack drops up to count bytes from the back and returns how many were dropped.
func (r *Ring) PopBack(count int) int {
	k := min(max(count, 0), r.n)
	r.n -= k
	if r.n == 0 {
		r.head = 0
	}
	return k
}

// Truncate shortens the ring to n bytes, keeping the front. It is a no-op
// when n >= Len().
func (r *Ring) Truncate(n int) {
	if n < 0 {
		panic("ringbuf: negative truncate")
	}
	if n < r.n {
		r.PopBack(r.n - n)
	}
}

// Clear drops every byte. Capacity is retained.
func (r *Ring) Clear() {
	r.n = 0
	r.head = 0
}
