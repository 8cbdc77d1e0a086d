package ringbuf

import (
	"fmt"
	"slices"
)

// ranges maps the logical range [start, end) to at most two physical runs:
// [aStart, aEnd) followed by [0, bEnd).
func (r *Ring) ranges(start, end int) (aStart, aEnd, bEnd int) {
	length := end - start
	if length == 0 {
		return 0, 0, 0
	}
	wrapped := r.physical(start)
	headLen := len(r.buf) - wrapped
	if headLen >= length {
		return wrapped, wrapped + length, 0
	}
	return wrapped, len(r.buf), length - headLen
}

func (r *Ring) checkRange(start, end int) {
	if start < 0 || end < start || end > r.n {
		panic(fmt.Sprintf("ringbuf: range [%d:%d] out of bounds [0:%d]", start, end, r.n))
	}
}

// Slices returns the contents as two slices. The first covers the logical
// indices [0, len(a)), the second the wrapped remainder; the second is empty
// when the ring is contiguous. The slices alias the ring and are valid until
// the next mutation.
func (r *Ring) Slices() (a, b []byte) {
	return r.Range(0, r.n)
}

// Range is Slices restricted to the logical range [start, end).
func (r *Ring) Range(start, end int) (a, b []byte) {
	r.checkRange(start, end)
	aStart, aEnd, bEnd := r.ranges(start, end)
	return r.buf[aStart:aEnd:aEnd], r.buf[0:bEnd:bEnd]
}

// At returns the byte at logical index i. It panics when i is out of range.
func (r *Ring) At(i int) byte {
	if i < 0 || i >= r.n {
		panic(fmt.Sprintf("ringbuf: index %d out of range [0:%d]", i, r.n))
	}
	return r.buf[r.physical(i)]
}

// Get returns the byte at logical index i, or false when i is out of range.
func (r *Ring) Get(i int) (byte, bool) {
	if i < 0 || i >= r.n {
		return 0, false
	}
	return r.buf[r.physical(i)], true
}

// CopyTo copies bytes starting at logical offset off into dst and returns the
// number copied: min(len(dst), Len()-off). It panics when off > Len().
func (r *Ring) CopyTo(dst []byte, off int) int {
	end := min(off+len(dst), r.n)
	if off > end {
		r.checkRange(off, off)
	}
	a, b := r.Range(off, end)
	n := copy(dst, a)
	n += copy(dst[n:], b)
	return n
}

// AppendTo appends the contents in logical order to dst.
func (r *Ring) AppendTo(dst []byte) []byte {
	a, b := r.Slices()
	dst = append(dst, a...)
	return append(dst, b...)
}

// Insert places c at logical index i, shifting whichever side is shorter.
func (r *Ring) Insert(i int, c byte) {
	if i < 0 || i > r.n {
		panic(fmt.Sprintf("ringbuf: insert index %d out of range [0:%d]", i, r.n))
	}
	if r.isFull() {
		r.grow(r.n + 1)
	}

	k := r.n - i
	if k < i {
		r.wrapCopy(r.physical(i), r.physical(i+1), k)
	} else {
		oldHead := r.head
		r.head = r.wrapSub(r.head, 1)
		r.wrapCopy(oldHead, r.head, i)
	}
	r.buf[r.physical(i)] = c
	r.n++
}

// Remove deletes and returns the byte at logical index i.
func (r *Ring) Remove(i int) (byte, bool) {
	if i < 0 || i >= r.n {
		return 0, false
	}

	wrapped := r.physical(i)
	c := r.buf[wrapped]
	k := r.n - i - 1
	if k < i {
		r.wrapCopy(r.wrapAdd(wrapped, 1), wrapped, k)
	} else {
		oldHead := r.head
		r.head = r.physical(1)
		r.wrapCopy(oldHead, r.head, i)
	}
	r.n--
	if r.n == 0 {
		r.head = 0
	}
	return c, true
}

// RotateLeft moves the first k bytes to the back.
func (r *Ring) RotateLeft(k int) {
	if k < 0 || k > r.n {
		panic(fmt.Sprintf("ringbuf: rotate %d out of range [0:%d]", k, r.n))
	}
	if rest := r.n - k; k <= rest {
		r.rotateLeftInner(k)
	} else {
		r.rotateRightInner(rest)
	}
}

// RotateRight moves the last k bytes to the front.
func (r *Ring) RotateRight(k int) {
	if k < 0 || k > r.n {
		panic(fmt.Sprintf("ringbuf: rotate %d out of range [0:%d]", k, r.n))
	}
	if rest := r.n - k; k <= rest {
		r.rotateRightInner(k)
	} else {
		r.rotateLeftInner(rest)
	}
}

// mid must be at most Len()/2.
func (r *Ring) rotateLeftInner(mid int) {
	r.wrapCopy(r.head, r.physical(r.n), mid)
	r.head = r.physical(mid)
}

// k must be at most Len()/2.
func (r *Ring) rotateRightInner(k int) {
	r.head = r.wrapSub(r.head, k)
	r.wrapCopy(r.physical(r.n), r.head, k)
}

// MakeContiguous rearranges the allocation so the contents occupy one run and
// returns it. The returned slice aliases the ring.
func (r *Ring) MakeContiguous() []byte {
	if r.IsContiguous() {
		return r.buf[r.head : r.head+r.n : r.head+r.n]
	}

	capacity := len(r.buf)
	free := capacity - r.n
	headLen := capacity - r.head
	tailLen := r.n - headLen

	switch {
	case free >= headLen:
		// from: DEFGH....ABC
		// to:   ABCDEFGH....
		r.copy(0, headLen, tailLen)
		r.copy(r.head, 0, headLen)
		r.head = 0

	case free >= tailLen:
		// from: FGH....ABCDE
		// to:   ...ABCDEFGH.
		r.copy(r.head, tailLen, headLen)
		r.copy(0, tailLen+headLen, tailLen)
		r.head = tailLen

	case headLen > tailLen:
		// from: HIJK..ABCDEFG
		// via:  ..HIJKABCDEFG
		// to:   ..ABCDEFGHIJK
		if free != 0 {
			r.copy(0, free, tailLen)
		}
		rotateLeft(r.buf[free:capacity], tailLen)
		r.head = free

	default:
		// from: FGHIJK..ABCDE
		// via:  FGHIJKABCDE..
		// to:   ABCDEFGHIJK..
		if free != 0 {
			r.copy(r.head, tailLen, headLen)
		}
		rotateLeft(r.buf[:r.n], r.n-headLen)
		r.head = 0
	}
	return r.buf[r.head : r.head+r.n : r.head+r.n]
}

// ShrinkTo reduces the capacity to max(minCap, Len()) when that is smaller
// than the current capacity.
func (r *Ring) ShrinkTo(minCap int) {
	target := max(minCap, r.n)
	capacity := len(r.buf)
	if capacity <= target {
		return
	}

	end := r.head + r.n
	tailOutside := end > target && end <= capacity
	switch {
	case r.n == 0:
		r.head = 0
	case r.head >= target && tailOutside:
		// [. . . . . . . . o o o o o o o . ]
		// [o o o o o o o . ]
		r.copy(r.head, 0, r.n)
		r.head = 0
	case r.head < target && tailOutside:
		// [. . . o o o o o o o . . . . . . ]
		// [o o . o o o o o ]
		r.copy(target, 0, end-target)
	case !r.IsContiguous():
		// [o o o o o . . . . . . . . . o o ]
		// [o o o o o . o o ]
		headLen := capacity - r.head
		newHead := target - headLen
		r.copy(r.head, newHead, headLen)
		r.head = newHead
	}

	buf := make([]byte, target)
	copy(buf, r.buf[:target])
	r.buf = buf
	if len(r.buf) == 0 {
		r.head = 0
	}
}

func rotateLeft(s []byte, k int) {
	slices.Reverse(s[:k])
	slices.Reverse(s[k:])
	slices.Reverse(s)
}
