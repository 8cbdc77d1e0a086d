package exactread

// state classifies a reservation against the current window.
type state int

const (
	// stateEmpty: nothing cached yet and no pending seek.
	stateEmpty state = iota
	// stateHit: the cursor (or pending target) is inside the window.
	stateHit
	// stateFrontExtend: the pending target is before the window but the
	// requested range ends inside it; only the gap is fetched and prepended.
	stateFrontExtend
	// stateFullReload: the pending target and the requested range miss the
	// window entirely; the cache is discarded.
	stateFullReload
	// stateTailExtend: sequential read past the cached bytes; the missing
	// suffix is appended.
	stateTailExtend
)

func (s state) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateHit:
		return "hit"
	case stateFrontExtend:
		return "front-extend"
	case stateFullReload:
		return "full-reload"
	case stateTailExtend:
		return "tail-extend"
	default:
		return "unknown"
	}
}

func (r *Reader) classify(n int) state {
	if r.hasPending {
		switch {
		case r.inWindow(r.pending):
			return stateHit
		case r.pending < r.winStart && r.inWindow(r.pending+int64(n)):
			return stateFrontExtend
		default:
			return stateFullReload
		}
	}

	switch {
	case r.buf.Len()-r.off >= n:
		return stateHit
	case r.buf.Len() == 0:
		return stateEmpty
	default:
		return stateTailExtend
	}
}
