// Package concat presents an ordered list of sources as one seekable stream.
package concat

import (
	"errors"
	"fmt"
	"io"

	"splitstream/pkg/logger"
	"splitstream/pkg/source"
)

// Part describes where one source sits in the combined address space.
type Part struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Stream reads a list of sources back to back.
//
// The physical cursor is tracked as the index of the part it last touched,
// the logical offset of that part and the offset within it. Parts before
// the current one are positioned at their end and parts after it at their
// start, so sequential reads never have to seek.
type Stream struct {
	parts []*source.File
	total int64

	idx   int
	cumul int64
	intra int64
}

var _ source.Source = (*Stream)(nil)

func New(files ...*source.File) *Stream {
	return &Stream{
		parts: files,
		total: source.TotalSize(files),
	}
}

// Size returns the sum of the part sizes.
func (s *Stream) Size() int64 { return s.total }

// Position returns the logical offset of the physical cursor.
func (s *Stream) Position() int64 { return s.cumul + s.intra }

// Len returns the number of parts.
func (s *Stream) Len() int { return len(s.parts) }

// Current returns the index and name of the part holding the cursor.
func (s *Stream) Current() (int, string) {
	if len(s.parts) == 0 {
		return 0, ""
	}
	return s.idx, s.parts[s.idx].Name()
}

// Parts returns the part table.
func (s *Stream) Parts() []Part {
	out := make([]Part, len(s.parts))
	var off int64
	for i, p := range s.parts {
		out[i] = Part{Name: p.Name(), Offset: off, Size: p.Size()}
		off += p.Size()
	}
	return out
}

// Read fills p from the current part and continues into the following parts
// until p is full or the last part is exhausted. It returns io.EOF only when
// no byte could be read. No more than a part's declared size is read from it;
// a part that ends early fails with io.ErrUnexpectedEOF.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	taken := 0
	for taken < len(p) && len(s.parts) > 0 {
		part := s.parts[s.idx]
		remaining := part.Size() - s.intra
		if remaining <= 0 {
			if s.idx == len(s.parts)-1 {
				break
			}
			s.cumul += part.Size()
			s.idx++
			s.intra = 0
			logger.Trace("Concat advanced", "part", s.idx, "name", s.parts[s.idx].Name(), "offset", s.cumul)
			continue
		}

		want := min(int64(len(p)-taken), remaining)
		n, err := part.Read(p[taken : taken+int(want)])
		taken += n
		s.intra += int64(n)

		if err != nil && !errors.Is(err, io.EOF) {
			return taken, fmt.Errorf("read %s: %w", part.Name(), err)
		}
		if n == 0 {
			if err != nil {
				return taken, fmt.Errorf("read %s at %d of %d: %w", part.Name(), s.intra, part.Size(), io.ErrUnexpectedEOF)
			}
			return taken, nil
		}
	}

	if taken == 0 {
		return 0, io.EOF
	}
	return taken, nil
}

// Seek moves the cursor to a logical offset. Offsets past Size are allowed
// and leave the cursor beyond the end of the last part.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	target, err := source.Resolve(s.total, s.Position(), offset, whence)
	if err != nil {
		return 0, err
	}
	if len(s.parts) == 0 {
		s.intra = target
		return target, nil
	}

	idx, cumul := s.locate(target)
	switch {
	case idx > s.idx:
		for _, p := range s.parts[s.idx:idx] {
			if _, err := p.Seek(p.Size(), io.SeekStart); err != nil {
				return 0, fmt.Errorf("seek %s to end: %w", p.Name(), err)
			}
		}
	case idx < s.idx:
		for _, p := range s.parts[idx+1 : s.idx+1] {
			if _, err := p.Seek(0, io.SeekStart); err != nil {
				return 0, fmt.Errorf("seek %s to start: %w", p.Name(), err)
			}
		}
	}

	part := s.parts[idx]
	intra, err := part.Seek(target-cumul, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("seek %s: %w", part.Name(), err)
	}
	if idx != s.idx {
		logger.Trace("Concat switched part", "from", s.idx, "to", idx, "name", part.Name())
	}

	s.idx = idx
	s.cumul = cumul
	s.intra = intra
	return cumul + intra, nil
}

// locate returns the index and starting offset of the part holding target.
// It scans backward from the current part when target lies behind it and
// forward otherwise, so sequential access costs O(1). Targets at or past the
// end map to the last part.
func (s *Stream) locate(target int64) (int, int64) {
	last := len(s.parts) - 1
	if target >= s.total {
		return last, s.total - s.parts[last].Size()
	}

	idx, cumul := s.idx, s.cumul
	if target < cumul {
		for cumul > target {
			idx--
			cumul -= s.parts[idx].Size()
		}
		return idx, cumul
	}

	for cumul+s.parts[idx].Size() <= target {
		cumul += s.parts[idx].Size()
		idx++
	}
	return idx, cumul
}

// Close closes every part.
func (s *Stream) Close() error {
	return source.CloseAll(s.parts)
}
