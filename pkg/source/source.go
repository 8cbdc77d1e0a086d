package source

import (
	"bytes"
	"errors"
	"io"
)

var (
	// ErrNegativePosition is returned when a seek resolves before the start of the stream.
	ErrNegativePosition = errors.New("seek to negative position")
	// ErrInvalidWhence is returned for a whence other than io.SeekStart, io.SeekCurrent or io.SeekEnd.
	ErrInvalidWhence = errors.New("seek: invalid whence")
)

// Source is the capability contract consumed by the buffered reader:
// read, seek and a size fixed at construction.
type Source interface {
	io.Reader
	io.Seeker
	Size() int64
}

// File is one finite, independently seekable unit of a stream.
// Implemented over files, sockets wrapped in a seeker, or in-memory buffers.
type File struct {
	name string
	size int64
	r    io.ReadSeeker
}

var _ Source = (*File)(nil)

// NewFile wraps r as a source of the given size. The size is authoritative:
// readers built on top never read past it.
func NewFile(name string, size int64, r io.ReadSeeker) *File {
	return &File{name: name, size: size, r: r}
}

// FromBytes returns an in-memory source.
func FromBytes(name string, data []byte) *File {
	return NewFile(name, int64(len(data)), bytes.NewReader(data))
}

func (f *File) Name() string { return f.name }
func (f *File) Size() int64  { return f.size }

func (f *File) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

// Close closes the underlying handle if it is closable.
func (f *File) Close() error {
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Resolve computes the absolute offset of a seek request against a stream of
// the given size whose cursor is at current. Positions past size are allowed.
func Resolve(size, current, offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = current
	case io.SeekEnd:
		base = size
	default:
		return 0, ErrInvalidWhence
	}

	target := base + offset
	if target < 0 {
		return 0, ErrNegativePosition
	}
	return target, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []*File) int64 {
	var total int64
	for _, f := range files {
		total += f.size
	}
	return total
}

// CloseAll closes every file and joins the errors.
func CloseAll(files []*File) error {
	var errs []error
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
