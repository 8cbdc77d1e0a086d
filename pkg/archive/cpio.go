package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/cavaliergopher/cpio"

	"splitstream/pkg/source"
)

// countingReader tracks how many bytes the cpio reader consumed so that the
// data offset of each member is known.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ListCpio lists the regular files of a SVR4 (newc) cpio archive.
// cpio never compresses members, so every entry can be opened with
// OpenStored.
func ListCpio(src source.Source) ([]Entry, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	cr := &countingReader{r: src}
	img := cpio.NewReader(cr)

	var entries []Entry
	for {
		hdr, err := img.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cpio header: %w", err)
		}
		if !hdr.Mode.IsRegular() {
			continue
		}
		entries = append(entries, Entry{
			Name:   hdr.Name,
			Offset: cr.n,
			Size:   hdr.Size,
		})
	}
	return entries, nil
}
