// Package codec sniffs and decodes the compression formats split streams
// commonly carry.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type Format string

const (
	Auto     Format = "auto"
	None     Format = "none"
	Zstd     Format = "zstd"
	Gzip     Format = "gzip"
	Xz       Format = "xz"
	Lz4      Format = "lz4"
	Brotli   Format = "brotli"
	SevenZip Format = "7z"
	Cpio     Format = "cpio"
)

var ErrUnknownFormat = errors.New("unknown format")

// Compressed reports whether NewReader transforms the stream.
func (f Format) Compressed() bool {
	switch f {
	case Zstd, Gzip, Xz, Lz4, Brotli:
		return true
	}
	return false
}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "none", "raw":
		return None, nil
	case "zstd", "zst":
		return Zstd, nil
	case "gzip", "gz":
		return Gzip, nil
	case "xz":
		return Xz, nil
	case "lz4":
		return Lz4, nil
	case "brotli", "br":
		return Brotli, nil
	case "7z", "sevenzip":
		return SevenZip, nil
	case "cpio":
		return Cpio, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

type matcher struct {
	format Format
	magic  []byte
}

// Brotli has no magic number and is never detected.
var matchers = []matcher{
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{Gzip, []byte{0x1f, 0x8b}},
	{Xz, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{Lz4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{Lz4, []byte{0x02, 0x21, 0x4c, 0x18}}, // legacy frame
	{SevenZip, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}},
	{Cpio, []byte{'0', '7', '0', '7', '0', '1'}},
	{Cpio, []byte{'0', '7', '0', '7', '0', '2'}}, // newc with checksums
}

const maxMagic = 6

// Detect sniffs the magic bytes at the start of rs. The position of rs is
// restored before returning. Unrecognised content is reported as None.
func Detect(rs io.ReadSeeker) (Format, error) {
	loc, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", err
	}
	defer rs.Seek(loc, io.SeekStart)

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	head := make([]byte, maxMagic)
	n, err := io.ReadFull(rs, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	head = head[:n]

	for _, m := range matchers {
		if bytes.HasPrefix(head, m.magic) {
			return m.format, nil
		}
	}
	return None, nil
}

// NewReader returns a reader that decodes r. Formats that are not
// compressed pass r through unchanged.
func NewReader(f Format, r io.Reader) (io.ReadCloser, error) {
	switch f {
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return d.IOReadCloser(), nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	case Xz:
		conf := xz.ReaderConfig{}
		if err := conf.Verify(); err != nil {
			return nil, err
		}
		x, err := conf.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.NopCloser(x), nil
	case Lz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case None, SevenZip, Cpio:
		return io.NopCloser(r), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Open resolves Auto by sniffing rs and returns the decoding reader together
// with the format in effect.
func Open(rs io.ReadSeeker, f Format) (io.ReadCloser, Format, error) {
	if f == Auto {
		detected, err := Detect(rs)
		if err != nil {
			return nil, "", fmt.Errorf("detect format: %w", err)
		}
		f = detected
	}
	rc, err := NewReader(f, rs)
	if err != nil {
		return nil, "", err
	}
	return rc, f, nil
}
