package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"splitstream/pkg/archive"
	"splitstream/pkg/codec"
	"splitstream/pkg/logger"
)

type catCommand struct {
	app *app

	Offset     int64  `long:"offset" description:"Start of the range" default:"0"`
	Length     int64  `long:"length" description:"Length of the range, -1 for the rest" default:"-1"`
	Decompress string `long:"decompress" description:"auto, none, zstd, gzip, xz, lz4 or brotli" default:"none"`
	Entry      string `long:"entry" description:"Stored archive member to read instead of the whole stream"`
	Output     string `short:"o" long:"output" description:"Output file, written atomically (default stdout)"`

	Args volumeArgs `positional-args:"yes" required:"yes"`
}

func (c *catCommand) Execute(_ []string) error {
	format, err := codec.ParseFormat(c.Decompress)
	if err != nil {
		return err
	}

	r, err := c.app.openReader(context.Background(), c.Args.Files)
	if err != nil {
		return err
	}
	defer r.Close()

	var base *io.SectionReader
	if c.Entry != "" {
		entries, _, err := archive.List(r)
		if err != nil {
			return err
		}
		if base, err = archive.OpenStored(r, entries, c.Entry); err != nil {
			return err
		}
	} else {
		base = io.NewSectionReader(archive.NewReaderAt(r), 0, r.Size())
	}

	section, err := subRange(base, c.Offset, c.Length)
	if err != nil {
		return err
	}

	rc, used, err := codec.Open(section, format)
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := c.write(rc)
	if err != nil {
		return err
	}
	st := r.Stats()
	logger.Debug("cat finished", "bytes", n, "format", used, "fetches", st.Fetches, "fetched", st.FetchedBytes)
	return nil
}

// subRange narrows base to [off, off+length). A negative length means the
// rest of base.
func subRange(base *io.SectionReader, off, length int64) (*io.SectionReader, error) {
	size := base.Size()
	if off < 0 || off > size {
		return nil, fmt.Errorf("offset %d outside stream of %d bytes", off, size)
	}
	if length < 0 || off+length > size {
		length = size - off
	}
	return io.NewSectionReader(base, off, length), nil
}

func (c *catCommand) write(r io.Reader) (int64, error) {
	if c.Output == "" || c.Output == "-" {
		return io.Copy(c.app.out, r)
	}

	f, err := renameio.NewPendingFile(c.Output, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, err
	}
	defer f.Cleanup()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, err
	}
	return n, f.CloseAtomicallyReplace()
}
