package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cespare/xxhash/v2"

	"splitstream/pkg/codec"
	"splitstream/pkg/concat"
)

type inspectCommand struct {
	app *app

	NoHash bool `long:"no-hash" description:"Skip hashing the whole stream"`

	Args volumeArgs `positional-args:"yes" required:"yes"`
}

func (c *inspectCommand) Execute(_ []string) error {
	r, err := c.app.openReader(context.Background(), c.Args.Files)
	if err != nil {
		return err
	}
	defer r.Close()

	out := c.app.out
	if stream, ok := r.Source().(*concat.Stream); ok {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "#\tOFFSET\tSIZE\tNAME\t")
		for i, p := range stream.Parts() {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t\n", i, p.Offset, p.Size, p.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "size: %d\n", r.Size())

	format, err := codec.Detect(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "format: %s\n", format)

	if !c.NoHash {
		h := xxhash.New()
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(h, r); err != nil {
			return err
		}
		fmt.Fprintf(out, "xxhash64: %016x\n", h.Sum64())
	}

	st := r.Stats()
	fmt.Fprintf(out, "fetches: %d fetched: %d hits: %d seeks: %d\n", st.Fetches, st.FetchedBytes, st.Hits, st.Seeks)
	return nil
}
