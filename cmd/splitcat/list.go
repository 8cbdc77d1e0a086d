package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"splitstream/pkg/archive"
)

type listCommand struct {
	app *app

	JSON bool `long:"json" description:"Print entries as JSON"`

	Args volumeArgs `positional-args:"yes" required:"yes"`
}

func (c *listCommand) Execute(_ []string) error {
	r, err := c.app.openReader(context.Background(), c.Args.Files)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, format, err := archive.List(r)
	if err != nil {
		return err
	}
	archive.Sort(entries)

	if c.JSON {
		enc := json.NewEncoder(c.app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fmt.Fprintf(c.app.out, "format: %s\n", format)
	tw := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tSIZE\tSTORED\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%t\t%s\n", e.Offset, e.Size, !e.Compressed, e.Name)
	}
	return tw.Flush()
}
