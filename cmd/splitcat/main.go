// Command splitcat reads files that were split into volumes as one
// seekable stream.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"splitstream/pkg/config"
	"splitstream/pkg/env"
	"splitstream/pkg/exactread"
	"splitstream/pkg/logger"
	"splitstream/pkg/source"
)

type globalOptions struct {
	Config   string `long:"config" description:"YAML configuration file"`
	LogLevel string `long:"log-level" description:"TRACE, DEBUG, INFO, WARN or ERROR"`
	Sort     bool   `long:"sort" description:"Sort volumes by name before concatenating"`
	Glob     bool   `long:"glob" description:"Expand shell patterns in FILE arguments"`
}

// app carries what every command needs once the global options are parsed.
type app struct {
	opts globalOptions
	cfg  *config.Config
	fs   afero.Fs
	out  io.Writer
}

type volumeArgs struct {
	Files []string `positional-arg-name:"FILE" required:"yes"`
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewParser(&a.opts, flags.Default&^flags.PrintErrors)
	parser.AddCommand("cat", "Write a range of the stream", "Write a byte range of the concatenated volumes, or of a stored archive member, optionally decompressing it.", &catCommand{app: a})
	parser.AddCommand("inspect", "Describe the stream", "Print the part table, total size, detected format and xxhash64 of the concatenated volumes.", &inspectCommand{app: a})
	parser.AddCommand("list", "List archive members", "List the members of a split 7z or cpio archive.", &listCommand{app: a})
	parser.AddCommand("serve", "Serve the stream over HTTP", "Serve the concatenated volumes with range support.", &serveCommand{app: a})

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if err := a.setup(); err != nil {
			return err
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}
	return parser
}

func (a *app) setup() error {
	cfg, err := config.Load(a.opts.Config)
	if err != nil {
		return err
	}
	if a.opts.LogLevel != "" {
		cfg.LogLevel = a.opts.LogLevel
	}
	if a.opts.Sort {
		cfg.Sort = true
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		if err := logger.SetFile(cfg.LogFile); err != nil {
			return err
		}
	}
	a.cfg = cfg
	return nil
}

// volumeNames expands and orders the FILE arguments.
func (a *app) volumeNames(names []string) ([]string, error) {
	if a.opts.Glob {
		expanded, err := source.Glob(a.fs, names...)
		if err != nil {
			return nil, err
		}
		names = expanded
	}
	if a.cfg.Sort {
		source.SortVolumes(names)
	}
	return names, nil
}

func (a *app) openFiles(ctx context.Context, names []string) ([]*source.File, error) {
	names, err := a.volumeNames(names)
	if err != nil {
		return nil, err
	}
	return source.Open(ctx, a.fs, names...)
}

func (a *app) openReader(ctx context.Context, names []string) (*exactread.Reader, error) {
	files, err := a.openFiles(ctx, names)
	if err != nil {
		return nil, err
	}
	return exactread.NewMulti(files, a.cfg.ReaderOptions()...), nil
}

func main() {
	// Load environment variables before the logger and config read them
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Failed to load .env:", err)
	}
	logger.Init(env.LogLevel())
	defer logger.Close()

	a := &app{fs: afero.NewOsFs(), out: os.Stdout}
	if _, err := newParser(a).Parse(); err != nil {
		if flags.WroteHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		if _, ok := err.(*flags.Error); ok {
			fmt.Fprintln(os.Stderr, err)
		} else {
			logger.Error("splitcat failed", "err", err)
		}
		os.Exit(1)
	}
}
