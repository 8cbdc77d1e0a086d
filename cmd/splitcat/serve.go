package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"splitstream/pkg/api"
	"splitstream/pkg/archive"
	"splitstream/pkg/concat"
	"splitstream/pkg/exactread"
	"splitstream/pkg/logger"
	"splitstream/pkg/session"
	"splitstream/pkg/source"
)

type serveCommand struct {
	app *app

	Addr    string        `long:"addr" description:"Listen address (default from config)"`
	IdleTTL time.Duration `long:"idle-ttl" description:"Close readers idle for this long" default:"10m"`

	Args volumeArgs `positional-args:"yes" required:"yes"`
}

func (c *serveCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := c.app.volumeNames(c.Args.Files)
	if err != nil {
		return err
	}
	stream, err := c.describe(ctx, names)
	if err != nil {
		return err
	}

	opts := c.app.cfg.ReaderOptions()
	pool, err := session.NewPool(c.app.cfg.PoolSize, c.IdleTTL, func() (*exactread.Reader, error) {
		files, err := source.Open(context.Background(), c.app.fs, names...)
		if err != nil {
			return nil, err
		}
		return exactread.NewMulti(files, opts...), nil
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	apiServer := api.NewServer(stream, pool)
	defer apiServer.Close()

	addr := c.Addr
	if addr == "" {
		addr = c.app.cfg.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving stream", "addr", addr, "name", stream.Name, "size", stream.Size, "parts", len(stream.Parts))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// describe opens the volumes once to build the part table and, for
// archives, the member list.
func (c *serveCommand) describe(ctx context.Context, names []string) (api.Stream, error) {
	files, err := source.Open(ctx, c.app.fs, names...)
	if err != nil {
		return api.Stream{}, err
	}
	parts := concat.New(files...)
	r := exactread.New(parts, c.app.cfg.ReaderOptions()...)
	defer r.Close()

	stream := api.Stream{
		Name:  filepath.Base(names[0]),
		Size:  parts.Size(),
		Parts: parts.Parts(),
	}

	entries, format, err := archive.List(r)
	switch {
	case err == nil:
		stream.Entries = entries
		if best, ok := archive.Largest(entries, archive.StoredMedia); ok {
			logger.Info("Archive detected", "format", format, "entries", len(entries), "main", best.Name)
		}
	case errors.Is(err, archive.ErrUnsupported):
	default:
		logger.Warn("Failed to list archive, serving raw stream", "format", format, "err", err)
	}
	return stream, nil
}
