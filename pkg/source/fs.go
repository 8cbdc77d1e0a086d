package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"splitstream/pkg/logger"
)

// maxOpenWorkers bounds concurrent open+stat calls.
const maxOpenWorkers = 8

// Open opens every named file on fsys and returns them in argument order.
// Files are opened concurrently; if any open fails, the ones already opened
// are closed and the first error is returned.
func Open(ctx context.Context, fsys afero.Fs, names ...string) ([]*File, error) {
	files := make([]*File, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxOpenWorkers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := fsys.Open(name)
			if err != nil {
				return fmt.Errorf("open %s: %w", name, err)
			}
			info, err := f.Stat()
			if err != nil {
				f.Close()
				return fmt.Errorf("stat %s: %w", name, err)
			}
			if info.IsDir() {
				f.Close()
				return fmt.Errorf("open %s: is a directory", name)
			}
			files[i] = NewFile(filepath.Base(name), info.Size(), f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		CloseAll(files)
		return nil, err
	}

	logger.Debug("Opened sources", "count", len(files), "total", TotalSize(files))
	return files, nil
}

// Glob expands shell patterns on fsys. Patterns without matches are kept
// verbatim so that Open reports a not-found error for them.
func Glob(fsys afero.Fs, patterns ...string) ([]string, error) {
	var names []string
	for _, pattern := range patterns {
		matches, err := afero.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			names = append(names, pattern)
			continue
		}
		sort.Strings(matches)
		names = append(names, matches...)
	}
	return names, nil
}

// SortVolumes orders split volume names (movie.7z.001, movie.part02.rar, x.r00)
// case-insensitively, which is the concatenation order of split archives.
func SortVolumes(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(filepath.Base(names[i])) < strings.ToLower(filepath.Base(names[j]))
	})
}

// IsSplitVolume reports whether name carries a numeric volume suffix
// (.001, .r01, .part01.rar, .z01).
func IsSplitVolume(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(lower)
	if len(ext) >= 4 && allDigits(ext[1:]) {
		return true
	}
	if len(ext) == 4 && (ext[1] == 'r' || ext[1] == 'z') && allDigits(ext[2:]) {
		return true
	}
	if ext == ".rar" {
		stem := strings.TrimSuffix(lower, ext)
		if i := strings.LastIndex(stem, ".part"); i != -1 && allDigits(stem[i+5:]) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
