package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		current int64
		offset  int64
		whence  int
		want    int64
		err     error
	}{
		{"start", 5, 3, io.SeekStart, 3, nil},
		{"current forward", 5, 3, io.SeekCurrent, 8, nil},
		{"current backward", 5, -5, io.SeekCurrent, 0, nil},
		{"end", 5, -1, io.SeekEnd, 9, nil},
		{"past end allowed", 5, 20, io.SeekStart, 20, nil},
		{"negative start", 5, -1, io.SeekStart, 0, ErrNegativePosition},
		{"negative current", 5, -6, io.SeekCurrent, 0, ErrNegativePosition},
		{"negative end", 5, -11, io.SeekEnd, 0, ErrNegativePosition},
		{"bad whence", 5, 0, 7, 0, ErrInvalidWhence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(10, tt.current, tt.offset, tt.whence)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBytes(t *testing.T) {
	f := FromBytes("a", []byte("hello"))
	assert.Equal(t, "a", f.Name())
	assert.Equal(t, int64(5), f.Size())

	_, err := f.Seek(1, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "ello", string(got))
	assert.NoError(t, f.Close())
}

type failCloser struct {
	io.ReadSeeker
	err error
}

func (f failCloser) Close() error { return f.err }

func TestCloseAllJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	files := []*File{
		NewFile("a", 0, failCloser{strings.NewReader(""), errA}),
		nil,
		FromBytes("ok", nil),
		NewFile("b", 0, failCloser{strings.NewReader(""), errB}),
	}
	err := CloseAll(files)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, int64(0), TotalSize(files[2:]))
}

func TestOpen(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/v/movie.001", []byte("abc"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/v/movie.002", []byte("defgh"), 0o644))
	require.NoError(t, fsys.Mkdir("/v/dir", 0o755))

	files, err := Open(context.Background(), fsys, "/v/movie.002", "/v/movie.001")
	require.NoError(t, err)
	defer CloseAll(files)
	require.Len(t, files, 2)
	assert.Equal(t, "movie.002", files[0].Name())
	assert.Equal(t, int64(5), files[0].Size())
	assert.Equal(t, "movie.001", files[1].Name())
	assert.Equal(t, int64(8), TotalSize(files))

	_, err = Open(context.Background(), fsys, "/v/movie.001", "/v/missing")
	assert.ErrorContains(t, err, "missing")

	_, err = Open(context.Background(), fsys, "/v/dir")
	assert.ErrorContains(t, err, "is a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Open(ctx, fsys, "/v/movie.001")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGlob(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"/v/b.002", "/v/b.001", "/v/a.txt"} {
		require.NoError(t, afero.WriteFile(fsys, name, nil, 0o644))
	}
	names, err := Glob(fsys, "/v/b.*", "/v/none.*", "/v/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/v/b.001", "/v/b.002", "/v/none.*", "/v/a.txt"}, names)

	_, err = Glob(fsys, "/v/[")
	assert.Error(t, err)
}

func TestSortVolumes(t *testing.T) {
	names := []string{"/x/Movie.7z.010", "/y/movie.7z.002", "/x/MOVIE.7z.001"}
	SortVolumes(names)
	assert.Equal(t, []string{"/x/MOVIE.7z.001", "/y/movie.7z.002", "/x/Movie.7z.010"}, names)
}

func TestIsSplitVolume(t *testing.T) {
	for name, want := range map[string]bool{
		"movie.7z.001":     true,
		"movie.001":        true,
		"movie.r00":        true,
		"movie.z01":        true,
		"movie.part01.rar": true,
		"movie.rar":        false,
		"movie.mkv":        false,
		"movie.12":         false,
		"movie":            false,
	} {
		assert.Equal(t, want, IsSplitVolume(name), name)
	}
}
