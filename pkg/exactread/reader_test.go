package exactread

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitstream/pkg/concat"
	"splitstream/pkg/source"
)

// probe wraps a source, counts calls and fails the test on any read once
// frozen.
type probe struct {
	source.Source
	t      *testing.T
	reads  int
	seeks  int
	frozen bool
}

func (p *probe) Read(b []byte) (int, error) {
	if p.frozen {
		p.t.Fatalf("unexpected read of %d bytes from source", len(b))
	}
	p.reads++
	return p.Source.Read(b)
}

func (p *probe) Seek(off int64, whence int) (int64, error) {
	p.seeks++
	return p.Source.Seek(off, whence)
}

func multi(opts ...Option) *Reader {
	return NewMulti([]*source.File{
		source.FromBytes("a", []byte{1, 2, 3}),
		source.FromBytes("b", []byte{4, 5, 6}),
	}, opts...)
}

func read(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := r.Read(buf)
	require.NoError(t, err)
	return buf[:got]
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestRoundTripAcrossBoundary(t *testing.T) {
	r := multi()
	assert.Equal(t, []byte{1, 2, 3}, read(t, r, 3))
	assert.Equal(t, []byte{4}, read(t, r, 1))

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{5, 6}, buf[:n])
	assert.Equal(t, []byte{0, 0, 0}, buf[n:])

	n, err = r.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSeekThenReadAcrossSources(t *testing.T) {
	r := multi()

	pos, err := r.Seek(3, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)
	assert.Equal(t, []byte{4}, read(t, r, 1))

	_, err = r.Seek(-1, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, read(t, r, 2))

	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, read(t, r, 5))

	st := r.Stats()
	assert.Equal(t, int64(1), st.Reloads)
	assert.Equal(t, int64(1), st.FrontExtends)
	assert.Equal(t, int64(5), st.FetchedBytes, "every byte is fetched once")
}

func TestSeekNearEnd(t *testing.T) {
	r := NewSingle(source.FromBytes("x", []byte{1, 2, 3}))
	_, err := r.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, read(t, r, 2))
}

func TestSeekPositionRoundTrip(t *testing.T) {
	data := pattern(64)
	r := NewMulti([]*source.File{
		source.FromBytes("a", data[:20]),
		source.FromBytes("b", data[20:21]),
		source.FromBytes("c", data[21:]),
	})
	read(t, r, 10)
	for p := int64(0); p <= r.Size(); p++ {
		pos, err := r.Seek(p, io.SeekStart)
		require.NoError(t, err)
		assert.Equal(t, p, pos)
		assert.Equal(t, p, r.Position())
	}
}

func TestSequentialReadsMatchSource(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	data := pattern(1000)
	var files []*source.File
	for start := 0; start < len(data); {
		end := min(start+rng.IntN(90), len(data))
		files = append(files, source.FromBytes("p", data[start:end]))
		start = end
	}

	for _, opts := range [][]Option{
		nil,
		{WithReadAhead(64)},
		{WithMaxWindow(16)},
		{WithReadAhead(128), WithMaxWindow(100), WithInitialCapacity(32)},
	} {
		for i := range files {
			_, err := files[i].Seek(0, io.SeekStart)
			require.NoError(t, err)
		}
		r := NewMulti(files, opts...)
		var got []byte
		for {
			buf := make([]byte, 1+rng.IntN(40))
			n, err := r.Read(buf)
			got = append(got, buf[:n]...)
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
		}
		assert.Equal(t, data, got)
		assert.Equal(t, int64(len(data)), r.Stats().FetchedBytes)
	}
}

func TestSeekCurrentZeroIsFree(t *testing.T) {
	p := &probe{Source: source.FromBytes("x", pattern(32)), t: t}
	r := New(p)
	read(t, r, 8)
	before := r.Position()
	seeks := p.seeks
	p.frozen = true

	for i := 0; i < 3; i++ {
		pos, err := r.Seek(0, io.SeekCurrent)
		require.NoError(t, err)
		assert.Equal(t, before, pos)
	}
	assert.Equal(t, before, r.Position())
	assert.Equal(t, seeks, p.seeks)
}

func TestBackwardSeekRereadsFromCache(t *testing.T) {
	data := pattern(40)
	p := &probe{Source: concat.New(
		source.FromBytes("a", data[:25]),
		source.FromBytes("b", data[25:]),
	), t: t}
	r := New(p)
	first := read(t, r, 30)
	require.Equal(t, data[:30], first)
	p.frozen = true

	_, err := r.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[5:20], read(t, r, 15))

	_, err = r.Seek(-10, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, data[10:30], read(t, r, 20))
	assert.Zero(t, p.seeks)
}

func TestFrontExtendFetchesOnlyGap(t *testing.T) {
	data := pattern(100)
	p := &probe{Source: source.FromBytes("x", data), t: t}
	r := New(p)

	_, err := r.Seek(50, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[50:60], read(t, r, 10))

	_, err = r.Seek(45, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[45:55], read(t, r, 10))

	start, end := r.Window()
	assert.Equal(t, int64(45), start)
	assert.Equal(t, int64(60), end)
	assert.Equal(t, int64(15), r.Stats().FetchedBytes)
}

func TestSeekInsideWindowExtendsTail(t *testing.T) {
	data := pattern(100)
	r := NewSingle(source.FromBytes("x", data))

	_, err := r.Seek(10, io.SeekStart)
	require.NoError(t, err)
	read(t, r, 5)

	_, err = r.Seek(12, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[12:30], read(t, r, 18))
	assert.Equal(t, int64(20), r.Stats().FetchedBytes)
}

func TestFullReloadDiscardsWindow(t *testing.T) {
	data := pattern(100)
	r := NewSingle(source.FromBytes("x", data), WithReadAhead(8))

	assert.Equal(t, data[:4], read(t, r, 4))
	_, err := r.Seek(80, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(80), r.Position())
	assert.Equal(t, data[80:84], read(t, r, 4))

	start, end := r.Window()
	assert.Equal(t, int64(80), start)
	assert.Equal(t, int64(88), end)
	assert.Equal(t, int64(1), r.Stats().Reloads)
}

func TestReadPastEnd(t *testing.T) {
	r := multi()
	pos, err := r.Seek(100, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos)

	n, err := r.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(100), r.Position())

	_, err = r.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, []byte{6}, read(t, r, 8))
}

func TestSeekErrors(t *testing.T) {
	r := multi()
	_, err := r.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	_, err = r.Seek(-10, io.SeekCurrent)
	assert.ErrorIs(t, err, source.ErrNegativePosition)
	_, err = r.Seek(0, 42)
	assert.ErrorIs(t, err, source.ErrInvalidWhence)
	assert.Equal(t, int64(5), r.Position())
}

func TestMaxWindowDropsBehindCursor(t *testing.T) {
	data := pattern(64)
	r := NewSingle(source.FromBytes("x", data), WithMaxWindow(8))

	read(t, r, 6)
	read(t, r, 6)
	start, end := r.Window()
	assert.Equal(t, int64(8), end-start)
	assert.Equal(t, int64(12), end)
	assert.Equal(t, int64(12), r.Position())

	_, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.Position())
	assert.Equal(t, data[4:10], read(t, r, 6))
}

func TestMaxWindowAfterFrontExtend(t *testing.T) {
	data := pattern(64)
	r := NewSingle(source.FromBytes("x", data), WithMaxWindow(8))

	_, err := r.Seek(20, io.SeekStart)
	require.NoError(t, err)
	read(t, r, 8)

	_, err = r.Seek(16, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[16:22], read(t, r, 6))

	start, end := r.Window()
	assert.Equal(t, int64(20), start)
	assert.Equal(t, int64(28), end)
	assert.Equal(t, int64(22), r.Position())
	assert.Equal(t, data[22:30], read(t, r, 8))
}

func TestMaxWindowTrimsBackAfterFrontExtend(t *testing.T) {
	data := pattern(64)
	r := NewSingle(source.FromBytes("x", data), WithMaxWindow(8))

	_, err := r.Seek(20, io.SeekStart)
	require.NoError(t, err)
	read(t, r, 8)

	_, err = r.Seek(16, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, data[16:17], read(t, r, 1))

	start, end := r.Window()
	assert.Equal(t, int64(17), start)
	assert.Equal(t, int64(25), end)

	fetched := r.Stats().FetchedBytes
	assert.Equal(t, data[17:25], read(t, r, 8))
	assert.Equal(t, fetched, r.Stats().FetchedBytes)
	assert.Equal(t, data[25:29], read(t, r, 4))
}

func TestReserve(t *testing.T) {
	r := multi()
	n, err := r.Reserve(4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(0), r.Position())

	n, err = r.Reserve(10)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = r.Reserve(-1)
	assert.Error(t, err)
}

func TestTruncatedSourceShortRead(t *testing.T) {
	r := NewSingle(source.NewFile("short", 10, bytes.NewReader([]byte{1, 2, 3})))
	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])

	n, err = r.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

type brokenSource struct{ source.Source }

var errBroken = errors.New("broken pipe")

func (brokenSource) Read([]byte) (int, error) { return 0, errBroken }

func TestSourceErrorPassesThrough(t *testing.T) {
	r := New(brokenSource{source.FromBytes("x", pattern(8))})
	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, errBroken)
}

func TestEmptySources(t *testing.T) {
	r := NewMulti(nil)
	assert.Equal(t, int64(0), r.Size())
	n, err := r.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestClose(t *testing.T) {
	r := multi()
	read(t, r, 2)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWorksWithStdlib(t *testing.T) {
	data := pattern(500)
	r := NewMulti([]*source.File{
		source.FromBytes("a", data[:123]),
		source.FromBytes("b", data[123:]),
	}, WithReadAhead(64))

	all, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, all)

	_, err = r.Seek(100, io.SeekStart)
	require.NoError(t, err)
	part, err := io.ReadAll(io.LimitReader(r, 50))
	require.NoError(t, err)
	assert.Equal(t, data[100:150], part)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "front-extend", stateFrontExtend.String())
	assert.Equal(t, "unknown", state(99).String())
}
