package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitstream/pkg/env"
	"splitstream/pkg/exactread"
	"splitstream/pkg/source"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{env.LOGLevel, env.LOGFile, env.ReadAhead, env.MaxWindow, env.Addr, env.PoolSize, env.DataDir, env.SortParts} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(env.DataDir, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultReadAhead, cfg.ReadAhead)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, filepath.Join(dir, "splitstream.yaml"), cfg.LoadedPath)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("read_ahead: 1024\npool_size: 3\naddr: ':9000'\n"), 0o644))
	t.Setenv(env.PoolSize, "7")
	t.Setenv(env.MaxWindow, "not-a-number")
	t.Setenv(env.SortParts, "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.ReadAhead)
	assert.Equal(t, 7, cfg.PoolSize)
	assert.Equal(t, DefaultMaxWindow, cfg.MaxWindow)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.True(t, cfg.Sort)
	assert.ElementsMatch(t, []string{env.KeyPoolSize, env.KeySort}, GetEnvOverrideKeys())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("read_ahaed: 1\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.ReadAhead = -1
	cfg.PoolSize = 0
	cfg.Addr = " "
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"read_ahead", "pool_size", "addr", "log_level"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := Default()
	cfg.LoadedPath = path
	cfg.ReadAhead = 4096
	cfg.Sort = true
	require.NoError(t, cfg.Save())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, got.ReadAhead)
	assert.True(t, got.Sort)
}

func TestReaderOptions(t *testing.T) {
	cfg := Default()
	cfg.ReadAhead = 0
	cfg.MaxWindow = 0
	cfg.InitialCapacity = 64

	data := []byte("0123456789")
	r := exactread.NewSingle(source.FromBytes("x", data), cfg.ReaderOptions()...)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), r.Stats().FetchedBytes)
}
