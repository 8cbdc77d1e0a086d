package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"splitstream/pkg/env"
	"splitstream/pkg/exactread"
	"splitstream/pkg/logger"
	"splitstream/pkg/paths"
)

// Defaults
const (
	DefaultReadAhead = 256 << 10
	DefaultMaxWindow = 16 << 20
	DefaultPoolSize  = 16
	DefaultAddr      = "127.0.0.1:7070"
)

// Config holds application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	// Reader tuning
	ReadAhead       int `yaml:"read_ahead"`
	MaxWindow       int `yaml:"max_window"`
	InitialCapacity int `yaml:"initial_capacity,omitempty"`

	// Serve settings
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`

	// Sort volumes by name before concatenating
	Sort bool `yaml:"sort"`

	// Internal - where was this config loaded from?
	LoadedPath string `yaml:"-"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		LogLevel:  "INFO",
		ReadAhead: DefaultReadAhead,
		MaxWindow: DefaultMaxWindow,
		Addr:      DefaultAddr,
		PoolSize:  DefaultPoolSize,
	}
}

// Load is intended for startup only. It reads the YAML file at path (the
// data directory's splitstream.yaml when path is empty), applies environment
// variable overrides once and validates the result.
// Priority: Environment variables (if not empty) > config file > defaults
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(paths.GetDataDir(), paths.ConfigFile)
	}

	cfg := Default()
	cfg.LoadedPath = path

	if err := cfg.LoadFile(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		logger.Debug("No config file, using defaults", "path", path)
	} else {
		logger.Info("Loaded configuration", "path", path)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overrides config with values from a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Save saves the current configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = paths.ConfigFile
	}
	return c.SaveFile(path)
}

// SaveFile atomically replaces path with the YAML encoding of c.
func (c *Config) SaveFile(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate rejects settings the reader cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.ReadAhead < 0 {
		errs = append(errs, fmt.Errorf("read_ahead must not be negative, got %d", c.ReadAhead))
	}
	if c.MaxWindow < 0 {
		errs = append(errs, fmt.Errorf("max_window must not be negative, got %d", c.MaxWindow))
	}
	if c.InitialCapacity < 0 {
		errs = append(errs, fmt.Errorf("initial_capacity must not be negative, got %d", c.InitialCapacity))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size must be at least 1, got %d", c.PoolSize))
	}
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch strings.ToUpper(c.LogLevel) {
	case "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ReaderOptions converts the reader tuning into exactread options.
func (c *Config) ReaderOptions() []exactread.Option {
	opts := []exactread.Option{
		exactread.WithReadAhead(c.ReadAhead),
		exactread.WithMaxWindow(c.MaxWindow),
	}
	if c.InitialCapacity > 0 {
		opts = append(opts, exactread.WithInitialCapacity(c.InitialCapacity))
	}
	return opts
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if slices.Contains(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if slices.Contains(keys, env.KeyLogFile) {
		cfg.LogFile = o.LogFile
	}
	if slices.Contains(keys, env.KeyReadAhead) {
		cfg.ReadAhead = o.ReadAhead
	}
	if slices.Contains(keys, env.KeyMaxWindow) {
		cfg.MaxWindow = o.MaxWindow
	}
	if slices.Contains(keys, env.KeyAddr) {
		cfg.Addr = o.Addr
	}
	if slices.Contains(keys, env.KeyPoolSize) {
		cfg.PoolSize = o.PoolSize
	}
	if slices.Contains(keys, env.KeySort) {
		cfg.Sort = o.Sort
	}
}

// GetEnvOverrideKeys returns config keys that have environment variable overrides set.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
