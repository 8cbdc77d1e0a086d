// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names (single source of truth)
const (
	LOGLevel  = "SPLITSTREAM_LOG_LEVEL"
	LOGFile   = "SPLITSTREAM_LOG_FILE"
	ReadAhead = "SPLITSTREAM_READ_AHEAD"
	MaxWindow = "SPLITSTREAM_MAX_WINDOW"
	Addr      = "SPLITSTREAM_ADDR"
	PoolSize  = "SPLITSTREAM_POOL_SIZE"
	DataDir   = "SPLITSTREAM_DATA_DIR"
	SortParts = "SPLITSTREAM_SORT"
)

// Config YAML keys returned by OverrideKeys
const (
	KeyLogLevel  = "log_level"
	KeyLogFile   = "log_file"
	KeyReadAhead = "read_ahead"
	KeyMaxWindow = "max_window"
	KeyAddr      = "addr"
	KeyPoolSize  = "pool_size"
	KeySort      = "sort"
)

// LogLevel returns SPLITSTREAM_LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	return getEnv(LOGLevel, "INFO")
}

// DataDirOverride returns SPLITSTREAM_DATA_DIR, empty when unset.
func DataDirOverride() string {
	return os.Getenv(DataDir)
}

// ConfigOverrides holds all config values that can be set via environment variables.
type ConfigOverrides struct {
	LogLevel  string
	LogFile   string
	ReadAhead int
	MaxWindow int
	Addr      string
	PoolSize  int
	Sort      bool
}

// ReadConfigOverrides reads all relevant environment variables once and returns
// overrides to apply to config plus the list of config keys that were set.
// Malformed numbers are ignored.
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	if v := os.Getenv(LOGLevel); v != "" {
		o.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}
	if v := os.Getenv(LOGFile); v != "" {
		o.LogFile = v
		keys = append(keys, KeyLogFile)
	}
	if n, ok := lookupInt(ReadAhead); ok {
		o.ReadAhead = n
		keys = append(keys, KeyReadAhead)
	}
	if n, ok := lookupInt(MaxWindow); ok {
		o.MaxWindow = n
		keys = append(keys, KeyMaxWindow)
	}
	if v := os.Getenv(Addr); v != "" {
		o.Addr = v
		keys = append(keys, KeyAddr)
	}
	if n, ok := lookupInt(PoolSize); ok {
		o.PoolSize = n
		keys = append(keys, KeyPoolSize)
	}
	if v := os.Getenv(SortParts); v != "" {
		o.Sort = getEnvBool(SortParts, false)
		keys = append(keys, KeySort)
	}

	return o, keys
}

// OverrideKeys returns the config keys that have environment overrides set.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true" || v == "1"
	}
	return defaultVal
}
