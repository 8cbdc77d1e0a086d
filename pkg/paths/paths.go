package paths

import (
	"os"

	"splitstream/pkg/env"
)

// ConfigFile is the name of the configuration file inside the data directory.
const ConfigFile = "splitstream.yaml"

// GetDataDir returns the data directory path.
// SPLITSTREAM_DATA_DIR wins; inside Docker (/.dockerenv exists) it is
// /app/data; otherwise the current directory.
func GetDataDir() string {
	if dir := env.DataDirOverride(); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "/app/data"
	}
	return "."
}
