package archive

import (
	"path/filepath"
	"strings"
)

// Extension constants
const (
	Ext7z  = ".7z"
	ExtMkv = ".mkv"
	ExtMp4 = ".mp4"
	ExtAvi = ".avi"
	ExtIso = ".iso"
	ExtTs  = ".ts"
)

// IsMediaFile checks if the filename has a common video or disc image extension.
func IsMediaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtMkv, ExtMp4, ExtAvi, ExtIso, ExtTs:
		return true
	}
	return false
}

// IsSampleFile checks if the filename looks like a sample/trailer.
func IsSampleFile(name string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(name)), "sample")
}

// IsSevenZipVolume reports whether name is a 7z archive or one of its
// numbered volumes (movie.7z, movie.7z.001).
func IsSevenZipVolume(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	return strings.HasSuffix(lower, Ext7z) || strings.Contains(lower, Ext7z+".")
}
