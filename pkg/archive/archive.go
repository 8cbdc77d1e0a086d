// Package archive lists and opens the members of archives that were split
// into volumes and are read back through a concatenated stream.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/javi11/sevenzip"

	"splitstream/pkg/codec"
	"splitstream/pkg/logger"
	"splitstream/pkg/source"
)

var (
	// ErrNotStored is returned when direct access is requested for a member
	// whose data is compressed inside the archive.
	ErrNotStored = errors.New("archive member is compressed")
	// ErrEntryNotFound is returned when no member has the requested name.
	ErrEntryNotFound = errors.New("archive member not found")
	// ErrUnsupported is returned for streams that are not a known archive.
	ErrUnsupported = errors.New("not a supported archive")
)

// Entry is one member of an archive. Offset is the position of the member's
// data in the concatenated stream and is only meaningful for stored members.
type Entry struct {
	Name       string `json:"name"`
	Offset     int64  `json:"offset"`
	Size       int64  `json:"size"`
	Compressed bool   `json:"compressed"`
}

// ReaderAt serialises positional reads over a seekable stream. The stream
// must not be used by anyone else while the ReaderAt is in use.
type ReaderAt struct {
	mu  sync.Mutex
	src source.Source
}

func NewReaderAt(src source.Source) *ReaderAt {
	return &ReaderAt{src: src}
}

func (ra *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	if off >= ra.src.Size() {
		return 0, io.EOF
	}
	if _, err := ra.src.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(ra.src, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (ra *ReaderAt) Size() int64 { return ra.src.Size() }

// List detects the archive format of src and lists its members.
func List(src source.Source) ([]Entry, codec.Format, error) {
	format, err := codec.Detect(src)
	if err != nil {
		return nil, "", fmt.Errorf("detect archive: %w", err)
	}

	var entries []Entry
	switch format {
	case codec.SevenZip:
		entries, err = ListSevenZip(src)
	case codec.Cpio:
		entries, err = ListCpio(src)
	default:
		return nil, format, fmt.Errorf("%w: detected %s", ErrUnsupported, format)
	}
	if err != nil {
		return nil, format, err
	}
	return entries, format, nil
}

// ListSevenZip lists the members of a 7z archive together with the offsets
// of their data.
func ListSevenZip(src source.Source) ([]Entry, error) {
	ra := NewReaderAt(src)
	r, err := sevenzip.NewReader(ra, ra.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z archive: %w", err)
	}

	fileInfos, err := r.ListFilesWithOffsets()
	if err != nil {
		return nil, fmt.Errorf("failed to list 7z files: %w", err)
	}

	entries := make([]Entry, 0, len(fileInfos))
	for _, fi := range fileInfos {
		entries = append(entries, Entry{
			Name:       fi.Name,
			Offset:     int64(fi.Offset),
			Size:       int64(fi.Size),
			Compressed: fi.Compressed,
		})
	}
	logger.Debug("Listed 7z archive", "entries", len(entries), "size", ra.Size())
	return entries, nil
}

// Find returns the member called name. Base names match too.
func Find(entries []Entry, name string) (Entry, error) {
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	for _, e := range entries {
		if filepath.Base(e.Name) == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// OpenStored returns direct access to the data of a stored member.
func OpenStored(src source.Source, entries []Entry, name string) (*io.SectionReader, error) {
	e, err := Find(entries, name)
	if err != nil {
		return nil, err
	}
	if e.Compressed {
		return nil, fmt.Errorf("%w: %s", ErrNotStored, e.Name)
	}
	if e.Offset < 0 || e.Offset+e.Size > src.Size() {
		return nil, fmt.Errorf("member %s at %d+%d exceeds stream size %d", e.Name, e.Offset, e.Size, src.Size())
	}
	return io.NewSectionReader(NewReaderAt(src), e.Offset, e.Size), nil
}

// Largest returns the biggest member accepted by pred. A nil pred accepts
// every member.
func Largest(entries []Entry, pred func(Entry) bool) (Entry, bool) {
	best, found := Entry{}, false
	for _, e := range entries {
		if pred != nil && !pred(e) {
			continue
		}
		if !found || e.Size > best.Size {
			best, found = e, true
		}
	}
	return best, found
}

// StoredMedia accepts uncompressed media members that are not samples.
func StoredMedia(e Entry) bool {
	return !e.Compressed && IsMediaFile(e.Name) && !IsSampleFile(e.Name)
}

// Sort orders entries by offset.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
}
