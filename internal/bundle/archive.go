// Package bundle reads extension bundle archives and their manifests.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// CorruptArchiveError reports an archive whose central structure cannot be
// parsed.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt bundle archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}

// Entry describes a single archive entry.
type Entry struct {
	// Path is the entry's relative path inside the archive, using forward
	// slashes.
	Path    string
	Size    int64
	ModTime time.Time
	Dir     bool

	file *zip.File
}

// Open returns a reader over the entry's bytes. The caller closes it before
// advancing to the next entry.
func (e Entry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", e.Path, err)
	}
	return rc, nil
}

// Archive is an open bundle archive. It holds a read handle on the source
// file until Close.
type Archive struct {
	path   string
	handle afero.File
	reader *zip.Reader
}

// Open opens the archive at path for entry iteration. The archive format is
// zip; an unparsable central directory yields CorruptArchiveError.
func Open(fsys afero.Fs, path string) (*Archive, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle archive %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to stat bundle archive %s: %w", path, err), f.Close())
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, errors.Join(&CorruptArchiveError{Path: path, Err: err}, f.Close())
	}

	return &Archive{path: path, handle: f, reader: zr}, nil
}

// Path returns the archive's source path.
func (a *Archive) Path() string {
	return a.path
}

// Entries returns a descriptor for every entry in archive order.
func (a *Archive) Entries() []Entry {
	entries := make([]Entry, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		entries = append(entries, Entry{
			Path:    f.Name,
			Size:    int64(f.UncompressedSize64),
			ModTime: f.Modified,
			Dir:     f.FileInfo().IsDir(),
			file:    f,
		})
	}
	return entries
}

// Manifest reads and parses the archive's manifest entry. A missing manifest
// yields a synthetic identity-only manifest; malformed manifest bytes yield
// InvalidManifestError.
func (a *Archive) Manifest() (*Manifest, error) {
	for _, f := range a.reader.File {
		if !manifestEntry(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest entry of %s: %w", a.path, err)
		}
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to read manifest entry of %s: %w", a.path, err), rc.Close())
		}
		if err := rc.Close(); err != nil {
			return nil, fmt.Errorf("failed to close manifest entry of %s: %w", a.path, err)
		}

		m, err := ParseManifest(data)
		if err != nil {
			return nil, err
		}
		if m.BundleID == "" {
			m.BundleID = SyntheticManifest(a.path).BundleID
		}
		return m, nil
	}

	return SyntheticManifest(a.path), nil
}

// Close releases the read handle on the source file.
func (a *Archive) Close() error {
	return a.handle.Close()
}

func manifestEntry(name string) bool {
	return strings.EqualFold(strings.TrimPrefix(name, "/"), ManifestPath)
}
