// Package unpack drives the discovery and incremental extraction of bundle
// archives into the work directory tree.
package unpack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bundlekit/bundlekit/internal/bundle"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// SentinelName is the marker file written into a working directory after a
// successful extraction. Its modification time is the staleness reference;
// its absence means a prior extraction did not complete cleanly.
const SentinelName = ".unpacked"

// ExtractionError reports an I/O failure while mirroring an archive into its
// working directory. It aborts that archive only.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract bundle archive %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor mirrors bundle archives into per-archive working directories,
// reusing any unpacked copy that is still fresh.
type Extractor struct {
	fs       afero.Fs
	workBase string
	logger   *zap.Logger

	// locks serializes archives that resolve to the same working directory,
	// e.g. identical filenames found in different roots.
	locks sync.Map
}

func NewExtractor(fsys afero.Fs, workBase string, logger *zap.Logger) *Extractor {
	return &Extractor{
		fs:       fsys,
		workBase: workBase,
		logger:   logger,
	}
}

// WorkDir returns the working directory assigned to the named archive.
func (e *Extractor) WorkDir(archivePath string) string {
	return filepath.Join(e.workBase, filepath.Base(archivePath)+"-unpacked")
}

// Process returns the unpacked form of the archive at archivePath, extracting
// it if its working directory is missing or stale and reusing it otherwise.
func (e *Extractor) Process(archivePath string) (*bundle.Unpacked, error) {
	workDir := e.WorkDir(archivePath)

	mu := e.lockFor(workDir)
	mu.Lock()
	defer mu.Unlock()

	info, err := e.fs.Stat(archivePath)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	if !e.stale(info.ModTime(), workDir) {
		e.logger.Debug("reusing unpacked bundle",
			zap.String("archive", archivePath),
			zap.String("work_dir", workDir))
		return e.reuse(archivePath, info.ModTime(), workDir)
	}

	e.logger.Info("extracting bundle archive",
		zap.String("archive", archivePath),
		zap.String("work_dir", workDir))
	return e.extract(archivePath, info.ModTime(), workDir)
}

// stale reports whether the working directory must be rebuilt: it is missing,
// its sentinel is missing, or the archive is strictly newer than the
// sentinel.
func (e *Extractor) stale(archiveMod time.Time, workDir string) bool {
	dirInfo, err := e.fs.Stat(workDir)
	if err != nil || !dirInfo.IsDir() {
		return true
	}

	sentinel, err := e.fs.Stat(filepath.Join(workDir, SentinelName))
	if err != nil {
		return true
	}

	return archiveMod.After(sentinel.ModTime())
}

// reuse re-parses the manifest from the unpacked copy so the source archive
// is not re-opened.
func (e *Extractor) reuse(archivePath string, archiveMod time.Time, workDir string) (*bundle.Unpacked, error) {
	var manifest *bundle.Manifest

	data, err := afero.ReadFile(e.fs, filepath.Join(workDir, filepath.FromSlash(bundle.ManifestPath)))
	switch {
	case errors.Is(err, os.ErrNotExist):
		manifest = bundle.SyntheticManifest(archivePath)
	case err != nil:
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	default:
		manifest, err = bundle.ParseManifest(data)
		if err != nil {
			return nil, err
		}
		if manifest.BundleID == "" {
			manifest.BundleID = bundle.SyntheticManifest(archivePath).BundleID
		}
	}

	return &bundle.Unpacked{
		Manifest:      manifest,
		WorkDir:       workDir,
		SourcePath:    archivePath,
		SourceModTime: archiveMod,
	}, nil
}

func (e *Extractor) extract(archivePath string, archiveMod time.Time, workDir string) (*bundle.Unpacked, error) {
	archive, err := bundle.Open(e.fs, archivePath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	// A malformed manifest skips the archive before anything touches disk.
	manifest, err := archive.Manifest()
	if err != nil {
		return nil, err
	}

	if err := e.fs.MkdirAll(workDir, 0o755); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	for _, entry := range archive.Entries() {
		if err := e.mirror(workDir, entry); err != nil {
			return nil, &ExtractionError{Archive: archivePath, Err: err}
		}
	}

	// Sentinel last: a partial extraction never looks fresh.
	if err := e.writeSentinel(workDir); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	return &bundle.Unpacked{
		Manifest:      manifest,
		WorkDir:       workDir,
		SourcePath:    archivePath,
		SourceModTime: archiveMod,
		Extracted:     true,
	}, nil
}

// mirror writes a single archive entry under workDir, preserving its relative
// path and modification time.
func (e *Extractor) mirror(workDir string, entry bundle.Entry) error {
	target, err := securePath(workDir, entry.Path)
	if err != nil {
		return err
	}

	if entry.Dir {
		return e.fs.MkdirAll(target, 0o755)
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}

	f, err := e.fs.Create(target)
	if err != nil {
		return errors.Join(err, rc.Close())
	}

	_, copyErr := io.Copy(f, rc)
	if err := errors.Join(copyErr, rc.Close(), f.Close()); err != nil {
		return fmt.Errorf("failed to mirror entry %s: %w", entry.Path, err)
	}

	if !entry.ModTime.IsZero() {
		if err := e.fs.Chtimes(target, entry.ModTime, entry.ModTime); err != nil {
			return err
		}
	}

	return nil
}

func (e *Extractor) writeSentinel(workDir string) error {
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	return afero.WriteFile(e.fs, filepath.Join(workDir, SentinelName), []byte(stamp), 0o644)
}

func (e *Extractor) lockFor(workDir string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(workDir, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// securePath joins an archive entry path onto the working directory,
// rejecting entries that would escape it.
func securePath(workDir, entryPath string) (string, error) {
	rel := filepath.FromSlash(entryPath)
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("archive entry %q has an absolute path", entryPath)
	}

	target := filepath.Join(workDir, rel)
	if target != workDir && !strings.HasPrefix(target, workDir+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the working directory", entryPath)
	}

	return target, nil
}
