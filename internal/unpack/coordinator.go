package unpack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bundlekit/bundlekit/internal/bundle"
	"github.com/bundlekit/bundlekit/internal/extension"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBundleSuffix selects archive files when the configuration does not
// name one.
const DefaultBundleSuffix = ".bundle"

// ConfigurationError reports an unusable primary library directory. It is the
// only failure that aborts a run.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid library configuration: %s: %s", e.Path, e.Reason)
}

// Config carries the directory layout of a single unpack run.
type Config struct {
	// PrimaryRoot must exist and be a directory or the run fails.
	PrimaryRoot string

	// AlternateRoots are scanned after the primary, in declaration order.
	// A missing or file-typed alternate is skipped with a warning.
	AlternateRoots []string

	// BundleSuffix selects archive files within a root. Defaults to
	// DefaultBundleSuffix.
	BundleSuffix string

	// Workers bounds concurrent archive extraction. Values below one mean
	// sequential processing.
	Workers int
}

// Coordinator drives a full unpack run: root validation, per-archive
// extraction, and aggregation into the extension mapping and bundle graph.
type Coordinator struct {
	fs        afero.Fs
	cfg       Config
	extractor *Extractor
	logger    *zap.Logger
}

func NewCoordinator(fsys afero.Fs, cfg Config, extractor *Extractor, logger *zap.Logger) *Coordinator {
	if cfg.BundleSuffix == "" {
		cfg.BundleSuffix = DefaultBundleSuffix
	}
	return &Coordinator{
		fs:        fsys,
		cfg:       cfg,
		extractor: extractor,
		logger:    logger,
	}
}

// Run executes the unpack run. It returns a nil result only when the primary
// root is unusable (ConfigurationError) or the context is cancelled; every
// other failure is isolated to its archive or root and surfaced as a warning
// on the result.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	// Primary validation completes before any extraction is scheduled.
	if err := c.validatePrimary(); err != nil {
		return nil, err
	}

	archives, warnings := c.scanRoots()

	unpacked, archiveWarnings, err := c.processArchives(ctx, archives)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, archiveWarnings...)

	return c.aggregate(unpacked, warnings), nil
}

func (c *Coordinator) validatePrimary() error {
	info, err := c.fs.Stat(c.cfg.PrimaryRoot)
	if err != nil {
		return &ConfigurationError{Path: c.cfg.PrimaryRoot, Reason: "primary library directory does not exist"}
	}
	if !info.IsDir() {
		return &ConfigurationError{Path: c.cfg.PrimaryRoot, Reason: "primary library path is not a directory"}
	}
	return nil
}

// scanRoots enumerates archive files from the primary root and every usable
// alternate, in declaration order.
func (c *Coordinator) scanRoots() ([]string, []Warning) {
	var archives []string
	var warnings []Warning

	archives = append(archives, c.listArchives(c.cfg.PrimaryRoot)...)

	for _, root := range c.cfg.AlternateRoots {
		info, err := c.fs.Stat(root)
		switch {
		case err != nil:
			c.logger.Warn("alternate library directory does not exist, skipping",
				zap.String("root", root))
			warnings = append(warnings, Warning{
				Kind:    WarnAlternateRootUnusable,
				Message: fmt.Sprintf("alternate library directory %s does not exist", root),
			})
			continue
		case !info.IsDir():
			c.logger.Warn("alternate library path is not a directory, skipping",
				zap.String("root", root))
			warnings = append(warnings, Warning{
				Kind:    WarnAlternateRootUnusable,
				Message: fmt.Sprintf("alternate library path %s is not a directory", root),
			})
			continue
		}

		archives = append(archives, c.listArchives(root)...)
	}

	return archives, warnings
}

func (c *Coordinator) listArchives(root string) []string {
	entries, err := afero.ReadDir(c.fs, root)
	if err != nil {
		c.logger.Warn("failed to list library directory",
			zap.String("root", root), zap.Error(err))
		return nil
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), c.cfg.BundleSuffix) {
			continue
		}
		archives = append(archives, filepath.Join(root, entry.Name()))
	}
	return archives
}

// processArchives runs the extractor over every archive, independently and
// possibly concurrently. Per-archive failures become warnings; only context
// cancellation stops the pool.
func (c *Coordinator) processArchives(ctx context.Context, archives []string) ([]*bundle.Unpacked, []Warning, error) {
	results := make([]*bundle.Unpacked, len(archives))

	var mu sync.Mutex
	var warnings []Warning

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, archivePath := range archives {
		g.Go(func() error {
			// Best-effort abort between archives.
			if err := gctx.Err(); err != nil {
				return err
			}

			u, err := c.extractor.Process(archivePath)
			if err != nil {
				warning := classifyArchiveFailure(archivePath, err)
				c.logger.Warn("skipping bundle archive",
					zap.String("archive", archivePath),
					zap.String("kind", string(warning.Kind)),
					zap.Error(err))
				mu.Lock()
				warnings = append(warnings, warning)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			results[i] = u
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	unpacked := make([]*bundle.Unpacked, 0, len(results))
	for _, u := range results {
		if u != nil {
			unpacked = append(unpacked, u)
		}
	}
	return unpacked, warnings, nil
}

func (c *Coordinator) aggregate(unpacked []*bundle.Unpacked, warnings []Warning) *Result {
	graph := extension.NewGraph()
	mapping := extension.NewMapping()

	for _, u := range unpacked {
		graph.Add(u)
		mapping.Register(u.BundleID(), u.Manifest.Extensions)
	}
	graph.Resolve()

	for _, d := range graph.Duplicates() {
		warnings = append(warnings, Warning{
			Kind: WarnDuplicateBundleID,
			Message: fmt.Sprintf("bundle id %s from %s already registered by %s",
				d.BundleID, d.RejectedSource, d.KeptSource),
		})
	}
	for _, u := range graph.UnresolvedDependencies() {
		warnings = append(warnings, Warning{
			Kind: WarnDependencyUnresolved,
			Message: fmt.Sprintf("bundle %s depends on unknown bundle %s, treating as root-level",
				u.BundleID, u.DependencyID),
		})
	}
	for _, cy := range graph.Cycles() {
		warnings = append(warnings, Warning{
			Kind:    WarnDependencyCycle,
			Message: fmt.Sprintf("dependency cycle between bundles %s, all severed to root-level", strings.Join(cy.Members, ", ")),
		})
	}
	for _, conflict := range mapping.Conflicts() {
		warnings = append(warnings, Warning{
			Kind: WarnExtensionConflict,
			Message: fmt.Sprintf("extension %s from bundle %s already provided by bundle %s",
				conflict.Name, conflict.RejectedBundleID, conflict.KeptBundleID),
		})
	}

	result := &Result{
		Mapping:  mapping,
		Graph:    graph,
		Bundles:  graph.Ordered(),
		Warnings: warnings,
	}

	c.logger.Info("unpack run complete",
		zap.Int("extensions", mapping.Len()),
		zap.Int("bundles", len(result.Bundles)),
		zap.Strings("bundle_ids", graph.IDs()),
		zap.Int("warnings", len(warnings)))

	return result
}

func classifyArchiveFailure(archivePath string, err error) Warning {
	var kind WarningKind
	switch {
	case errors.As(err, new(*bundle.CorruptArchiveError)):
		kind = WarnCorruptArchive
	case errors.As(err, new(*bundle.InvalidManifestError)):
		kind = WarnInvalidManifest
	default:
		kind = WarnExtractionFailure
	}
	return Warning{Kind: kind, Message: fmt.Sprintf("%s: %v", archivePath, err)}
}
