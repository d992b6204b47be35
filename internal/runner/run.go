// Package runner parses unpack configuration files and wires the unpack
// coordinator for a run against the real filesystem.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	v1 "github.com/bundlekit/bundlekit/apis/v1"
	"github.com/bundlekit/bundlekit/internal/unpack"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseUnpackConfig parses a YAML or JSON configuration file and validates it
// against the v1.UnpackConfig struct tags.
func ParseUnpackConfig(data []byte) (v1.UnpackConfig, error) {
	var cfg v1.UnpackConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return v1.UnpackConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := defaultValidator.Struct(cfg); err != nil {
		return v1.UnpackConfig{}, fmt.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

type Runner struct {
	logger *zap.Logger
	cfg    v1.UnpackConfig
	fs     afero.Fs
}

func New(logger *zap.Logger, cfg v1.UnpackConfig) *Runner {
	return &Runner{
		logger: logger,
		cfg:    cfg,
		fs:     afero.NewOsFs(),
	}
}

// Run executes a full unpack run. A file lock on the work directory keeps two
// processes from interleaving extractions into the same tree; the per-archive
// sentinel protocol already tolerates a killed run.
func (r *Runner) Run(ctx context.Context) (*unpack.Result, error) {
	spec := r.cfg.Spec

	if err := r.fs.MkdirAll(spec.WorkDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory %s: %w", spec.WorkDirectory, err)
	}

	// The lock file sits next to the work directory, not inside it, so the
	// tree holds only unpacked bundles.
	lock := flock.New(filepath.Clean(spec.WorkDirectory) + ".lock")
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to lock work directory %s: %w", spec.WorkDirectory, err)
	}
	if !locked {
		return nil, fmt.Errorf("work directory %s is locked by another process", spec.WorkDirectory)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			r.logger.Error("failed to release work directory lock", zap.Error(unlockErr))
		}
	}()

	extractor := unpack.NewExtractor(r.fs, spec.WorkDirectory, r.logger.Named("extractor"))
	coordinator := unpack.NewCoordinator(r.fs, unpack.Config{
		PrimaryRoot:    spec.Library.Directory,
		AlternateRoots: spec.Library.Alternates,
		BundleSuffix:   spec.Library.BundleSuffix,
		Workers:        spec.Workers,
	}, extractor, r.logger.Named("coordinator"))

	result, err := coordinator.Run(ctx)
	if err != nil {
		var cfgErr *unpack.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("unpack run aborted: %w", err)
		}
		return nil, err
	}

	return result, nil
}
