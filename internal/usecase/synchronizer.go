package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// DefaultPullTimeout bounds the upstream pull.
const DefaultPullTimeout = 15 * time.Second

// CacheRefresher is invalidated after files change on disk.
type CacheRefresher interface {
	Refresh() []domain.PersonaID
}

// SynchronizerConfig holds synchronizer settings.
type SynchronizerConfig struct {
	SourceDir   string        // Upstream git working copy
	PullTimeout time.Duration // Hard bound on the pull; the process tree is killed on expiry
}

// SynchronizerImpl implements domain.Synchronizer.
type SynchronizerImpl struct {
	config   SynchronizerConfig
	vcs      domain.VersionControl
	fs       domain.FileSystemManager
	manifest domain.ManifestStore
	caches   CacheRefresher
	logger   *zap.Logger
}

// NewSynchronizer creates a new update synchronizer.
func NewSynchronizer(
	config SynchronizerConfig,
	vcs domain.VersionControl,
	fs domain.FileSystemManager,
	manifest domain.ManifestStore,
	caches CacheRefresher,
	logger *zap.Logger,
) *SynchronizerImpl {
	if config.PullTimeout <= 0 {
		config.PullTimeout = DefaultPullTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynchronizerImpl{
		config:   config,
		vcs:      vcs,
		fs:       fs,
		manifest: manifest,
		caches:   caches,
		logger:   logger,
	}
}

// Run checks the upstream working copy for new revisions and applies them.
// Faults of any kind, panics included, are logged and reported in the result.
func (s *SynchronizerImpl) Run(ctx context.Context) (result *domain.UpdateResult) {
	start := time.Now()
	result = &domain.UpdateResult{}

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.UpdateFailed
			result.Err = fmt.Errorf("panic: %v", r)
		}
		if result.Status == domain.UpdateFailed {
			s.logger.Warn("auto-update check failed", zap.Error(result.Err))
		}
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	if err := s.run(ctx, result); err != nil {
		result.Status = domain.UpdateFailed
		result.Err = err
	}
	return result
}

func (s *SynchronizerImpl) run(ctx context.Context, result *domain.UpdateResult) error {
	dir := s.config.SourceDir

	// Step 1: Only installs made from a git clone are managed
	if !s.fs.IsDir(dir) {
		s.logger.Debug("upstream source not installed, skipping update", zap.String("dir", dir))
		result.Status = domain.UpdateSkipped
		return nil
	}
	if !s.vcs.IsRepository(dir) {
		s.logger.Debug("upstream source is not a git working copy, skipping update", zap.String("dir", dir))
		result.Status = domain.UpdateSkipped
		return nil
	}

	// Step 2: Snapshot revision
	before, err := s.vcs.Revision(ctx, dir)
	if err != nil {
		return err
	}
	result.Before = before

	// Step 3: Pull, bounded. A failed or killed pull is not fatal: the
	// revision comparison decides whether anything landed.
	pullCtx, cancel := context.WithTimeout(ctx, s.config.PullTimeout)
	err = s.vcs.Pull(pullCtx, dir)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.PullTimeout = true
			s.logger.Debug("pull timed out, process killed",
				zap.Duration("timeout", s.config.PullTimeout))
		} else {
			s.logger.Debug("pull failed", zap.Error(err))
		}
	}

	// Step 4: Compare revisions
	after, err := s.vcs.Revision(ctx, dir)
	if err != nil {
		return err
	}
	result.After = after

	if after == before {
		s.logger.Debug("no updates available", zap.String("revision", domain.ShortRevision(before)))
		result.Status = domain.UpdateUnchanged
		return nil
	}

	// Step 5: Copy managed files, each independently
	for _, f := range s.manifest.GetAll() {
		if err := s.fs.Copy(f.Source, f.Destination); err != nil {
			s.logger.Debug("managed file copy failed",
				zap.String("file", f.ID),
				zap.String("source", f.Source),
				zap.Error(err))
			result.Failed = append(result.Failed, f.ID)
			continue
		}
		result.Copied = append(result.Copied, f.ID)
	}

	// Step 6: Invalidate caches so the next prompt reflects the update
	available := s.caches.Refresh()

	result.Status = domain.UpdateApplied

	// Step 7: Report
	if result.Partial() {
		s.logger.Warn("partial update, some managed files were not copied",
			zap.Strings("failed", result.Failed))
	}
	s.logger.Info("update applied, restart the host to load a new plugin version",
		zap.String("from", domain.ShortRevision(before)),
		zap.String("to", domain.ShortRevision(after)),
		zap.Int("copied", len(result.Copied)),
		zap.Int("personas", len(available)))

	return nil
}

// Ensure SynchronizerImpl implements domain.Synchronizer.
var _ domain.Synchronizer = (*SynchronizerImpl)(nil)
