// Package sweep deletes stale entries from the shared artifact and operation
// directories.
//
// Each Sweeper owns one lock name inside the directory it cleans, so the two
// sweepers never block each other while concurrent sweeps of the same
// directory are serialized through the lockfile package.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/git2pdf/internal/lockfile"
	"github.com/fyrsmithlabs/git2pdf/internal/pathguard"
)

// Lock marker names, one per sweeper kind.
const (
	ArtifactLockName  = ".cleanup.lock"
	OperationLockName = ".cleanup-ops.lock"
)

// Sweeper kinds used in logs and metric labels.
const (
	KindArtifacts  = "artifacts"
	KindOperations = "operations"
)

// Result summarizes one sweep.
type Result struct {
	Removed int
	Failed  int
	// Skipped is true when another sweep held the lock.
	Skipped bool
}

// Sweeper removes expired entries from a single directory.
type Sweeper struct {
	kind     string
	lockName string
	locker   lockfile.Locker
	logger   *zap.Logger
	now      func() time.Time

	// match reports whether an entry is eligible for deletion.
	match func(entry fs.DirEntry) bool
	// remove deletes an eligible entry.
	remove func(path string) error
}

// NewArtifactSweeper creates a Sweeper for finished PDF artifacts. Only
// regular files ending in .pdf, or in .pdf.tmp when a commit was interrupted
// before its rename, are considered.
func NewArtifactSweeper(locker lockfile.Locker, logger *zap.Logger) *Sweeper {
	return newSweeper(KindArtifacts, ArtifactLockName, locker, logger,
		func(e fs.DirEntry) bool {
			return e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") && isArtifactName(e.Name())
		},
		os.Remove,
	)
}

// NewOperationSweeper creates a Sweeper for operation scratch directories.
// Whole subdirectories are removed; hidden entries are left alone.
func NewOperationSweeper(locker lockfile.Locker, logger *zap.Logger) *Sweeper {
	return newSweeper(KindOperations, OperationLockName, locker, logger,
		func(e fs.DirEntry) bool {
			return e.IsDir() && !strings.HasPrefix(e.Name(), ".")
		},
		os.RemoveAll,
	)
}

func isArtifactName(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".pdf") || strings.HasSuffix(name, ".pdf.tmp")
}

func newSweeper(kind, lockName string, locker lockfile.Locker, logger *zap.Logger,
	match func(fs.DirEntry) bool, remove func(string) error) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lockfile.NewFileLocker()
	}
	return &Sweeper{
		kind:     kind,
		lockName: lockName,
		locker:   locker,
		logger:   logger.With(zap.String("sweeper", kind)),
		now:      time.Now,
		match:    match,
		remove:   remove,
	}
}

// Kind returns the sweeper kind.
func (s *Sweeper) Kind() string { return s.kind }

// Sweep deletes eligible entries in dir whose modification time is older than
// maxAge. A missing directory is not an error. If another sweep holds the
// lock, Sweep returns immediately with Result.Skipped set.
func (s *Sweeper) Sweep(ctx context.Context, dir string, maxAge time.Duration) (Result, error) {
	var res Result

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("stat %s: %w", dir, err)
	}

	lock, err := s.locker.TryAcquire(filepath.Join(dir, s.lockName))
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			s.logger.Debug("sweep already in progress", zap.String("dir", dir), zap.Error(err))
			SkippedTotal.WithLabelValues(s.kind).Inc()
			res.Skipped = true
			return res, nil
		}
		return res, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("failed to release sweep lock", zap.Error(err))
		}
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", dir, err)
	}

	cutoff := s.now().Add(-maxAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !s.match(entry) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if !pathguard.Contains(dir, path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("failed to stat entry", zap.String("path", path), zap.Error(err))
				res.Failed++
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove expired entry", zap.String("path", path), zap.Error(err))
			res.Failed++
			continue
		}
		res.Removed++
	}

	RemovedTotal.WithLabelValues(s.kind).Add(float64(res.Removed))
	FailedTotal.WithLabelValues(s.kind).Add(float64(res.Failed))
	if res.Removed > 0 || res.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.String("dir", dir),
			zap.Int("removed", res.Removed),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}
