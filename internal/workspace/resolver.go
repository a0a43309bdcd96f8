// Package workspace selects the temporary root directory that conversions run in.
//
// Candidates are tried in order (operator configured directory, system temp,
// per-user fallback). A candidate qualifies when it exists or can be created with
// owner-only permissions, is owned by the running user, accepts a test write and
// has at least the configured amount of free space.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var (
	// ErrNoUsableWorkspace indicates every candidate root failed validation.
	ErrNoUsableWorkspace = errors.New("no usable workspace directory")

	// ErrInsufficientDiskSpace indicates free space is below the configured minimum.
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
)

const dirPerm = 0o700

// Candidate is one possible workspace root.
type Candidate struct {
	// Name identifies the candidate in logs and errors (configured, system, home).
	Name string

	// Path returns the directory to try. Relative paths are resolved against
	// the working directory.
	Path func() (string, error)
}

// Failure records why one candidate was rejected.
type Failure struct {
	Candidate string
	Err       error
}

// ResolveError aggregates the failure of every candidate.
type ResolveError struct {
	Failures []Failure
}

// Error implements error.
func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString(ErrNoUsableWorkspace.Error())
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n- %s: %v", f.Candidate, f.Err)
	}
	return b.String()
}

// Is reports ErrNoUsableWorkspace so callers can match the aggregate.
func (e *ResolveError) Is(target error) bool {
	return target == ErrNoUsableWorkspace
}

// Unwrap exposes the per-candidate causes.
func (e *ResolveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Resolver picks the first usable workspace root.
type Resolver struct {
	candidates   []Candidate
	minFreeBytes uint64
	freeSpace    func(path string) (uint64, error)
	logger       *zap.Logger
}

// NewResolver creates a Resolver over the given candidates.
func NewResolver(candidates []Candidate, minFreeBytes uint64, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		candidates:   candidates,
		minFreeBytes: minFreeBytes,
		freeSpace:    FreeSpace,
		logger:       logger,
	}
}

// DefaultCandidates returns the configured directory, a git2pdf directory under
// the system temp dir, and ~/.git2pdf/temp, in that order.
func DefaultCandidates(configured string) []Candidate {
	var candidates []Candidate
	if configured != "" {
		candidates = append(candidates, Candidate{
			Name: "configured",
			Path: func() (string, error) { return configured, nil },
		})
	}
	candidates = append(candidates,
		Candidate{
			Name: "system",
			Path: func() (string, error) { return filepath.Join(os.TempDir(), "git2pdf"), nil },
		},
		Candidate{
			Name: "home",
			Path: func() (string, error) {
				home, err := os.UserHomeDir()
				if err != nil {
					return "", fmt.Errorf("failed to get home directory: %w", err)
				}
				return filepath.Join(home, ".git2pdf", "temp"), nil
			},
		},
	)
	return candidates
}

// Resolve returns the absolute path of the first qualifying candidate.
//
// Side effect: candidate directories may be created.
func (r *Resolver) Resolve() (string, error) {
	var failures []Failure

	for _, c := range r.candidates {
		dir, err := r.check(c)
		if err != nil {
			r.logger.Warn("workspace candidate rejected",
				zap.String("candidate", c.Name),
				zap.Error(err))
			failures = append(failures, Failure{Candidate: c.Name, Err: err})
			continue
		}

		r.logger.Debug("using workspace", zap.String("candidate", c.Name), zap.String("dir", dir))
		return dir, nil
	}

	return "", &ResolveError{Failures: failures}
}

func (r *Resolver) check(c Candidate) (string, error) {
	dir, err := c.Path()
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", errors.New("empty path")
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	if err := checkWritable(dir); err != nil {
		return "", err
	}
	if err := r.CheckFreeSpace(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// CheckFreeSpace fails with ErrInsufficientDiskSpace when dir has less free
// space than the configured minimum.
func (r *Resolver) CheckFreeSpace(dir string) error {
	if r.minFreeBytes == 0 {
		return nil
	}
	free, err := r.freeSpace(dir)
	if err != nil {
		return fmt.Errorf("checking free space: %w", err)
	}
	if free < r.minFreeBytes {
		return fmt.Errorf("%w: required %s, available %s", ErrInsufficientDiskSpace,
			humanize.IBytes(r.minFreeBytes), humanize.IBytes(free))
	}
	return nil
}

// Dirs returns the absolute path of every candidate that can be named,
// without creating or checking anything.
func Dirs(candidates []Candidate) []string {
	var dirs []string
	for _, c := range candidates {
		dir, err := c.Path()
		if err != nil || dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dirs = append(dirs, abs)
		}
	}
	return dirs
}

// EnsureDir creates dir with owner-only permissions if missing and verifies it
// is a directory owned by the running user. An existing directory open to
// group or others is tightened to owner-only.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	if err := checkOwner(info); err != nil {
		return err
	}
	if info.Mode().Perm()&0o077 != 0 {
		if err := os.Chmod(dir, dirPerm); err != nil {
			return fmt.Errorf("restricting permissions on %s: %w", dir, err)
		}
	}
	return nil
}

// checkWritable verifies write access by creating and deleting a scratch file.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	name := f.Name()
	_, werr := f.WriteString("ok")
	cerr := f.Close()
	rerr := os.Remove(name)
	if err := errors.Join(werr, cerr, rerr); err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	return nil
}
