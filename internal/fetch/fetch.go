package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCloneTimeout indicates the clone did not finish before its deadline.
	// The clone's process group has been killed when this is returned.
	ErrCloneTimeout = errors.New("clone timed out")

	// ErrCloneFailed indicates the clone process could not start or exited
	// with a non-zero status.
	ErrCloneFailed = errors.New("clone failed")
)

// maxStderr bounds the clone output kept for error messages.
const maxStderr = 4 << 10

// Fetcher runs git clone as a separate process group.
type Fetcher struct {
	gitPath      string
	depth        int
	allowedHosts []string
	logger       *zap.Logger

	// started is called with the child PID once the clone is running.
	started func(pid int)
}

// NewFetcher creates a Fetcher. depth <= 0 performs a full clone.
func NewFetcher(gitPath string, depth int, allowedHosts []string, logger *zap.Logger) *Fetcher {
	if gitPath == "" {
		gitPath = "git"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		gitPath:      gitPath,
		depth:        depth,
		allowedHosts: allowedHosts,
		logger:       logger,
	}
}

// FetchURL validates raw and clones it into dest. Nothing is spawned when raw
// is rejected.
func (f *Fetcher) FetchURL(ctx context.Context, raw, dest string, timeout time.Duration) (Repository, error) {
	repo, err := ParseRepository(raw, f.allowedHosts)
	if err != nil {
		return Repository{}, err
	}
	return repo, f.Fetch(ctx, repo, dest, timeout)
}

// Fetch clones repo into dest. The clone races a timer: if the timer fires
// first, the whole process group is killed and reaped before ErrCloneTimeout
// is returned. Context cancellation is handled the same way.
func (f *Fetcher) Fetch(ctx context.Context, repo Repository, dest string, timeout time.Duration) error {
	args := []string{"clone"}
	if f.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(f.depth))
	}
	args = append(args, "--no-single-branch", "--", repo.CloneURL, dest)

	// #nosec G204 -- CloneURL is built from a validated pattern
	cmd := exec.Command(f.gitPath, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting %s: %v", ErrCloneFailed, f.gitPath, err)
	}
	pid := cmd.Process.Pid
	f.logger.Info("clone started",
		zap.String("repository", repo.String()),
		zap.Int("pid", pid),
		zap.Duration("timeout", timeout),
	)
	if f.started != nil {
		f.started(pid)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			f.logger.Warn("clone failed", zap.String("repository", repo.String()), zap.Error(err), zap.String("stderr", msg))
			return fmt.Errorf("%w: %v: %s", ErrCloneFailed, err, msg)
		}
		f.logger.Info("clone finished", zap.String("repository", repo.String()), zap.Duration("elapsed", time.Since(start)))
		return nil
	case <-timer.C:
		f.terminate(cmd, done)
		f.logger.Warn("clone timed out, process group killed", zap.String("repository", repo.String()), zap.Int("pid", pid))
		return fmt.Errorf("%w after %s", ErrCloneTimeout, timeout)
	case <-ctx.Done():
		f.terminate(cmd, done)
		return ctx.Err()
	}
}

// terminate kills the process group and waits for the child to be reaped.
func (f *Fetcher) terminate(cmd *exec.Cmd, done <-chan error) {
	if err := killProcessGroup(cmd); err != nil {
		f.logger.Warn("failed to kill clone process group", zap.Error(err))
	}
	<-done
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
