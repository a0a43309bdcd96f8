// Package lockfile provides advisory mutual exclusion between sweeps that
// share a directory.
//
// FileLocker publishes a marker file, atomically and exclusively, that records
// the owner's PID. A marker whose owner is no longer running is considered
// abandoned and is reclaimed, so a crashed sweep never blocks later ones. MemoryLocker offers the
// same contract inside a single process for tests.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLocked indicates the lock is held by a live owner.
var ErrLocked = errors.New("lock held by another owner")

// Lock is a held lock.
type Lock interface {
	// Release frees the lock. Releasing twice is a no-op.
	Release() error
}

// Locker acquires named locks without blocking.
type Locker interface {
	// TryAcquire takes the lock at path or returns ErrLocked.
	TryAcquire(path string) (Lock, error)
}

// DefaultGrace is how long an unreadable marker, or an abandoned reclaim
// guard, is treated as held before it may be removed.
const DefaultGrace = 30 * time.Second

// FileLocker implements Locker with PID marker files.
//
// A marker holds "<pid> <token>" and is published with a hard link from a
// fully written temp file, so readers never observe a partial marker. The
// token identifies one acquisition; Release and reclamation only remove a
// marker whose content they have verified.
type FileLocker struct {
	pid   int
	grace time.Duration
	alive func(pid int) bool
	now   func() time.Time
}

// NewFileLocker creates a FileLocker that records the current process ID.
func NewFileLocker() *FileLocker {
	return &FileLocker{
		pid:   os.Getpid(),
		grace: DefaultGrace,
		alive: IsProcessRunning,
		now:   time.Now,
	}
}

// TryAcquire publishes the marker exclusively. An existing marker whose owner
// is dead, or which is unreadable and older than the grace period, is
// reclaimed once.
func (l *FileLocker) TryAcquire(path string) (Lock, error) {
	lock, err := l.publish(path)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, err
	}

	content, stale, err := l.inspect(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Released between our publish and read.
		return l.retry(path)
	case err != nil:
		return nil, err
	case !stale:
		return nil, fmt.Errorf("%w: %s", ErrLocked, strings.TrimSpace(content))
	}

	if err := l.reclaim(path, content); err != nil {
		return nil, err
	}
	return l.retry(path)
}

func (l *FileLocker) retry(path string) (Lock, error) {
	lock, err := l.publish(path)
	if errors.Is(err, fs.ErrExist) {
		return nil, ErrLocked
	}
	return lock, err
}

// publish writes "<pid> <token>" to a sibling temp file and links it to path.
// Link fails with fs.ErrExist when path is taken.
func (l *FileLocker) publish(path string) (*fileLock, error) {
	content := fmt.Sprintf("%d %s\n", l.pid, uuid.NewString())
	tmp := path + "." + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("writing lock %s: %w", path, err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("publishing lock %s: %w", path, err)
	}
	return &fileLock{path: path, content: content}, nil
}

// inspect reads the marker and reports whether it may be reclaimed.
func (l *FileLocker) inspect(path string) (content string, stale bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	content = string(data)
	pid, ok := parseOwner(content)
	if !ok {
		return content, l.now().Sub(info.ModTime()) > l.grace, nil
	}
	return content, !l.alive(pid), nil
}

// reclaim removes a stale marker under a guard lock, and only if it still
// holds the content that was judged stale. Losing the guard to another
// reclaimer yields ErrLocked.
func (l *FileLocker) reclaim(path, staleContent string) error {
	guardPath := path + ".reclaim"
	guard, err := l.publish(guardPath)
	if errors.Is(err, fs.ErrExist) {
		if info, serr := os.Stat(guardPath); serr == nil && l.now().Sub(info.ModTime()) > l.grace {
			// Reclaimer crashed mid-reclaim; clear the guard for the next attempt.
			_ = os.Remove(guardPath)
		}
		return ErrLocked
	}
	if err != nil {
		return err
	}
	defer guard.Release()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(data) != staleContent {
		return ErrLocked
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale lock %s: %w", path, err)
	}
	return nil
}

// parseOwner extracts the PID from "<pid> <token>" or a bare "<pid>".
func parseOwner(content string) (int, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

type fileLock struct {
	path    string
	content string
	once    sync.Once
	err     error
}

// Release removes the marker if it still carries this acquisition's token.
func (l *fileLock) Release() error {
	l.once.Do(func() {
		data, err := os.ReadFile(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			l.err = fmt.Errorf("reading lock %s: %w", l.path, err)
			return
		}
		if string(data) != l.content {
			return
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.err = fmt.Errorf("removing lock %s: %w", l.path, err)
		}
	})
	return l.err
}

// MemoryLocker implements Locker with an in-process set of held names.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

// TryAcquire marks path as held or returns ErrLocked.
func (m *MemoryLocker) TryAcquire(path string) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[path] {
		return nil, ErrLocked
	}
	m.held[path] = true
	return &memoryLock{owner: m, path: path}, nil
}

type memoryLock struct {
	owner *MemoryLocker
	path  string
	once  sync.Once
}

func (l *memoryLock) Release() error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.path)
		l.owner.mu.Unlock()
	})
	return nil
}
