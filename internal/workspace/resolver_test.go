package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixed(name, dir string) Candidate {
	return Candidate{Name: name, Path: func() (string, error) { return dir, nil }}
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("returns first usable candidate", func(t *testing.T) {
		first := filepath.Join(t.TempDir(), "ws")
		second := t.TempDir()

		r := NewResolver([]Candidate{fixed("configured", first), fixed("system", second)}, 0, zap.NewNop())
		dir, err := r.Resolve()
		require.NoError(t, err)
		assert.Equal(t, first, dir)

		info, err := os.Stat(first)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		if runtime.GOOS != "windows" {
			assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
		}
	})

	t.Run("falls back when a candidate fails", func(t *testing.T) {
		// A regular file cannot be used as a directory.
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
		fallback := t.TempDir()

		r := NewResolver([]Candidate{fixed("configured", blocker), fixed("home", fallback)}, 0, zap.NewNop())
		dir, err := r.Resolve()
		require.NoError(t, err)
		assert.Equal(t, fallback, dir)
	})

	t.Run("provider errors are recorded", func(t *testing.T) {
		broken := Candidate{Name: "home", Path: func() (string, error) { return "", errors.New("no home") }}
		r := NewResolver([]Candidate{broken}, 0, zap.NewNop())

		_, err := r.Resolve()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoUsableWorkspace)
		assert.Contains(t, err.Error(), "home: no home")
	})

	t.Run("aggregates every failure", func(t *testing.T) {
		a, b := t.TempDir(), t.TempDir()
		r := NewResolver([]Candidate{fixed("configured", a), fixed("system", b)}, 1<<40, zap.NewNop())
		r.freeSpace = func(string) (uint64, error) { return 1024, nil }

		_, err := r.Resolve()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoUsableWorkspace)
		assert.ErrorIs(t, err, ErrInsufficientDiskSpace)

		var re *ResolveError
		require.True(t, errors.As(err, &re))
		require.Len(t, re.Failures, 2)
		assert.Equal(t, "configured", re.Failures[0].Candidate)
		assert.Equal(t, "system", re.Failures[1].Candidate)
	})

	t.Run("scratch file is removed", func(t *testing.T) {
		dir := t.TempDir()
		r := NewResolver([]Candidate{fixed("configured", dir)}, 0, nil)
		_, err := r.Resolve()
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestResolver_CheckFreeSpace(t *testing.T) {
	r := NewResolver(nil, 100, zap.NewNop())

	r.freeSpace = func(string) (uint64, error) { return 100, nil }
	assert.NoError(t, r.CheckFreeSpace("/tmp"))

	r.freeSpace = func(string) (uint64, error) { return 99, nil }
	assert.ErrorIs(t, r.CheckFreeSpace("/tmp"), ErrInsufficientDiskSpace)

	r.freeSpace = func(string) (uint64, error) { return 0, errors.New("statfs failed") }
	err := r.CheckFreeSpace("/tmp")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientDiskSpace)
}

func TestDefaultCandidates(t *testing.T) {
	names := func(cs []Candidate) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"configured", "system", "home"}, names(DefaultCandidates("./temp")))
	assert.Equal(t, []string{"system", "home"}, names(DefaultCandidates("")))
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestEnsureDir_TightensPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.Chmod(dir, 0o777))

	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestDirs(t *testing.T) {
	failing := Candidate{Name: "broken", Path: func() (string, error) { return "", errors.New("no home") }}
	missing := filepath.Join(t.TempDir(), "never-created")

	dirs := Dirs([]Candidate{fixed("configured", missing), failing, fixed("empty", "")})
	assert.Equal(t, []string{missing}, dirs)
	assert.NoDirExists(t, missing, "Dirs must not create candidates")
}
