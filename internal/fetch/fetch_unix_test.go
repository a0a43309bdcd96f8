//go:build unix

package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeGit writes an executable shell script standing in for git.
func fakeGit(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "git")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700))
	return path
}

var testRepo = Repository{Host: "github.com", Owner: "x", Name: "y", CloneURL: "https://github.com/x/y.git"}

func TestFetch_Success(t *testing.T) {
	// The destination is the last argument.
	git := fakeGit(t, `for last; do :; done; mkdir -p "$last" && echo hi > "$last/README.md"`)
	dest := filepath.Join(t.TempDir(), "repo")

	f := NewFetcher(git, 0, nil, zaptest.NewLogger(t))
	require.NoError(t, f.Fetch(context.Background(), testRepo, dest, 5*time.Second))
	assert.FileExists(t, filepath.Join(dest, "README.md"))
}

func TestFetch_PassesArguments(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		want  string
	}{
		{name: "shallow", depth: 1, want: "clone --depth 1 --no-single-branch -- https://github.com/x/y.git /tmp/dest\n0\n"},
		{name: "full history", depth: 0, want: "clone --no-single-branch -- https://github.com/x/y.git /tmp/dest\n0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "args")
			git := fakeGit(t, `echo "$@" > "`+out+`"; echo "$GIT_TERMINAL_PROMPT" >> "`+out+`"`)

			f := NewFetcher(git, tt.depth, nil, nil)
			require.NoError(t, f.Fetch(context.Background(), testRepo, "/tmp/dest", 5*time.Second))

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFetch_NonZeroExit(t *testing.T) {
	git := fakeGit(t, `echo "fatal: repository not found" >&2; exit 128`)

	f := NewFetcher(git, 0, nil, nil)
	err := f.Fetch(context.Background(), testRepo, t.TempDir(), 5*time.Second)
	require.ErrorIs(t, err, ErrCloneFailed)
	assert.Contains(t, err.Error(), "repository not found")
}

func TestFetch_MissingBinary(t *testing.T) {
	f := NewFetcher(filepath.Join(t.TempDir(), "no-git"), 0, nil, nil)
	err := f.Fetch(context.Background(), testRepo, t.TempDir(), time.Second)
	assert.ErrorIs(t, err, ErrCloneFailed)
}

func TestFetch_TimeoutKillsProcess(t *testing.T) {
	git := fakeGit(t, `exec sleep 30`)

	var pid int
	f := NewFetcher(git, 0, nil, zaptest.NewLogger(t))
	f.started = func(p int) { pid = p }

	start := time.Now()
	err := f.Fetch(context.Background(), testRepo, t.TempDir(), 200*time.Millisecond)
	require.ErrorIs(t, err, ErrCloneTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)

	require.NotZero(t, pid)
	err = syscall.Kill(pid, 0)
	assert.True(t, errors.Is(err, syscall.ESRCH), "clone process still alive: %v", err)
}

func TestFetch_ContextCancel(t *testing.T) {
	git := fakeGit(t, `exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFetcher(git, 0, nil, nil)
	f.started = func(int) { cancel() }

	err := f.Fetch(ctx, testRepo, t.TempDir(), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchURL_RejectsBeforeSpawn(t *testing.T) {
	spawned := false
	f := NewFetcher(fakeGit(t, `exit 0`), 0, nil, nil)
	f.started = func(int) { spawned = true }

	_, err := f.FetchURL(context.Background(), "http://github.com/x/y", t.TempDir(), time.Second)
	assert.ErrorIs(t, err, ErrInvalidRepository)
	assert.False(t, spawned)
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "cdef", b.String())
}
