package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingWriter struct {
	pages []Page
	err   error
}

func (r *recordingWriter) WritePage(p Page) error {
	if r.err != nil {
		return r.err
	}
	r.pages = append(r.pages, p)
	return nil
}

func (r *recordingWriter) paths() []string {
	out := make([]string, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p.Path)
	}
	return out
}

type staticDescriber string

func (s staticDescriber) Describe(string) string { return string(s) }

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestWalk_OrderAndVCSSkip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":           "a",
		"b/c.txt":         "c",
		"b/d/e.txt":       "e",
		"b/f.txt":         "f",
		"z.txt":           "z",
		".git/config":     "[core]",
		".git/objects/xx": "blob",
	})

	w := &recordingWriter{}
	wk := New(Budget{}, w, nil, nil)
	skipped, err := wk.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.True(t, skipped.Empty())
	assert.Equal(t, []string{
		"a.txt",
		filepath.Join("b", "c.txt"),
		filepath.Join("b", "d", "e.txt"),
		filepath.Join("b", "f.txt"),
		"z.txt",
	}, w.paths())
	assert.Equal(t, 5, wk.Counters().Included)
}

func TestWalk_SizeScenario(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": strings.Repeat("a", 1024),
		"b.txt": strings.Repeat("b", 2048),
		"c.txt": strings.Repeat("c", 1024),
	})

	w := &recordingWriter{}
	wk := New(Budget{MaxFileSize: 1536}, w, nil, nil)
	skipped, err := wk.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.txt"}, skipped.BySize)
	assert.Empty(t, skipped.ByType)
	assert.Equal(t, []string{"a.txt", "c.txt"}, w.paths())
}

func TestWalk_AccountingProperty(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":         "package main",
		"logo.PNG":        "png",
		"archive.zip":     "zip",
		"big/data.txt":    strings.Repeat("x", 200),
		"bin/blob":        string([]byte{0xff, 0xfe, 0x00}),
		"docs/readme.md":  "# hi",
		"docs/deep/n.txt": "n",
		"noext":           "plain",
	})
	require.NoError(t, os.Symlink(filepath.Join(root, "main.go"), filepath.Join(root, "link.go")))

	w := &recordingWriter{}
	wk := New(Budget{MaxFileSize: 100, ExcludedExtensions: []string{"png", ".zip"}}, w, nil, nil)
	skipped, err := wk.Walk(context.Background(), root)
	require.NoError(t, err)

	c := wk.Counters()
	assert.Equal(t, 8, c.FilesVisited, "symlinks are not visited")
	assert.Equal(t, c.FilesVisited, len(skipped.BySize)+len(skipped.ByType)+c.Included+c.Unreadable)
	assert.ElementsMatch(t, []string{"archive.zip", "logo.PNG"}, skipped.ByType)
	assert.Equal(t, []string{filepath.Join("big", "data.txt")}, skipped.BySize)
	assert.Equal(t, 1, c.Unreadable)
	assert.NotContains(t, w.paths(), "link.go")
}

func TestWalk_UnreadablePlaceholder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"blob.bin": string([]byte{0xc3, 0x28})})

	core, logs := observer.New(zap.WarnLevel)
	w := &recordingWriter{}
	wk := New(Budget{}, w, nil, zap.New(core))
	_, err := wk.Walk(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, w.pages, 1)
	assert.Equal(t, UnreadablePlaceholder, w.pages[0].Body)
	assert.Zero(t, wk.Counters().OutputBytes)

	entries := logs.FilterMessage("could not read file").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], ErrUnreadableFile.Error())
}

func TestWalk_FileCountExceeded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "1", "b": "2", "c": "3"})

	w := &recordingWriter{}
	wk := New(Budget{MaxFiles: 2}, w, nil, nil)
	_, err := wk.Walk(context.Background(), root)
	require.ErrorIs(t, err, ErrFileCountExceeded)
	assert.Equal(t, 2, wk.Counters().FilesVisited)
	assert.Len(t, w.pages, 2)
}

func TestWalk_FileCountIncludesSkipped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.exe": "1", "b.exe": "2"})

	wk := New(Budget{MaxFiles: 1, ExcludedExtensions: []string{"exe"}}, &recordingWriter{}, nil, nil)
	_, err := wk.Walk(context.Background(), root)
	assert.ErrorIs(t, err, ErrFileCountExceeded)
}

func TestWalk_SizeBudget(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": strings.Repeat("a", 100),
		"b.txt": strings.Repeat("b", 100),
	})

	// a.txt costs 100 + len("a.txt") + overhead = 205 bytes.
	tests := []struct {
		name    string
		budget  int64
		pages   int
		wantErr bool
	}{
		{name: "both fit", budget: 410, pages: 2},
		{name: "second overflows", budget: 409, pages: 1, wantErr: true},
		{name: "first overflows", budget: 204, pages: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			wk := New(Budget{MaxOutputBytes: tt.budget}, w, nil, nil)
			_, err := wk.Walk(context.Background(), root)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSizeBudgetExceeded)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, w.pages, tt.pages)
			assert.LessOrEqual(t, wk.Counters().OutputBytes, tt.budget)
		})
	}
}

func TestWalk_CommitDescription(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	w := &recordingWriter{}
	desc := staticDescriber("abc1234 - Ada, 1 hour ago : init")
	wk := New(Budget{}, w, desc, nil)
	_, err := wk.Walk(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, w.pages, 1)
	assert.Equal(t, string(desc), w.pages[0].Commit)
	assert.Equal(t, int64(1+len("a.txt")+len(desc)+PageOverhead), wk.Counters().OutputBytes)
}

func TestWalk_WriterErrorAborts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	boom := errors.New("disk full")
	_, err := New(Budget{}, &recordingWriter{err: boom}, nil, nil).Walk(context.Background(), root)
	assert.ErrorIs(t, err, boom)
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Budget{}, &recordingWriter{}, nil, nil).Walk(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := New(Budget{}, &recordingWriter{}, nil, nil).Walk(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWalk_DeepTree(t *testing.T) {
	root := t.TempDir()
	rel := ""
	for i := 0; i < 64; i++ {
		rel = filepath.Join(rel, "d")
	}
	writeTree(t, root, map[string]string{filepath.Join(rel, "leaf.txt"): "leaf"})

	w := &recordingWriter{}
	_, err := New(Budget{}, w, nil, nil).Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(rel, "leaf.txt")}, w.paths())
}
