package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/git2pdf/internal/walker"
)

type page struct{ heading, body string }

type memWriter struct {
	pages []page
	saved string
}

func (m *memWriter) AddPage(heading, body string) error {
	m.pages = append(m.pages, page{heading, body})
	return nil
}

func (m *memWriter) PageCount() int { return len(m.pages) }

func (m *memWriter) Save(path string) error {
	m.saved = path
	return os.WriteFile(path, []byte("doc"), 0o600)
}

type stubTraverser struct {
	a       *Assembler
	pages   []walker.Page
	skipped walker.Skipped
	err     error
}

func (s *stubTraverser) Walk(context.Context, string) (*walker.Skipped, error) {
	for _, p := range s.pages {
		if err := s.a.WritePage(p); err != nil {
			return nil, err
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &s.skipped, nil
}

func TestAssembler_WritePage(t *testing.T) {
	w := &memWriter{}
	a := NewAssembler(w, Options{})

	require.NoError(t, a.WritePage(walker.Page{Path: "src/main.go", Body: "package main"}))
	require.NoError(t, a.WritePage(walker.Page{Path: "a.txt", Commit: "abc1234 - Ada, now : init", Body: "a"}))

	assert.Equal(t, []page{
		{"File: src/main.go", "package main"},
		{"File: a.txt\nLast commit: abc1234 - Ada, now : init", "a"},
	}, w.pages)
}

func TestAssembler_LineNumbers(t *testing.T) {
	w := &memWriter{}
	a := NewAssembler(w, Options{LineNumbers: true})

	body := strings.Repeat("x\n", 9) + "y"
	require.NoError(t, a.WritePage(walker.Page{Path: "f", Body: body}))
	require.NoError(t, a.WritePage(walker.Page{Path: "bin", Body: walker.UnreadablePlaceholder}))

	lines := strings.Split(w.pages[0].body, "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, " 1  x", lines[0])
	assert.Equal(t, "10  y", lines[9])
	assert.Equal(t, walker.UnreadablePlaceholder, w.pages[1].body)
}

func TestAssembler_Summary(t *testing.T) {
	w := &memWriter{}
	a := NewAssembler(w, Options{MaxFileSize: 1536})
	tr := &stubTraverser{
		a:       a,
		pages:   []walker.Page{{Path: "a.txt", Body: "a"}, {Path: "c.txt", Body: "c"}},
		skipped: walker.Skipped{BySize: []string{"b.txt"}, ByType: []string{"logo.png", "x.zip"}},
	}

	staging := filepath.Join(t.TempDir(), "out.pdf")
	out, err := a.Assemble(context.Background(), tr, "/repo", staging)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, staging, w.saved)
	assert.Equal(t, "Skipped Files Summary", w.pages[2].heading)
	assert.Equal(t,
		"Files skipped due to size (>1.5 KiB):\nb.txt\n\nFiles skipped due to type:\nlogo.png\nx.zip",
		w.pages[2].body)
}

func TestAssembler_NoSummaryWhenNothingSkipped(t *testing.T) {
	w := &memWriter{}
	a := NewAssembler(w, Options{})
	tr := &stubTraverser{a: a, pages: []walker.Page{{Path: "a", Body: "a"}}}

	out, err := a.Assemble(context.Background(), tr, "/repo", filepath.Join(t.TempDir(), "out.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Pages)
	assert.True(t, out.Skipped.Empty())
}

func TestAssembler_WalkErrorSkipsSave(t *testing.T) {
	w := &memWriter{}
	a := NewAssembler(w, Options{})
	tr := &stubTraverser{a: a, err: walker.ErrSizeBudgetExceeded}

	_, err := a.Assemble(context.Background(), tr, "/repo", filepath.Join(t.TempDir(), "out.pdf"))
	assert.ErrorIs(t, err, walker.ErrSizeBudgetExceeded)
	assert.Empty(t, w.saved)
}

func TestPDFWriter(t *testing.T) {
	w := NewPDFWriter(12, "octocat/hello")
	require.NoError(t, w.AddPage("File: main.go", "package main\n\tfunc main() {}\n"))
	require.NoError(t, w.AddPage("File: long.txt", strings.Repeat("line\n", 200)))
	assert.Greater(t, w.PageCount(), 2, "long body continues onto further pages")

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, w.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestPDFWriter_RealTraversal(t *testing.T) {
	root := t.TempDir()
	for name, size := range map[string]int{"a.txt": 1024, "b.txt": 2048, "c.txt": 1024} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(strings.Repeat("x", size)), 0o600))
	}

	pw := NewPDFWriter(12, "")
	a := NewAssembler(pw, Options{MaxFileSize: 1536})
	wk := walker.New(walker.Budget{MaxFileSize: 1536}, a, nil, nil)

	out, err := a.Assemble(context.Background(), wk, root, filepath.Join(t.TempDir(), "out.pdf"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Pages, 3)
	assert.Equal(t, []string{"b.txt"}, out.Skipped.BySize)
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "output", "doc.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(staging), 0o700))
	require.NoError(t, os.WriteFile(staging, []byte("%PDF-1.3 body"), 0o600))

	final := filepath.Join(dir, "pdfs", "repo-1.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(final), 0o700))

	require.NoError(t, Commit(staging, final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 body", string(data))
	assert.NoFileExists(t, final+".tmp")
	assert.FileExists(t, staging)
}

func TestCommit_MissingStaging(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "repo.pdf")

	err := Commit(filepath.Join(dir, "missing.pdf"), final)
	require.Error(t, err)
	assert.NoFileExists(t, final)
	assert.NoFileExists(t, final+".tmp")
}

func TestCommit_RenameFailureCleansTemp(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(staging, []byte("x"), 0o600))

	// A non-empty directory at the final path makes rename fail.
	final := filepath.Join(dir, "occupied")
	require.NoError(t, os.MkdirAll(filepath.Join(final, "child"), 0o700))

	err := Commit(staging, final)
	require.Error(t, err)
	assert.NoFileExists(t, final+".tmp")
}

func TestCheckSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o600))

	size, err := CheckSize(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), size)

	_, err = CheckSize(path, 0)
	assert.NoError(t, err)

	size, err = CheckSize(path, 1024)
	assert.True(t, errors.Is(err, ErrArtifactTooLarge))
	assert.Equal(t, int64(2048), size)
}
