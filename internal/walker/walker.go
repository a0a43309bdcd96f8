// Package walker traverses a cloned repository and streams eligible file
// contents into a page sink while enforcing file count, per-file size and
// cumulative output budgets.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/git2pdf/internal/pathguard"
)

// Errors returned by Walk. ErrUnreadableFile is never returned; it is logged
// and the file is rendered as a placeholder page.
var (
	ErrFileCountExceeded  = errors.New("maximum number of files exceeded")
	ErrSizeBudgetExceeded = errors.New("document would exceed maximum allowed size")
	ErrUnreadableFile     = errors.New("unreadable file")
)

// PageOverhead is the fixed number of bytes charged per emitted page.
const PageOverhead = 100

// UnreadablePlaceholder replaces the body of files that cannot be read as text.
const UnreadablePlaceholder = "Could not read file contents (possibly binary or encoded file)"

// vcsDir is never descended into.
const vcsDir = ".git"

// Budget holds the traversal ceilings. Zero values disable a ceiling.
type Budget struct {
	MaxFiles       int
	MaxFileSize    int64
	MaxOutputBytes int64
	// ExcludedExtensions are compared case-insensitively, without the dot.
	ExcludedExtensions []string
}

// Counters accumulate over one traversal.
type Counters struct {
	FilesVisited int
	Included     int
	Unreadable   int
	OutputBytes  int64
}

// Skipped lists relative paths left out of the document, in visit order.
type Skipped struct {
	BySize []string
	ByType []string
}

// Empty reports whether nothing was skipped.
func (s *Skipped) Empty() bool {
	return len(s.BySize) == 0 && len(s.ByType) == 0
}

// Page is one rendered file.
type Page struct {
	Path string
	// Commit is the last commit description, empty when unavailable.
	Commit string
	Body   string
}

// PageWriter receives pages in traversal order.
type PageWriter interface {
	WritePage(p Page) error
}

// CommitDescriber describes the most recent commit touching a file. It must
// return "" rather than fail.
type CommitDescriber interface {
	Describe(rel string) string
}

// Walker performs a single traversal. It is not safe for concurrent use.
type Walker struct {
	budget    Budget
	excluded  map[string]struct{}
	pages     PageWriter
	describer CommitDescriber
	logger    *zap.Logger

	counters Counters
}

// New creates a Walker writing into pages. describer may be nil.
func New(budget Budget, pages PageWriter, describer CommitDescriber, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	excluded := make(map[string]struct{}, len(budget.ExcludedExtensions))
	for _, ext := range budget.ExcludedExtensions {
		excluded[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Walker{
		budget:    budget,
		excluded:  excluded,
		pages:     pages,
		describer: describer,
		logger:    logger,
	}
}

// Counters returns the counters accumulated so far.
func (w *Walker) Counters() Counters {
	return w.counters
}

// frame is a directory whose entries are still being visited.
type frame struct {
	dir     string
	rel     string
	entries []fs.DirEntry
	next    int
}

// Walk visits root depth-first in directory order, emitting a page for each
// included file. Subdirectories are expanded where they appear. An explicit
// stack bounds memory use on deep trees.
func (w *Walker) Walk(ctx context.Context, root string) (*Skipped, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	skipped := &Skipped{}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	stack := []*frame{{dir: root, entries: entries}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.entries[top.next]
		top.next++

		path := filepath.Join(top.dir, entry.Name())
		rel := filepath.Join(top.rel, entry.Name())
		if !pathguard.Contains(root, path) {
			w.logger.Warn("skipping entry outside repository", zap.String("path", rel))
			continue
		}

		switch mode := entry.Type(); {
		case mode&fs.ModeSymlink != 0:
			w.logger.Debug("skipping symbolic link", zap.String("path", rel))
		case mode.IsDir():
			if entry.Name() == vcsDir {
				continue
			}
			children, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", rel, err)
			}
			stack = append(stack, &frame{dir: path, rel: rel, entries: children})
		case mode.IsRegular():
			if err := w.visitFile(path, rel, skipped); err != nil {
				return nil, err
			}
		default:
			w.logger.Debug("skipping special file", zap.String("path", rel))
		}
	}

	return skipped, nil
}

func (w *Walker) visitFile(path, rel string, skipped *Skipped) error {
	limit := w.budget.MaxFiles
	if limit > 0 && w.counters.FilesVisited >= limit {
		return fmt.Errorf("%w (%d)", ErrFileCountExceeded, limit)
	}
	w.counters.FilesVisited++
	if limit > 0 && w.counters.FilesVisited > limit {
		return fmt.Errorf("%w (%d)", ErrFileCountExceeded, limit)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
	if _, ok := w.excluded[ext]; ok && ext != "" {
		skipped.ByType = append(skipped.ByType, rel)
		return nil
	}

	content, tooLarge, err := w.read(path)
	if tooLarge {
		w.logger.Info("skipping large file",
			zap.String("path", rel),
			zap.String("limit", humanize.IBytes(uint64(w.budget.MaxFileSize))),
		)
		skipped.BySize = append(skipped.BySize, rel)
		return nil
	}
	if err == nil && !utf8.Valid(content) {
		err = errors.New("content is not valid UTF-8")
	}
	if err != nil {
		w.logger.Warn("could not read file",
			zap.String("path", rel),
			zap.Error(fmt.Errorf("%w: %w", ErrUnreadableFile, err)),
		)
		w.counters.Unreadable++
		return w.pages.WritePage(Page{Path: rel, Body: UnreadablePlaceholder})
	}

	var commit string
	if w.describer != nil {
		commit = w.describer.Describe(rel)
	}

	cost := int64(len(content) + len(rel) + len(commit) + PageOverhead)
	if ceiling := w.budget.MaxOutputBytes; ceiling > 0 && w.counters.OutputBytes+cost > ceiling {
		return fmt.Errorf("%w of %s at %s", ErrSizeBudgetExceeded, humanize.IBytes(uint64(ceiling)), rel)
	}
	w.counters.OutputBytes += cost

	if err := w.pages.WritePage(Page{Path: rel, Commit: commit, Body: string(content)}); err != nil {
		return err
	}
	w.counters.Included++
	return nil
}

// read loads the file, reporting tooLarge when it exceeds MaxFileSize. The
// limit is applied to the bytes actually read so a file growing after the
// directory listing cannot slip past it.
func (w *Walker) read(path string) (content []byte, tooLarge bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	limit := w.budget.MaxFileSize
	if limit <= 0 {
		content, err = io.ReadAll(f)
		return content, false, err
	}

	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, true, nil
	}
	content, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(content)) > limit {
		return nil, true, nil
	}
	return content, false, nil
}
