package fetch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultHistoryLimit bounds the commits examined when indexing history.
const DefaultHistoryLimit = 5000

// CommitDescriber reports the latest commit touching a file in a cloned
// repository.
//
// History is indexed once, on the first Describe: commits are walked newest
// first and each file in HEAD is attributed to the first commit whose diff
// against its first parent touches it. Files not reached within the history
// limit have no description.
type CommitDescriber struct {
	repo  *git.Repository
	limit int

	once sync.Once
	last map[string]*object.Commit
}

// OpenCommitDescriber opens the repository at root.
func OpenCommitDescriber(root string) (*CommitDescriber, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", root, err)
	}
	return &CommitDescriber{repo: repo, limit: DefaultHistoryLimit}, nil
}

// Describe returns "<hash> - <author>, <when> : <subject>" for the most recent
// commit touching rel, or "" when there is none or history cannot be read.
func (d *CommitDescriber) Describe(rel string) string {
	if d == nil || d.repo == nil {
		return ""
	}
	d.once.Do(d.index)

	c := d.last[filepath.ToSlash(rel)]
	if c == nil {
		return ""
	}
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return fmt.Sprintf("%s - %s, %s : %s",
		c.Hash.String()[:7], c.Author.Name, humanize.Time(c.Author.When), subject)
}

// index fills d.last in one pass over history. Any read error stops the pass
// and keeps what was found so far; shallow boundaries diff against an empty
// tree.
func (d *CommitDescriber) index() {
	d.last = make(map[string]*object.Commit)
	defer func() {
		_ = recover()
	}()

	head, err := d.repo.Head()
	if err != nil {
		return
	}
	headCommit, err := d.repo.CommitObject(head.Hash())
	if err != nil {
		return
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return
	}
	pending := make(map[string]bool)
	if err := headTree.Files().ForEach(func(f *object.File) error {
		pending[f.Name] = true
		return nil
	}); err != nil {
		return
	}

	iter, err := d.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return
	}
	defer iter.Close()

	for n := 0; n < d.limit && len(pending) > 0; n++ {
		c, err := iter.Next()
		if err != nil {
			return
		}
		tree, err := c.Tree()
		if err != nil {
			return
		}
		var parentTree *object.Tree
		if p, err := c.Parent(0); err == nil {
			if parentTree, err = p.Tree(); err != nil {
				parentTree = nil
			}
		}
		changes, err := object.DiffTree(parentTree, tree)
		if err != nil {
			continue
		}
		for _, ch := range changes {
			name := ch.To.Name
			if pending[name] {
				d.last[name] = c
				delete(pending, name)
			}
		}
	}
}
