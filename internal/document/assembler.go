package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fyrsmithlabs/git2pdf/internal/walker"
)

// Traverser walks a repository, emitting pages into the Assembler it was
// built with.
type Traverser interface {
	Walk(ctx context.Context, root string) (*walker.Skipped, error)
}

// Options control page formatting.
type Options struct {
	// LineNumbers prefixes each body line with its number.
	LineNumbers bool
	// MaxFileSize is quoted in the skipped-by-size summary.
	MaxFileSize int64
}

// Output describes an assembled document.
type Output struct {
	Pages   int
	Skipped *walker.Skipped
}

// Assembler adapts a Writer to walker.PageWriter and adds the trailing
// skipped-files summary.
type Assembler struct {
	w    Writer
	opts Options
}

// NewAssembler creates an Assembler writing into w.
func NewAssembler(w Writer, opts Options) *Assembler {
	return &Assembler{w: w, opts: opts}
}

// WritePage implements walker.PageWriter.
func (a *Assembler) WritePage(p walker.Page) error {
	heading := "File: " + p.Path
	if p.Commit != "" {
		heading += "\nLast commit: " + p.Commit
	}
	body := p.Body
	if a.opts.LineNumbers && body != walker.UnreadablePlaceholder {
		body = numberLines(body)
	}
	return a.w.AddPage(heading, body)
}

// Assemble runs t over root, appends the summary when anything was skipped
// and flushes the document to staging. staging must not be the final
// artifact path; use Commit to publish it.
func (a *Assembler) Assemble(ctx context.Context, t Traverser, root, staging string) (*Output, error) {
	skipped, err := t.Walk(ctx, root)
	if err != nil {
		return nil, err
	}

	if !skipped.Empty() {
		if err := a.w.AddPage("Skipped Files Summary", a.summary(skipped)); err != nil {
			return nil, fmt.Errorf("writing summary: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages := a.w.PageCount()
	if err := a.w.Save(staging); err != nil {
		return nil, err
	}
	return &Output{Pages: pages, Skipped: skipped}, nil
}

func (a *Assembler) summary(s *walker.Skipped) string {
	var b strings.Builder
	if len(s.BySize) > 0 {
		fmt.Fprintf(&b, "Files skipped due to size (>%s):\n", humanize.IBytes(uint64(a.opts.MaxFileSize)))
		for _, p := range s.BySize {
			b.WriteString(p)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if len(s.ByType) > 0 {
		b.WriteString("Files skipped due to type:\n")
		for _, p := range s.ByType {
			b.WriteString(p)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func numberLines(body string) string {
	lines := strings.Split(body, "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d  %s", width, i+1, line)
	}
	return b.String()
}
