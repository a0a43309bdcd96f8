// Package document renders walked repository files into a paginated PDF and
// commits the finished artifact atomically.
package document

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Writer accumulates pages and writes the finished document.
type Writer interface {
	// AddPage starts a new page with a heading followed by body text. Text
	// that does not fit continues on following pages.
	AddPage(heading, body string) error
	PageCount() int
	Save(path string) error
}

const (
	fontFamily = "Courier"
	tabWidth   = 4
)

// PDFWriter renders pages with a monospaced core font.
type PDFWriter struct {
	pdf       *fpdf.Fpdf
	translate func(string) string
	lineH     float64
}

// NewPDFWriter creates an A4 portrait PDF writer using fontSize points.
func NewPDFWriter(fontSize float64, title string) *PDFWriter {
	if fontSize <= 0 {
		fontSize = 12
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetCreator("git2pdf", true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.SetFont(fontFamily, "", fontSize)
	_, unit := pdf.GetFontSize()

	return &PDFWriter{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		lineH:     unit * 1.25,
	}
}

// AddPage implements Writer.
func (w *PDFWriter) AddPage(heading, body string) error {
	w.pdf.AddPage()
	w.pdf.MultiCell(0, w.lineH, w.text(heading), "", "L", false)
	w.pdf.Ln(w.lineH)
	if body != "" {
		w.pdf.MultiCell(0, w.lineH, w.text(body), "", "L", false)
	}
	return w.pdf.Error()
}

// PageCount implements Writer.
func (w *PDFWriter) PageCount() int {
	return w.pdf.PageCount()
}

// Save implements Writer. The writer cannot be used afterwards.
func (w *PDFWriter) Save(path string) error {
	if err := w.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("writing pdf %s: %w", path, err)
	}
	return nil
}

// text converts s to the core font's code page. Tabs are expanded since core
// fonts have no glyph for them.
func (w *PDFWriter) text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
	return w.translate(s)
}
