package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

const (
	DefaultTitle = "SynthesisTalk Export"

	pageMargin = 72.0
	lineHeight = 18.0
)

// Exporter writes text documents as PDF files into one directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// Dir returns the directory exports are written to.
func (e *Exporter) Dir() string {
	return e.dir
}

// Render writes text under a bold title on Letter pages and returns the file
// path. Lines wrap at the page margins.
func (e *Exporter) Render(text, title string) (string, error) {
	if title == "" {
		title = DefaultTitle
	}
	path := filepath.Join(e.dir, uuid.NewString()+".pdf")

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 24, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			pdf.Ln(lineHeight)
			continue
		}
		pdf.MultiCell(0, lineHeight, tr(paragraph), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf %s: %w", path, err)
	}
	return path, nil
}
