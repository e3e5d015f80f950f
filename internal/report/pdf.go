// Package report renders the recent-days summary into shareable outputs:
// a PDF file on disk and rows appended to a Google Sheet.
package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"daybook/internal/cache"
	"daybook/internal/core"
	"daybook/internal/log"

	"github.com/phpdave11/gofpdf"
)

var ErrNoRows = errors.New("nothing to export")

// PDFExporter writes summary reports as PDF files. Rendered documents are
// cached by content so repeated exports of an unchanged window reuse the
// bytes.
type PDFExporter struct {
	dir       string
	days      int
	formatter *core.Formatter
	cache     *cache.LRUCache[[]byte]
}

// NewPDFExporter writes into dir. The core PDF fonts cannot draw the rupee
// sign, so amounts use formatter with a plain-text symbol.
func NewPDFExporter(dir string, days int, formatter *core.Formatter, c *cache.LRUCache[[]byte]) *PDFExporter {
	return &PDFExporter{
		dir:       dir,
		days:      days,
		formatter: formatter.WithSymbol("Rs. "),
		cache:     c,
	}
}

func (e *PDFExporter) title() string {
	return fmt.Sprintf("Expense Report (Last %d Days)", e.days)
}

// Render returns the PDF bytes for rows.
func (e *PDFExporter) Render(rows []core.Summary) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	build := func() ([]byte, error) { return e.render(rows) }
	if e.cache == nil {
		return build()
	}
	return e.cache.GetOrCreate(e.fingerprint(rows), build)
}

// Export renders rows and writes them to the export directory, returning
// the file path.
func (e *PDFExporter) Export(ctx context.Context, rows []core.Summary) (string, error) {
	doc, err := e.Render(rows)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	name := fmt.Sprintf("expense_report_%s_%s.pdf", rows[0].Date, rows[len(rows)-1].Date)
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Report exported",
		log.FieldComponent, log.ComponentReport,
		log.FieldPath, path,
		log.FieldCount, len(rows))
	return path, nil
}

func (e *PDFExporter) render(rows []core.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle(e.title(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 10, e.title())
	pdf.Ln(12)

	colW := []float64{40, 100, 42}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "DATE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[1], 8, "CATEGORY", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[2], 8, "AMOUNT", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}
	header()

	for _, r := range rows {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
		}
		pdf.CellFormat(colW[0], 8, r.Date.Entry(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 8, tr(trimTo(r.Category, 60)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 8, e.formatter.Format(r.Total), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colW[0]+colW[1], 8, "TOTAL", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colW[2], 8, e.formatter.Format(core.SummaryTotal(rows)), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) fingerprint(rows []core.Summary) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\n", e.days)
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%s|%s\n", r.Date, r.Category, r.Total.StringFixed(2))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// trimTo shortens s to at most max runes, marking the cut with "...".
func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
