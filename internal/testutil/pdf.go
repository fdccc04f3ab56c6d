package testutil

import (
	"bytes"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFPage describes one page of a generated PDF. A zero size means US Letter.
type PDFPage struct {
	Width, Height float64
	Text          string
}

// BuildPDF renders pages into a real PDF file image.
func BuildPDF(tb testing.TB, pages ...PDFPage) []byte {
	tb.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCreationDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range pages {
		if p.Width > 0 && p.Height > 0 {
			pdf.AddPageFormat("P", fpdf.SizeType{Wd: p.Width, Ht: p.Height})
		} else {
			pdf.AddPage()
		}
		pdf.SetFont("Helvetica", "", 12)
		if p.Text != "" {
			pdf.Text(36, 48, p.Text)
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		tb.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

// LetterPDF returns n Letter pages labelled "page 1" through "page n".
func LetterPDF(tb testing.TB, n int) []byte {
	tb.Helper()
	pages := make([]PDFPage, n)
	for i := range pages {
		pages[i].Text = fmt.Sprintf("page %d", i+1)
	}
	return BuildPDF(tb, pages...)
}

// WritePDF stores LetterPDF(n) at path.
func WritePDF(tb testing.TB, path string, n int) {
	tb.Helper()
	if err := os.WriteFile(path, LetterPDF(tb, n), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}
