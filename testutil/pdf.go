// Package testutil provides shared fixtures for tests that need real PDF
// documents on disk.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF writes a valid PDF with the given number of pages to dir/name
// and returns its absolute path. Each page carries a line of text naming
// the document and page number so outputs are distinguishable.
func WritePDF(t testing.TB, dir, name string, pages int) string {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)

	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Cell(0, 10, fmt.Sprintf("%s page %d", name, i))
	}

	path := filepath.Join(dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}

	return path
}

// WriteSizedPDF writes a PDF with one page per entry in widths, each page
// that many points wide and 800 points tall, and returns its path. Page
// widths let tests identify pages after a merge.
func WriteSizedPDF(t testing.TB, dir, name string, widths ...float64) string {
	t.Helper()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)

	for i, w := range widths {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: 800})
		pdf.Cell(0, 20, fmt.Sprintf("%s page %d", name, i+1))
	}

	path := filepath.Join(dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}

	return path
}

// WriteCorruptPDF writes a file with a .pdf name whose content no PDF
// parser accepts.
func WriteCorruptPDF(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("this is not a pdf document\n"), 0o644); err != nil {
		t.Fatalf("writing corrupt fixture %s: %v", path, err)
	}

	return path
}
