package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/docparse/internal/document"
)

const (
	reportTextChars = 3000
	reportTableRows = 30
)

// WriteReportPDF renders a digest of docs to outPath: one section per
// document with its type, metadata, a text excerpt and its tables as grids.
// Core fonts only cover cp1252, so text outside it is replaced.
func WriteReportPDF(docs []document.ParsedDocument, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("docparse report", true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	width := pageW - left - right

	for _, d := range docs {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 7, tr(filepath.Base(d.FilePath)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Type: %s   Tables: %d", d.Type, d.TableCount())), "", 1, "L", false, 0, "")
		for _, k := range sortedKeys(d.Metadata) {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %v", k, d.Metadata[k])), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)

		pdf.SetFont("Helvetica", "", 9)
		for _, line := range strings.Split(excerpt(strings.TrimSpace(d.Text), reportTextChars), "\n") {
			if strings.TrimSpace(line) == "" {
				pdf.Ln(3)
				continue
			}
			pdf.MultiCell(0, 4.5, tr(line), "", "L", false)
		}

		for i, t := range d.Tables {
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 6, tr(fmt.Sprintf("Table %d (%d x %d)", i+1, t.NumRows, t.NumColumns)), "", 1, "L", false, 0, "")
			writeTableGrid(pdf, t, width, tr)
		}
	}
	if len(docs) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, "No documents.", "", 1, "L", false, 0, "")
	}
	return pdf.OutputFileAndClose(outPath)
}

func writeTableGrid(pdf *gofpdf.Fpdf, t document.Table, width float64, tr func(string) string) {
	cols := len(t.Headers)
	if cols == 0 {
		return
	}
	colW := width / float64(cols)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range t.Headers {
		pdf.CellFormat(colW, 6, fitCell(pdf, tr(h), colW), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8)
	for r, row := range t.Rows {
		if r == reportTableRows {
			pdf.CellFormat(width, 5, fmt.Sprintf("... %d more rows", len(t.Rows)-r), "1", 1, "L", false, 0, "")
			break
		}
		for c := 0; c < cols; c++ {
			v := ""
			if c < len(row) {
				v = row[c]
			}
			pdf.CellFormat(colW, 5, fitCell(pdf, tr(v), colW), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fitCell trims s until it fits a cell of width w with padding.
func fitCell(pdf *gofpdf.Fpdf, s string, w float64) string {
	s = strings.ReplaceAll(s, "\n", " ")
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"..") > limit {
		b = b[:len(b)-1]
	}
	return string(b) + ".."
}
