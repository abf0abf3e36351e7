package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin     = 10.0
	pdfRowHeight  = 7.0
	pdfHeadHeight = 8.0
	// wideTable switches to landscape.
	wideTable = 6
)

// PDF renders tables as a paginated A4 report.
type PDF struct {
	// Footer is printed left of the page counter.
	Footer string
}

// Render lays the table out with the header row repeated on every page.
func (e PDF) Render(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	orientation := "P"
	if len(t.Columns) > wideTable {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	widths := columnWidths(t.Columns, pageWidth-2*pdfMargin)

	title := t.Title
	if !t.GeneratedAt.IsZero() {
		title = fmt.Sprintf("%s (%s)", title, t.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	pdf.SetHeaderFunc(func() {
		if title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 236, 242)
		for i, col := range t.Columns {
			pdf.CellFormat(widths[i], pdfHeadHeight, tr(col.Label), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		half := (pageWidth - 2*pdfMargin) / 2
		pdf.CellFormat(half, 5, tr(e.Footer), "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 5, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	if len(t.Rows) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "No records", "1", 1, "C", false, 0, "")
	}
	for _, row := range t.Rows {
		for i := range t.Columns {
			cell := tr(row[i])
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, cell, widths[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column, total float64) []float64 {
	sum := 0.0
	for _, col := range cols {
		sum += weight(col)
	}
	widths := make([]float64, len(cols))
	for i, col := range cols {
		widths[i] = total * weight(col) / sum
	}
	return widths
}

func weight(col Column) float64 {
	if col.Weight <= 0 {
		return 1
	}
	return col.Weight
}

// fit shortens s with an ellipsis until it is at most width wide.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
