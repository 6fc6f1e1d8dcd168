package parser

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperifyio/docparse/internal/document"
)

const (
	// cellGapEm is the horizontal gap, in font sizes, that separates cells.
	cellGapEm = 1.0
	// wordGapEm is the gap that separates words inside a cell.
	wordGapEm = 0.15
)

const defaultFontSize = 10.0

type glyphRow struct {
	y      float64
	glyphs []pdf.Text
}

// detectTables finds runs of at least two consecutive text rows that each
// split into two or more cells. The first row of a run is the header.
func detectTables(glyphs []pdf.Text) []document.Table {
	var (
		tables []document.Table
		run    [][]string
	)
	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, tableFromCells(run))
		}
		run = nil
	}
	for _, row := range groupRows(glyphs) {
		cells := splitCells(row.glyphs)
		if len(cells) >= 2 {
			run = append(run, cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// groupRows buckets glyphs by baseline, top of page first. Glyph order
// inside a row is left to right; glyphs sharing an x position keep their
// content stream order.
func groupRows(glyphs []pdf.Text) []glyphRow {
	var rows []glyphRow
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		tol := math.Max(1.0, fontSize(g)*0.3)
		placed := false
		for i := range rows {
			if math.Abs(rows[i].y-g.Y) <= tol {
				rows[i].glyphs = append(rows[i].glyphs, g)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, glyphRow{y: g.Y, glyphs: []pdf.Text{g}})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for i := range rows {
		gs := rows[i].glyphs
		sort.SliceStable(gs, func(a, b int) bool { return gs[a].X < gs[b].X })
	}
	return rows
}

// splitCells joins glyphs into cell strings. Fonts without a widths table
// report zero-width glyphs, so every glyph of one text run then shares an x
// position and only real column gaps register.
func splitCells(glyphs []pdf.Text) []string {
	var (
		cells []string
		cur   strings.Builder
	)
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			size := fontSize(prev)
			switch {
			case gap > size*cellGapEm:
				cells = append(cells, strings.TrimSpace(cur.String()))
				cur.Reset()
			case gap > size*wordGapEm && cur.Len() > 0:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.S)
	}
	if cur.Len() > 0 {
		cells = append(cells, strings.TrimSpace(cur.String()))
	}
	return cells
}

func fontSize(g pdf.Text) float64 {
	if g.FontSize > 0 {
		return g.FontSize
	}
	return defaultFontSize
}

// tableFromCells uses the first row as headers. Data rows keep their own
// width; missing cells render as "".
func tableFromCells(rows [][]string) document.Table {
	headers := append([]string{}, rows[0]...)
	data := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		data = append(data, append([]string{}, r...))
	}
	return document.NewTable(headers, data)
}
