package parser

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	renderMaxRows      = 10
	renderMaxCellWidth = 32
	ellipsis           = "…"
)

// renderFrame draws headers and rows as a box table preceded by its shape.
// Tables taller than renderMaxRows show the first and last halves around an
// ellipsis row; wide cells are truncated.
func renderFrame(headers []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "shape: (%d, %d)\n", len(rows), len(headers))
	if len(headers) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}

	shown := rows
	elided := false
	if len(rows) > renderMaxRows {
		half := renderMaxRows / 2
		shown = append(append([][]string{}, rows[:half]...), rows[len(rows)-half:]...)
		elided = true
	}

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		s := strings.ReplaceAll(row[i], "\n", " ")
		return runewidth.Truncate(s, renderMaxCellWidth, ellipsis)
	}

	widths := make([]int, len(headers))
	for i := range headers {
		widths[i] = runewidth.StringWidth(cell(headers, i))
	}
	for _, row := range shown {
		for i := range headers {
			if w := runewidth.StringWidth(cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	if elided {
		for i := range widths {
			if widths[i] < 1 {
				widths[i] = 1
			}
		}
	}

	rule := func(left, fill, mid, right string) {
		b.WriteString(left)
		for i, w := range widths {
			if i > 0 {
				b.WriteString(mid)
			}
			b.WriteString(strings.Repeat(fill, w+2))
		}
		b.WriteString(right)
		b.WriteByte('\n')
	}
	line := func(row []string) {
		b.WriteString("│")
		for i, w := range widths {
			if i > 0 {
				b.WriteString("┆")
			}
			b.WriteByte(' ')
			b.WriteString(runewidth.FillRight(cell(row, i), w))
			b.WriteByte(' ')
		}
		b.WriteString("│\n")
	}

	rule("┌", "─", "┬", "┐")
	line(headers)
	rule("╞", "═", "╪", "╡")
	for i, row := range shown {
		if elided && i == renderMaxRows/2 {
			dots := make([]string, len(headers))
			for j := range dots {
				dots[j] = ellipsis
			}
			line(dots)
		}
		line(row)
	}
	rule("└", "─", "┴", "┘")
	return strings.TrimRight(b.String(), "\n")
}

// normalizeRows pads or trims every row to width cells.
func normalizeRows(rows [][]string, width int) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		r := make([]string, width)
		copy(r, row)
		out = append(out, r)
	}
	return out
}
