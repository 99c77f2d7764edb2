// Package formatter renders column-aligned text tables for console output.
package formatter

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColWidth = 3

// Table is a pipe-delimited table with a header row.
type Table struct {
	header   []string
	rows     [][]string
	maxWidth int
}

// NewTable creates a table with the given column headers.
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// SetMaxCellWidth truncates cells wider than w display columns. Zero disables it.
func (t *Table) SetMaxCellWidth(w int) *Table {
	t.maxWidth = w

	return t
}

// AddRow appends a row. Missing cells render empty; extra cells widen the table.
func (t *Table) AddRow(cells ...string) *Table {
	t.rows = append(t.rows, cells)

	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the table as aligned lines joined by newlines, with a
// trailing newline.
func (t *Table) Render() string {
	table := make([][]string, 0, len(t.rows)+1)
	table = append(table, t.header)
	table = append(table, t.rows...)

	lines := alignRows(table, t.maxWidth)

	return strings.Join(lines, "\n") + "\n"
}

// WriteTo writes the rendered table to w.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, t.Render())

	return int64(n), err
}

// alignRows pads every cell to its column's display width and inserts a
// dashed separator under the first row.
func alignRows(table [][]string, maxWidth int) []string {
	colCount := 0
	for _, row := range table {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	cells := make([][]string, len(table))

	for r, row := range table {
		cells[r] = make([]string, colCount)

		for c := 0; c < colCount; c++ {
			content := ""
			if c < len(row) {
				content = strings.TrimSpace(row[c])
			}

			if maxWidth > 0 && runewidth.StringWidth(content) > maxWidth {
				content = runewidth.Truncate(content, maxWidth, "…")
			}

			cells[r][c] = content
		}
	}

	// Calculate max widths (using display width)
	colWidths := make([]int, colCount)

	for _, row := range cells {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	for i := range colWidths {
		if colWidths[i] < minColWidth {
			colWidths[i] = minColWidth
		}
	}

	result := make([]string, 0, len(cells)+1)

	for i, row := range cells {
		result = append(result, renderRow(row, colWidths))

		if i == 0 {
			sep := make([]string, colCount)
			for j := range sep {
				sep[j] = strings.Repeat("-", colWidths[j])
			}

			result = append(result, renderRow(sep, colWidths))
		}
	}

	return result
}

func renderRow(row []string, colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, content := range row {
		sb.WriteString(" ")
		sb.WriteString(content)

		// Pad with spaces based on display width
		if padding := colWidths[j] - runewidth.StringWidth(content); padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
