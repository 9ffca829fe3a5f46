package db

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nickyhof/SqlLikeMem/ps"
)

// NullText is how NULL cells are rendered.
const NullText = "NULL"

// SimpleTable renders result rows as a bordered text grid
type SimpleTable struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	numeric []bool
}

// NewTable creates a new table writer
func NewTable(w io.Writer) *SimpleTable {
	return &SimpleTable{
		writer: w,
		rows:   make([][]string, 0),
	}
}

// Header sets the table headers
func (t *SimpleTable) Header(headers []string) {
	t.headers = headers
}

// Row adds a single row
func (t *SimpleTable) Row(row []string) {
	t.rows = append(t.rows, row)
}

// Bulk adds multiple rows
func (t *SimpleTable) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

// Values adds rows of engine values. NULL renders as NullText and numeric
// columns are right-aligned.
func (t *SimpleTable) Values(rows [][]any) {
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if i >= len(t.numeric) {
				t.numeric = append(t.numeric, make([]bool, i-len(t.numeric)+1)...)
			}
			switch value.(type) {
			case nil:
				cells[i] = NullText
				continue
			case int64, float64, int:
				t.numeric[i] = true
			}
			cells[i] = ps.ToText(value)
		}
		t.rows = append(t.rows, cells)
	}
}

// Render outputs the formatted table
func (t *SimpleTable) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	colWidths := t.calculateWidths()
	separator := t.buildSeparator(colWidths)

	fmt.Fprintln(t.writer, separator)
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, t.formatRow(t.headers, colWidths, false))
		fmt.Fprintln(t.writer, separator)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, t.formatRow(row, colWidths, true))
	}
	fmt.Fprintln(t.writer, separator)
}

// calculateWidths determines the width needed for each column
func (t *SimpleTable) calculateWidths() []int {
	numCols := len(t.headers)
	for _, row := range t.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for i, h := range t.headers {
		widths[i] = max(widths[i], utf8.RuneCountInString(h))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < numCols {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}
	for i := range widths {
		widths[i] = max(widths[i], 1)
	}
	return widths
}

// buildSeparator creates the horizontal line
func (t *SimpleTable) buildSeparator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

// formatRow pads each cell to its column width
func (t *SimpleTable) formatRow(row []string, widths []int, data bool) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		padding := strings.Repeat(" ", w-utf8.RuneCountInString(cell))
		if data && i < len(t.numeric) && t.numeric[i] {
			parts[i] = " " + padding + cell + " "
		} else {
			parts[i] = " " + cell + padding + " "
		}
	}
	return "|" + strings.Join(parts, "|") + "|"
}
