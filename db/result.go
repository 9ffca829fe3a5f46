package db

import (
	"fmt"
	"os"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

type Result interface {
	Type() ResultType
	Display()
}

// ResultColumn describes one output column of a query.
type ResultColumn struct {
	TableAlias string
	Name       string
	Alias      string
	Ordinal    int
	Type       core.DbType
	Nullable   bool
}

// Label is the name the column is reported under: the alias when given.
func (column ResultColumn) Label() string {
	if column.Alias != "" {
		return column.Alias
	}
	return column.Name
}

// QueryResult holds the rows produced by a SELECT. Rows never share storage
// with a table.
type QueryResult struct {
	Columns          []ResultColumn
	Rows             [][]any
	RecordsRead      int
	ExecutionTimeSec float64
	ExecutionOps     int
}

// CommitResult reports the effect of every statement that does not return rows.
type CommitResult struct {
	Transaction      string
	TablesCreated    int
	TablesDeleted    int
	RecordsWritten   int
	RecordsDeleted   int
	RowsAffected     int
	LastInsertId     int64
	OutParams        map[string]any
	Message          string
	ExecutionTimeSec float64
	ExecutionOps     int
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

func (result QueryResult) ColumnNames() []string {
	names := make([]string, len(result.Columns))
	for i, column := range result.Columns {
		names[i] = column.Label()
	}
	return names
}

// ColumnIndex finds an output column by label, case-insensitively.
func (result QueryResult) ColumnIndex(name string) (int, bool) {
	for i, column := range result.Columns {
		if strings.EqualFold(column.Label(), name) {
			return i, true
		}
	}
	return 0, false
}

// Value returns the value of a named column in row i.
func (result QueryResult) Value(i int, column string) (any, bool) {
	index, ok := result.ColumnIndex(column)
	if !ok || i < 0 || i >= len(result.Rows) {
		return nil, false
	}
	return result.Rows[i][index], true
}

// Maps returns the rows keyed by column label.
func (result QueryResult) Maps() []map[string]any {
	maps := make([]map[string]any, len(result.Rows))
	for i, row := range result.Rows {
		values := make(map[string]any, len(row))
		for j, column := range result.Columns {
			values[column.Label()] = row[j]
		}
		maps[i] = values
	}
	return maps
}

// Data renders every value as text, NULL as NullText.
func (result QueryResult) Data() [][]string {
	data := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, len(row))
		for j, value := range row {
			if value == nil {
				cells[j] = NullText
			} else {
				cells[j] = ps.ToText(value)
			}
		}
		data[i] = cells
	}
	return data
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 0.01 {
		return fmt.Sprintf("%dms", int(secs*1000))
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	} else {
		mins := int(secs / 60)
		remainSecs := int(secs) % 60
		if remainSecs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm%ds", mins, remainSecs)
	}
}

// formatThroughput renders ops/s for the stats line
func formatThroughput(ops int, secs float64) string {
	if secs <= 0 || ops <= 0 {
		return ""
	}
	rate := float64(ops) / secs
	switch {
	case rate >= 1000000:
		return fmt.Sprintf(", %.1fM ops/s", rate/1000000)
	case rate >= 1000:
		return fmt.Sprintf(", %.1fK ops/s", rate/1000)
	default:
		return fmt.Sprintf(", %.0f ops/s", rate)
	}
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result QueryResult) Display() {
	if len(result.Columns) > 0 {
		data := NewTable(os.Stdout)
		data.Header(result.ColumnNames())
		data.Values(result.Rows)
		data.Render()
	}
	fmt.Printf("%d rows (%s%s)\n", len(result.Rows), result.ExecutionTime(),
		formatThroughput(result.ExecutionOps, result.ExecutionTimeSec))
}

func (result CommitResult) Display() {
	var parts []string

	if result.Message != "" {
		parts = append(parts, result.Message)
	}
	if result.TablesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) created", result.TablesCreated))
	}
	if result.TablesDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) deleted", result.TablesDeleted))
	}
	if result.RecordsWritten > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) written", result.RecordsWritten))
	}
	if result.RecordsDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) deleted", result.RecordsDeleted))
	}
	for name, value := range result.OutParams {
		parts = append(parts, fmt.Sprintf("@%s = %s", name, ps.ToText(value)))
	}

	throughput := formatThroughput(result.ExecutionOps, result.ExecutionTimeSec)
	if len(parts) == 0 {
		fmt.Printf("OK (%s%s)\n", result.ExecutionTime(), throughput)
	} else {
		fmt.Printf("%s (%s%s)\n", strings.Join(parts, ", "), result.ExecutionTime(), throughput)
	}
}
