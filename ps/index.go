package ps

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
)

const PrimaryKeyName = "PRIMARY"

// IndexDef is a hash index over one or more key columns. Each serialized key
// maps to the live rows holding it, with the key and included columns
// projected out of the row.
type IndexDef struct {
	Name    string
	Columns []string
	Include []string
	Unique  bool

	table    *Table
	keyCols  []int
	projCols []int
	entries  map[string]map[int]Row
}

func (index *IndexDef) Table() *Table {
	return index.table
}

// IsPrimary reports whether the index backs the primary key.
func (index *IndexDef) IsPrimary() bool {
	return index.Name == PrimaryKeyName
}

// HasPrefix reports whether columns form a leading prefix of the key columns.
func (index *IndexDef) HasPrefix(columns []string) bool {
	if len(columns) == 0 || len(columns) > len(index.Columns) {
		return false
	}
	for i, column := range columns {
		if !strings.EqualFold(index.Columns[i], column) {
			return false
		}
	}
	return true
}

// Key serializes the key columns of row.
func (index *IndexDef) Key(row Row) string {
	var sb strings.Builder
	for _, ordinal := range index.keyCols {
		writeKeyPart(&sb, row[ordinal])
	}
	return sb.String()
}

// KeyFromValues serializes lookup values after coercing them to the key
// column types. It reports false when a value cannot be stored in its column,
// in which case nothing can match.
func (index *IndexDef) KeyFromValues(values []any) (string, bool) {
	if len(values) != len(index.keyCols) {
		return "", false
	}
	var sb strings.Builder
	for i, ordinal := range index.keyCols {
		column := index.table.columnOrder[ordinal]
		value, err := column.Coerce(values[i])
		if err != nil {
			return "", false
		}
		writeKeyPart(&sb, value)
	}
	return sb.String(), true
}

// Lookup returns the ascending ordinals of the rows whose key columns equal values.
func (index *IndexDef) Lookup(values ...any) []int {
	key, ok := index.KeyFromValues(values)
	if !ok {
		return nil
	}
	return index.LookupByKey(key)
}

// LookupByKey is Lookup with an already serialized key.
func (index *IndexDef) LookupByKey(key string) []int {
	rows := index.entries[key]
	if len(rows) == 0 {
		return nil
	}
	ordinals := make([]int, 0, len(rows))
	for ordinal := range rows {
		ordinals = append(ordinals, ordinal)
	}
	slices.Sort(ordinals)
	return ordinals
}

// Projection returns the projected key and include values stored for a row.
func (index *IndexDef) Projection(key string, ordinal int) (Row, bool) {
	projected, ok := index.entries[key][ordinal]
	return projected, ok
}

// KeyCount is the number of distinct keys in the index.
func (index *IndexDef) KeyCount() int {
	return len(index.entries)
}

func (index *IndexDef) resolve() error {
	index.keyCols = index.keyCols[:0]
	index.projCols = index.projCols[:0]
	for _, name := range index.Columns {
		column, ok := index.table.Column(name)
		if !ok {
			return core.UnknownColumn(name)
		}
		index.keyCols = append(index.keyCols, column.Index)
		index.projCols = append(index.projCols, column.Index)
	}
	for _, name := range index.Include {
		column, ok := index.table.Column(name)
		if !ok {
			return core.UnknownColumn(name)
		}
		index.projCols = append(index.projCols, column.Index)
	}
	return nil
}

func (index *IndexDef) hasNull(row Row) bool {
	for _, ordinal := range index.keyCols {
		if row[ordinal] == nil {
			return true
		}
	}
	return false
}

func (index *IndexDef) project(row Row) Row {
	projected := make(Row, len(index.projCols))
	for _, ordinal := range index.projCols {
		projected[ordinal] = row[ordinal]
	}
	return projected
}

func (index *IndexDef) insert(ordinal int, row Row) {
	key := index.Key(row)
	rows, ok := index.entries[key]
	if !ok {
		rows = make(map[int]Row)
		index.entries[key] = rows
	}
	rows[ordinal] = index.project(row)
}

func (index *IndexDef) remove(ordinal int, row Row) {
	key := index.Key(row)
	rows := index.entries[key]
	delete(rows, ordinal)
	if len(rows) == 0 {
		delete(index.entries, key)
	}
}

// relocate moves a row entry when its key changed and refreshes the projection otherwise.
func (index *IndexDef) relocate(ordinal int, before, after Row) {
	oldKey := index.Key(before)
	newKey := index.Key(after)
	if oldKey != newKey {
		index.remove(ordinal, before)
	}
	index.insert(ordinal, after)
}

func (index *IndexDef) rebuild() {
	index.entries = make(map[string]map[int]Row)
	for ordinal, row := range index.table.rows {
		index.insert(ordinal, row)
	}
}

// conflict returns the first live row other than self that already holds key.
func (index *IndexDef) conflict(key string, self int) (int, bool) {
	for _, ordinal := range index.LookupByKey(key) {
		if ordinal != self {
			return ordinal, true
		}
	}
	return 0, false
}

// Schema describes the index in its serialized form.
func (index *IndexDef) Schema() core.IndexSchema {
	return core.IndexSchema{
		Name:    index.Name,
		Columns: slices.Clone(index.Columns),
		Include: slices.Clone(index.Include),
		Unique:  index.Unique,
	}
}

func writeKeyPart(sb *strings.Builder, value any) {
	if value == nil {
		sb.WriteString("n;")
		return
	}
	text := keyText(value)
	sb.WriteString("s")
	sb.WriteString(strconv.Itoa(len(text)))
	sb.WriteString(":")
	sb.WriteString(text)
	sb.WriteString(";")
}

func keyText(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ToText(value)
}

func (index *IndexDef) String() string {
	return fmt.Sprintf("%s(%s)", index.Name, strings.Join(index.Columns, ", "))
}
