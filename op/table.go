package op

import (
	"errors"
	"iter"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

var (
	ErrNoPrimaryKey = errors.New("no primary key found")
)

// TableOp is the access path to one table used by the executor: full scans,
// index seeks and name-keyed writes.
type TableOp struct {
	Table *ps.Table
}

func GetTable(database *ps.Database, schema string, tableName string) (*TableOp, error) {
	table, err := database.ResolveTable(schema, tableName)
	if err != nil {
		return nil, err
	}

	return &TableOp{
		Table: table,
	}, nil
}

func (op *TableOp) PrimaryKey() ([]string, error) {
	ordinals := op.Table.PrimaryKey()
	if len(ordinals) == 0 {
		return nil, ErrNoPrimaryKey
	}
	columns := op.Table.Columns()
	names := make([]string, len(ordinals))
	for i, ordinal := range ordinals {
		names[i] = columns[ordinal].Name
	}
	return names, nil
}

// Get returns the row whose primary key equals values.
func (op *TableOp) Get(values ...any) (row ps.Row, exists bool) {
	ordinal, exists := op.find(values)
	if !exists {
		return nil, false
	}
	return op.Table.Row(ordinal)
}

// GetValues is Get with the row keyed by column name.
func (op *TableOp) GetValues(values ...any) (map[string]any, bool) {
	row, exists := op.Get(values...)
	if !exists {
		return nil, false
	}
	return op.Values(row), true
}

func (op *TableOp) find(values []any) (int, bool) {
	primary, ok := op.Table.Index(ps.PrimaryKeyName)
	if !ok {
		return 0, false
	}
	ordinals := primary.Lookup(values...)
	if len(ordinals) == 0 {
		return 0, false
	}
	return ordinals[0], true
}

// Put inserts one row given by column name.
func (op *TableOp) Put(values map[string]any) (int, error) {
	row, err := op.Row(values)
	if err != nil {
		return 0, err
	}
	return op.Table.Add(row)
}

// PutAll inserts every row or none of them.
func (op *TableOp) PutAll(rows []map[string]any) (int, error) {
	op.Table.Backup()
	defer op.Table.ClearBackup()

	for _, values := range rows {
		if _, err := op.Put(values); err != nil {
			if restoreErr := op.Table.Restore(); restoreErr != nil {
				return 0, errors.Join(err, restoreErr)
			}
			return 0, err
		}
	}
	return len(rows), nil
}

// Delete removes the row whose primary key equals values.
func (op *TableOp) Delete(values ...any) (bool, error) {
	ordinal, exists := op.find(values)
	if !exists {
		return false, nil
	}
	deleted, err := op.Table.DeleteRows([]int{ordinal})
	return deleted > 0, err
}

func (op *TableOp) Count() int {
	return op.Table.Count()
}

// Scan yields every live row with its ordinal.
func (op *TableOp) Scan() iter.Seq2[int, ps.Row] {
	return op.ScanWithFilter(nil)
}

func (op *TableOp) ScanWithFilter(filter func(ordinal int, row ps.Row) bool) iter.Seq2[int, ps.Row] {
	return func(yield func(int, ps.Row) bool) {
		for ordinal, row := range op.Table.Rows() {
			if filter != nil && !filter(ordinal, row) {
				continue
			}
			if !yield(ordinal, row) {
				return
			}
		}
	}
}

// Seek yields the rows whose key columns in index equal values, in ordinal order.
func (op *TableOp) Seek(index *ps.IndexDef, values ...any) iter.Seq2[int, ps.Row] {
	ordinals := index.Lookup(values...)
	return func(yield func(int, ps.Row) bool) {
		for _, ordinal := range ordinals {
			row, ok := op.Table.Row(ordinal)
			if !ok {
				continue
			}
			if !yield(ordinal, row) {
				return
			}
		}
	}
}

// Row converts a name-keyed value map to an ordinal-keyed row.
func (op *TableOp) Row(values map[string]any) (ps.Row, error) {
	row := make(ps.Row, len(values))
	for name, value := range values {
		column, ok := op.Table.Column(name)
		if !ok {
			return nil, core.UnknownColumn(name)
		}
		row[column.Index] = value
	}
	return row, nil
}

// Values converts a row to a map keyed by column name.
func (op *TableOp) Values(row ps.Row) map[string]any {
	values := make(map[string]any, len(row))
	for _, column := range op.Table.Columns() {
		values[column.Name] = row[column.Index]
	}
	return values
}

// CopyFrom inserts every row of source into this table, matching columns by
// name. Computed target columns are recomputed. Either all rows are copied or none.
func (op *TableOp) CopyFrom(source *TableOp) (int, error) {
	var rows []map[string]any
	for _, row := range source.Scan() {
		values := make(map[string]any)
		for name, value := range source.Values(row) {
			if column, ok := op.Table.Column(name); ok && !column.IsComputed() {
				values[column.Name] = value
			}
		}
		rows = append(rows, values)
	}
	return op.PutAll(rows)
}
