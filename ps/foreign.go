package ps

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

// ForeignDef ties columns of a child table to columns of a referenced table.
type ForeignDef struct {
	Name       string
	Table      *Table
	Columns    []int
	RefTable   *Table
	RefColumns []int
}

func (fk *ForeignDef) clone() ForeignDef {
	copied := *fk
	copied.Columns = slices.Clone(fk.Columns)
	copied.RefColumns = slices.Clone(fk.RefColumns)
	return copied
}

// CreateForeignKey declares that columns reference refColumns of refTable.
// Existing rows are not checked.
func (table *Table) CreateForeignKey(name string, columns []string, refTable *Table, refColumns []string) (*ForeignDef, error) {
	if len(columns) == 0 || len(columns) != len(refColumns) {
		return nil, fmt.Errorf("foreign key '%s' must list the same number of columns on both sides", name)
	}
	for _, fk := range table.foreignKeys {
		if strings.EqualFold(fk.Name, name) {
			return nil, fmt.Errorf("duplicate foreign key constraint name '%s'", name)
		}
	}

	fk := &ForeignDef{Name: name, Table: table, RefTable: refTable}
	for i, name := range columns {
		column, ok := table.Column(name)
		if !ok {
			return nil, core.UnknownColumn(name)
		}
		refColumn, ok := refTable.Column(refColumns[i])
		if !ok {
			return nil, core.UnknownColumn(refColumns[i])
		}
		fk.Columns = append(fk.Columns, column.Index)
		fk.RefColumns = append(fk.RefColumns, refColumn.Index)
	}
	table.foreignKeys = append(table.foreignKeys, fk)
	return fk, nil
}

func (table *Table) ForeignKeys() []*ForeignDef {
	return table.foreignKeys
}

func (table *Table) DropForeignKey(name string) error {
	for i, fk := range table.foreignKeys {
		if strings.EqualFold(fk.Name, name) {
			table.foreignKeys = slices.Delete(table.foreignKeys, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("foreign key '%s' not found on table '%s'", name, table.Name)
}

// Schema describes the foreign key in its serialized form.
func (fk *ForeignDef) Schema() core.ForeignKeySchema {
	schema := core.ForeignKeySchema{Name: fk.Name, RefTable: fk.RefTable.Name}
	if fk.RefTable.schema != nil && fk.RefTable.schema != fk.Table.schema {
		schema.RefSchema = fk.RefTable.schema.Name
	}
	for _, ordinal := range fk.Columns {
		schema.Columns = append(schema.Columns, fk.Table.columnOrder[ordinal].Name)
	}
	for _, ordinal := range fk.RefColumns {
		schema.RefColumns = append(schema.RefColumns, fk.RefTable.columnOrder[ordinal].Name)
	}
	return schema
}

func (fk *ForeignDef) columnNames() string {
	names := make([]string, len(fk.Columns))
	for i, ordinal := range fk.Columns {
		names[i] = fk.Table.columnOrder[ordinal].Name
	}
	return strings.Join(names, ",")
}

// refIndex is an index on the referenced table whose key columns are exactly
// the referenced columns, in order.
func (fk *ForeignDef) refIndex() *IndexDef {
	for _, index := range fk.RefTable.Indexes() {
		if slices.Equal(index.keyCols, fk.RefColumns) {
			return index
		}
	}
	return nil
}

// parentExists reports whether the referenced table holds a row whose
// referenced columns equal the child values.
func (fk *ForeignDef) parentExists(child Row) bool {
	values := make([]any, len(fk.Columns))
	for i, ordinal := range fk.Columns {
		values[i] = child[ordinal]
	}
	if index := fk.refIndex(); index != nil {
		return len(index.Lookup(values...)) > 0
	}
	for _, parent := range fk.RefTable.rows {
		if fk.matches(parent, child) {
			return true
		}
	}
	return false
}

func (fk *ForeignDef) matches(parent, child Row) bool {
	for i, ordinal := range fk.Columns {
		value := child[ordinal]
		if value == nil {
			return false
		}
		if keyText(value) != keyText(parent[fk.RefColumns[i]]) {
			return false
		}
	}
	return true
}

// checkForeignKeys fails with 1452 when row references a missing parent.
// With a non-nil changed list only keys touching those columns are checked.
func (table *Table) checkForeignKeys(row Row, changed []int) error {
	for _, fk := range table.foreignKeys {
		if changed != nil && !slices.ContainsFunc(fk.Columns, func(ordinal int) bool {
			return slices.Contains(changed, ordinal)
		}) {
			continue
		}
		hasNull := slices.ContainsFunc(fk.Columns, func(ordinal int) bool {
			return row[ordinal] == nil
		})
		if hasNull {
			continue
		}
		if fk.Table == fk.RefTable && fk.matches(row, row) {
			continue
		}
		if !fk.parentExists(row) {
			return core.ForeignKeyFails(fk.columnNames(), fk.RefTable.Name)
		}
	}
	return nil
}

// checkReferencedOnDelete fails with 1451 when a live child row, outside the
// rows being deleted, references one of the doomed rows.
func (table *Table) checkReferencedOnDelete(doomed map[int]bool) error {
	for _, fk := range table.database().referencing(table) {
		for childOrdinal, child := range fk.Table.rows {
			if fk.Table == table && doomed[childOrdinal] {
				continue
			}
			for ordinal := range doomed {
				if fk.matches(table.rows[ordinal], child) {
					return core.ReferencedRow(table.Name)
				}
			}
		}
	}
	return nil
}

// checkReferencedOnUpdate fails with 1451 when an update changes referenced
// columns of a row that a child row still points at.
func (table *Table) checkReferencedOnUpdate(before, after Row) error {
	for _, fk := range table.database().referencing(table) {
		changed := false
		for _, ordinal := range fk.RefColumns {
			if keyText(before[ordinal]) != keyText(after[ordinal]) || (before[ordinal] == nil) != (after[ordinal] == nil) {
				changed = true
				break
			}
		}
		if !changed {
			continue
		}
		for _, child := range fk.Table.rows {
			if fk.matches(before, child) {
				return core.ReferencedRow(table.Name)
			}
		}
	}
	return nil
}
