package ps

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

// Table is the row store of one table together with its column catalog,
// keys and indexes. Row ordinals are positions in the row store; they are
// stable until rows are deleted.
type Table struct {
	Name      string
	Temporary bool
	// NextIdentity is the value the next identity column receives.
	NextIdentity int64

	schema      *Schema
	columns     map[string]*ColumnDef
	columnOrder []*ColumnDef
	primaryKey  []int
	foreignKeys []*ForeignDef
	indexes     map[string]*IndexDef
	indexOrder  []string
	rows        []Row
	backup      *tableState
}

// tableState is a copy of the rows and definitions of a table. Indexes are
// kept as definitions and rebuilt from the rows on restore.
type tableState struct {
	rows         []Row
	nextIdentity int64
	columns      []ColumnDef
	primaryKey   []int
	foreignKeys  []ForeignDef
	indexes      []IndexDef
}

func newTable(schema *Schema, name string) *Table {
	return &Table{
		Name:         name,
		Temporary:    schema != nil && schema.database != nil && schema == schema.database.temporary,
		NextIdentity: 1,
		schema:       schema,
		columns:      make(map[string]*ColumnDef),
		indexes:      make(map[string]*IndexDef),
	}
}

func (table *Table) Schema() *Schema {
	return table.schema
}

func (table *Table) dialect() core.Dialect {
	if table.schema != nil && table.schema.database != nil {
		return table.schema.database.Dialect
	}
	return core.MySQL(8)
}

func (table *Table) database() *Database {
	if table.schema == nil {
		return nil
	}
	return table.schema.database
}

// AddColumn appends a column. Existing rows receive the column default.
func (table *Table) AddColumn(def ColumnDef) (*ColumnDef, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	key := normalizeName(def.Name)
	if _, exists := table.columns[key]; exists {
		return nil, fmt.Errorf("duplicate column name '%s'", def.Name)
	}

	column := def
	column.Index = len(table.columnOrder)
	column.EnumValues = slices.Clone(def.EnumValues)
	if column.DefaultValue != nil {
		value, err := column.Coerce(column.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("invalid default for column '%s': %w", column.Name, err)
		}
		column.DefaultValue = value
	}

	table.columns[key] = &column
	table.columnOrder = append(table.columnOrder, &column)

	if column.IsComputed() {
		if err := table.compileComputed(&column); err != nil {
			table.removeLastColumn()
			return nil, err
		}
	}

	for _, row := range table.rows {
		if column.IsComputed() {
			value, err := table.evaluateComputed(&column, row)
			if err != nil {
				table.removeLastColumn()
				return nil, err
			}
			row[column.Index] = value
		} else {
			row[column.Index] = column.DefaultValue
		}
	}
	return &column, nil
}

func (table *Table) removeLastColumn() {
	last := table.columnOrder[len(table.columnOrder)-1]
	table.columnOrder = table.columnOrder[:len(table.columnOrder)-1]
	delete(table.columns, normalizeName(last.Name))
	for _, row := range table.rows {
		delete(row, last.Index)
	}
}

// DropColumn removes a column. Later ordinals shift down by one; indexes
// covering the column are dropped and the rest are rebuilt.
func (table *Table) DropColumn(name string) error {
	column, ok := table.Column(name)
	if !ok {
		return core.UnknownColumn(name)
	}
	if slices.Contains(table.primaryKey, column.Index) {
		return fmt.Errorf("cannot drop primary key column '%s'", column.Name)
	}
	for _, fk := range table.foreignKeys {
		if slices.Contains(fk.Columns, column.Index) {
			return fmt.Errorf("cannot drop column '%s': needed in foreign key constraint '%s'", column.Name, fk.Name)
		}
	}
	for _, fk := range table.database().referencing(table) {
		if slices.Contains(fk.RefColumns, column.Index) {
			return fmt.Errorf("cannot drop column '%s': referenced by foreign key constraint '%s'", column.Name, fk.Name)
		}
	}
	for _, other := range table.columnOrder {
		if other.IsComputed() && other != column && slices.Contains(other.refs, column.Index) {
			return fmt.Errorf("cannot drop column '%s': used by computed column '%s'", column.Name, other.Name)
		}
	}

	for _, indexName := range slices.Clone(table.indexOrder) {
		index := table.indexes[indexName]
		if slices.ContainsFunc(append(slices.Clone(index.Columns), index.Include...), func(c string) bool {
			return strings.EqualFold(c, column.Name)
		}) {
			table.removeIndex(indexName)
		}
	}

	dropped := column.Index
	shift := func(ordinal int) int {
		if ordinal > dropped {
			return ordinal - 1
		}
		return ordinal
	}

	delete(table.columns, normalizeName(column.Name))
	table.columnOrder = slices.Delete(table.columnOrder, dropped, dropped+1)
	for _, other := range table.columnOrder {
		other.Index = shift(other.Index)
	}
	for i := range table.primaryKey {
		table.primaryKey[i] = shift(table.primaryKey[i])
	}
	for _, fk := range table.foreignKeys {
		for i := range fk.Columns {
			fk.Columns[i] = shift(fk.Columns[i])
		}
	}
	for _, fk := range table.database().referencing(table) {
		for i := range fk.RefColumns {
			fk.RefColumns[i] = shift(fk.RefColumns[i])
		}
	}
	for i, row := range table.rows {
		shifted := make(Row, len(row))
		for ordinal, value := range row {
			if ordinal != dropped {
				shifted[shift(ordinal)] = value
			}
		}
		table.rows[i] = shifted
	}
	for _, other := range table.columnOrder {
		if other.IsComputed() {
			if err := table.compileComputed(other); err != nil {
				return err
			}
		}
	}
	return table.RebuildAllIndexes()
}

func (table *Table) Column(name string) (*ColumnDef, bool) {
	column, ok := table.columns[normalizeName(name)]
	return column, ok
}

// Columns returns the columns in ordinal order.
func (table *Table) Columns() []*ColumnDef {
	return table.columnOrder
}

func (table *Table) ColumnNames() []string {
	names := make([]string, len(table.columnOrder))
	for i, column := range table.columnOrder {
		names[i] = column.Name
	}
	return names
}

// PrimaryKey returns the ordinals of the primary-key columns.
func (table *Table) PrimaryKey() []int {
	return table.primaryKey
}

// SetPrimaryKey declares the primary key and backs it with the unique index PRIMARY.
func (table *Table) SetPrimaryKey(columns ...string) error {
	if len(table.primaryKey) > 0 {
		return fmt.Errorf("multiple primary key defined on table '%s'", table.Name)
	}
	ordinals := make([]int, 0, len(columns))
	for _, name := range columns {
		column, ok := table.Column(name)
		if !ok {
			return core.UnknownColumn(name)
		}
		column.Nullable = false
		ordinals = append(ordinals, column.Index)
	}
	if _, err := table.CreateIndex(PrimaryKeyName, columns, nil, true); err != nil {
		return err
	}
	table.primaryKey = ordinals
	return nil
}

// CreateIndex builds an index over the current rows. A unique index fails
// with 1062 when the rows already hold a duplicate key.
func (table *Table) CreateIndex(name string, columns, include []string, unique bool) (*IndexDef, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("index '%s' requires at least one key column", name)
	}
	key := normalizeName(name)
	if _, exists := table.indexes[key]; exists {
		return nil, fmt.Errorf("duplicate key name '%s'", name)
	}

	index := &IndexDef{
		Name:    name,
		Columns: slices.Clone(columns),
		Include: slices.Clone(include),
		Unique:  unique,
		table:   table,
	}
	if err := index.resolve(); err != nil {
		return nil, err
	}
	index.rebuild()
	if unique {
		for key, rows := range index.entries {
			if len(rows) < 2 {
				continue
			}
			for _, projected := range rows {
				if !index.hasNull(projected) {
					return nil, core.DuplicateKey(table.Name, name, key)
				}
				break
			}
		}
	}

	table.indexes[key] = index
	table.indexOrder = append(table.indexOrder, key)
	return index, nil
}

func (table *Table) DropIndex(name string) error {
	key := normalizeName(name)
	if _, ok := table.indexes[key]; !ok {
		return fmt.Errorf("can't drop index '%s'; check that it exists", name)
	}
	if key == normalizeName(PrimaryKeyName) {
		table.primaryKey = nil
	}
	table.removeIndex(key)
	return nil
}

func (table *Table) removeIndex(key string) {
	delete(table.indexes, key)
	table.indexOrder = slices.DeleteFunc(table.indexOrder, func(name string) bool {
		return name == key
	})
}

func (table *Table) Index(name string) (*IndexDef, bool) {
	index, ok := table.indexes[normalizeName(name)]
	return index, ok
}

// Indexes returns the indexes in creation order, the primary key first when declared first.
func (table *Table) Indexes() []*IndexDef {
	indexes := make([]*IndexDef, 0, len(table.indexOrder))
	for _, key := range table.indexOrder {
		indexes = append(indexes, table.indexes[key])
	}
	return indexes
}

// RebuildIndex recomputes one index from the row store.
func (table *Table) RebuildIndex(name string) error {
	index, ok := table.Index(name)
	if !ok {
		return fmt.Errorf("index '%s' not found on table '%s'", name, table.Name)
	}
	if err := index.resolve(); err != nil {
		return err
	}
	index.rebuild()
	return nil
}

func (table *Table) RebuildAllIndexes() error {
	for _, index := range table.Indexes() {
		if err := index.resolve(); err != nil {
			return err
		}
		index.rebuild()
	}
	return nil
}

// Rows exposes the live row store. Callers must not modify it.
func (table *Table) Rows() []Row {
	return table.rows
}

func (table *Table) Row(ordinal int) (Row, bool) {
	if ordinal < 0 || ordinal >= len(table.rows) {
		return nil, false
	}
	return table.rows[ordinal], true
}

func (table *Table) Count() int {
	return len(table.rows)
}

// Add inserts a row. Values are coerced to the column types, then defaults,
// identity and computed values are applied, then nullability, primary key,
// unique indexes and foreign keys are checked, in that order. A column absent
// from values takes its default; a column present with a nil value stays
// NULL unless it is an identity column. It returns the ordinal of the new row.
func (table *Table) Add(values Row) (int, error) {
	row, err := table.prepare(values)
	if err != nil {
		return 0, err
	}
	if err := table.checkNulls(row); err != nil {
		return 0, err
	}
	if conflict, ok := table.FindConflict(row, -1); ok {
		return 0, core.DuplicateKey(table.Name, conflict.Index, conflict.Key)
	}
	if err := table.checkForeignKeys(row, nil); err != nil {
		return 0, err
	}

	table.commitIdentity(row)
	table.rows = append(table.rows, row)
	ordinal := len(table.rows) - 1
	for _, index := range table.Indexes() {
		index.insert(ordinal, row)
	}
	return ordinal, nil
}

func (table *Table) prepare(values Row) (Row, error) {
	row := make(Row, len(table.columnOrder))
	next := table.NextIdentity
	for _, column := range table.columnOrder {
		if column.IsComputed() {
			continue
		}
		raw, present := values[column.Index]
		value, err := column.Coerce(raw)
		if err != nil {
			return nil, err
		}
		if value == nil && column.Identity {
			value = next
			next++
		} else if value == nil && !present {
			value = column.DefaultValue
		}
		row[column.Index] = value
	}
	if err := table.refreshComputed(row); err != nil {
		return nil, err
	}
	return row, nil
}

// commitIdentity advances NextIdentity past the identity values of an accepted row.
func (table *Table) commitIdentity(row Row) {
	for _, column := range table.columnOrder {
		if !column.Identity {
			continue
		}
		if value, ok := ToInt(row[column.Index]); ok && value >= table.NextIdentity {
			table.NextIdentity = value + 1
		}
	}
}

func (table *Table) refreshComputed(row Row) error {
	for _, column := range table.columnOrder {
		if !column.IsComputed() {
			continue
		}
		value, err := table.evaluateComputed(column, row)
		if err != nil {
			return err
		}
		row[column.Index] = value
	}
	return nil
}

func (table *Table) checkNulls(row Row) error {
	for _, column := range table.columnOrder {
		if !column.Nullable && row[column.Index] == nil {
			return core.ColumnCannotBeNull(column.Name)
		}
	}
	return nil
}

// Conflict is an existing row that holds the same unique key as a candidate row.
type Conflict struct {
	Ordinal int
	Index   string
	Key     string
}

// FindConflict looks for a live row, other than self, that shares the
// primary key or a unique key with row. Keys containing NULL never conflict.
func (table *Table) FindConflict(row Row, self int) (Conflict, bool) {
	if primary, ok := table.Index(PrimaryKeyName); ok {
		if ordinal, found := primary.conflict(primary.Key(row), self); found {
			return Conflict{Ordinal: ordinal, Index: PrimaryKeyName, Key: table.primaryKeyText(row)}, true
		}
	}
	for _, index := range table.Indexes() {
		if !index.Unique || index.IsPrimary() {
			continue
		}
		if index.hasNull(row) {
			continue
		}
		key := index.Key(row)
		if ordinal, found := index.conflict(key, self); found {
			return Conflict{Ordinal: ordinal, Index: index.Name, Key: key}, true
		}
	}
	return Conflict{}, false
}

func (table *Table) primaryKeyText(row Row) string {
	parts := make([]string, len(table.primaryKey))
	for i, ordinal := range table.primaryKey {
		parts[i] = fmt.Sprintf("%s: %v", table.columnOrder[ordinal].Name, ToText(row[ordinal]))
	}
	return strings.Join(parts, ",")
}

// UpdateRow applies changes, keyed by column ordinal, to one row. The row is
// re-checked as a whole and only index entries whose key changed move.
func (table *Table) UpdateRow(ordinal int, changes map[int]any) error {
	before, ok := table.Row(ordinal)
	if !ok {
		return fmt.Errorf("row %d out of range for table '%s'", ordinal, table.Name)
	}

	after := before.Clone()
	changed := make([]int, 0, len(changes))
	for columnOrdinal, value := range changes {
		if columnOrdinal < 0 || columnOrdinal >= len(table.columnOrder) {
			return fmt.Errorf("column %d out of range for table '%s'", columnOrdinal, table.Name)
		}
		column := table.columnOrder[columnOrdinal]
		if column.IsComputed() {
			continue
		}
		coerced, err := column.Coerce(value)
		if err != nil {
			return err
		}
		after[columnOrdinal] = coerced
		changed = append(changed, columnOrdinal)
	}
	if err := table.refreshComputed(after); err != nil {
		return err
	}
	if err := table.checkNulls(after); err != nil {
		return err
	}
	if conflict, ok := table.FindConflict(after, ordinal); ok {
		return core.DuplicateKey(table.Name, conflict.Index, conflict.Key)
	}
	if err := table.checkForeignKeys(after, changed); err != nil {
		return err
	}
	if err := table.checkReferencedOnUpdate(before, after); err != nil {
		return err
	}

	table.commitIdentity(after)
	table.rows[ordinal] = after
	for _, index := range table.Indexes() {
		index.relocate(ordinal, before, after)
	}
	return nil
}

// DeleteRows removes the rows at the given ordinals and rebuilds every index,
// since the ordinals of the remaining rows shift. A row still referenced by a
// foreign key fails with 1451 and nothing is removed.
func (table *Table) DeleteRows(ordinals []int) (int, error) {
	doomed := make(map[int]bool, len(ordinals))
	for _, ordinal := range ordinals {
		if ordinal >= 0 && ordinal < len(table.rows) {
			doomed[ordinal] = true
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	if err := table.checkReferencedOnDelete(doomed); err != nil {
		return 0, err
	}

	kept := make([]Row, 0, len(table.rows)-len(doomed))
	for ordinal, row := range table.rows {
		if !doomed[ordinal] {
			kept = append(kept, row)
		}
	}
	table.rows = kept
	if err := table.RebuildAllIndexes(); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

// Truncate removes every row. The identity counter is kept.
func (table *Table) Truncate() error {
	all := make([]int, len(table.rows))
	for i := range all {
		all[i] = i
	}
	_, err := table.DeleteRows(all)
	return err
}

// Backup keeps a copy of the rows for a later Restore.
func (table *Table) Backup() {
	state := table.state()
	table.backup = &state
}

// Restore brings back the rows saved by Backup. It is a no-op without a backup.
func (table *Table) Restore() error {
	if table.backup == nil {
		return nil
	}
	return table.restoreState(*table.backup)
}

func (table *Table) ClearBackup() {
	table.backup = nil
}

func (table *Table) state() tableState {
	rows := make([]Row, len(table.rows))
	for i, row := range table.rows {
		rows[i] = row.Clone()
	}
	state := tableState{
		rows:         rows,
		nextIdentity: table.NextIdentity,
		primaryKey:   slices.Clone(table.primaryKey),
	}
	for _, column := range table.columnOrder {
		state.columns = append(state.columns, column.clone())
	}
	for _, fk := range table.foreignKeys {
		state.foreignKeys = append(state.foreignKeys, fk.clone())
	}
	for _, index := range table.Indexes() {
		state.indexes = append(state.indexes, IndexDef{
			Name:    index.Name,
			Columns: slices.Clone(index.Columns),
			Include: slices.Clone(index.Include),
			Unique:  index.Unique,
		})
	}
	return state
}

func (table *Table) restoreState(state tableState) error {
	rows := make([]Row, len(state.rows))
	for i, row := range state.rows {
		rows[i] = row.Clone()
	}
	table.rows = rows
	table.NextIdentity = state.nextIdentity

	table.columns = make(map[string]*ColumnDef, len(state.columns))
	table.columnOrder = make([]*ColumnDef, 0, len(state.columns))
	for _, saved := range state.columns {
		column := saved.clone()
		table.columns[normalizeName(column.Name)] = &column
		table.columnOrder = append(table.columnOrder, &column)
	}
	table.primaryKey = slices.Clone(state.primaryKey)
	table.foreignKeys = make([]*ForeignDef, 0, len(state.foreignKeys))
	for _, saved := range state.foreignKeys {
		fk := saved.clone()
		table.foreignKeys = append(table.foreignKeys, &fk)
	}
	table.indexes = make(map[string]*IndexDef, len(state.indexes))
	table.indexOrder = make([]string, 0, len(state.indexes))
	for _, saved := range state.indexes {
		key := normalizeName(saved.Name)
		table.indexes[key] = &IndexDef{
			Name:    saved.Name,
			Columns: slices.Clone(saved.Columns),
			Include: slices.Clone(saved.Include),
			Unique:  saved.Unique,
			table:   table,
		}
		table.indexOrder = append(table.indexOrder, key)
	}
	return table.RebuildAllIndexes()
}

// Describe returns the serialized schema of the table.
func (table *Table) Describe() core.TableSchema {
	schema := core.TableSchema{
		Name:         table.Name,
		NextIdentity: table.NextIdentity,
	}
	if table.schema != nil {
		schema.Schema = table.schema.Name
	}
	for _, column := range table.columnOrder {
		schema.Columns = append(schema.Columns, column.Schema())
	}
	for _, ordinal := range table.primaryKey {
		schema.PrimaryKey = append(schema.PrimaryKey, table.columnOrder[ordinal].Name)
	}
	for _, index := range table.Indexes() {
		if !index.IsPrimary() {
			schema.Indexes = append(schema.Indexes, index.Schema())
		}
	}
	for _, fk := range table.foreignKeys {
		schema.ForeignKeys = append(schema.ForeignKeys, fk.Schema())
	}
	return schema
}
