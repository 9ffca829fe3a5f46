package ps

import (
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// Schema owns tables, views and procedures. Names are case-insensitive.
type Schema struct {
	Name string

	database   *Database
	tables     map[string]*Table
	tableOrder []string
	views      map[string]*View
	viewOrder  []string
	procedures map[string]*ProcedureDef
}

// View is a stored query evaluated on every read.
type View struct {
	Name      string
	Columns   []string
	Query     sql.QueryStatement
	Text      string
	CreatedAt time.Time
}

func newSchema(database *Database, name string) *Schema {
	return &Schema{
		Name:       name,
		database:   database,
		tables:     make(map[string]*Table),
		views:      make(map[string]*View),
		procedures: make(map[string]*ProcedureDef),
	}
}

func (schema *Schema) Database() *Database {
	return schema.database
}

// CreateTable adds an empty table. It fails with 1050 when the name is taken
// by a table or a view.
func (schema *Schema) CreateTable(name string) (*Table, error) {
	key := normalizeName(name)
	if _, exists := schema.tables[key]; exists {
		return nil, core.TableExists(name)
	}
	if _, exists := schema.views[key]; exists {
		return nil, core.TableExists(name)
	}

	table := newTable(schema, name)
	schema.tables[key] = table
	schema.tableOrder = append(schema.tableOrder, key)
	return table, nil
}

func (schema *Schema) Table(name string) (*Table, bool) {
	table, ok := schema.tables[normalizeName(name)]
	return table, ok
}

// Tables returns the tables in creation order.
func (schema *Schema) Tables() []*Table {
	tables := make([]*Table, 0, len(schema.tableOrder))
	for _, key := range schema.tableOrder {
		tables = append(tables, schema.tables[key])
	}
	return tables
}

// DropTable removes a table. A table still referenced by a foreign key of
// another table cannot be dropped.
func (schema *Schema) DropTable(name string) error {
	key := normalizeName(name)
	table, ok := schema.tables[key]
	if !ok {
		return core.UnknownTable(name)
	}
	for _, fk := range schema.database.referencing(table) {
		if fk.Table != table {
			return core.ReferencedRow(table.Name)
		}
	}
	schema.removeTable(key)
	return nil
}

func (schema *Schema) removeTable(key string) {
	delete(schema.tables, key)
	for i, name := range schema.tableOrder {
		if name == key {
			schema.tableOrder = append(schema.tableOrder[:i:i], schema.tableOrder[i+1:]...)
			break
		}
	}
}

// CreateView stores a view. With orReplace an existing view is overwritten.
func (schema *Schema) CreateView(view *View, orReplace bool) error {
	key := normalizeName(view.Name)
	if _, exists := schema.tables[key]; exists {
		return core.TableExists(view.Name)
	}
	if _, exists := schema.views[key]; exists {
		if !orReplace {
			return core.TableExists(view.Name)
		}
	} else {
		schema.viewOrder = append(schema.viewOrder, key)
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}
	schema.views[key] = view
	return nil
}

func (schema *Schema) View(name string) (*View, bool) {
	view, ok := schema.views[normalizeName(name)]
	return view, ok
}

func (schema *Schema) Views() []*View {
	views := make([]*View, 0, len(schema.viewOrder))
	for _, key := range schema.viewOrder {
		views = append(views, schema.views[key])
	}
	return views
}

func (schema *Schema) DropView(name string) error {
	key := normalizeName(name)
	if _, ok := schema.views[key]; !ok {
		return core.UnknownTable(name)
	}
	delete(schema.views, key)
	for i, viewName := range schema.viewOrder {
		if viewName == key {
			schema.viewOrder = append(schema.viewOrder[:i:i], schema.viewOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddProcedure registers or replaces a procedure signature.
func (schema *Schema) AddProcedure(procedure ProcedureDef) {
	schema.procedures[normalizeName(procedure.Name)] = &procedure
}

func (schema *Schema) Procedure(name string) (*ProcedureDef, bool) {
	procedure, ok := schema.procedures[normalizeName(name)]
	return procedure, ok
}

// clear removes every table and view. Procedures are kept.
func (schema *Schema) clear() {
	schema.tables = make(map[string]*Table)
	schema.tableOrder = nil
	schema.views = make(map[string]*View)
	schema.viewOrder = nil
}
