package ps

import (
	"errors"
	"strings"
	"sync"

	"github.com/nickyhof/SqlLikeMem/core"
)

var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrSchemaExists   = errors.New("schema already exists")
)

const DefaultSchemaName = "main"

// Database is the in-memory catalog for one engine instance: its schemas
// and the temporary tables visible to every connection sharing it.
type Database struct {
	Name    string
	Dialect core.Dialect
	// ThreadSafe enables the database lock. Without it Lock and RLock are no-ops.
	ThreadSafe bool

	mu            sync.RWMutex
	schemas       map[string]*Schema
	schemaOrder   []string
	defaultSchema string
	temporary     *Schema
}

type Option func(*Database)

func WithThreadSafe(threadSafe bool) Option {
	return func(database *Database) {
		database.ThreadSafe = threadSafe
	}
}

func WithDefaultSchema(name string) Option {
	return func(database *Database) {
		if name != "" {
			database.defaultSchema = normalizeName(name)
		}
	}
}

func WithName(name string) Option {
	return func(database *Database) {
		database.Name = name
	}
}

func NewDatabase(dialect core.Dialect, opts ...Option) *Database {
	database := &Database{
		Name:          "memory",
		Dialect:       dialect,
		schemas:       make(map[string]*Schema),
		defaultSchema: DefaultSchemaName,
	}
	for _, opt := range opts {
		opt(database)
	}
	database.temporary = newSchema(database, "#temp")
	database.CreateSchema(database.defaultSchema)
	return database
}

// RLock acquires a read lock when the database is thread safe
func (database *Database) RLock() {
	if database.ThreadSafe {
		database.mu.RLock()
	}
}

// RUnlock releases the read lock
func (database *Database) RUnlock() {
	if database.ThreadSafe {
		database.mu.RUnlock()
	}
}

// Lock acquires the write lock when the database is thread safe
func (database *Database) Lock() {
	if database.ThreadSafe {
		database.mu.Lock()
	}
}

// Unlock releases the write lock
func (database *Database) Unlock() {
	if database.ThreadSafe {
		database.mu.Unlock()
	}
}

// CreateSchema returns the schema with the given name, creating it when missing.
func (database *Database) CreateSchema(name string) *Schema {
	key := normalizeName(name)
	if schema, ok := database.schemas[key]; ok {
		return schema
	}
	schema := newSchema(database, key)
	database.schemas[key] = schema
	database.schemaOrder = append(database.schemaOrder, key)
	return schema
}

// Schema looks up a schema. An empty name selects the default schema.
func (database *Database) Schema(name string) (*Schema, error) {
	if name == "" {
		name = database.defaultSchema
	}
	schema, ok := database.schemas[normalizeName(name)]
	if !ok {
		return nil, ErrSchemaNotFound
	}
	return schema, nil
}

func (database *Database) DefaultSchema() *Schema {
	return database.schemas[database.defaultSchema]
}

func (database *Database) Schemas() []*Schema {
	schemas := make([]*Schema, 0, len(database.schemaOrder))
	for _, name := range database.schemaOrder {
		schemas = append(schemas, database.schemas[name])
	}
	return schemas
}

// Temporary is the namespace holding temporary tables.
func (database *Database) Temporary() *Schema {
	return database.temporary
}

// Tables lists every table in every schema, temporary tables last.
func (database *Database) Tables() []*Table {
	var tables []*Table
	for _, schema := range database.Schemas() {
		tables = append(tables, schema.Tables()...)
	}
	return append(tables, database.temporary.Tables()...)
}

// ResolveTable finds a table by possibly qualified name. Temporary tables
// shadow schema tables of the same name.
func (database *Database) ResolveTable(schemaName, name string) (*Table, error) {
	if schemaName == "" {
		if table, ok := database.temporary.Table(name); ok {
			return table, nil
		}
	}
	schema, err := database.Schema(schemaName)
	if err != nil {
		return nil, core.UnknownTable(qualifiedName(schemaName, name))
	}
	table, ok := schema.Table(name)
	if !ok {
		return nil, core.UnknownTable(qualifiedName(schemaName, name))
	}
	return table, nil
}

// referencing returns the foreign keys, from any table, that point at table.
func (database *Database) referencing(table *Table) []*ForeignDef {
	if database == nil {
		return nil
	}
	var fks []*ForeignDef
	for _, candidate := range database.Tables() {
		for _, fk := range candidate.ForeignKeys() {
			if fk.RefTable == table {
				fks = append(fks, fk)
			}
		}
	}
	return fks
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func qualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
