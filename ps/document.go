package ps

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// Document returns the table schema and rows keyed by column name. Virtual
// computed columns are left out; they are recomputed when the rows are loaded.
func (table *Table) Document() core.TableDocument {
	document := core.TableDocument{
		Table: table.Describe(),
		Rows:  make([]map[string]any, 0, len(table.rows)),
	}
	for _, row := range table.rows {
		values := make(map[string]any, len(table.columnOrder))
		for _, column := range table.columnOrder {
			if column.IsComputed() && !column.Persisted {
				continue
			}
			values[column.Name] = row[column.Index]
		}
		document.Rows = append(document.Rows, values)
	}
	return document
}

// ViewDocument returns the serialized form of a view.
func (schema *Schema) ViewDocument(view *View) core.ViewSchema {
	return core.ViewSchema{
		Schema:    schema.Name,
		Name:      view.Name,
		Query:     view.Text,
		Columns:   view.Columns,
		CreatedAt: view.CreatedAt,
	}
}

// DecodeTableDocument parses a table document keeping numbers exact.
func DecodeTableDocument(data []byte) (core.TableDocument, error) {
	var document core.TableDocument
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return document, fmt.Errorf("failed to decode table document: %w", err)
	}
	return document, nil
}

// LoadDocument creates the table described by document and loads its rows.
// Foreign keys are not created; call LoadForeignKeys once every referenced
// table exists.
func (schema *Schema) LoadDocument(document core.TableDocument) (*Table, error) {
	table, err := schema.CreateTable(document.Table.Name)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Table, error) {
		schema.removeTable(normalizeName(table.Name))
		return nil, err
	}

	for _, columnSchema := range document.Table.Columns {
		if _, err := table.AddColumn(ColumnFromSchema(columnSchema)); err != nil {
			return fail(fmt.Errorf("failed to add column '%s': %w", columnSchema.Name, err))
		}
	}
	if len(document.Table.PrimaryKey) > 0 {
		if err := table.SetPrimaryKey(document.Table.PrimaryKey...); err != nil {
			return fail(err)
		}
	}
	for _, index := range document.Table.Indexes {
		if _, err := table.CreateIndex(index.Name, index.Columns, index.Include, index.Unique); err != nil {
			return fail(fmt.Errorf("failed to create index '%s': %w", index.Name, err))
		}
	}

	for i, values := range document.Rows {
		row := make(Row, len(values))
		for name, value := range values {
			column, ok := table.Column(name)
			if !ok {
				return fail(core.UnknownColumn(name))
			}
			if text, isText := value.(string); isText && column.Type == core.BinaryType {
				decoded, err := base64.StdEncoding.DecodeString(text)
				if err != nil {
					return fail(fmt.Errorf("failed to decode binary value of '%s' in row %d: %w", name, i, err))
				}
				value = decoded
			}
			row[column.Index] = value
		}
		if _, err := table.Add(row); err != nil {
			return fail(fmt.Errorf("failed to load row %d of '%s': %w", i, table.Name, err))
		}
	}

	if document.Table.NextIdentity > table.NextIdentity {
		table.NextIdentity = document.Table.NextIdentity
	}
	return table, nil
}

// LoadForeignKeys creates the foreign keys recorded in document on its
// already loaded table.
func (schema *Schema) LoadForeignKeys(document core.TableDocument) error {
	table, ok := schema.Table(document.Table.Name)
	if !ok {
		return core.UnknownTable(document.Table.Name)
	}
	for _, fk := range document.Table.ForeignKeys {
		refSchema := schema
		if fk.RefSchema != "" {
			var err error
			if refSchema, err = schema.database.Schema(fk.RefSchema); err != nil {
				return err
			}
		}
		refTable, ok := refSchema.Table(fk.RefTable)
		if !ok {
			return core.UnknownTable(fk.RefTable)
		}
		if _, err := table.CreateForeignKey(fk.Name, fk.Columns, refTable, fk.RefColumns); err != nil {
			return err
		}
	}
	return nil
}

// LoadView parses and stores a serialized view.
func (schema *Schema) LoadView(document core.ViewSchema) error {
	statement, err := sql.Parse(document.Query, schema.database.Dialect)
	if err != nil {
		return fmt.Errorf("failed to parse view '%s': %w", document.Name, err)
	}
	query, ok := statement.(sql.QueryStatement)
	if !ok {
		return fmt.Errorf("view '%s' does not hold a query", document.Name)
	}
	return schema.CreateView(&View{
		Name:      document.Name,
		Columns:   document.Columns,
		Query:     query,
		Text:      document.Query,
		CreatedAt: document.CreatedAt,
	}, true)
}
