package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

const (
	defaultStringSize    = 255
	defaultDecimalPlaces = 2
)

// tableDefinition is what CREATE TABLE and CREATE TEMPORARY TABLE have in common.
type tableDefinition struct {
	name        string
	ifNotExists bool
	columns     []sql.ColumnSpec
	columnNames []string
	primaryKey  []string
	indexes     []sql.IndexSpec
	foreignKeys []sql.ForeignKeySpec
	asSelect    sql.QueryStatement
}

func (engine *Engine) executeCreateTableStatement(ctx *execContext, statement sql.CreateTableStatement) (CommitResult, error) {
	schema := engine.database.DefaultSchema()
	if statement.Table.Schema != "" {
		schema = engine.database.CreateSchema(statement.Table.Schema)
	}
	return engine.createTable(ctx, schema, tableDefinition{
		name:        statement.Table.Name,
		ifNotExists: statement.IfNotExists,
		columns:     statement.Columns,
		primaryKey:  statement.PrimaryKey,
		indexes:     statement.Indexes,
		foreignKeys: statement.ForeignKeys,
		asSelect:    statement.AsSelect,
	})
}

func (engine *Engine) executeCreateTemporaryTableStatement(ctx *execContext, statement sql.CreateTemporaryTableStatement) (CommitResult, error) {
	return engine.createTable(ctx, engine.database.Temporary(), tableDefinition{
		name:        statement.Table.Name,
		ifNotExists: statement.IfNotExists,
		columns:     statement.Columns,
		columnNames: statement.ColumnNames,
		asSelect:    statement.AsSelect,
	})
}

func (engine *Engine) createTable(ctx *execContext, schema *ps.Schema, definition tableDefinition) (CommitResult, error) {
	startTime := time.Now()

	if _, exists := schema.Table(definition.name); exists && definition.ifNotExists {
		return CommitResult{
			Message:          fmt.Sprintf("table '%s' already exists", definition.name),
			ExecutionTimeSec: time.Since(startTime).Seconds(),
		}, nil
	}

	var source *relation
	if definition.asSelect != nil {
		rel, err := ctx.executeQuery(definition.asSelect, nil)
		if err != nil {
			return CommitResult{}, err
		}
		if len(definition.columnNames) > 0 && len(definition.columnNames) != len(rel.columns) {
			return CommitResult{}, core.ColumnCountMismatch(1)
		}
		source = rel
	}

	table, err := schema.CreateTable(definition.name)
	if err != nil {
		return CommitResult{}, err
	}
	if err := engine.defineTable(ctx, table, definition, source); err != nil {
		if dropErr := schema.DropTable(definition.name); dropErr != nil {
			return CommitResult{}, fmt.Errorf("failed to drop incomplete table '%s': %w", definition.name, dropErr)
		}
		return CommitResult{}, err
	}

	written := 0
	if source != nil {
		written = len(source.rows)
	}
	return CommitResult{
		TablesCreated:    1,
		RecordsWritten:   written,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1 + written,
	}, nil
}

func (engine *Engine) defineTable(ctx *execContext, table *ps.Table, definition tableDefinition, source *relation) error {
	if source != nil {
		return defineFromRelation(table, source, definition.columnNames)
	}

	primaryKey := definition.primaryKey
	for _, spec := range definition.columns {
		def, err := ctx.columnDef(spec)
		if err != nil {
			return err
		}
		if _, err := table.AddColumn(def); err != nil {
			return err
		}
		if spec.PrimaryKey && len(definition.primaryKey) == 0 {
			primaryKey = append(primaryKey, spec.Name)
		}
	}
	if len(primaryKey) > 0 {
		if err := table.SetPrimaryKey(primaryKey...); err != nil {
			return err
		}
	}

	for _, spec := range definition.columns {
		if spec.Unique {
			if _, err := table.CreateIndex(spec.Name, []string{spec.Name}, nil, true); err != nil {
				return err
			}
		}
	}
	for _, spec := range definition.indexes {
		name := spec.Name
		if name == "" {
			name = indexName(spec.Columns)
		}
		if _, err := table.CreateIndex(name, spec.Columns, nil, spec.Unique); err != nil {
			return err
		}
	}

	foreignKeys := definition.foreignKeys
	for _, spec := range definition.columns {
		if spec.References != nil {
			fk := *spec.References
			if len(fk.Columns) == 0 {
				fk.Columns = []string{spec.Name}
			}
			foreignKeys = append(foreignKeys, fk)
		}
	}
	for _, spec := range foreignKeys {
		if err := engine.addForeignKey(table, spec); err != nil {
			return err
		}
	}
	return nil
}

func (engine *Engine) addForeignKey(table *ps.Table, spec sql.ForeignKeySpec) error {
	refTable, err := engine.database.ResolveTable(spec.RefTable.Schema, spec.RefTable.Name)
	if err != nil {
		return err
	}
	refColumns := spec.RefColumns
	if len(refColumns) == 0 {
		for _, ordinal := range refTable.PrimaryKey() {
			refColumns = append(refColumns, refTable.Columns()[ordinal].Name)
		}
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("FK_%s_%s", table.Name, strings.Join(spec.Columns, "_"))
	}
	_, err = table.CreateForeignKey(name, spec.Columns, refTable, refColumns)
	return err
}

func indexName(columns []string) string {
	return "IX_" + strings.Join(columns, "_")
}

// columnDef turns a parsed column definition into a storage column. String
// columns without a size get 255 and decimals without a scale get 2.
func (ctx *execContext) columnDef(spec sql.ColumnSpec) (ps.ColumnDef, error) {
	def := ps.ColumnDef{
		Name:          spec.Name,
		Type:          spec.Type,
		Nullable:      spec.Nullable && !spec.PrimaryKey,
		Size:          spec.Size,
		DecimalPlaces: spec.DecimalPlaces,
		Identity:      spec.Identity,
		EnumValues:    spec.EnumValues,
		Computed:      spec.Computed,
		Persisted:     spec.Persisted,
	}
	if def.Type.RequiresSize() && def.Size == nil {
		size := defaultStringSize
		def.Size = &size
	}
	if def.Type.RequiresDecimalPlaces() && def.DecimalPlaces == nil {
		places := defaultDecimalPlaces
		def.DecimalPlaces = &places
	}
	if spec.Default != nil {
		value, err := ctx.eval(spec.Default, nil)
		if err != nil {
			return ps.ColumnDef{}, fmt.Errorf("invalid default for column '%s': %w", spec.Name, err)
		}
		def.DefaultValue = value
	}
	return def, nil
}

// defineFromRelation creates the columns of a CREATE TABLE ... AS SELECT and
// copies the rows in.
func defineFromRelation(table *ps.Table, source *relation, names []string) error {
	for i, column := range source.columns {
		name := column.label()
		if i < len(names) {
			name = names[i]
		}
		def := ps.ColumnDef{Name: name, Type: column.Type, Nullable: true}
		if def.Type == core.EnumType || def.Type == core.SetType {
			def.Type = core.StringType
		}
		if def.Type.RequiresSize() {
			size := defaultStringSize
			for _, row := range source.rows {
				size = max(size, utf8.RuneCountInString(ps.ToText(row[i])))
			}
			def.Size = &size
		}
		if def.Type.RequiresDecimalPlaces() {
			places := defaultDecimalPlaces
			for _, row := range source.rows {
				if number, ok := row[i].(float64); ok {
					places = max(places, scaleOf(number))
				}
			}
			def.DecimalPlaces = &places
		}
		if _, err := table.AddColumn(def); err != nil {
			return err
		}
	}
	for _, values := range source.rows {
		row := make(ps.Row, len(values))
		for i, value := range values {
			row[i] = value
		}
		if _, err := table.Add(row); err != nil {
			return err
		}
	}
	return nil
}

func scaleOf(number float64) int {
	text := strconv.FormatFloat(number, 'f', -1, 64)
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		return len(text) - dot - 1
	}
	return 0
}

func (engine *Engine) executeCreateViewStatement(ctx *execContext, statement sql.CreateViewStatement) (CommitResult, error) {
	startTime := time.Now()

	schema := engine.database.DefaultSchema()
	if statement.View.Schema != "" {
		schema = engine.database.CreateSchema(statement.View.Schema)
	}

	rel, err := ctx.executeQuery(statement.Query, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to validate view '%s': %w", statement.View.Name, err)
	}
	if len(statement.Columns) > 0 && len(statement.Columns) != len(rel.columns) {
		return CommitResult{}, fmt.Errorf("view's SELECT and view's field list have different column counts")
	}

	view := &ps.View{
		Name:      statement.View.Name,
		Columns:   statement.Columns,
		Query:     statement.Query,
		Text:      statement.Text,
		CreatedAt: time.Now(),
	}
	if err := schema.CreateView(view, statement.OrReplace); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Message:          fmt.Sprintf("view '%s' created", view.Name),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeDropTableStatement(statement sql.DropTableStatement) (CommitResult, error) {
	startTime := time.Now()

	var table *ps.Table
	if statement.Temporary {
		if found, ok := engine.database.Temporary().Table(statement.Table.Name); ok {
			table = found
		}
	} else if found, err := engine.database.ResolveTable(statement.Table.Schema, statement.Table.Name); err == nil {
		table = found
	}
	if table == nil {
		if statement.IfExists {
			return CommitResult{ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
		}
		return CommitResult{}, core.UnknownTable(statement.Table.String())
	}

	if err := table.Schema().DropTable(table.Name); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		TablesDeleted:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeDropViewStatement(statement sql.DropViewStatement) (CommitResult, error) {
	startTime := time.Now()

	schema, err := engine.database.Schema(statement.View.Schema)
	if err == nil {
		err = schema.DropView(statement.View.Name)
	}
	if err != nil {
		if statement.IfExists {
			return CommitResult{ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
		}
		return CommitResult{}, core.UnknownTable(statement.View.String())
	}

	return CommitResult{
		Message:          fmt.Sprintf("view '%s' dropped", statement.View.Name),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeCreateIndexStatement(statement sql.CreateIndexStatement) (CommitResult, error) {
	startTime := time.Now()

	table, err := engine.database.ResolveTable(statement.Table.Schema, statement.Table.Name)
	if err != nil {
		return CommitResult{}, err
	}
	name := statement.Name
	if name == "" {
		name = indexName(statement.Columns)
	}
	if _, err := table.CreateIndex(name, statement.Columns, statement.Include, statement.Unique); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Message:          fmt.Sprintf("index '%s' created", name),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     table.Count(),
	}, nil
}

func (engine *Engine) executeDropIndexStatement(statement sql.DropIndexStatement) (CommitResult, error) {
	startTime := time.Now()

	var candidates []*ps.Table
	if statement.Table.Name != "" {
		table, err := engine.database.ResolveTable(statement.Table.Schema, statement.Table.Name)
		if err != nil {
			return CommitResult{}, err
		}
		candidates = append(candidates, table)
	} else {
		candidates = engine.database.Tables()
	}

	for _, table := range candidates {
		if _, ok := table.Index(statement.Name); ok {
			if err := table.DropIndex(statement.Name); err != nil {
				return CommitResult{}, err
			}
			return CommitResult{
				Message:          fmt.Sprintf("index '%s' dropped", statement.Name),
				ExecutionTimeSec: time.Since(startTime).Seconds(),
				ExecutionOps:     1,
			}, nil
		}
	}
	if statement.IfExists {
		return CommitResult{ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
	}
	return CommitResult{}, fmt.Errorf("can't drop index '%s'; check that it exists", statement.Name)
}

func (engine *Engine) executeAlterTableStatement(ctx *execContext, statement sql.AlterTableStatement) (CommitResult, error) {
	startTime := time.Now()

	table, err := engine.database.ResolveTable(statement.Table.Schema, statement.Table.Name)
	if err != nil {
		return CommitResult{}, err
	}

	switch strings.ToUpper(statement.Action) {
	case "ADD":
		def, err := ctx.columnDef(statement.Column)
		if err != nil {
			return CommitResult{}, err
		}
		if _, err := table.AddColumn(def); err != nil {
			return CommitResult{}, err
		}
		if statement.Column.Unique {
			if _, err := table.CreateIndex(def.Name, []string{def.Name}, nil, true); err != nil {
				return CommitResult{}, err
			}
		}
	case "DROP":
		if err := table.DropColumn(statement.ColumnName); err != nil {
			return CommitResult{}, err
		}
	default:
		return CommitResult{}, fmt.Errorf("unsupported ALTER TABLE action: %s", statement.Action)
	}

	return CommitResult{
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}
