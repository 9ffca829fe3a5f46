package sql

import (
	"math"
	"strconv"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

func (parser *Parser) parseCreate() (Statement, error) {
	parser.next() // CREATE

	if parser.accept(Or) {
		if !parser.acceptWord("REPLACE") {
			return nil, parser.errorf("expected REPLACE after CREATE OR")
		}
		if parser.peek().Type != View {
			return nil, parser.errorf("expected VIEW after CREATE OR REPLACE")
		}
		return parser.parseCreateView(true)
	}

	switch token := parser.peek(); {
	case token.Type == View:
		return parser.parseCreateView(false)
	case token.Type == Unique:
		parser.next()
		if parser.peek().Type != Index {
			return nil, parser.errorf("expected INDEX after UNIQUE")
		}
		return parser.parseCreateIndex(true)
	case token.Type == Index:
		return parser.parseCreateIndex(false)
	case token.Type == Temporary:
		return parser.parseCreateTemporaryTable(false)
	case parser.isWord("GLOBAL"):
		parser.next()
		if parser.peek().Type != Temporary {
			return nil, parser.errorf("expected TEMPORARY after GLOBAL")
		}
		return parser.parseCreateTemporaryTable(true)
	case parser.isWord("CLUSTERED") || parser.isWord("NONCLUSTERED"):
		parser.next()
		return parser.parseCreateIndex(false)
	case token.Type == Table:
		return parser.parseCreateTable()
	}
	return nil, parser.errorf("expected TABLE, VIEW or INDEX after CREATE")
}

func (parser *Parser) parseIfNotExists() (bool, error) {
	if !parser.isWord("IF") {
		return false, nil
	}
	parser.next()
	if _, err := parser.expect(Not, "NOT after IF"); err != nil {
		return false, err
	}
	if _, err := parser.expect(Exists, "EXISTS after IF NOT"); err != nil {
		return false, err
	}
	return true, nil
}

func (parser *Parser) parseIfExists() (bool, error) {
	if !parser.isWord("IF") {
		return false, nil
	}
	parser.next()
	if _, err := parser.expect(Exists, "EXISTS after IF"); err != nil {
		return false, err
	}
	return true, nil
}

func (parser *Parser) parseCreateTable() (Statement, error) {
	parser.next() // TABLE
	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := CreateTableStatement{Table: name, IfNotExists: ifNotExists}
	if strings.HasPrefix(name.Name, "#") {
		return parser.parseHashTemporaryTable(name, ifNotExists)
	}

	if parser.accept(As) {
		statement.AsSelect, err = parser.parseQueryBody()
		return statement, err
	}

	if err := parser.parseTableElements(&statement); err != nil {
		return nil, err
	}
	parser.skipTableOptions()

	if parser.accept(As) {
		statement.AsSelect, err = parser.parseQueryBody()
		if err != nil {
			return nil, err
		}
	}
	return statement, nil
}

// parseTableElements parses ( column definitions and table constraints ).
func (parser *Parser) parseTableElements(statement *CreateTableStatement) error {
	if _, err := parser.expect(ParenOpen, "'(' after table name"); err != nil {
		return err
	}
	for {
		switch token := parser.peek(); {
		case token.Type == Primary:
			parser.next()
			if !parser.acceptWord("KEY") {
				return parser.errorf("expected KEY after PRIMARY")
			}
			parser.acceptWord("CLUSTERED")
			parser.acceptWord("NONCLUSTERED")
			columns, err := parser.parseIdentifierList()
			if err != nil {
				return err
			}
			statement.PrimaryKey = columns

		case token.Type == Constraint:
			parser.next()
			name, err := parser.parseIdentifier("constraint name")
			if err != nil {
				return err
			}
			if err := parser.parseTableConstraint(statement, name); err != nil {
				return err
			}

		case token.Type == Unique, token.Type == Foreign, token.Type == Index, parser.isWord("KEY"), parser.isWord("CHECK"):
			if err := parser.parseTableConstraint(statement, ""); err != nil {
				return err
			}

		default:
			column, err := parser.parseColumnSpec()
			if err != nil {
				return err
			}
			statement.Columns = append(statement.Columns, column)
		}

		if !parser.accept(Comma) {
			break
		}
	}
	if _, err := parser.expect(ParenClose, "')' after table definition"); err != nil {
		return err
	}
	return nil
}

func (parser *Parser) parseTableConstraint(statement *CreateTableStatement, name string) error {
	switch {
	case parser.accept(Primary):
		if !parser.acceptWord("KEY") {
			return parser.errorf("expected KEY after PRIMARY")
		}
		parser.acceptWord("CLUSTERED")
		parser.acceptWord("NONCLUSTERED")
		columns, err := parser.parseIdentifierList()
		if err != nil {
			return err
		}
		statement.PrimaryKey = columns

	case parser.accept(Unique):
		if !parser.acceptWord("KEY") {
			parser.accept(Index)
		}
		if name == "" && parser.peek().Type != ParenOpen {
			var err error
			if name, err = parser.parseIdentifier("index name"); err != nil {
				return err
			}
		}
		columns, err := parser.parseIdentifierList()
		if err != nil {
			return err
		}
		if name == "" {
			name = strings.Join(columns, "_")
		}
		statement.Indexes = append(statement.Indexes, IndexSpec{Name: name, Columns: columns, Unique: true})

	case parser.accept(Index), parser.acceptWord("KEY"):
		if name == "" && parser.peek().Type != ParenOpen {
			var err error
			if name, err = parser.parseIdentifier("index name"); err != nil {
				return err
			}
		}
		columns, err := parser.parseIdentifierList()
		if err != nil {
			return err
		}
		if name == "" {
			name = strings.Join(columns, "_")
		}
		statement.Indexes = append(statement.Indexes, IndexSpec{Name: name, Columns: columns})

	case parser.accept(Foreign):
		if !parser.acceptWord("KEY") {
			return parser.errorf("expected KEY after FOREIGN")
		}
		if name == "" && parser.peek().Type != ParenOpen {
			var err error
			if name, err = parser.parseIdentifier("foreign key name"); err != nil {
				return err
			}
		}
		columns, err := parser.parseIdentifierList()
		if err != nil {
			return err
		}
		foreign, err := parser.parseReferences(name, columns)
		if err != nil {
			return err
		}
		statement.ForeignKeys = append(statement.ForeignKeys, *foreign)

	case parser.acceptWord("CHECK"):
		// CHECK constraints are accepted and not enforced
		if parser.peek().Type != ParenOpen {
			return parser.errorf("expected '(' after CHECK")
		}
		return parser.skipParens()

	default:
		return parser.errorf("expected table constraint")
	}
	return nil
}

func (parser *Parser) parseReferences(name string, columns []string) (*ForeignKeySpec, error) {
	if _, err := parser.expect(References, "REFERENCES"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	foreign := &ForeignKeySpec{Name: name, Columns: columns, RefTable: table}
	if parser.peek().Type == ParenOpen {
		foreign.RefColumns, err = parser.parseIdentifierList()
		if err != nil {
			return nil, err
		}
	}
	// ON DELETE / ON UPDATE actions are accepted; referential checks always restrict
	for parser.peek().Type == On && (parser.peekAt(1).Type == Delete || parser.peekAt(1).Type == Update) {
		parser.next()
		parser.next()
		switch {
		case parser.acceptWord("CASCADE"), parser.acceptWord("RESTRICT"):
		case parser.accept(Set):
			if !parser.accept(Null) && !parser.accept(Default) {
				return nil, parser.errorf("expected NULL or DEFAULT after SET")
			}
		case parser.acceptWord("NO"):
			if !parser.acceptWord("ACTION") {
				return nil, parser.errorf("expected ACTION after NO")
			}
		default:
			return nil, parser.errorf("expected referential action")
		}
	}
	if foreign.Name == "" {
		foreign.Name = "FK_" + strings.Join(columns, "_")
	}
	return foreign, nil
}

// parseColumnSpec parses name type [constraints...]. SQL Server computed
// columns (name AS (expr) [PERSISTED]) have no type.
func (parser *Parser) parseColumnSpec() (ColumnSpec, error) {
	name, err := parser.parseIdentifier("column name")
	if err != nil {
		return ColumnSpec{}, err
	}
	column := ColumnSpec{Name: name, Nullable: true}

	if parser.peek().Type == As {
		parser.next()
		column.TypeName = "COMPUTED"
		column.Type = core.StringType
		if column.Computed, err = parser.parseComputedText(); err != nil {
			return ColumnSpec{}, err
		}
		column.Persisted = parser.acceptWord("PERSISTED")
		return column, parser.parseColumnConstraints(&column)
	}

	if err := parser.parseColumnType(&column); err != nil {
		return ColumnSpec{}, err
	}
	return column, parser.parseColumnConstraints(&column)
}

func (parser *Parser) parseColumnType(column *ColumnSpec) error {
	token := parser.peek()
	if token.Type != Identifier && token.Type != Set && token.Type != QuotedIdentifier {
		return parser.errorf("expected type for column %s", column.Name)
	}
	parser.next()
	typeName := strings.ToUpper(token.Value)

	// multi-word type names
	switch typeName {
	case "DOUBLE":
		parser.acceptWord("PRECISION")
	case "CHARACTER", "CHAR", "NATIONAL":
		if parser.acceptWord("VARYING") {
			typeName = "VARCHAR"
		}
		if typeName == "NATIONAL" {
			parser.acceptWord("CHARACTER")
			parser.acceptWord("CHAR")
			typeName = "NVARCHAR"
		}
	}

	dbType, ok := core.ParseDbType(typeName)
	if !ok {
		return parser.errorf("unknown type %s for column %s", typeName, column.Name)
	}
	column.TypeName = typeName
	column.Type = dbType

	if parser.accept(ParenOpen) {
		if dbType == core.EnumType || dbType == core.SetType {
			for {
				value, err := parser.expect(String, "quoted value in "+typeName)
				if err != nil {
					return err
				}
				column.EnumValues = append(column.EnumValues, value.Value)
				if !parser.accept(Comma) {
					break
				}
			}
		} else {
			size, err := parser.parseTypeSize()
			if err != nil {
				return err
			}
			column.Size = &size
			if parser.accept(Comma) {
				places, err := parser.parseTypeSize()
				if err != nil {
					return err
				}
				column.DecimalPlaces = &places
			}
		}
		if _, err := parser.expect(ParenClose, "')' after type arguments"); err != nil {
			return err
		}
	}

	// DECIMAL(p) has scale 0
	if dbType == core.DecimalType && column.Size != nil && column.DecimalPlaces == nil {
		zero := 0
		column.DecimalPlaces = &zero
	}

	parser.acceptWord("UNSIGNED")
	parser.acceptWord("SIGNED")
	parser.acceptWord("ZEROFILL")
	return nil
}

func (parser *Parser) parseTypeSize() (int, error) {
	token := parser.peek()
	if token.Type == Identifier && strings.EqualFold(token.Value, "MAX") {
		parser.next()
		return math.MaxInt32, nil
	}
	if token.Type != Int {
		return 0, parser.errorf("expected type size")
	}
	parser.next()
	size, err := strconv.Atoi(token.Value)
	if err != nil {
		return 0, parser.errorf("invalid type size %s", token.Value)
	}
	return size, nil
}

func (parser *Parser) parseColumnConstraints(column *ColumnSpec) error {
	for {
		switch token := parser.peek(); {
		case token.Type == Not:
			parser.next()
			if _, err := parser.expect(Null, "NULL after NOT"); err != nil {
				return err
			}
			column.Nullable = false
		case token.Type == Null:
			parser.next()
			column.Nullable = true
		case token.Type == Primary:
			parser.next()
			if !parser.acceptWord("KEY") {
				return parser.errorf("expected KEY after PRIMARY")
			}
			parser.acceptWord("CLUSTERED")
			parser.acceptWord("NONCLUSTERED")
			column.PrimaryKey = true
			column.Nullable = false
		case token.Type == Unique:
			parser.next()
			parser.acceptWord("KEY")
			column.Unique = true
		case parser.isWord("KEY"):
			parser.next()
			column.PrimaryKey = true
			column.Nullable = false
		case parser.isWord("AUTO_INCREMENT"), parser.isWord("AUTOINCREMENT"):
			parser.next()
			column.Identity = true
		case parser.isWord("IDENTITY"):
			parser.next()
			column.Identity = true
			if parser.peek().Type == ParenOpen {
				if err := parser.skipParens(); err != nil {
					return err
				}
			}
		case parser.isWord("GENERATED"):
			if err := parser.parseGenerated(column); err != nil {
				return err
			}
		case token.Type == As:
			parser.next()
			text, err := parser.parseComputedText()
			if err != nil {
				return err
			}
			column.Computed = text
			column.Persisted = parser.acceptWord("STORED") || parser.acceptWord("PERSISTED")
			parser.acceptWord("VIRTUAL")
		case token.Type == Default:
			parser.next()
			value, err := parser.parseUnaryExpr()
			if err != nil {
				return err
			}
			column.Default = value
		case token.Type == References:
			foreign, err := parser.parseReferences("", []string{column.Name})
			if err != nil {
				return err
			}
			column.References = foreign
		case token.Type == Constraint:
			parser.next()
			if _, err := parser.parseIdentifier("constraint name"); err != nil {
				return err
			}
		case parser.isWord("COLLATE"):
			parser.next()
			if _, err := parser.parseIdentifier("collation"); err != nil {
				return err
			}
		case parser.isWord("CHARACTER") && parser.peekAt(1).Type == Set, parser.isWord("CHARSET"):
			if parser.acceptWord("CHARACTER") {
				parser.next() // SET
			} else {
				parser.next() // CHARSET
			}
			if _, err := parser.parseIdentifier("character set"); err != nil {
				return err
			}
		case parser.isWord("COMMENT"):
			parser.next()
			if _, err := parser.expect(String, "comment text"); err != nil {
				return err
			}
		case parser.isWord("CHECK"):
			parser.next()
			if err := parser.skipParens(); err != nil {
				return err
			}
		case token.Type == On && parser.peekAt(1).Type == Update:
			// MySQL ON UPDATE CURRENT_TIMESTAMP
			parser.next()
			parser.next()
			if _, err := parser.parsePrimaryExpr(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// parseGenerated parses GENERATED {ALWAYS|BY DEFAULT} AS IDENTITY [(...)]
// and GENERATED ALWAYS AS (expr) [STORED|VIRTUAL].
func (parser *Parser) parseGenerated(column *ColumnSpec) error {
	parser.next() // GENERATED
	if !parser.acceptWord("ALWAYS") {
		if _, err := parser.expect(By, "ALWAYS or BY DEFAULT after GENERATED"); err != nil {
			return err
		}
		if _, err := parser.expect(Default, "DEFAULT after GENERATED BY"); err != nil {
			return err
		}
	}
	if _, err := parser.expect(As, "AS after GENERATED"); err != nil {
		return err
	}
	if parser.acceptWord("IDENTITY") {
		column.Identity = true
		if parser.peek().Type == ParenOpen {
			return parser.skipParens()
		}
		return nil
	}
	text, err := parser.parseComputedText()
	if err != nil {
		return err
	}
	column.Computed = text
	column.Persisted = parser.acceptWord("STORED") || parser.acceptWord("PERSISTED")
	parser.acceptWord("VIRTUAL")
	return nil
}

// parseComputedText parses ( expr ) and returns the source text between the parentheses.
func (parser *Parser) parseComputedText() (string, error) {
	if _, err := parser.expect(ParenOpen, "'(' before computed expression"); err != nil {
		return "", err
	}
	start := parser.peek().Pos
	if _, err := parser.parseExpr(); err != nil {
		return "", err
	}
	end := parser.peek().Pos
	if _, err := parser.expect(ParenClose, "')' after computed expression"); err != nil {
		return "", err
	}
	return strings.TrimSpace(parser.sql[start:end]), nil
}

// skipTableOptions accepts trailing MySQL table options such as ENGINE=InnoDB.
func (parser *Parser) skipTableOptions() {
	for {
		switch {
		case parser.isWord("ENGINE"), parser.isWord("CHARSET"), parser.isWord("COLLATE"), parser.isWord("AUTO_INCREMENT"), parser.isWord("COMMENT"):
			parser.next()
			parser.acceptOperator("=")
			parser.next()
		case parser.peek().Type == Default && (parser.isWordAt(1, "CHARSET") || parser.isWordAt(1, "CHARACTER")):
			parser.next()
			if parser.acceptWord("CHARACTER") {
				parser.accept(Set)
			} else {
				parser.next()
			}
			parser.acceptOperator("=")
			parser.next()
		default:
			return
		}
	}
}

func (parser *Parser) parseCreateTemporaryTable(global bool) (Statement, error) {
	parser.next() // TEMPORARY
	if _, err := parser.expect(Table, "TABLE after TEMPORARY"); err != nil {
		return nil, err
	}
	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := CreateTemporaryTableStatement{Table: name, Global: global, IfNotExists: ifNotExists}

	if parser.peek().Type == ParenOpen {
		// (col, col) AS SELECT or (col type, ...)
		if next := parser.peekAt(2).Type; next == Comma || next == ParenClose {
			statement.ColumnNames, err = parser.parseIdentifierList()
			if err != nil {
				return nil, err
			}
		} else {
			var table CreateTableStatement
			if err := parser.parseTableElements(&table); err != nil {
				return nil, err
			}
			statement.Columns = table.Columns
		}
	}
	parser.skipTableOptions()

	if parser.accept(As) {
		statement.AsSelect, err = parser.parseQueryBody()
		if err != nil {
			return nil, err
		}
	} else if parser.peek().Type == Select {
		statement.AsSelect, err = parser.parseQueryBody()
		if err != nil {
			return nil, err
		}
	}
	if statement.AsSelect == nil && len(statement.Columns) == 0 {
		return nil, parser.errorf("expected column definitions or AS SELECT for temporary table")
	}
	return statement, nil
}

// parseHashTemporaryTable handles the SQL Server form CREATE TABLE #name (...).
func (parser *Parser) parseHashTemporaryTable(name TableName, ifNotExists bool) (Statement, error) {
	if !parser.dialect.AllowsHashIdentifiers {
		return nil, parser.unsupported("#temp tables")
	}
	var table CreateTableStatement
	if err := parser.parseTableElements(&table); err != nil {
		return nil, err
	}
	return CreateTemporaryTableStatement{
		Table:       name,
		Global:      strings.HasPrefix(name.Name, "##"),
		IfNotExists: ifNotExists,
		Columns:     table.Columns,
	}, nil
}

func (parser *Parser) parseCreateView(orReplace bool) (Statement, error) {
	parser.next() // VIEW
	name, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := CreateViewStatement{View: name, OrReplace: orReplace}
	if parser.peek().Type == ParenOpen {
		statement.Columns, err = parser.parseIdentifierList()
		if err != nil {
			return nil, err
		}
	}
	if _, err := parser.expect(As, "AS after view name"); err != nil {
		return nil, err
	}
	start := parser.peek().Pos
	statement.Query, err = parser.parseQueryBody()
	if err != nil {
		return nil, err
	}
	statement.Text = parser.textFrom(start)
	return statement, nil
}

// textFrom returns the source text from offset up to the current token.
func (parser *Parser) textFrom(offset int) string {
	end := len(parser.sql)
	if token := parser.peek(); token.Type != EOF && token.Pos >= offset {
		end = token.Pos
	}
	if offset > end {
		return ""
	}
	return strings.TrimSpace(parser.sql[offset:end])
}

func (parser *Parser) parseCreateIndex(unique bool) (Statement, error) {
	parser.acceptWord("CLUSTERED")
	parser.acceptWord("NONCLUSTERED")
	if _, err := parser.expect(Index, "INDEX"); err != nil {
		return nil, err
	}
	name, err := parser.parseIdentifier("index name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(On, "ON after index name"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	columns, err := parser.parseIdentifierList()
	if err != nil {
		return nil, err
	}
	statement := CreateIndexStatement{Name: name, Table: table, Columns: columns, Unique: unique}
	if parser.acceptWord("INCLUDE") {
		statement.Include, err = parser.parseIdentifierList()
		if err != nil {
			return nil, err
		}
	}
	return statement, nil
}

func (parser *Parser) parseDrop() (Statement, error) {
	parser.next() // DROP
	temporary := parser.accept(Temporary)

	switch parser.next().Type {
	case Table:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		name, err := parser.parseTableName()
		if err != nil {
			return nil, err
		}
		return DropTableStatement{Table: name, IfExists: ifExists, Temporary: temporary}, nil

	case View:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		name, err := parser.parseTableName()
		if err != nil {
			return nil, err
		}
		return DropViewStatement{View: name, IfExists: ifExists}, nil

	case Index:
		ifExists, err := parser.parseIfExists()
		if err != nil {
			return nil, err
		}
		// DROP INDEX name ON t, DROP INDEX t.name, DROP INDEX name
		first, err := parser.parseTableName()
		if err != nil {
			return nil, err
		}
		statement := DropIndexStatement{Name: first.Name, IfExists: ifExists}
		if first.Schema != "" {
			statement.Table = TableName{Name: first.Schema}
		}
		if parser.accept(On) {
			statement.Table, err = parser.parseTableName()
			if err != nil {
				return nil, err
			}
		}
		return statement, nil
	}
	return nil, parser.errorf("expected TABLE, VIEW or INDEX after DROP")
}

func (parser *Parser) parseAlter() (Statement, error) {
	parser.next() // ALTER
	if _, err := parser.expect(Table, "TABLE after ALTER"); err != nil {
		return nil, err
	}
	name, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := AlterTableStatement{Table: name}

	switch {
	case parser.acceptWord("ADD"):
		parser.acceptWord("COLUMN")
		statement.Action = "ADD"
		statement.Column, err = parser.parseColumnSpec()
		if err != nil {
			return nil, err
		}
	case parser.accept(Drop):
		parser.acceptWord("COLUMN")
		statement.Action = "DROP"
		statement.ColumnName, err = parser.parseIdentifier("column name")
		if err != nil {
			return nil, err
		}
	default:
		return nil, parser.errorf("expected ADD or DROP after ALTER TABLE")
	}
	return statement, nil
}
