package sql

func (parser *Parser) parseInsert() (Statement, error) {
	parser.next() // INSERT
	parser.accept(Into)

	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := InsertStatement{Table: table}

	// a column list, unless the parenthesis opens a subquery
	if parser.peek().Type == ParenOpen && parser.peekAt(1).Type != Select && parser.peekAt(1).Type != With {
		statement.Columns, err = parser.parseIdentifierList()
		if err != nil {
			return nil, err
		}
	}

	switch parser.peek().Type {
	case Values:
		parser.next()
		for {
			row, err := parser.parseValuesRow()
			if err != nil {
				return nil, err
			}
			statement.Rows = append(statement.Rows, row)
			if !parser.accept(Comma) {
				break
			}
		}
	case Select, With, ParenOpen:
		statement.Select, err = parser.parseQueryBody()
		if err != nil {
			return nil, err
		}
	default:
		return nil, parser.errorf("expected VALUES or SELECT")
	}

	if parser.peek().Type == On && parser.isWordAt(1, "DUPLICATE") {
		if !parser.dialect.SupportsOnDuplicateKeyUpdate {
			return nil, parser.unsupported("ON DUPLICATE KEY UPDATE")
		}
		parser.next()
		parser.next()
		if !parser.acceptWord("KEY") {
			return nil, parser.errorf("expected KEY after ON DUPLICATE")
		}
		if _, err := parser.expect(Update, "UPDATE after ON DUPLICATE KEY"); err != nil {
			return nil, err
		}
		statement.OnDuplicate, err = parser.parseAssignments()
		if err != nil {
			return nil, err
		}
	}
	return statement, nil
}

func (parser *Parser) parseValuesRow() ([]Expr, error) {
	if _, err := parser.expect(ParenOpen, "'(' before VALUES row"); err != nil {
		return nil, err
	}
	var row []Expr
	if parser.accept(ParenClose) {
		return row, nil
	}
	for {
		if parser.accept(Default) {
			row = append(row, DefaultExpr{})
		} else {
			value, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, value)
		}
		if !parser.accept(Comma) {
			break
		}
	}
	if _, err := parser.expect(ParenClose, "',' or ')' in VALUES row"); err != nil {
		return nil, err
	}
	return row, nil
}

func (parser *Parser) parseAssignments() ([]Assignment, error) {
	var assignments []Assignment
	for {
		target, err := parser.parseColumnRef()
		if err != nil {
			return nil, err
		}
		column, ok := target.(ColumnRef)
		if !ok {
			return nil, parser.errorf("expected column in assignment")
		}
		if !parser.acceptOperator("=") {
			return nil, parser.errorf("expected '=' in assignment")
		}
		var value Expr
		if parser.accept(Default) {
			value = DefaultExpr{}
		} else if value, err = parser.parseExpr(); err != nil {
			return nil, err
		}
		assignments = append(assignments, Assignment{Column: column, Value: value})
		if !parser.accept(Comma) {
			return assignments, nil
		}
	}
}

// parseUpdate parses
//
//	UPDATE t [alias] SET ... [WHERE ...]
//	UPDATE t [alias] JOIN s ON ... SET ... [WHERE ...]
//	UPDATE a SET ... FROM t a JOIN s ON ... [WHERE ...]
func (parser *Parser) parseUpdate() (Statement, error) {
	parser.next() // UPDATE

	source, err := parser.parseTableSource()
	if err != nil {
		return nil, err
	}
	statement := UpdateStatement{Table: source, Target: source.Label()}

	statement.Joins, err = parser.parseJoins()
	if err != nil {
		return nil, err
	}

	if _, err := parser.expect(Set, "SET"); err != nil {
		return nil, err
	}
	statement.Set, err = parser.parseAssignments()
	if err != nil {
		return nil, err
	}

	if parser.accept(From) {
		if len(statement.Joins) > 0 {
			return nil, parser.errorf("UPDATE cannot have both JOIN and FROM")
		}
		from, err := parser.parseTableSource()
		if err != nil {
			return nil, err
		}
		statement.Table = from
		statement.Joins, err = parser.parseJoins()
		if err != nil {
			return nil, err
		}
	}

	if parser.accept(Where) {
		statement.Where, err = parser.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return statement, nil
}

// parseDelete parses
//
//	DELETE FROM t [alias] [WHERE ...]
//	DELETE t [WHERE ...]
//	DELETE a FROM t a JOIN s ON ... [WHERE ...]
func (parser *Parser) parseDelete() (Statement, error) {
	parser.next() // DELETE

	var statement DeleteStatement
	if parser.accept(From) {
		source, err := parser.parseTableSource()
		if err != nil {
			return nil, err
		}
		statement.Table = source
		statement.Target = source.Label()
	} else {
		target, err := parser.parseTableName()
		if err != nil {
			return nil, err
		}
		if parser.accept(From) {
			if !parser.dialect.SupportsDeleteTargetAlias {
				return nil, parser.unsupported("DELETE target FROM")
			}
			source, err := parser.parseTableSource()
			if err != nil {
				return nil, err
			}
			statement.Table = source
			statement.Target = target.Name
		} else {
			if !parser.dialect.SupportsDeleteWithoutFrom {
				return nil, parser.unsupported("DELETE without FROM")
			}
			source := TableSource{Table: target}
			source.Alias, err = parser.parseAlias(false)
			if err != nil {
				return nil, err
			}
			statement.Table = source
			statement.Target = source.Label()
		}
	}

	var err error
	statement.Joins, err = parser.parseJoins()
	if err != nil {
		return nil, err
	}

	if parser.accept(Where) {
		statement.Where, err = parser.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return statement, nil
}
