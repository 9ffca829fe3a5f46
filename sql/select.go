package sql

import (
	"strings"
)

func (parser *Parser) parseQuery() (Statement, error) {
	return parser.parseQueryBody()
}

// parseParenQuery parses ( query ).
func (parser *Parser) parseParenQuery() (QueryStatement, error) {
	if _, err := parser.expect(ParenOpen, "'(' before subquery"); err != nil {
		return nil, err
	}
	query, err := parser.parseQueryBody()
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(ParenClose, "')' after subquery"); err != nil {
		return nil, err
	}
	return query, nil
}

// parseQueryBody parses an optional WITH list followed by a SELECT or a
// UNION chain. ORDER BY and LIMIT after the last part of a chain belong to
// the whole union.
func (parser *Parser) parseQueryBody() (QueryStatement, error) {
	var ctes []CTE
	if parser.peek().Type == With {
		var err error
		ctes, err = parser.parseWith()
		if err != nil {
			return nil, err
		}
	}

	first, err := parser.parseUnionPart()
	if err != nil {
		return nil, err
	}
	if parser.peek().Type != Union {
		first.With = append(ctes, first.With...)
		return first, nil
	}

	union := UnionStatement{With: ctes, Parts: []SelectStatement{first}}
	for parser.accept(Union) {
		all := parser.accept(All)
		if !all {
			parser.accept(Distinct)
		}
		previous := &union.Parts[len(union.Parts)-1]
		if len(previous.OrderBy) > 0 || previous.Limit != nil {
			return nil, parser.errorf("ORDER BY or row limit before UNION requires parentheses")
		}
		part, err := parser.parseUnionPart()
		if err != nil {
			return nil, err
		}
		union.Parts = append(union.Parts, part)
		union.All = append(union.All, all)
	}

	last := &union.Parts[len(union.Parts)-1]
	union.OrderBy, last.OrderBy = last.OrderBy, nil
	if last.Limit != nil && last.Limit.Syntax != LimitSyntaxTop {
		union.Limit, last.Limit = last.Limit, nil
	}
	return union, nil
}

func (parser *Parser) parseUnionPart() (SelectStatement, error) {
	if parser.peek().Type == ParenOpen {
		query, err := parser.parseParenQuery()
		if err != nil {
			return SelectStatement{}, err
		}
		selectStatement, ok := query.(SelectStatement)
		if !ok {
			return SelectStatement{}, parser.errorf("nested UNION in parentheses is not supported")
		}
		return selectStatement, nil
	}
	return parser.parseSelect()
}

func (parser *Parser) parseWith() ([]CTE, error) {
	if !parser.dialect.SupportsWithCte {
		return nil, parser.unsupported("WITH")
	}
	parser.next() // WITH
	if parser.acceptWord("RECURSIVE") && !parser.dialect.SupportsWithRecursive {
		return nil, parser.unsupported("WITH RECURSIVE")
	}

	var ctes []CTE
	for {
		name, err := parser.parseIdentifier("CTE name")
		if err != nil {
			return nil, err
		}
		cte := CTE{Name: name}
		if parser.peek().Type == ParenOpen {
			cte.Columns, err = parser.parseIdentifierList()
			if err != nil {
				return nil, err
			}
		}
		if _, err := parser.expect(As, "AS after CTE name"); err != nil {
			return nil, err
		}
		cte.Query, err = parser.parseParenQuery()
		if err != nil {
			return nil, err
		}
		ctes = append(ctes, cte)
		if !parser.accept(Comma) {
			return ctes, nil
		}
	}
}

func (parser *Parser) parseSelect() (SelectStatement, error) {
	if _, err := parser.expect(Select, "SELECT"); err != nil {
		return SelectStatement{}, err
	}

	var statement SelectStatement
	if parser.accept(Distinct) {
		statement.Distinct = true
	} else {
		parser.accept(All)
	}

	if parser.peek().Type == Top {
		if !parser.dialect.SupportsTop {
			return SelectStatement{}, parser.unsupported("TOP")
		}
		parser.next()
		count, err := parser.parseTopCount()
		if err != nil {
			return SelectStatement{}, err
		}
		statement.Limit = &LimitClause{Count: count, Syntax: LimitSyntaxTop}
	}

	items, err := parser.parseSelectItems()
	if err != nil {
		return SelectStatement{}, err
	}
	statement.Items = items

	if parser.accept(From) {
		source, err := parser.parseTableSource()
		if err != nil {
			return SelectStatement{}, err
		}
		statement.From = &source
		statement.Joins, err = parser.parseJoins()
		if err != nil {
			return SelectStatement{}, err
		}
	}

	if parser.accept(Where) {
		statement.Where, err = parser.parseExpr()
		if err != nil {
			return SelectStatement{}, err
		}
	}

	if parser.accept(Group) {
		if _, err := parser.expect(By, "BY after GROUP"); err != nil {
			return SelectStatement{}, err
		}
		for {
			expr, err := parser.parseExpr()
			if err != nil {
				return SelectStatement{}, err
			}
			statement.GroupBy = append(statement.GroupBy, expr)
			if !parser.accept(Comma) {
				break
			}
		}
	}

	if parser.accept(Having) {
		statement.Having, err = parser.parseExpr()
		if err != nil {
			return SelectStatement{}, err
		}
	}

	if parser.accept(Order) {
		if _, err := parser.expect(By, "BY after ORDER"); err != nil {
			return SelectStatement{}, err
		}
		statement.OrderBy, err = parser.parseOrderItems()
		if err != nil {
			return SelectStatement{}, err
		}
	}

	limit, err := parser.parsePagination(len(statement.OrderBy) > 0)
	if err != nil {
		return SelectStatement{}, err
	}
	if limit != nil {
		if statement.Limit != nil {
			return SelectStatement{}, parser.errorf("TOP cannot be combined with another row limit")
		}
		statement.Limit = limit
	}

	// FOR UPDATE is accepted and ignored
	if parser.isWord("FOR") && parser.peekAt(1).Type == Update {
		parser.next()
		parser.next()
	}

	return statement, nil
}

func (parser *Parser) parseTopCount() (Expr, error) {
	if parser.accept(ParenOpen) {
		count, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')' after TOP"); err != nil {
			return nil, err
		}
		return count, nil
	}
	return parser.parsePrimaryExpr()
}

// parsePagination parses the trailing LIMIT, OFFSET ... FETCH or FETCH FIRST clause.
func (parser *Parser) parsePagination(hasOrderBy bool) (*LimitClause, error) {
	switch parser.peek().Type {
	case Limit:
		if !parser.dialect.SupportsLimitOffset {
			return nil, parser.unsupported("LIMIT")
		}
		parser.next()
		first, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		limit := &LimitClause{Count: first, Syntax: LimitSyntaxLimit}
		if parser.accept(Comma) {
			// LIMIT offset, count
			count, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			limit.Offset, limit.Count = first, count
		} else if parser.accept(Offset) {
			limit.Offset, err = parser.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		return limit, nil

	case Offset:
		if !parser.dialect.SupportsOffsetFetch {
			return nil, parser.unsupported("OFFSET/FETCH")
		}
		if parser.dialect.RequiresOrderByForOffsetFetch && !hasOrderBy {
			return nil, parser.errorf("OFFSET/FETCH requires ORDER BY")
		}
		parser.next()
		offset, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		if !parser.acceptWord("ROWS") {
			parser.acceptWord("ROW")
		}
		limit := &LimitClause{Offset: offset, Syntax: LimitSyntaxFetch}
		if parser.peek().Type == Fetch {
			limit.Count, err = parser.parseFetchCount()
			if err != nil {
				return nil, err
			}
		}
		return limit, nil

	case Fetch:
		if !parser.dialect.SupportsFetchFirst {
			if parser.dialect.SupportsOffsetFetch {
				return nil, parser.errorf("FETCH requires a preceding OFFSET clause")
			}
			return nil, parser.unsupported("FETCH FIRST")
		}
		count, err := parser.parseFetchCount()
		if err != nil {
			return nil, err
		}
		return &LimitClause{Count: count, Syntax: LimitSyntaxFetch}, nil
	}
	return nil, nil
}

// parseFetchCount parses FETCH {FIRST|NEXT} n {ROW|ROWS} ONLY.
func (parser *Parser) parseFetchCount() (Expr, error) {
	parser.next() // FETCH
	if !parser.acceptWord("FIRST") && !parser.acceptWord("NEXT") {
		return nil, parser.errorf("expected FIRST or NEXT after FETCH")
	}
	var count Expr = Literal{Value: int64(1)}
	if !parser.isWord("ROW") && !parser.isWord("ROWS") {
		var err error
		count, err = parser.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if !parser.acceptWord("ROWS") && !parser.acceptWord("ROW") {
		return nil, parser.errorf("expected ROWS after FETCH count")
	}
	if !parser.acceptWord("ONLY") {
		return nil, parser.errorf("expected ONLY after FETCH ... ROWS")
	}
	return count, nil
}

func (parser *Parser) parseSelectItems() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item := SelectItem{}
		if parser.peek().Type == Wildcard {
			parser.next()
			item.Expr = StarExpr{}
		} else {
			expr, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			item.Expr = expr
			alias, err := parser.parseAlias(true)
			if err != nil {
				return nil, err
			}
			item.Alias = alias
		}
		items = append(items, item)
		if !parser.accept(Comma) {
			return items, nil
		}
	}
}

// parseAlias parses [AS] alias. String literals are accepted as projection aliases.
func (parser *Parser) parseAlias(allowString bool) (string, error) {
	if parser.accept(As) {
		token := parser.peek()
		if token.Type == Identifier || token.Type == QuotedIdentifier || (allowString && token.Type == String) {
			parser.next()
			return token.Value, nil
		}
		return "", parser.errorf("expected alias after AS")
	}
	token := parser.peek()
	switch {
	case token.Type == QuotedIdentifier:
		parser.next()
		return token.Value, nil
	case token.Type == String && allowString:
		parser.next()
		return token.Value, nil
	case token.Type == Identifier && !isClauseWord(token.Value):
		parser.next()
		return token.Value, nil
	}
	return "", nil
}

// isClauseWord lists the non-reserved words that may follow a source or
// projection and therefore cannot be an implicit alias.
func isClauseWord(word string) bool {
	switch strings.ToUpper(word) {
	case "USE", "FORCE", "IGNORE", "FOR", "ROWS", "ROW", "ONLY", "NEXT", "FIRST", "OUTPUT", "OUT", "SEPARATOR", "NULLS", "INCLUDE":
		return true
	}
	return false
}

func (parser *Parser) parseTableSource() (TableSource, error) {
	var source TableSource
	if parser.peek().Type == ParenOpen {
		query, err := parser.parseParenQuery()
		if err != nil {
			return TableSource{}, err
		}
		source.Subquery = query
	} else {
		name, err := parser.parseTableName()
		if err != nil {
			return TableSource{}, err
		}
		source.Table = name
	}

	alias, err := parser.parseAlias(false)
	if err != nil {
		return TableSource{}, err
	}
	source.Alias = alias
	if source.Subquery != nil && source.Alias == "" {
		return TableSource{}, parser.errorf("derived table requires an alias")
	}

	if err := parser.skipTableHints(); err != nil {
		return TableSource{}, err
	}
	return source, nil
}

// skipTableHints accepts MySQL index hints and SQL Server table hints.
// Hints do not change results.
func (parser *Parser) skipTableHints() error {
	for parser.isWord("USE") || parser.isWord("FORCE") || parser.isWord("IGNORE") {
		if parser.peekAt(1).Type != Index && !parser.isWordAt(1, "KEY") {
			return nil
		}
		if !parser.dialect.SupportsMySqlIndexHints {
			return parser.unsupported("index hints")
		}
		parser.next()
		parser.next()
		if parser.isWord("FOR") {
			parser.next()
			switch {
			case parser.accept(Join):
			case parser.accept(Order), parser.accept(Group):
				if _, err := parser.expect(By, "BY in index hint"); err != nil {
					return err
				}
			default:
				return parser.errorf("expected JOIN, ORDER BY or GROUP BY in index hint")
			}
		}
		if parser.peek().Type != ParenOpen {
			return parser.errorf("expected '(' in index hint")
		}
		if err := parser.skipParens(); err != nil {
			return err
		}
	}

	if parser.peek().Type == With && parser.peekAt(1).Type == ParenOpen {
		if !parser.dialect.SupportsSqlServerTableHints {
			return parser.unsupported("table hints")
		}
		parser.next()
		return parser.skipParens()
	}
	return nil
}

func (parser *Parser) skipParens() error {
	depth := 0
	for {
		token := parser.next()
		switch token.Type {
		case ParenOpen:
			depth++
		case ParenClose:
			depth--
			if depth == 0 {
				return nil
			}
		case EOF:
			return parser.errorf("expected ')'")
		}
	}
}

func (parser *Parser) parseJoins() ([]JoinClause, error) {
	var joins []JoinClause
	for {
		var joinType JoinType
		switch token := parser.peek(); token.Type {
		case Comma:
			parser.next()
			joinType = CrossJoin
		case Join:
			parser.next()
			joinType = InnerJoin
		case Inner:
			parser.next()
			if _, err := parser.expect(Join, "JOIN after INNER"); err != nil {
				return nil, err
			}
			joinType = InnerJoin
		case Left, Right:
			if parser.peekAt(1).Type == ParenOpen {
				return joins, nil
			}
			parser.next()
			parser.accept(Outer)
			if _, err := parser.expect(Join, "JOIN"); err != nil {
				return nil, err
			}
			joinType = LeftJoin
			if token.Type == Right {
				joinType = RightJoin
			}
		case Cross:
			parser.next()
			if _, err := parser.expect(Join, "JOIN after CROSS"); err != nil {
				return nil, err
			}
			joinType = CrossJoin
		case Full:
			return nil, parser.errorf("FULL OUTER JOIN is not supported")
		default:
			return joins, nil
		}

		source, err := parser.parseTableSource()
		if err != nil {
			return nil, err
		}
		join := JoinClause{Type: joinType, Source: source}
		if joinType != CrossJoin {
			if _, err := parser.expect(On, "ON after JOIN source"); err != nil {
				return nil, err
			}
			join.On, err = parser.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		joins = append(joins, join)
	}
}
