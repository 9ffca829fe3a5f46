package sql

import (
	"strconv"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

// Precedence, loosest first: OR, AND, NOT, comparison/IS/IN/BETWEEN/LIKE,
// additive and concatenation, multiplicative, unary minus, primary.

func (parser *Parser) parseExpr() (Expr, error) {
	return parser.parseOrExpr()
}

func (parser *Parser) parseOrExpr() (Expr, error) {
	left, err := parser.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for parser.peek().Type == Or || (parser.isOperator("||") && parser.logicalPipes()) {
		parser.next()
		right, err := parser.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: core.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (parser *Parser) parseAndExpr() (Expr, error) {
	left, err := parser.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for parser.peek().Type == And || parser.isOperator("&&") {
		parser.next()
		right, err := parser.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: core.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (parser *Parser) parseNotExpr() (Expr, error) {
	if parser.peek().Type == Not && parser.peekAt(1).Type != Exists {
		parser.next()
		operand, err := parser.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return parser.parseComparisonExpr()
}

func (parser *Parser) parseComparisonExpr() (Expr, error) {
	if parser.peek().Type == Exists || (parser.peek().Type == Not && parser.peekAt(1).Type == Exists) {
		not := parser.accept(Not)
		parser.next()
		query, err := parser.parseParenQuery()
		if err != nil {
			return nil, err
		}
		return ExistsExpr{Query: query, Not: not}, nil
	}

	left, err := parser.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}

	for {
		token := parser.peek()
		switch {
		case token.Type == Is:
			parser.next()
			not := parser.accept(Not)
			if _, err := parser.expect(Null, "NULL after IS"); err != nil {
				return nil, err
			}
			left = IsNullExpr{Operand: left, Not: not}

		case token.Type == Not && (parser.peekAt(1).Type == In || parser.peekAt(1).Type == Like || parser.peekAt(1).Type == Between):
			parser.next()
			left, err = parser.parsePredicateSuffix(left, true)
			if err != nil {
				return nil, err
			}

		case token.Type == In || token.Type == Like || token.Type == Between:
			left, err = parser.parsePredicateSuffix(left, false)
			if err != nil {
				return nil, err
			}

		case token.Type == Operator && isComparisonText(token.Value):
			op, ok := parser.dialect.TryMapBinaryOperator(token.Value)
			if !ok || (op == core.OpNullSafeEq && !parser.dialect.SupportsNullSafeEq) {
				return nil, parser.unsupported("operator " + token.Value)
			}
			parser.next()
			right, err := parser.parseAdditiveExpr()
			if err != nil {
				return nil, err
			}
			left = BinaryExpr{Op: op, Left: left, Right: right}

		default:
			return left, nil
		}
	}
}

func (parser *Parser) parsePredicateSuffix(left Expr, not bool) (Expr, error) {
	switch parser.next().Type {
	case In:
		if _, err := parser.expect(ParenOpen, "'(' after IN"); err != nil {
			return nil, err
		}
		if parser.peek().Type == Select || parser.peek().Type == With {
			query, err := parser.parseQueryBody()
			if err != nil {
				return nil, err
			}
			if _, err := parser.expect(ParenClose, "')' after IN subquery"); err != nil {
				return nil, err
			}
			return InExpr{Operand: left, Subquery: query, Not: not}, nil
		}
		var list []Expr
		for {
			item, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, item)
			if !parser.accept(Comma) {
				break
			}
		}
		if _, err := parser.expect(ParenClose, "',' or ')' in IN list"); err != nil {
			return nil, err
		}
		return InExpr{Operand: left, List: list, Not: not}, nil

	case Like:
		pattern, err := parser.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		return LikeExpr{Operand: left, Pattern: pattern, Not: not}, nil

	default: // BETWEEN
		low, err := parser.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(And, "AND in BETWEEN"); err != nil {
			return nil, err
		}
		high, err := parser.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		return BetweenExpr{Operand: left, Low: low, High: high, Not: not}, nil
	}
}

func (parser *Parser) parseAdditiveExpr() (Expr, error) {
	left, err := parser.parseMultiplicativeExpr()
	if err != nil {
		return nil, err
	}
	for {
		var op core.BinaryOperator
		switch {
		case parser.isOperator("+"):
			op = core.OpAdd
		case parser.isOperator("-"):
			op = core.OpSub
		case parser.isOperator("||") && !parser.logicalPipes():
			op = core.OpConcat
		default:
			return left, nil
		}
		parser.next()
		right, err := parser.parseMultiplicativeExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (parser *Parser) parseMultiplicativeExpr() (Expr, error) {
	left, err := parser.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		var op core.BinaryOperator
		switch {
		case parser.peek().Type == Wildcard:
			op = core.OpMul
		case parser.isOperator("/"):
			op = core.OpDiv
		case parser.isOperator("%"):
			op = core.OpMod
		default:
			return left, nil
		}
		parser.next()
		right, err := parser.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (parser *Parser) parseUnaryExpr() (Expr, error) {
	if parser.isOperator("-") {
		parser.next()
		operand, err := parser.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		switch lit := operand.(type) {
		case Literal:
			switch v := lit.Value.(type) {
			case int64:
				return Literal{Value: -v}, nil
			case float64:
				return Literal{Value: -v}, nil
			}
		}
		return UnaryExpr{Op: "-", Operand: operand}, nil
	}
	if parser.isOperator("+") {
		parser.next()
		return parser.parseUnaryExpr()
	}
	return parser.parsePostfixExpr()
}

// parsePostfixExpr handles the JSON arrow operators, which bind tighter than arithmetic.
func (parser *Parser) parsePostfixExpr() (Expr, error) {
	left, err := parser.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for parser.isOperator("->") || parser.isOperator("->>") {
		if !parser.dialect.SupportsJsonArrowOperators {
			return nil, parser.unsupported("JSON arrow operator")
		}
		op := core.OpJsonExtract
		if parser.next().Value == "->>" {
			op = core.OpJsonExtractText
		}
		right, err := parser.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (parser *Parser) parsePrimaryExpr() (Expr, error) {
	token := parser.peek()
	switch token.Type {
	case Int:
		parser.next()
		value, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(token.Value, 64)
			if ferr != nil {
				return nil, parser.errorf("invalid number %s", token.Value)
			}
			return Literal{Value: f}, nil
		}
		return Literal{Value: value}, nil
	case Float:
		parser.next()
		value, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return nil, parser.errorf("invalid number %s", token.Value)
		}
		return Literal{Value: value}, nil
	case String:
		parser.next()
		return Literal{Value: token.Value}, nil
	case Null:
		parser.next()
		return Literal{Value: nil}, nil
	case True:
		parser.next()
		return Literal{Value: true}, nil
	case False:
		parser.next()
		return Literal{Value: false}, nil
	case Parameter:
		parser.next()
		param := Param{Name: NormalizeParamName(token.Value)}
		if param.Name == "" {
			parser.params++
			param.Position = parser.params
		}
		return param, nil
	case ParenOpen:
		if next := parser.peekAt(1).Type; next == Select || next == With {
			query, err := parser.parseParenQuery()
			if err != nil {
				return nil, err
			}
			return SubqueryExpr{Query: query}, nil
		}
		parser.next()
		inner, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case Case:
		return parser.parseCaseExpr()
	case Cast:
		return parser.parseCastExpr()
	case Wildcard:
		parser.next()
		return StarExpr{}, nil
	case Identifier, QuotedIdentifier:
		if token.Type == Identifier && parser.peekAt(1).Type == ParenOpen {
			return parser.parseFunctionCall()
		}
		return parser.parseColumnRef()
	case Left, Right, Insert, Values:
		// LEFT(s, n), RIGHT(s, n), INSERT(...), VALUES(col) are functions in this position
		if parser.peekAt(1).Type == ParenOpen {
			return parser.parseFunctionCall()
		}
	}
	return nil, parser.errorf("unexpected token %s", token)
}

func (parser *Parser) parseColumnRef() (Expr, error) {
	first := parser.next().Value
	if parser.peek().Type != Dot {
		if strings.EqualFold(first, "CURRENT_TIMESTAMP") || strings.EqualFold(first, "CURRENT_USER") ||
			strings.EqualFold(first, "CURRENT_DATE") || strings.EqualFold(first, "SYSDATE") {
			return FuncCall{Name: strings.ToUpper(first)}, nil
		}
		return ColumnRef{Name: first}, nil
	}

	parts := []string{first}
	for parser.accept(Dot) {
		if parser.peek().Type == Wildcard {
			parser.next()
			return StarExpr{Table: parts[len(parts)-1]}, nil
		}
		part, err := parser.parseIdentifier("column name after '.'")
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return ColumnRef{Table: parts[len(parts)-2], Name: parts[len(parts)-1]}, nil
}

func (parser *Parser) parseFunctionCall() (Expr, error) {
	name := strings.ToUpper(parser.next().Value)
	parser.next() // (

	call := FuncCall{Name: name}
	if !parser.accept(ParenClose) {
		if parser.accept(Distinct) {
			call.Distinct = true
		} else {
			parser.accept(All)
		}
		for {
			if parser.peek().Type == Wildcard && (parser.peekAt(1).Type == ParenClose || parser.peekAt(1).Type == Comma) {
				parser.next()
				call.Args = append(call.Args, StarExpr{})
			} else {
				arg, err := parser.parseExpr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
			if !parser.accept(Comma) {
				break
			}
		}
		// GROUP_CONCAT(x SEPARATOR ',')
		if parser.acceptWord("SEPARATOR") {
			sep, err := parser.parsePrimaryExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, sep)
		}
		if _, err := parser.expect(ParenClose, "')' after function arguments"); err != nil {
			return nil, err
		}
	}

	if parser.peek().Type == Over {
		return parser.parseWindow(call)
	}
	return call, nil
}

func (parser *Parser) parseWindow(call FuncCall) (Expr, error) {
	if !parser.dialect.SupportsWindowFunctions {
		return nil, parser.unsupported("window function " + call.Name)
	}
	parser.next() // OVER
	if _, err := parser.expect(ParenOpen, "'(' after OVER"); err != nil {
		return nil, err
	}
	window := WindowExpr{Func: call}
	if parser.accept(Partition) {
		if _, err := parser.expect(By, "BY after PARTITION"); err != nil {
			return nil, err
		}
		for {
			expr, err := parser.parseExpr()
			if err != nil {
				return nil, err
			}
			window.PartitionBy = append(window.PartitionBy, expr)
			if !parser.accept(Comma) {
				break
			}
		}
	}
	if parser.accept(Order) {
		if _, err := parser.expect(By, "BY after ORDER"); err != nil {
			return nil, err
		}
		items, err := parser.parseOrderItems()
		if err != nil {
			return nil, err
		}
		window.OrderBy = items
	}
	if _, err := parser.expect(ParenClose, "')' after window specification"); err != nil {
		return nil, err
	}
	return window, nil
}

func (parser *Parser) parseCaseExpr() (Expr, error) {
	parser.next() // CASE
	var caseExpr CaseExpr
	if parser.peek().Type != When {
		operand, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		caseExpr.Operand = operand
	}
	for parser.accept(When) {
		condition, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(Then, "THEN"); err != nil {
			return nil, err
		}
		result, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		caseExpr.Whens = append(caseExpr.Whens, WhenClause{Condition: condition, Result: result})
	}
	if len(caseExpr.Whens) == 0 {
		return nil, parser.errorf("expected WHEN in CASE")
	}
	if parser.accept(Else) {
		elseExpr, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		caseExpr.Else = elseExpr
	}
	if _, err := parser.expect(End, "END to close CASE"); err != nil {
		return nil, err
	}
	return caseExpr, nil
}

func (parser *Parser) parseCastExpr() (Expr, error) {
	parser.next() // CAST
	if _, err := parser.expect(ParenOpen, "'(' after CAST"); err != nil {
		return nil, err
	}
	operand, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := parser.expect(As, "AS in CAST"); err != nil {
		return nil, err
	}
	typeName, err := parser.parseIdentifier("type name in CAST")
	if err != nil {
		return nil, err
	}
	// SIGNED INTEGER, UNSIGNED, CHAR(10), DECIMAL(10,2)
	if parser.peek().Type == Identifier {
		parser.next()
	}
	if parser.accept(ParenOpen) {
		for parser.peek().Type != ParenClose && parser.peek().Type != EOF {
			parser.next()
		}
		parser.next()
	}
	if _, err := parser.expect(ParenClose, "')' after CAST"); err != nil {
		return nil, err
	}
	return CastExpr{Operand: operand, TypeName: strings.ToUpper(typeName)}, nil
}

func (parser *Parser) parseOrderItems() ([]OrderItem, error) {
	var items []OrderItem
	for {
		expr, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: expr}
		if parser.accept(Desc) {
			item.Descending = true
		} else {
			parser.accept(Asc)
		}
		// NULLS FIRST/LAST is accepted and ignored
		if parser.acceptWord("NULLS") {
			if !parser.acceptWord("FIRST") {
				parser.acceptWord("LAST")
			}
		}
		items = append(items, item)
		if !parser.accept(Comma) {
			return items, nil
		}
	}
}

// logicalPipes reports whether || means OR in the active dialect.
func (parser *Parser) logicalPipes() bool {
	op, ok := parser.dialect.TryMapBinaryOperator("||")
	return ok && op == core.OpOr
}

func isComparisonText(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", ">", "<=", ">=", "<=>":
		return true
	}
	return false
}
