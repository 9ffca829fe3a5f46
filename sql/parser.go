package sql

import (
	"fmt"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

// Parser is a recursive-descent parser over a token stream produced for one dialect.
type Parser struct {
	sql     string
	dialect core.Dialect
	tokens  []Token
	pos     int
	params  int
}

func NewParser(sql string, dialect core.Dialect) (*Parser, error) {
	tokens, err := Tokenize(sql, dialect)
	if err != nil {
		return nil, err
	}
	return &Parser{sql: sql, dialect: dialect, tokens: tokens}, nil
}

// Parse parses exactly one statement. A trailing semicolon is allowed.
func Parse(sql string, dialect core.Dialect) (Statement, error) {
	parser, err := NewParser(sql, dialect)
	if err != nil {
		return nil, err
	}
	statement, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	for parser.accept(Semicolon) {
	}
	if parser.peek().Type != EOF {
		return nil, parser.errorf("unexpected input after end of statement")
	}
	return statement, nil
}

// ParseMulti parses a semicolon-separated batch. Empty statements are skipped.
func ParseMulti(sql string, dialect core.Dialect) ([]Statement, error) {
	parser, err := NewParser(sql, dialect)
	if err != nil {
		return nil, err
	}

	var statements []Statement
	for {
		for parser.accept(Semicolon) {
		}
		if parser.peek().Type == EOF {
			return statements, nil
		}
		statement, err := parser.Parse()
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
		if parser.peek().Type != Semicolon && parser.peek().Type != EOF {
			return nil, parser.errorf("expected ';' between statements")
		}
	}
}

func (parser *Parser) Parse() (Statement, error) {
	token := parser.peek()
	switch token.Type {
	case Select, With, ParenOpen:
		return parser.parseQuery()
	case Insert:
		return parser.parseInsert()
	case Update:
		return parser.parseUpdate()
	case Delete:
		return parser.parseDelete()
	case Create:
		return parser.parseCreate()
	case Drop:
		return parser.parseDrop()
	case Alter:
		return parser.parseAlter()
	case Begin, Start:
		return parser.parseBegin()
	case Commit:
		parser.next()
		parser.acceptTransactionWord()
		return CommitStatement{}, nil
	case Rollback:
		return parser.parseRollback()
	case Savepoint:
		parser.next()
		name, err := parser.parseIdentifier("savepoint name")
		if err != nil {
			return nil, err
		}
		return SavepointStatement{Name: name}, nil
	case Release:
		parser.next()
		parser.accept(Savepoint)
		name, err := parser.parseIdentifier("savepoint name")
		if err != nil {
			return nil, err
		}
		return ReleaseSavepointStatement{Name: name}, nil
	case Set:
		return parser.parseSetTransaction()
	case Call, Exec:
		return parser.parseCall()
	case Identifier:
		if parser.isWord("SAVE") {
			parser.next()
			parser.acceptTransactionWord()
			name, err := parser.parseIdentifier("savepoint name")
			if err != nil {
				return nil, err
			}
			return SavepointStatement{Name: name}, nil
		}
	}
	return nil, parser.errorf("unknown statement type")
}

func (parser *Parser) parseBegin() (Statement, error) {
	if parser.next().Type == Start {
		if !parser.acceptWord("TRANSACTION") {
			return nil, parser.errorf("expected TRANSACTION after START")
		}
	} else {
		parser.acceptTransactionWord()
	}
	return BeginStatement{}, nil
}

func (parser *Parser) parseRollback() (Statement, error) {
	parser.next()
	parser.acceptTransactionWord()
	if parser.acceptWord("TO") {
		parser.accept(Savepoint)
		name, err := parser.parseIdentifier("savepoint name")
		if err != nil {
			return nil, err
		}
		return RollbackStatement{Savepoint: name}, nil
	}
	// SQL Server: ROLLBACK TRANSACTION name
	if token := parser.peek(); token.Type == Identifier || token.Type == QuotedIdentifier {
		parser.next()
		return RollbackStatement{Savepoint: token.Value}, nil
	}
	return RollbackStatement{}, nil
}

func (parser *Parser) parseSetTransaction() (Statement, error) {
	parser.next()
	if !parser.acceptWord("TRANSACTION") {
		return nil, parser.errorf("expected TRANSACTION after SET")
	}
	if !parser.acceptWord("ISOLATION") || !parser.acceptWord("LEVEL") {
		return nil, parser.errorf("expected ISOLATION LEVEL")
	}
	var words []string
	for {
		token := parser.peek()
		if token.Type != Identifier {
			break
		}
		words = append(words, token.Value)
		parser.next()
	}
	if len(words) == 0 {
		return nil, parser.errorf("expected isolation level")
	}
	return SetTransactionStatement{Isolation: strings.Join(words, " ")}, nil
}

func (parser *Parser) parseCall() (Statement, error) {
	isExec := parser.next().Type == Exec
	name, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement := CallStatement{Procedure: name}

	if !isExec {
		if _, err := parser.expect(ParenOpen, "'(' after procedure name"); err != nil {
			return nil, err
		}
		if parser.accept(ParenClose) {
			return statement, nil
		}
	}

	for {
		if isExec && (parser.peek().Type == EOF || parser.peek().Type == Semicolon) {
			break
		}
		var arg CallArg
		if token := parser.peek(); token.Type == Parameter && parser.peekAt(1).Type == Operator && parser.peekAt(1).Value == "=" {
			parser.next()
			parser.next()
			arg.Name = NormalizeParamName(token.Value)
		}
		value, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		arg.Value = value
		if parser.acceptWord("OUTPUT") || parser.acceptWord("OUT") {
			arg.Output = true
		}
		statement.Args = append(statement.Args, arg)
		if !parser.accept(Comma) {
			break
		}
	}

	if !isExec {
		if _, err := parser.expect(ParenClose, "')' after procedure arguments"); err != nil {
			return nil, err
		}
	}
	return statement, nil
}

func (parser *Parser) acceptTransactionWord() {
	if !parser.acceptWord("TRANSACTION") && !parser.acceptWord("TRAN") {
		parser.acceptWord("WORK")
	}
}

func (parser *Parser) peek() Token {
	return parser.tokens[parser.pos]
}

func (parser *Parser) peekAt(offset int) Token {
	index := parser.pos + offset
	if index >= len(parser.tokens) {
		return parser.tokens[len(parser.tokens)-1]
	}
	return parser.tokens[index]
}

func (parser *Parser) next() Token {
	token := parser.tokens[parser.pos]
	if token.Type != EOF {
		parser.pos++
	}
	return token
}

func (parser *Parser) accept(tokenType TokenType) bool {
	if parser.peek().Type == tokenType {
		parser.next()
		return true
	}
	return false
}

func (parser *Parser) expect(tokenType TokenType, what string) (Token, error) {
	token := parser.peek()
	if token.Type != tokenType {
		return token, parser.errorf("expected %s", what)
	}
	parser.next()
	return token, nil
}

// isWord matches a non-reserved word such as ROWS or ONLY.
func (parser *Parser) isWord(word string) bool {
	token := parser.peek()
	return token.Type == Identifier && strings.EqualFold(token.Value, word)
}

func (parser *Parser) isWordAt(offset int, word string) bool {
	token := parser.peekAt(offset)
	return token.Type == Identifier && strings.EqualFold(token.Value, word)
}

func (parser *Parser) acceptWord(word string) bool {
	if parser.isWord(word) {
		parser.next()
		return true
	}
	return false
}

func (parser *Parser) isOperator(op string) bool {
	token := parser.peek()
	return token.Type == Operator && token.Value == op
}

func (parser *Parser) acceptOperator(op string) bool {
	if parser.isOperator(op) {
		parser.next()
		return true
	}
	return false
}

func (parser *Parser) errorf(format string, args ...any) error {
	return core.NewSyntaxError(parser.fragment(), fmt.Sprintf(format, args...))
}

func (parser *Parser) fragment() string {
	token := parser.peek()
	if token.Type == EOF {
		return "end of input"
	}
	rest := parser.sql[token.Pos:]
	if len(rest) > 40 {
		rest = rest[:40]
	}
	return rest
}

// unsupported is a syntax error for a construct the dialect does not allow.
func (parser *Parser) unsupported(feature string) error {
	return parser.errorf("%s is not supported by dialect %s", feature, parser.dialect)
}

// parseIdentifier accepts a plain or quoted identifier.
func (parser *Parser) parseIdentifier(what string) (string, error) {
	token := parser.peek()
	switch token.Type {
	case Identifier, QuotedIdentifier:
		parser.next()
		return token.Value, nil
	}
	return "", parser.errorf("expected %s", what)
}

func (parser *Parser) parseTableName() (TableName, error) {
	first, err := parser.parseIdentifier("table name")
	if err != nil {
		return TableName{}, err
	}
	name := TableName{Name: first}
	for parser.peek().Type == Dot {
		parser.next()
		part, err := parser.parseIdentifier("name after '.'")
		if err != nil {
			return TableName{}, err
		}
		// keep the last two parts: schema.table (database.schema.table collapses)
		name.Schema = name.Name
		name.Name = part
	}
	return name, nil
}

func (parser *Parser) parseIdentifierList() ([]string, error) {
	if _, err := parser.expect(ParenOpen, "'('"); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := parser.parseIdentifier("column name")
		if err != nil {
			return nil, err
		}
		// ASC/DESC and length prefixes are accepted in index column lists
		if parser.peek().Type == ParenOpen && parser.peekAt(1).Type == Int {
			parser.next()
			parser.next()
			if _, err := parser.expect(ParenClose, "')'"); err != nil {
				return nil, err
			}
		}
		if !parser.accept(Asc) {
			parser.accept(Desc)
		}
		names = append(names, name)
		if !parser.accept(Comma) {
			break
		}
	}
	if _, err := parser.expect(ParenClose, "')'"); err != nil {
		return nil, err
	}
	return names, nil
}
