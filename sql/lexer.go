package sql

import (
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

type TokenType int

const (
	Identifier TokenType = iota
	QuotedIdentifier
	Parameter
	String
	Int
	Float
	Operator
	Wildcard
	Comma
	Dot
	Semicolon
	ParenOpen
	ParenClose
	Select
	From
	Where
	And
	Or
	Not
	Is
	Null
	Like
	In
	Between
	Exists
	Case
	When
	Then
	Else
	End
	As
	On
	Join
	Inner
	Left
	Right
	Full
	Outer
	Cross
	Group
	Order
	By
	Having
	Asc
	Desc
	Limit
	Offset
	Fetch
	Top
	Distinct
	All
	Union
	Insert
	Into
	Values
	Update
	Set
	Delete
	Create
	Alter
	Drop
	Table
	View
	Index
	Unique
	Primary
	Foreign
	References
	Default
	Constraint
	With
	Begin
	Start
	Commit
	Rollback
	Savepoint
	Release
	True
	False
	Call
	Exec
	Cast
	Over
	Partition
	Temporary
	EOF
	Unknown
)

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case QuotedIdentifier:
		return "QuotedIdentifier(" + token.Value + ")"
	case Parameter:
		return "Parameter(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	case Operator:
		return "Operator(" + token.Value + ")"
	case Wildcard:
		return "Wildcard"
	case Comma:
		return "Comma"
	case Dot:
		return "Dot"
	case Semicolon:
		return "Semicolon"
	case ParenOpen:
		return "ParenOpen"
	case ParenClose:
		return "ParenClose"
	case EOF:
		return "EOF"
	case Unknown:
		return "Unknown(" + token.Value + ")"
	default:
		return "Keyword(" + strings.ToUpper(token.Value) + ")"
	}
}

// IsKeyword reports whether the token is a reserved word.
func (token Token) IsKeyword() bool {
	return token.Type >= Select && token.Type < EOF
}

// Lexer turns SQL text into tokens following the quoting, escaping and
// comment rules of a dialect.
type Lexer struct {
	sql          string
	dialect      core.Dialect
	position     int
	readPosition int
	ch           byte
	err          error
}

func NewLexer(sql string, dialect core.Dialect) *Lexer {
	lexer := &Lexer{sql: sql, dialect: dialect}
	lexer.readChar()
	return lexer
}

// Err returns the first error met while scanning.
func (lexer *Lexer) Err() error {
	return lexer.err
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) fail(fragment, message string) Token {
	if lexer.err == nil {
		lexer.err = core.NewSyntaxError(fragment, message)
	}
	return Token{Type: Unknown, Value: fragment, Pos: lexer.position}
}

func (lexer *Lexer) NextToken() Token {
	if lexer.err != nil {
		return Token{Type: EOF, Pos: len(lexer.sql)}
	}

	lexer.skipWhitespaceAndComments()
	if lexer.err != nil {
		return Token{Type: EOF, Pos: len(lexer.sql)}
	}

	start := lexer.position
	var token Token

	switch ch := lexer.ch; {
	case ch == 0:
		return Token{Type: EOF, Pos: len(lexer.sql)}
	case ch == ',':
		token = Token{Type: Comma, Value: ","}
	case ch == '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ch == ')':
		token = Token{Type: ParenClose, Value: ")"}
	case ch == ';':
		token = Token{Type: Semicolon, Value: ";"}
	case ch == '.' && !isDigit(lexer.peekChar()):
		token = Token{Type: Dot, Value: "."}
	case ch == '*':
		token = Token{Type: Wildcard, Value: "*"}
	case lexer.dialect.IsStringQuote(ch):
		value, ok := lexer.readString(ch)
		if !ok {
			return lexer.fail(lexer.sql[start:], "unterminated string literal")
		}
		return Token{Type: String, Value: value, Pos: start}
	case ch == '"':
		if !lexer.dialect.AllowsDoubleQuoteIdentifiers {
			return lexer.fail(`"`, "double-quoted identifiers are not supported by dialect "+lexer.dialect.Name)
		}
		return lexer.readQuotedIdentifier('"', '"', start)
	case ch == '`':
		if !lexer.dialect.AllowsBacktickIdentifiers {
			return lexer.fail("`", "backtick identifiers are not supported by dialect "+lexer.dialect.Name)
		}
		return lexer.readQuotedIdentifier('`', '`', start)
	case ch == '[' && lexer.dialect.AllowsBracketIdentifiers:
		return lexer.readQuotedIdentifier('[', ']', start)
	case ch == '#' && lexer.dialect.AllowsHashIdentifiers:
		lexer.readChar()
		if lexer.ch == '#' {
			lexer.readChar()
		}
		lexer.readIdentifier()
		return Token{Type: Identifier, Value: lexer.sql[start:lexer.position], Pos: start}
	case lexer.dialect.IsParameterPrefix(ch):
		return lexer.readParameter(start)
	case isDigit(ch) || (ch == '.' && isDigit(lexer.peekChar())):
		return lexer.readNumber(start)
	case isIdentStart(ch):
		literal := lexer.readIdentifier()
		return Token{Type: lookupIdentifier(literal), Value: literal, Pos: start}
	default:
		if operator := lexer.readOperator(); operator != "" {
			return Token{Type: Operator, Value: operator, Pos: start}
		}
		token = Token{Type: Unknown, Value: string(ch)}
	}

	token.Pos = start
	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch
	savedErr := lexer.err

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh
	lexer.err = savedErr

	return token
}

func (lexer *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r':
			lexer.readChar()
		case lexer.ch == '-' && lexer.peekChar() == '-':
			lexer.skipLine()
		case lexer.ch == '#' && lexer.dialect.SupportsHashLineComment:
			lexer.skipLine()
		case lexer.ch == '/' && lexer.peekChar() == '*':
			start := lexer.position
			lexer.readChar()
			lexer.readChar()
			for !(lexer.ch == '*' && lexer.peekChar() == '/') {
				if lexer.ch == 0 {
					lexer.fail(lexer.sql[start:], "unterminated block comment")
					return
				}
				lexer.readChar()
			}
			lexer.readChar()
			lexer.readChar()
		default:
			return
		}
	}
}

func (lexer *Lexer) skipLine() {
	for lexer.ch != '\n' && lexer.ch != 0 {
		lexer.readChar()
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isIdentPart(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readString scans a literal opened by quote. A doubled quote is always an
// escaped quote; backslash escapes apply only to dialects that use them.
func (lexer *Lexer) readString(quote byte) (string, bool) {
	var sb strings.Builder
	lexer.readChar()
	for {
		switch {
		case lexer.ch == 0:
			return "", false
		case lexer.ch == quote:
			if lexer.peekChar() == quote {
				sb.WriteByte(quote)
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar()
			return sb.String(), true
		case lexer.ch == '\\' && lexer.dialect.StringEscapeStyle == core.BackslashEscape:
			lexer.readChar()
			switch lexer.ch {
			case 0:
				return "", false
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(lexer.ch)
			}
			lexer.readChar()
		default:
			sb.WriteByte(lexer.ch)
			lexer.readChar()
		}
	}
}

func (lexer *Lexer) readQuotedIdentifier(open, close byte, start int) Token {
	var sb strings.Builder
	lexer.readChar()
	for {
		if lexer.ch == 0 {
			return lexer.fail(lexer.sql[start:], "unterminated quoted identifier")
		}
		if lexer.ch == close {
			if lexer.peekChar() == close {
				sb.WriteByte(close)
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar()
			break
		}
		sb.WriteByte(lexer.ch)
		lexer.readChar()
	}
	return Token{Type: QuotedIdentifier, Value: sb.String(), Pos: start}
}

// readParameter scans @name, :name, ?name, a bare ? and the quoted forms
// @`name`, @'name' and @"name". The raw text is kept; NormalizeParamName
// reduces it to the bare name.
func (lexer *Lexer) readParameter(start int) Token {
	prefix := lexer.ch
	lexer.readChar()
	if prefix == '@' && lexer.ch == '@' {
		lexer.readChar()
	}
	switch lexer.ch {
	case '`', '\'', '"':
		quote := lexer.ch
		lexer.readChar()
		for lexer.ch != quote {
			if lexer.ch == 0 {
				return lexer.fail(lexer.sql[start:], "unterminated quoted parameter name")
			}
			lexer.readChar()
		}
		lexer.readChar()
	default:
		if prefix == ':' && !isIdentStart(lexer.ch) {
			return Token{Type: Unknown, Value: ":", Pos: start}
		}
		lexer.readIdentifier()
	}
	return Token{Type: Parameter, Value: lexer.sql[start:lexer.position], Pos: start}
}

func (lexer *Lexer) readNumber(start int) Token {
	isFloat := false
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	if lexer.ch == '.' && isDigit(lexer.peekChar()) {
		isFloat = true
		lexer.readChar()
		for isDigit(lexer.ch) {
			lexer.readChar()
		}
	}
	if lexer.ch == 'e' || lexer.ch == 'E' {
		next := lexer.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			isFloat = true
			lexer.readChar()
			lexer.readChar()
			for isDigit(lexer.ch) {
				lexer.readChar()
			}
		}
	}
	value := lexer.sql[start:lexer.position]
	if isFloat {
		return Token{Type: Float, Value: value, Pos: start}
	}
	return Token{Type: Int, Value: value, Pos: start}
}

// readOperator matches the dialect's multi-character operators longest first,
// then falls back to single-character operators.
func (lexer *Lexer) readOperator() string {
	rest := lexer.sql[lexer.position:]
	for _, op := range lexer.dialect.Operators {
		if strings.HasPrefix(rest, op) {
			for range len(op) {
				lexer.readChar()
			}
			return op
		}
	}
	switch lexer.ch {
	case '=', '<', '>', '+', '-', '/', '%':
		op := string(lexer.ch)
		lexer.readChar()
		return op
	}
	return ""
}

func isIdentStart(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func lookupIdentifier(id string) TokenType {
	switch toUpper(id) {
	case "SELECT":
		return Select
	case "FROM":
		return From
	case "WHERE":
		return Where
	case "AND":
		return And
	case "OR":
		return Or
	case "NOT":
		return Not
	case "IS":
		return Is
	case "NULL":
		return Null
	case "LIKE":
		return Like
	case "IN":
		return In
	case "BETWEEN":
		return Between
	case "EXISTS":
		return Exists
	case "CASE":
		return Case
	case "WHEN":
		return When
	case "THEN":
		return Then
	case "ELSE":
		return Else
	case "END":
		return End
	case "AS":
		return As
	case "ON":
		return On
	case "JOIN":
		return Join
	case "INNER":
		return Inner
	case "LEFT":
		return Left
	case "RIGHT":
		return Right
	case "FULL":
		return Full
	case "OUTER":
		return Outer
	case "CROSS":
		return Cross
	case "GROUP":
		return Group
	case "ORDER":
		return Order
	case "BY":
		return By
	case "HAVING":
		return Having
	case "ASC":
		return Asc
	case "DESC":
		return Desc
	case "LIMIT":
		return Limit
	case "OFFSET":
		return Offset
	case "FETCH":
		return Fetch
	case "TOP":
		return Top
	case "DISTINCT":
		return Distinct
	case "ALL":
		return All
	case "UNION":
		return Union
	case "INSERT":
		return Insert
	case "INTO":
		return Into
	case "VALUES":
		return Values
	case "UPDATE":
		return Update
	case "SET":
		return Set
	case "DELETE":
		return Delete
	case "CREATE":
		return Create
	case "ALTER":
		return Alter
	case "DROP":
		return Drop
	case "TABLE":
		return Table
	case "VIEW":
		return View
	case "INDEX":
		return Index
	case "UNIQUE":
		return Unique
	case "PRIMARY":
		return Primary
	case "FOREIGN":
		return Foreign
	case "REFERENCES":
		return References
	case "DEFAULT":
		return Default
	case "CONSTRAINT":
		return Constraint
	case "WITH":
		return With
	case "BEGIN":
		return Begin
	case "START":
		return Start
	case "COMMIT":
		return Commit
	case "ROLLBACK":
		return Rollback
	case "SAVEPOINT":
		return Savepoint
	case "RELEASE":
		return Release
	case "TRUE":
		return True
	case "FALSE":
		return False
	case "CALL":
		return Call
	case "EXEC", "EXECUTE":
		return Exec
	case "CAST":
		return Cast
	case "OVER":
		return Over
	case "PARTITION":
		return Partition
	case "TEMPORARY", "TEMP":
		return Temporary
	default:
		return Identifier
	}
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

// Tokenize scans the whole text. It fails with a *core.SyntaxError on
// unterminated strings, identifiers or comments and on quoting the dialect
// does not allow.
func Tokenize(sql string, dialect core.Dialect) ([]Token, error) {
	lexer := NewLexer(sql, dialect)

	var tokens []Token

	for {
		token := lexer.NextToken()
		if lexer.err != nil {
			return nil, lexer.err
		}
		tokens = append(tokens, token)
		if token.Type == EOF {
			return tokens, nil
		}
	}
}
