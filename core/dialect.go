package core

import (
	"fmt"
	"slices"
	"strings"
)

// IdentifierQuote is the quoting style a dialect uses when it prints identifiers.
type IdentifierQuote int

const (
	DoubleQuoteIdentifiers IdentifierQuote = iota
	BacktickIdentifiers
	BracketIdentifiers
)

// StringEscape is how a quote character is escaped inside a string literal.
type StringEscape int

const (
	DoubledQuoteEscape StringEscape = iota
	BackslashEscape
)

type BinaryOperator int

const (
	OpAnd BinaryOperator = iota
	OpOr
	OpEq
	OpNeq
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
	OpNullSafeEq
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat
	OpJsonExtract
	OpJsonExtractText
)

func (op BinaryOperator) String() string {
	switch op {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpNullSafeEq:
		return "<=>"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpConcat:
		return "||"
	case OpJsonExtract:
		return "->"
	case OpJsonExtractText:
		return "->>"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// IsComparison reports whether the operator yields a boolean from two scalars.
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpNullSafeEq:
		return true
	}
	return false
}

const (
	MySQLName     = "mysql"
	SQLServerName = "sqlserver"
	DB2Name       = "db2"
)

// Dialect describes the syntax and feature subset of one vendor at one version.
// Values are built by MySQL, SQLServer and DB2 and are not modified afterwards.
type Dialect struct {
	Name    string
	Version int

	Keywords        []string
	BinaryOperators map[string]BinaryOperator
	// Operators lists multi-character operators, longest first.
	Operators []string

	AllowsBacktickIdentifiers    bool
	AllowsDoubleQuoteIdentifiers bool
	AllowsBracketIdentifiers     bool
	AllowsHashIdentifiers        bool
	IdentifierEscapeStyle        IdentifierQuote
	StringEscapeStyle            StringEscape
	DoubleQuotedStrings          bool
	SupportsHashLineComment      bool

	SupportsLimitOffset           bool
	SupportsTop                   bool
	SupportsOffsetFetch           bool
	SupportsFetchFirst            bool
	RequiresOrderByForOffsetFetch bool

	SupportsOnDuplicateKeyUpdate    bool
	SupportsMerge                   bool
	SupportsDeleteWithoutFrom       bool
	SupportsDeleteTargetAlias       bool
	SupportsUpdateDeleteJoinRuntime bool
	SupportsWithCte                 bool
	SupportsWithRecursive           bool
	SupportsWindowFunctions         bool
	SupportsNullSafeEq              bool
	SupportsJsonArrowOperators      bool
	SupportsMySqlIndexHints         bool
	SupportsSqlServerTableHints     bool

	CaseInsensitiveText                     bool
	LikeIsCaseInsensitive                   bool
	SupportsImplicitNumericStringComparison bool
	NullSubstituteFunctions                 []string
}

func commonBinaryOperators() map[string]BinaryOperator {
	return map[string]BinaryOperator{
		"AND": OpAnd,
		"OR":  OpOr,
		"=":   OpEq,
		"<>":  OpNeq,
		"!=":  OpNeq,
		">":   OpGreater,
		">=":  OpGreaterOrEqual,
		"<":   OpLess,
		"<=":  OpLessOrEqual,
		"+":   OpAdd,
		"-":   OpSub,
		"*":   OpMul,
		"/":   OpDiv,
		"%":   OpMod,
	}
}

// MySQL returns the MySQL dialect. Version is the major version (5, 8, ...).
func MySQL(version int) Dialect {
	ops := commonBinaryOperators()
	ops["<=>"] = OpNullSafeEq
	ops["||"] = OpOr
	ops["&&"] = OpAnd
	if version >= 5 {
		ops["->"] = OpJsonExtract
		ops["->>"] = OpJsonExtractText
	}
	return Dialect{
		Name:                                    MySQLName,
		Version:                                 version,
		Keywords:                                []string{"REGEXP"},
		BinaryOperators:                         ops,
		Operators:                               []string{"<=>", "->>", "->", ">=", "<=", "<>", "!=", "&&", "||"},
		AllowsBacktickIdentifiers:               true,
		IdentifierEscapeStyle:                   BacktickIdentifiers,
		StringEscapeStyle:                       BackslashEscape,
		DoubleQuotedStrings:                     true,
		SupportsHashLineComment:                 true,
		SupportsLimitOffset:                     true,
		SupportsOffsetFetch:                     false,
		SupportsOnDuplicateKeyUpdate:            true,
		SupportsDeleteWithoutFrom:               true,
		SupportsDeleteTargetAlias:               true,
		SupportsUpdateDeleteJoinRuntime:         true,
		SupportsWithCte:                         version >= 8,
		SupportsWithRecursive:                   version >= 8,
		SupportsWindowFunctions:                 version >= 8,
		SupportsNullSafeEq:                      true,
		SupportsJsonArrowOperators:              version >= 5,
		SupportsMySqlIndexHints:                 true,
		CaseInsensitiveText:                     true,
		LikeIsCaseInsensitive:                   true,
		SupportsImplicitNumericStringComparison: true,
		NullSubstituteFunctions:                 []string{"IFNULL"},
	}
}

// SQLServer returns the SQL Server dialect. Version is the product year (2008, 2012, 2019, ...).
func SQLServer(version int) Dialect {
	ops := commonBinaryOperators()
	ops["+"] = OpAdd
	return Dialect{
		Name:                                    SQLServerName,
		Version:                                 version,
		BinaryOperators:                         ops,
		Operators:                               []string{">=", "<=", "<>", "!="},
		AllowsDoubleQuoteIdentifiers:            true,
		AllowsBracketIdentifiers:                true,
		AllowsHashIdentifiers:                   true,
		IdentifierEscapeStyle:                   BracketIdentifiers,
		StringEscapeStyle:                       DoubledQuoteEscape,
		SupportsTop:                             true,
		SupportsOffsetFetch:                     version >= 2012,
		RequiresOrderByForOffsetFetch:           true,
		SupportsMerge:                           version >= 2008,
		SupportsDeleteWithoutFrom:               true,
		SupportsDeleteTargetAlias:               true,
		SupportsUpdateDeleteJoinRuntime:         true,
		SupportsWithCte:                         version >= 2005,
		SupportsWithRecursive:                   version >= 2005,
		SupportsWindowFunctions:                 version >= 2005,
		SupportsSqlServerTableHints:             true,
		CaseInsensitiveText:                     true,
		LikeIsCaseInsensitive:                   true,
		SupportsImplicitNumericStringComparison: true,
		NullSubstituteFunctions:                 []string{"ISNULL"},
	}
}

// DB2 returns the DB2 dialect. Version is the major version (9, 11, ...).
func DB2(version int) Dialect {
	ops := commonBinaryOperators()
	ops["<=>"] = OpNullSafeEq
	ops["||"] = OpConcat
	return Dialect{
		Name:                                    DB2Name,
		Version:                                 version,
		BinaryOperators:                         ops,
		Operators:                               []string{"<=>", ">=", "<=", "<>", "!=", "||"},
		AllowsDoubleQuoteIdentifiers:            true,
		IdentifierEscapeStyle:                   DoubleQuoteIdentifiers,
		StringEscapeStyle:                       DoubledQuoteEscape,
		SupportsOffsetFetch:                     true,
		SupportsFetchFirst:                      true,
		SupportsMerge:                           version >= 9,
		SupportsWithCte:                         version >= 8,
		SupportsWithRecursive:                   version >= 8,
		SupportsWindowFunctions:                 true,
		SupportsNullSafeEq:                      true,
		CaseInsensitiveText:                     true,
		LikeIsCaseInsensitive:                   true,
		SupportsImplicitNumericStringComparison: true,
		NullSubstituteFunctions:                 []string{"NVL", "VALUE"},
	}
}

// DialectByName resolves a dialect from its name. A version of 0 selects the latest known version.
func DialectByName(name string, version int) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MySQLName, "mariadb":
		if version == 0 {
			version = 8
		}
		return MySQL(version), nil
	case SQLServerName, "mssql", "sql_server":
		if version == 0 {
			version = 2022
		}
		return SQLServer(version), nil
	case DB2Name, "ibmdb2":
		if version == 0 {
			version = 11
		}
		return DB2(version), nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect: %s", name)
	}
}

func (d Dialect) String() string {
	return fmt.Sprintf("%s:%d", d.Name, d.Version)
}

// IsKeyword reports whether word is a dialect-specific keyword.
func (d Dialect) IsKeyword(word string) bool {
	return slices.ContainsFunc(d.Keywords, func(k string) bool {
		return strings.EqualFold(k, word)
	})
}

func (d Dialect) IsStringQuote(ch byte) bool {
	return ch == '\'' || (ch == '"' && d.DoubleQuotedStrings)
}

func (d Dialect) IsParameterPrefix(ch byte) bool {
	return ch == '@' || ch == ':' || ch == '?'
}

// TryMapBinaryOperator resolves the operator text to its kind for this dialect.
func (d Dialect) TryMapBinaryOperator(text string) (BinaryOperator, bool) {
	op, ok := d.BinaryOperators[strings.ToUpper(text)]
	return op, ok
}

// IsNullSubstitute reports whether name is this dialect's two-argument null replacement function.
func (d Dialect) IsNullSubstitute(name string) bool {
	return slices.ContainsFunc(d.NullSubstituteFunctions, func(f string) bool {
		return strings.EqualFold(f, name)
	})
}

// QuoteIdentifier renders name using the dialect's identifier escape style.
func (d Dialect) QuoteIdentifier(name string) string {
	switch d.IdentifierEscapeStyle {
	case BacktickIdentifiers:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case BracketIdentifiers:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// EqualText compares two strings using the dialect's text comparison rules.
func (d Dialect) EqualText(a, b string) bool {
	if d.CaseInsensitiveText {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// CompareText orders two strings using the dialect's text comparison rules.
func (d Dialect) CompareText(a, b string) int {
	if d.CaseInsensitiveText {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}
	return strings.Compare(a, b)
}
