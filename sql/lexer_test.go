package sql

import (
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
)

type tokenCase struct {
	Type  TokenType
	Value string
}

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		dialect  core.Dialect
		sql      string
		expected []tokenCase
	}{
		{
			"mysql backticks and hash comment",
			core.MySQL(8),
			"SELECT `order` FROM t # comment",
			[]tokenCase{{Select, "SELECT"}, {QuotedIdentifier, "order"}, {From, "FROM"}, {Identifier, "t"}, {EOF, ""}},
		},
		{
			"mysql backslash escapes and double-quoted strings",
			core.MySQL(8),
			`'it\'s' "two"`,
			[]tokenCase{{String, "it's"}, {String, "two"}, {EOF, ""}},
		},
		{
			"doubled quote escape",
			core.SQLServer(2019),
			"'O''Brien'",
			[]tokenCase{{String, "O'Brien"}, {EOF, ""}},
		},
		{
			"sql server brackets and temp tables",
			core.SQLServer(2019),
			"[my col] #tmp ##global",
			[]tokenCase{{QuotedIdentifier, "my col"}, {Identifier, "#tmp"}, {Identifier, "##global"}, {EOF, ""}},
		},
		{
			"db2 double quotes",
			core.DB2(11),
			`"Id" || 'x'`,
			[]tokenCase{{QuotedIdentifier, "Id"}, {Operator, "||"}, {String, "x"}, {EOF, ""}},
		},
		{
			"longest operator first",
			core.MySQL(8),
			"a <=> b ->> c -> d >= e <> f != g",
			[]tokenCase{
				{Identifier, "a"}, {Operator, "<=>"}, {Identifier, "b"}, {Operator, "->>"}, {Identifier, "c"},
				{Operator, "->"}, {Identifier, "d"}, {Operator, ">="}, {Identifier, "e"}, {Operator, "<>"},
				{Identifier, "f"}, {Operator, "!="}, {Identifier, "g"}, {EOF, ""},
			},
		},
		{
			"parameters",
			core.MySQL(8),
			"@id :name ? @`quoted`",
			[]tokenCase{{Parameter, "@id"}, {Parameter, ":name"}, {Parameter, "?"}, {Parameter, "@`quoted`"}, {EOF, ""}},
		},
		{
			"numbers",
			core.MySQL(8),
			"42 3.14 .5 1e3",
			[]tokenCase{{Int, "42"}, {Float, "3.14"}, {Float, ".5"}, {Float, "1e3"}, {EOF, ""}},
		},
		{
			"block and line comments",
			core.DB2(11),
			"SELECT /* inline */ 1 -- trailing",
			[]tokenCase{{Select, "SELECT"}, {Int, "1"}, {EOF, ""}},
		},
		{
			"keywords are case-insensitive",
			core.MySQL(8),
			"select Distinct x from Y",
			[]tokenCase{{Select, "select"}, {Distinct, "Distinct"}, {Identifier, "x"}, {From, "from"}, {Identifier, "Y"}, {EOF, ""}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tokens, err := Tokenize(test.sql, test.dialect)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tokens) != len(test.expected) {
				t.Fatalf("expected %d tokens, got %d: %v", len(test.expected), len(tokens), tokens)
			}
			for i, token := range tokens {
				if token.Type != test.expected[i].Type || token.Value != test.expected[i].Value {
					t.Errorf("token %d: expected %v %q, got %s", i, test.expected[i].Type, test.expected[i].Value, token)
				}
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name    string
		dialect core.Dialect
		sql     string
	}{
		{"unterminated string", core.MySQL(8), "'abc"},
		{"unterminated backtick", core.MySQL(8), "`abc"},
		{"unterminated bracket", core.SQLServer(2019), "[abc"},
		{"unterminated comment", core.DB2(11), "SELECT /* never closed"},
		{"backtick on db2", core.DB2(11), "`id`"},
		{"backtick on sql server", core.SQLServer(2019), "`x`"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Tokenize(test.sql, test.dialect); err == nil {
				t.Errorf("expected error for %q", test.sql)
			}
		})
	}
}

func TestPeekTokenDoesNotAdvance(t *testing.T) {
	lexer := NewLexer("SELECT id", core.MySQL(8))
	peeked := lexer.PeekToken()
	next := lexer.NextToken()
	if peeked != next {
		t.Errorf("expected peeked token %s to equal next token %s", peeked, next)
	}
	if after := lexer.NextToken(); after.Type != Identifier || after.Value != "id" {
		t.Errorf("expected Identifier(id), got %s", after)
	}
}
