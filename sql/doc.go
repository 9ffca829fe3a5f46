// Package sql provides dialect-aware SQL lexing and parsing for SqlLikeMem.
//
// The package includes a lexer that tokenizes SQL text under the quoting,
// escaping and comment rules of a core.Dialect, and a recursive-descent
// parser that produces statement and expression trees. Syntax the dialect
// does not support fails at parse time with a *core.SyntaxError.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer("SELECT * FROM users", core.MySQL(8))
//	for {
//	    token := lexer.NextToken()
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Println(token)
//	}
//
// # Parser Usage
//
//	statement, err := sql.Parse("SELECT TOP 5 * FROM Users WHERE Id = @id", core.SQLServer(2019))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// ParseMulti splits a script on top-level semicolons.
//
// # Supported Statements
//
// The parser supports the following statement types:
//   - SelectStatement, UnionStatement (with CTEs, joins, grouping, windows)
//   - InsertStatement (VALUES, SELECT, ON DUPLICATE KEY UPDATE)
//   - UpdateStatement, DeleteStatement (including join forms)
//   - CreateTableStatement, CreateTemporaryTableStatement
//   - CreateViewStatement, CreateIndexStatement
//   - DropTableStatement, DropViewStatement, DropIndexStatement
//   - AlterTableStatement
//   - BeginStatement, CommitStatement, RollbackStatement
//   - SavepointStatement, ReleaseSavepointStatement, SetTransactionStatement
//   - CallStatement
package sql
