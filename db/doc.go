// Package db executes SQL statements against an in-memory database.
//
// The Engine type is the main entry point. It parses SQL in the dialect of
// its database, runs it and returns a result.
//
// # Engine Usage
//
//	database := ps.NewDatabase(core.MySQL(8))
//	engine := db.NewEngine(database, identity)
//	result, err := engine.Execute("SELECT * FROM users WHERE id = @id", map[string]any{"id": 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display()
//
// # Result Types
//
// There are two result types:
//   - QueryResult: returned by SELECT and UNION
//   - CommitResult: returned by every other statement
//
// QueryResult carries typed columns, rows of Go values and read counters.
// CommitResult carries affected-row counts, the last identity value and,
// for CALL, the OUT parameters.
//
// # Plans
//
// Every top-level query is analyzed after it runs. LastPlan returns the
// plan with its warnings and index recommendations; Explain runs a query
// and returns its plan directly.
package db
