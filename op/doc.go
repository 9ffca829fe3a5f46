// Package op provides the access paths the SQL engine uses on top of the
// storage layer.
//
// # TableOp
//
// TableOp wraps one table for scans, index seeks and name-keyed writes:
//
//	tableOp, err := op.GetTable(database, "", "users")
//
//	row, exists := tableOp.Get(1)                  // Primary key lookup
//	values, exists := tableOp.GetValues(1)         // Same, keyed by column name
//	count := tableOp.Count()
//
//	tableOp.Put(map[string]any{"name": "alice"})
//	tableOp.PutAll(rows)                           // All or nothing
//	tableOp.Delete(1)
//
//	for ordinal, row := range tableOp.Scan() {
//	    // every row
//	}
//	for ordinal, row := range tableOp.Seek(index, "acme") {
//	    // rows matching an index key
//	}
//
// # DatabaseOp
//
// DatabaseOp pairs a database with its fixture store:
//
//	dbOp := op.NewDatabaseOp(database, store)
//	commit, _ := dbOp.Snapshot(identity, "seed", "baseline")
//	dbOp.Restore("baseline")
//
// # Architecture
//
// The layering is:
//
//	SQL Parser (sql/)
//	     ↓
//	SQL Engine (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Storage (ps/)
//	     ↓
//	Fixture Store (go-git)
package op
