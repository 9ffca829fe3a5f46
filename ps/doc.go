// Package ps provides the storage layer of SqlLikeMem.
//
// A Database owns schemas, each holding tables, views and procedure
// signatures. Tables keep their rows in memory, keyed by column ordinal, and
// maintain their indexes incrementally on every write.
//
// # Tables
//
//	database := ps.NewDatabase(core.MySQL(8), ps.WithThreadSafe(true))
//	users, _ := database.DefaultSchema().CreateTable("users")
//	users.AddColumn(ps.ColumnDef{Name: "id", Type: core.IntType, Identity: true})
//	users.SetPrimaryKey("id")
//	ordinal, err := users.Add(ps.Row{})
//
// Add and UpdateRow coerce values to the column types and check, in order,
// nullability, the primary key, unique indexes and foreign keys. Errors are
// taken from the core error taxonomy.
//
// # Transactions
//
// Begin snapshots every table. Savepoints are further snapshots taken inside
// the transaction:
//
//	txn := database.Begin("READ COMMITTED")
//	txn.Savepoint("s1")
//	txn.RollbackTo("s1")
//	txn.Commit()
//
// # Fixture Store
//
// A FixtureStore keeps versions of a database in a Git repository, either in
// memory or on disk. Each Save is one commit with a JSON document per table:
//
//	store, _ := ps.NewMemoryFixtureStore()
//	store.Save(database, identity, "seed data")
//	store.Tag("baseline", "")
//	store.Load(database, "baseline")
package ps
