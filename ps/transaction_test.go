package ps

import (
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
)

func TestTransactionRollback(t *testing.T) {
	database := newTestDatabase()
	users := newUsersTable(t, database)
	users.Add(Row{1: "alice"})

	txn := database.Begin("READ COMMITTED")
	users.Add(Row{1: "bob"})
	database.DefaultSchema().CreateTable("scratch")

	if err := txn.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}
	if users.Count() != 1 {
		t.Errorf("Expected 1 row after rollback, got %d", users.Count())
	}
	if users.NextIdentity != 2 {
		t.Errorf("Expected NextIdentity 2 after rollback, got %d", users.NextIdentity)
	}
	if _, ok := database.DefaultSchema().Table("scratch"); ok {
		t.Error("Expected table created inside the transaction to be gone")
	}
	if txn.State() != TransactionRolledBack {
		t.Errorf("Expected RolledBack, got %s", txn.State())
	}
	if err := txn.Commit(); err != ErrTransactionNotActive {
		t.Errorf("Expected ErrTransactionNotActive, got %v", err)
	}
}

func TestTransactionRollbackRestoresIndexes(t *testing.T) {
	database := newTestDatabase()
	users := newUsersTable(t, database)
	users.Add(Row{1: "alice", 2: "a@example.com"})

	txn := database.Begin("")
	users.DeleteRows([]int{0})
	txn.Rollback()

	index, _ := users.Index("ux_users_email")
	if got := index.Lookup("a@example.com"); len(got) != 1 {
		t.Errorf("Expected index entry to be restored, got %v", got)
	}
}

func TestTransactionRollbackRestoresDefinitions(t *testing.T) {
	database := newTestDatabase()
	users := newUsersTable(t, database)
	users.Add(Row{1: "alice", 2: "a@example.com"})

	txn := database.Begin("")
	if err := users.DropColumn("email"); err != nil {
		t.Fatalf("Failed to drop column: %v", err)
	}
	if _, err := users.CreateIndex("ix_users_name", []string{"name"}, nil, false); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	if _, err := users.AddColumn(ColumnDef{Name: "age", Type: core.IntType, Nullable: true}); err != nil {
		t.Fatalf("Failed to add column: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	if got := users.ColumnNames(); len(got) != 4 || got[2] != "email" || got[3] != "active" {
		t.Errorf("Expected original columns, got %v", got)
	}
	email, ok := users.Column("email")
	if !ok || email.Index != 2 {
		t.Fatalf("Expected email back at ordinal 2, got %v", email)
	}
	row, _ := users.Row(0)
	if row[email.Index] != "a@example.com" || row[3] != true {
		t.Errorf("Expected values under their original columns, got %v", row)
	}
	if _, ok := users.Index("ix_users_name"); ok {
		t.Error("Expected index created inside the transaction to be gone")
	}
	index, ok := users.Index("ux_users_email")
	if !ok || len(index.Lookup("a@example.com")) != 1 {
		t.Error("Expected dropped index to be restored and populated")
	}
	if _, err := users.Add(Row{1: "bob", 2: "a@example.com"}); core.ErrorNumber(err) != core.ErrNumDuplicateKey {
		t.Errorf("Expected restored unique index to reject a duplicate, got %v", err)
	}
}

func TestSavepoints(t *testing.T) {
	database := newTestDatabase()
	users := newUsersTable(t, database)

	txn := database.Begin("")
	users.Add(Row{1: "a"})
	txn.Savepoint("s1")
	users.Add(Row{1: "b"})
	txn.Savepoint("s2")
	users.Add(Row{1: "c"})

	if err := txn.RollbackTo("s1"); err != nil {
		t.Fatalf("Failed to rollback to savepoint: %v", err)
	}
	if users.Count() != 1 {
		t.Errorf("Expected 1 row at s1, got %d", users.Count())
	}

	if err := txn.RollbackTo("s2"); core.ErrorNumber(err) != core.ErrNumUnknownReference {
		t.Errorf("Expected later savepoint to be discarded, got %v", err)
	}

	users.Add(Row{1: "d"})
	if err := txn.RollbackTo("S1"); err != nil {
		t.Errorf("Expected savepoint to survive its own rollback, got %v", err)
	}
	if users.Count() != 1 {
		t.Errorf("Expected 1 row at s1, got %d", users.Count())
	}

	if err := txn.Release("s1"); err != nil {
		t.Fatalf("Failed to release savepoint: %v", err)
	}
	if err := txn.RollbackTo("s1"); err == nil {
		t.Error("Expected released savepoint to be unknown")
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	if users.Count() != 1 {
		t.Errorf("Expected 1 row after commit, got %d", users.Count())
	}
}
