package op

import (
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

func newTestTable(t *testing.T) (*ps.Database, *TableOp) {
	t.Helper()

	database := ps.NewDatabase(core.MySQL(8))
	table, _ := database.DefaultSchema().CreateTable("users")
	size := 20
	table.AddColumn(ps.ColumnDef{Name: "id", Type: core.IntType, Identity: true})
	table.AddColumn(ps.ColumnDef{Name: "name", Type: core.StringType, Size: &size})
	table.SetPrimaryKey("id")

	tableOp, err := GetTable(database, "", "users")
	if err != nil {
		t.Fatalf("Failed to get table: %v", err)
	}
	return database, tableOp
}

func TestTableOpPutGetDelete(t *testing.T) {
	_, tableOp := newTestTable(t)

	if _, err := tableOp.Put(map[string]any{"name": "alice"}); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if _, err := tableOp.Put(map[string]any{"nickname": "x"}); core.ErrorNumber(err) != core.ErrNumUnknownColumn {
		t.Errorf("Expected unknown column error, got %v", err)
	}

	values, exists := tableOp.GetValues(1)
	if !exists {
		t.Fatal("Expected row with id 1")
	}
	if values["name"] != "alice" {
		t.Errorf("Expected 'alice', got %v", values["name"])
	}

	deleted, err := tableOp.Delete(1)
	if err != nil || !deleted {
		t.Errorf("Expected delete to succeed, got %v %v", deleted, err)
	}
	if tableOp.Count() != 0 {
		t.Errorf("Expected empty table, got %d", tableOp.Count())
	}
}

func TestTableOpPutAllIsAtomic(t *testing.T) {
	_, tableOp := newTestTable(t)

	rows := []map[string]any{
		{"name": "a"},
		{"name": "b"},
		{"name": nil},
	}
	if _, err := tableOp.PutAll(rows); err == nil {
		t.Fatal("Expected error for null name")
	}
	if tableOp.Count() != 0 {
		t.Errorf("Expected no rows after failed batch, got %d", tableOp.Count())
	}
}

func TestTableOpScanAndCopy(t *testing.T) {
	database, tableOp := newTestTable(t)
	tableOp.PutAll([]map[string]any{{"name": "a"}, {"name": "bb"}, {"name": "ccc"}})

	count := 0
	for range tableOp.ScanWithFilter(func(_ int, row ps.Row) bool {
		return len(row[1].(string)) > 1
	}) {
		count++
	}
	if count != 2 {
		t.Errorf("Expected 2 filtered rows, got %d", count)
	}

	archive, _ := database.DefaultSchema().CreateTable("archive")
	size := 20
	archive.AddColumn(ps.ColumnDef{Name: "name", Type: core.StringType, Size: &size})
	target := &TableOp{Table: archive}

	copied, err := target.CopyFrom(tableOp)
	if err != nil {
		t.Fatalf("Failed to copy: %v", err)
	}
	if copied != 3 || target.Count() != 3 {
		t.Errorf("Expected 3 copied rows, got %d", target.Count())
	}

	primary, _ := tableOp.Table.Index(ps.PrimaryKeyName)
	for ordinal := range tableOp.Seek(primary, 2) {
		if ordinal != 1 {
			t.Errorf("Expected ordinal 1, got %d", ordinal)
		}
	}
}

func TestDatabaseOpSnapshotRestore(t *testing.T) {
	database, tableOp := newTestTable(t)
	store, _ := ps.NewMemoryFixtureStore()
	dbOp := NewDatabaseOp(database, store)

	tableOp.Put(map[string]any{"name": "alice"})
	if _, err := dbOp.Snapshot(core.Identity{Name: "test"}, "seed", "baseline"); err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}

	tableOp.Put(map[string]any{"name": "bob"})
	if err := dbOp.Restore("baseline"); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}

	restored, err := dbOp.GetTable("", "users")
	if err != nil {
		t.Fatalf("Failed to get table: %v", err)
	}
	if restored.Count() != 1 {
		t.Errorf("Expected 1 row after restore, got %d", restored.Count())
	}

	names, _ := dbOp.TableNames("")
	if len(names) != 1 || names[0] != "users" {
		t.Errorf("Expected [users], got %v", names)
	}
}
