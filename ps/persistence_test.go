package ps

import (
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func TestNewMemoryFixtureStore(t *testing.T) {
	store, err := NewMemoryFixtureStore()
	if err != nil {
		t.Fatalf("Failed to create memory fixture store: %v", err)
	}

	if !store.IsInitialized() {
		t.Error("Expected store to be initialized")
	}
}

func TestFixtureStoreNotInitialized(t *testing.T) {
	var store FixtureStore

	if store.IsInitialized() {
		t.Error("Expected uninitialized store to return false")
	}

	if _, err := store.Save(newTestDatabase(), testIdentity, "x"); err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func seedFixtureDatabase(t *testing.T) *Database {
	t.Helper()

	database := newTestDatabase()
	users := newUsersTable(t, database)
	users.Add(Row{1: "alice", 2: "a@example.com"})
	users.Add(Row{1: "bob", 3: false})

	orders, _ := database.DefaultSchema().CreateTable("orders")
	orders.AddColumn(ColumnDef{Name: "id", Type: core.BigIntType, Identity: true})
	orders.AddColumn(ColumnDef{Name: "user_id", Type: core.IntType})
	orders.AddColumn(ColumnDef{Name: "payload", Type: core.BinaryType, Nullable: true})
	orders.AddColumn(ColumnDef{Name: "label", Type: core.StringType, Size: intPtr(30), Nullable: true, Computed: "CONCAT('order-', user_id)"})
	orders.SetPrimaryKey("id")
	orders.CreateForeignKey("fk_orders_users", []string{"user_id"}, users, []string{"id"})
	if _, err := orders.Add(Row{1: 1, 2: []byte{0x01, 0xff}}); err != nil {
		t.Fatalf("Failed to add order: %v", err)
	}

	statement, err := sql.Parse("SELECT name FROM users WHERE active = 1", database.Dialect)
	if err != nil {
		t.Fatalf("Failed to parse view: %v", err)
	}
	database.DefaultSchema().CreateView(&View{
		Name:  "active_users",
		Query: statement.(sql.QueryStatement),
		Text:  "SELECT name FROM users WHERE active = 1",
	}, false)
	return database
}

func TestFixtureStoreSaveAndLoad(t *testing.T) {
	store, _ := NewMemoryFixtureStore()
	database := seedFixtureDatabase(t)

	commit, err := store.Save(database, testIdentity, "seed")
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if commit.Id == "" {
		t.Error("Expected commit id to be set")
	}
	if commit.Author != "test <test@test.com>" {
		t.Errorf("Expected author 'test <test@test.com>', got '%s'", commit.Author)
	}

	loaded := newTestDatabase()
	if err := store.Load(loaded, ""); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	users, ok := loaded.DefaultSchema().Table("users")
	if !ok {
		t.Fatal("Expected users table to be loaded")
	}
	if users.Count() != 2 {
		t.Errorf("Expected 2 users, got %d", users.Count())
	}
	if users.NextIdentity != 3 {
		t.Errorf("Expected NextIdentity 3, got %d", users.NextIdentity)
	}
	if _, ok := users.Index("ux_users_email"); !ok {
		t.Error("Expected unique index to be loaded")
	}
	row, _ := users.Row(1)
	if row[3] != false {
		t.Errorf("Expected bob inactive, got %v", row[3])
	}

	orders, _ := loaded.DefaultSchema().Table("orders")
	if len(orders.ForeignKeys()) != 1 {
		t.Errorf("Expected 1 foreign key, got %d", len(orders.ForeignKeys()))
	}
	order, _ := orders.Row(0)
	if payload, ok := order[2].([]byte); !ok || len(payload) != 2 || payload[1] != 0xff {
		t.Errorf("Expected binary payload to round trip, got %v", order[2])
	}
	if order[3] != "order-1" {
		t.Errorf("Expected computed label 'order-1', got %v", order[3])
	}

	if _, ok := loaded.DefaultSchema().View("active_users"); !ok {
		t.Error("Expected view to be loaded")
	}
}

func TestFixtureStoreTagsAndHistory(t *testing.T) {
	store, _ := NewMemoryFixtureStore()
	database := seedFixtureDatabase(t)

	if _, err := store.Save(database, testIdentity, "first"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.Tag("v1", ""); err != nil {
		t.Fatalf("Failed to tag: %v", err)
	}

	users, _ := database.DefaultSchema().Table("users")
	users.Add(Row{1: "carol"})
	if _, err := store.Save(database, testIdentity, "second"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	history, err := store.History(0)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 commits, got %d", len(history))
	}
	if history[0].Message != "second" {
		t.Errorf("Expected newest commit first, got '%s'", history[0].Message)
	}

	limited, _ := store.History(1)
	if len(limited) != 1 {
		t.Errorf("Expected 1 commit with limit, got %d", len(limited))
	}

	tags, _ := store.Tags()
	if len(tags) != 1 || tags[0] != "v1" {
		t.Errorf("Expected tags [v1], got %v", tags)
	}

	if err := store.Load(database, "v1"); err != nil {
		t.Fatalf("Failed to load tag: %v", err)
	}
	users, _ = database.DefaultSchema().Table("users")
	if users.Count() != 2 {
		t.Errorf("Expected 2 users at v1, got %d", users.Count())
	}

	if err := store.Load(database, "missing"); err == nil {
		t.Error("Expected error loading unknown snapshot")
	}
}

func TestFixtureStoreListAndRead(t *testing.T) {
	store, _ := NewMemoryFixtureStore()
	store.Save(seedFixtureDatabase(t), testIdentity, "seed")

	entries, err := store.ListEntriesDirect("", "main")
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}

	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name] = entry.IsDir
	}
	if isDir, ok := names["views"]; !ok || !isDir {
		t.Error("Expected views directory")
	}
	if _, ok := names["users.json"]; !ok {
		t.Error("Expected users.json")
	}

	data, err := store.ReadFileDirect("", "main/users.json")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	document, err := DecodeTableDocument(data)
	if err != nil {
		t.Fatalf("Failed to decode document: %v", err)
	}
	if document.Table.Name != "users" || len(document.Rows) != 2 {
		t.Errorf("Unexpected document %s with %d rows", document.Table.Name, len(document.Rows))
	}
}

func TestFileFixtureStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileFixtureStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create file fixture store: %v", err)
	}
	if _, err := store.Save(seedFixtureDatabase(t), testIdentity, "seed"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	reopened, err := NewFileFixtureStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	loaded := newTestDatabase()
	if err := reopened.Load(loaded, ""); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if _, ok := loaded.DefaultSchema().Table("orders"); !ok {
		t.Error("Expected orders table after reopen")
	}
}
