package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/SqlLikeMem"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/ps"
)

const shopSQL = `-- shop fixture
CREATE TABLE products (id INT PRIMARY KEY, name VARCHAR(50), price DECIMAL(10,2));
CREATE TABLE customers (id INT PRIMARY KEY, name VARCHAR(50), note VARCHAR(50));

INSERT INTO products (id, name, price) VALUES (1, 'Laptop', 999.99);
INSERT INTO products (id, name, price) VALUES (2, 'Mouse', 19.99);
INSERT INTO products (id, name, price) VALUES (3, 'Keyboard', 49.99);
INSERT INTO products (id, name, price) VALUES (4, 'Monitor', 199.99), (5, 'Cable', 4.99);

INSERT INTO customers (id, name, note) VALUES (1, 'Alice', 'likes; semicolons');
INSERT INTO customers (id, name, note) VALUES (2, 'Bob', NULL);
INSERT INTO customers (id, name, note) VALUES (3, 'Charlie', '-- not a comment');
SELECT * FROM products;
`

func setupTestCLI(t *testing.T) *CLI {
	t.Helper()
	fixtures, err := ps.NewMemoryFixtureStore()
	if err != nil {
		t.Fatalf("Failed to create fixture store: %v", err)
	}

	instance := SqlLikeMem.Attach(ps.NewDatabase(core.MySQL(8)), fixtures)
	return newCLI(instance, core.Identity{
		Name:  "test",
		Email: "test@test.com",
	})
}

func writeSQLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.sql")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write SQL file: %v", err)
	}
	return path
}

func countRows(t *testing.T, cli *CLI, table string) int64 {
	t.Helper()
	result, err := cli.engine.Execute("SELECT COUNT(*) FROM "+table, nil)
	if err != nil {
		t.Fatalf("SELECT COUNT(*) FROM %s failed: %v", table, err)
	}
	count, ok := ps.ToInt(result.(db.QueryResult).Rows[0][0])
	if !ok {
		t.Fatalf("COUNT(*) returned %v", result.(db.QueryResult).Rows[0][0])
	}
	return count
}

func TestCLICreateTableAndInsert(t *testing.T) {
	cli := setupTestCLI(t)

	if _, err := cli.engine.Execute("CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20))", nil); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := cli.engine.Execute("INSERT INTO users (id, name) VALUES (1, 'Alice')", nil); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}

	if got := countRows(t, cli, "users"); got != 1 {
		t.Errorf("Expected 1 row, got %d", got)
	}
}

func TestCLIAddToHistory(t *testing.T) {
	cli := setupTestCLI(t)

	cli.addToHistory("SELECT * FROM test")
	cli.addToHistory("INSERT INTO test VALUES (1)")

	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(cli.history))
	}

	// Duplicate of the last command is not recorded
	cli.addToHistory("INSERT INTO test VALUES (1)")
	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries after duplicate, got %d", len(cli.history))
	}
}

func TestCLIHistoryLimit(t *testing.T) {
	cli := setupTestCLI(t)

	for i := 0; i < 1100; i++ {
		cli.addToHistory("SELECT " + string(rune(i)))
	}

	if len(cli.history) > 1000 {
		t.Errorf("Expected history to be limited to 1000, got %d", len(cli.history))
	}
}

func TestCLIHistoryFile(t *testing.T) {
	cli := setupTestCLI(t)
	cli.historyFile = filepath.Join(t.TempDir(), "history")

	cli.addToHistory("SELECT 1;")
	cli.addToHistory("SELECT 2;")
	cli.saveHistory()

	reloaded := setupTestCLI(t)
	reloaded.historyFile = cli.historyFile
	reloaded.loadHistory()

	if len(reloaded.history) != 2 || reloaded.history[1] != "SELECT 2;" {
		t.Errorf("Expected reloaded history, got %v", reloaded.history)
	}
}

func TestCLIGetPrompt(t *testing.T) {
	cli := setupTestCLI(t)

	prompt := cli.getPrompt(false)
	if !strings.Contains(prompt, "sqllikemem (mysql)") {
		t.Errorf("Expected prompt to name the dialect, got %q", prompt)
	}

	prompt = cli.getPrompt(true)
	if !strings.Contains(prompt, "...>") {
		t.Error("Expected multi-line prompt to contain '...>'")
	}

	if _, err := cli.engine.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	prompt = cli.getPrompt(false)
	if !strings.Contains(prompt, ")*>") {
		t.Errorf("Expected prompt to mark the open transaction, got %q", prompt)
	}
}

func TestCLIHandleCommand(t *testing.T) {
	cli := setupTestCLI(t)

	tests := []string{
		".help",
		".version",
		".history",
		".schemas",
		".tables",
		".tables missing",
		".plan",
		".fixtures",
		".publish",
		".sync",
		".export",
		".import",
		".snapshot",
		".restore",
		".read",
		".unknown",
	}

	for _, command := range tests {
		if !cli.handleCommand(command) {
			t.Errorf("handleCommand(%s) = false, expected true", command)
		}
	}
}

func TestCLIPlanAfterSelect(t *testing.T) {
	cli := setupTestCLI(t)
	if err := cli.importFile(writeSQLFile(t, shopSQL)); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}

	if _, err := cli.engine.Execute("SELECT name FROM products WHERE id = 2", nil); err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if cli.engine.LastPlan() == nil {
		t.Fatal("Expected a plan after SELECT")
	}
	cli.handleCommand(".plan")
}

func TestVersionVariable(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"single statement", "SELECT * FROM test", 1},
		{"two statements", "SELECT * FROM a; SELECT * FROM b", 2},
		{"with semicolons", "INSERT INTO t VALUES (1); INSERT INTO t VALUES (2);", 2},
		{"with comments", "-- comment\nSELECT * FROM test", 1},
		{"multiline", "CREATE TABLE t (\n  id INT,\n  name VARCHAR(10)\n);", 1},
		{"empty", "", 0},
		{"only semicolons", ";;;", 0},
		{"string with semicolon", "INSERT INTO t (s) VALUES ('a;b')", 1},
		{"quoted identifier with semicolon", "SELECT `a;b` FROM t; SELECT 1", 2},
		{"dashes inside string", "INSERT INTO t VALUES ('--x'); SELECT 1", 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := splitStatements(test.input)
			if len(result) != test.expected {
				t.Errorf("splitStatements(%q) = %d statements, expected %d", test.input, len(result), test.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"exact", 5, "exact"},
		{"ab", 10, "ab"},
		{"multi\nline", 20, "multi line"},
	}

	for _, test := range tests {
		result := truncate(test.input, test.max)
		if result != test.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", test.input, test.max, result, test.expected)
		}
	}
}

func TestParseTableName(t *testing.T) {
	name := parseTableName("sales.orders")
	if name.Schema != "sales" || name.Name != "orders" {
		t.Errorf("Expected sales.orders, got %+v", name)
	}
	name = parseTableName("orders")
	if name.Schema != "" || name.Name != "orders" {
		t.Errorf("Expected bare orders, got %+v", name)
	}
}

func TestImportFile(t *testing.T) {
	cli := setupTestCLI(t)

	if err := cli.importFile(writeSQLFile(t, shopSQL)); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}

	if got := countRows(t, cli, "products"); got != 5 {
		t.Errorf("Expected 5 products, got %d", got)
	}
	if got := countRows(t, cli, "customers"); got != 3 {
		t.Errorf("Expected 3 customers, got %d", got)
	}

	result, err := cli.engine.Execute("SELECT note FROM customers WHERE id = 3", nil)
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if note := result.(db.QueryResult).Rows[0][0]; note != "-- not a comment" {
		t.Errorf("Expected string literal to survive splitting, got %v", note)
	}
}

func TestImportFileContinuesAfterErrors(t *testing.T) {
	cli := setupTestCLI(t)

	content := "CREATE TABLE t (id INT PRIMARY KEY);\nINSERT INTO missing VALUES (1);\nINSERT INTO t VALUES (1);"
	if err := cli.importFile(writeSQLFile(t, content)); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}
	if got := countRows(t, cli, "t"); got != 1 {
		t.Errorf("Expected statements after a failure to run, got %d rows", got)
	}
}

func TestImportFileNotFound(t *testing.T) {
	cli := setupTestCLI(t)

	err := cli.importFile("nonexistent.sql")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestExportImportCommands(t *testing.T) {
	cli := setupTestCLI(t)
	if err := cli.importFile(writeSQLFile(t, shopSQL)); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}

	location := filepath.Join(t.TempDir(), "products.json")
	cli.handleCommand(".export products " + location)
	if _, err := os.Stat(location); err != nil {
		t.Fatalf("Expected export file: %v", err)
	}

	cli.handleCommand(".import " + location + " archive")
	if got := countRows(t, cli, "archive.products"); got != 5 {
		t.Errorf("Expected 5 imported products, got %d", got)
	}
}

func TestSnapshotRestoreCommands(t *testing.T) {
	cli := setupTestCLI(t)
	if err := cli.importFile(writeSQLFile(t, shopSQL)); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}

	cli.handleCommand(".snapshot seeded")
	if _, err := cli.engine.Execute("DELETE FROM products", nil); err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	if got := countRows(t, cli, "products"); got != 0 {
		t.Fatalf("Expected empty products, got %d", got)
	}

	cli.handleCommand(".restore seeded")
	if got := countRows(t, cli, "products"); got != 5 {
		t.Errorf("Expected 5 products after restore, got %d", got)
	}

	tags, err := cli.instance.Fixtures.Tags()
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 1 || tags[0] != "seeded" {
		t.Errorf("Expected tag 'seeded', got %v", tags)
	}
	cli.handleCommand(".fixtures")
}
