package SqlLikeMem

import (
	"errors"
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/plan"
	"github.com/nickyhof/SqlLikeMem/ps"
)

// TestFunc is the signature for test functions that run under every dialect
type TestFunc func(t *testing.T, engine *db.Engine)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

// runWithEachDialect runs a test function against MySQL, SQL Server and DB2
func runWithEachDialect(t *testing.T, testFunc TestFunc) {
	for _, dialect := range []core.Dialect{core.MySQL(8), core.SQLServer(2019), core.DB2(11)} {
		t.Run(dialect.Name, func(t *testing.T) {
			instance := Open(dialect)
			testFunc(t, instance.Engine(testIdentity))
		})
	}
}

func execute(t *testing.T, engine *db.Engine, query string) db.Result {
	t.Helper()
	result, err := engine.Execute(query, nil)
	if err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
	return result
}

func query(t *testing.T, engine *db.Engine, text string) db.QueryResult {
	t.Helper()
	return execute(t, engine, text).(db.QueryResult)
}

func seedEmployees(t *testing.T, engine *db.Engine) {
	t.Helper()
	execute(t, engine, "CREATE TABLE employees (id INT PRIMARY KEY, name VARCHAR(50), department VARCHAR(20), salary INT)")
	execute(t, engine, "INSERT INTO employees (id, name, department, salary) VALUES "+
		"(1, 'Alice', 'Engineering', 100000), (2, 'Bob', 'Engineering', 90000), "+
		"(3, 'Charlie', 'Sales', 70000), (4, 'Diana', 'Sales', 75000), (5, 'Eve', 'Marketing', 65000)")
}

// TestIntegrationWorkflow tests a complete workflow in every dialect
func TestIntegrationWorkflow(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		qr := query(t, engine, "SELECT name FROM employees WHERE department = 'Engineering' ORDER BY salary DESC")
		if len(qr.Rows) != 2 || qr.Rows[0][0] != "Alice" {
			t.Errorf("Expected Alice first of 2 engineers, got %v", qr.Rows)
		}

		result := execute(t, engine, "UPDATE employees SET salary = salary + 5000 WHERE department = 'Sales'")
		if affected := result.(db.CommitResult).RowsAffected; affected != 2 {
			t.Errorf("Expected 2 rows updated, got %d", affected)
		}

		qr = query(t, engine, "SELECT salary FROM employees WHERE id = 3")
		if qr.Rows[0][0] != int64(75000) {
			t.Errorf("Expected salary 75000, got %v", qr.Rows[0][0])
		}

		result = execute(t, engine, "DELETE FROM employees WHERE department = 'Marketing'")
		if deleted := result.(db.CommitResult).RecordsDeleted; deleted != 1 {
			t.Errorf("Expected 1 record deleted, got %d", deleted)
		}

		qr = query(t, engine, "SELECT COUNT(*) FROM employees")
		if qr.Rows[0][0] != int64(4) {
			t.Errorf("Expected 4 employees, got %v", qr.Rows[0][0])
		}
	})
}

// TestIntegrationAggregates tests GROUP BY and HAVING in every dialect
func TestIntegrationAggregates(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		qr := query(t, engine, "SELECT department, COUNT(*), SUM(salary) FROM employees GROUP BY department HAVING COUNT(*) > 1 ORDER BY department")
		if len(qr.Rows) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(qr.Rows))
		}
		if qr.Rows[0][0] != "Engineering" || qr.Rows[0][1] != int64(2) {
			t.Errorf("Unexpected first group: %v", qr.Rows[0])
		}

		qr = query(t, engine, "SELECT MIN(salary), MAX(salary) FROM employees")
		if qr.Rows[0][0] != int64(65000) || qr.Rows[0][1] != int64(100000) {
			t.Errorf("Unexpected MIN/MAX: %v", qr.Rows[0])
		}
	})
}

// TestIntegrationDistinct tests DISTINCT in every dialect
func TestIntegrationDistinct(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		qr := query(t, engine, "SELECT DISTINCT department FROM employees ORDER BY department")
		if len(qr.Rows) != 3 {
			t.Errorf("Expected 3 distinct departments, got %d", len(qr.Rows))
		}
	})
}

// TestIntegrationWhereOperators tests comparison and logical operators
func TestIntegrationWhereOperators(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		tests := []struct {
			where string
			count int64
		}{
			{"salary > 80000", 2},
			{"salary >= 75000", 3},
			{"salary <> 65000", 4},
			{"department IN ('Sales', 'Marketing')", 3},
			{"department NOT IN ('Sales')", 3},
			{"name LIKE 'A%'", 1},
			{"salary BETWEEN 70000 AND 90000", 3},
			{"department = 'Sales' AND salary > 72000", 1},
			{"department = 'Sales' OR salary > 95000", 3},
			{"NOT (department = 'Engineering')", 3},
		}

		for _, tt := range tests {
			qr := query(t, engine, "SELECT COUNT(*) FROM employees WHERE "+tt.where)
			if qr.Rows[0][0] != tt.count {
				t.Errorf("WHERE %s: expected %d, got %v", tt.where, tt.count, qr.Rows[0][0])
			}
		}
	})
}

// TestIntegrationJoins tests joins and subqueries in every dialect
func TestIntegrationJoins(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)
		execute(t, engine, "CREATE TABLE departments (name VARCHAR(20) PRIMARY KEY, storey INT)")
		execute(t, engine, "INSERT INTO departments (name, storey) VALUES ('Engineering', 3), ('Sales', 1)")

		qr := query(t, engine, "SELECT e.name, d.storey FROM employees e JOIN departments d ON d.name = e.department ORDER BY e.id")
		if len(qr.Rows) != 4 {
			t.Errorf("Expected 4 joined rows, got %d", len(qr.Rows))
		}

		qr = query(t, engine, "SELECT e.name FROM employees e LEFT JOIN departments d ON d.name = e.department WHERE d.name IS NULL")
		if len(qr.Rows) != 1 || qr.Rows[0][0] != "Eve" {
			t.Errorf("Expected Eve without a department, got %v", qr.Rows)
		}

		qr = query(t, engine, "SELECT name FROM employees WHERE salary > (SELECT AVG(salary) FROM employees) ORDER BY name")
		if len(qr.Rows) != 2 {
			t.Errorf("Expected 2 above-average salaries, got %v", qr.Rows)
		}
	})
}

// TestIntegrationStringFunctions tests the portable string functions
func TestIntegrationStringFunctions(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		tests := []struct {
			expr     string
			expected any
		}{
			{"UPPER('hello')", "HELLO"},
			{"LOWER('HeLLo')", "hello"},
			{"TRIM('  padded  ')", "padded"},
			{"REPLACE('a-b-c', '-', '+')", "a+b+c"},
			{"SUBSTRING('database', 1, 4)", "data"},
			{"LEFT('database', 2)", "da"},
			{"RIGHT('database', 4)", "base"},
			{"COALESCE(NULL, 'fallback')", "fallback"},
		}

		execute(t, engine, "CREATE TABLE one (id INT PRIMARY KEY)")
		execute(t, engine, "INSERT INTO one (id) VALUES (1)")
		for _, tt := range tests {
			qr := query(t, engine, "SELECT "+tt.expr+" FROM one")
			if qr.Rows[0][0] != tt.expected {
				t.Errorf("%s: expected %v, got %v", tt.expr, tt.expected, qr.Rows[0][0])
			}
		}
	})
}

// TestIntegrationDateColumns tests DATE storage and date parts
func TestIntegrationDateColumns(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		execute(t, engine, "CREATE TABLE events (id INT PRIMARY KEY, happened DATE)")
		execute(t, engine, "INSERT INTO events (id, happened) VALUES (1, '2024-03-15'), (2, '2023-12-01')")

		qr := query(t, engine, "SELECT YEAR(happened), MONTH(happened), DAY(happened) FROM events WHERE id = 1")
		if qr.Rows[0][0] != int64(2024) || qr.Rows[0][1] != int64(3) || qr.Rows[0][2] != int64(15) {
			t.Errorf("Unexpected date parts: %v", qr.Rows[0])
		}

		qr = query(t, engine, "SELECT id FROM events ORDER BY happened")
		if qr.Rows[0][0] != int64(2) {
			t.Errorf("Expected the 2023 event first, got %v", qr.Rows[0][0])
		}
	})
}

// TestIntegrationErrorHandling tests that errors carry the taxonomy in every dialect
func TestIntegrationErrorHandling(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		_, err := engine.Execute("SELECT * FROM missing", nil)
		var schemaErr *core.SchemaError
		if !errors.As(err, &schemaErr) || schemaErr.Number() != core.ErrNumUnknownTable {
			t.Errorf("Expected unknown table error, got %v", err)
		}

		_, err = engine.Execute("SELEKT * FROM employees", nil)
		var syntaxErr *core.SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Errorf("Expected syntax error, got %v", err)
		}

		_, err = engine.Execute("INSERT INTO employees (id, name) VALUES (1, 'Dup')", nil)
		if core.ErrorNumber(err) != core.ErrNumDuplicateKey {
			t.Errorf("Expected duplicate key error, got %v", err)
		}
	})
}

// TestIntegrationTransactions tests rollback through the engine API in every dialect
func TestIntegrationTransactions(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)

		if _, err := engine.Begin(); err != nil {
			t.Fatalf("Failed to begin: %v", err)
		}
		execute(t, engine, "DELETE FROM employees")
		if err := engine.Savepoint("empty"); err != nil {
			t.Fatalf("Failed to create savepoint: %v", err)
		}
		execute(t, engine, "INSERT INTO employees (id, name) VALUES (9, 'Temp')")
		if err := engine.RollbackTo("empty"); err != nil {
			t.Fatalf("Failed to roll back to savepoint: %v", err)
		}
		qr := query(t, engine, "SELECT COUNT(*) FROM employees")
		if qr.Rows[0][0] != int64(0) {
			t.Errorf("Expected 0 rows at savepoint, got %v", qr.Rows[0][0])
		}
		if err := engine.Rollback(); err != nil {
			t.Fatalf("Failed to roll back: %v", err)
		}

		qr = query(t, engine, "SELECT COUNT(*) FROM employees")
		if qr.Rows[0][0] != int64(5) {
			t.Errorf("Expected 5 rows after rollback, got %v", qr.Rows[0][0])
		}
	})
}

// TestIntegrationDropOperations tests DROP commands
func TestIntegrationDropOperations(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		execute(t, engine, "CREATE TABLE temp (id INT PRIMARY KEY)")
		execute(t, engine, "DROP TABLE temp")

		if _, err := engine.Execute("SELECT * FROM temp", nil); err == nil {
			t.Error("Expected error accessing dropped table")
		}
	})
}

// TestIntegrationPlans tests that every query leaves a plan behind
func TestIntegrationPlans(t *testing.T) {
	runWithEachDialect(t, func(t *testing.T, engine *db.Engine) {
		seedEmployees(t, engine)
		query(t, engine, "SELECT * FROM employees WHERE salary > 1")

		last := engine.LastPlan()
		if last == nil {
			t.Fatal("Expected a plan after a query")
		}
		if last.Metrics.EstimatedRowsRead != 5 {
			t.Errorf("Expected 5 rows read, got %d", last.Metrics.EstimatedRowsRead)
		}
		if text := plan.Format(last); text == "" {
			t.Error("Expected formatted plan text")
		}
	})
}

// runWithBothFixtureStores runs a fixture test with memory and file stores
func runWithBothFixtureStores(t *testing.T, testFunc func(t *testing.T, instance *Instance)) {
	t.Run("Memory", func(t *testing.T) {
		store, err := ps.NewMemoryFixtureStore()
		if err != nil {
			t.Fatalf("Failed to initialize memory fixture store: %v", err)
		}
		testFunc(t, Attach(ps.NewDatabase(core.MySQL(8)), store))
	})

	t.Run("File", func(t *testing.T) {
		store, err := ps.NewFileFixtureStore(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Failed to initialize file fixture store: %v", err)
		}
		testFunc(t, Attach(ps.NewDatabase(core.MySQL(8)), store))
	})
}

// TestFixtureSnapshotRestore tests saving and restoring a seeded database
func TestFixtureSnapshotRestore(t *testing.T) {
	runWithBothFixtureStores(t, func(t *testing.T, instance *Instance) {
		engine := instance.Engine(testIdentity)
		seedEmployees(t, engine)

		if _, err := instance.Op().Snapshot(testIdentity, "seed employees", "baseline"); err != nil {
			t.Fatalf("Failed to snapshot: %v", err)
		}

		execute(t, engine, "DELETE FROM employees WHERE salary > 70000")
		execute(t, engine, "CREATE TABLE scratch (id INT PRIMARY KEY)")

		if err := instance.Op().Restore("baseline"); err != nil {
			t.Fatalf("Failed to restore: %v", err)
		}

		qr := query(t, engine, "SELECT COUNT(*) FROM employees")
		if qr.Rows[0][0] != int64(5) {
			t.Errorf("Expected 5 rows after restore, got %v", qr.Rows[0][0])
		}
		if _, err := engine.Execute("SELECT * FROM scratch", nil); err == nil {
			t.Error("Expected scratch table to be gone after restore")
		}
	})
}

// TestFileFixtureReopen tests that a snapshot survives reopening the store
func TestFileFixtureReopen(t *testing.T) {
	dir := t.TempDir()

	store1, err := ps.NewFileFixtureStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to open fixture store: %v", err)
	}
	first := Attach(ps.NewDatabase(core.MySQL(8)), store1)
	engine1 := first.Engine(testIdentity)
	execute(t, engine1, "CREATE TABLE data (id INT PRIMARY KEY, val VARCHAR(10))")
	execute(t, engine1, "INSERT INTO data (id, val) VALUES (1, 'hello'), (2, 'world')")
	if _, err := first.Op().Snapshot(testIdentity, "seed", "v1"); err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}

	store2, err := ps.NewFileFixtureStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to reopen fixture store: %v", err)
	}
	second := Attach(ps.NewDatabase(core.MySQL(8)), store2)
	if err := second.Op().Restore("v1"); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}

	qr := query(t, second.Engine(testIdentity), "SELECT val FROM data ORDER BY id")
	if len(qr.Rows) != 2 || qr.Rows[1][0] != "world" {
		t.Errorf("Expected 2 restored rows, got %v", qr.Rows)
	}
}
