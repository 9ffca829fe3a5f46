//go:build duckdb

package db

import (
	gosql "database/sql"
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"

	_ "github.com/duckdb/duckdb-go/v2"
)

// The queries below run against both the engine and DuckDB with identical
// data; results are compared after rendering every value as text.

const oracleRows = 200

func setupOracleEngine(t testing.TB) *Engine {
	t.Helper()
	engine := NewEngine(ps.NewDatabase(core.MySQL(8)), testIdentity)
	for _, ddl := range []string{
		"CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(50), age INT, city VARCHAR(50))",
		"CREATE TABLE orders (id INT PRIMARY KEY, userId INT, amount INT)",
	} {
		if _, err := engine.Execute(ddl, nil); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	for i := 1; i <= oracleRows; i++ {
		_, err := engine.Execute("INSERT INTO users VALUES (@id, @name, @age, @city)", map[string]any{
			"id": i, "name": "User" + strconv.Itoa(i), "age": 20 + i%50, "city": "City" + strconv.Itoa(i%10),
		})
		if err != nil {
			t.Fatalf("Failed to insert user: %v", err)
		}
		_, err = engine.Execute("INSERT INTO orders VALUES (@id, @user, @amount)", map[string]any{
			"id": i, "user": 1 + i%40, "amount": (i * 7) % 100,
		})
		if err != nil {
			t.Fatalf("Failed to insert order: %v", err)
		}
	}
	return engine
}

func setupOracleDuckDB(t testing.TB) *gosql.DB {
	t.Helper()
	duck, err := gosql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open DuckDB: %v", err)
	}
	t.Cleanup(func() { duck.Close() })

	for _, ddl := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR, age INTEGER, city VARCHAR)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, userId INTEGER, amount INTEGER)",
	} {
		if _, err := duck.Exec(ddl); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	for i := 1; i <= oracleRows; i++ {
		if _, err := duck.Exec("INSERT INTO users VALUES (?, ?, ?, ?)",
			i, "User"+strconv.Itoa(i), 20+i%50, "City"+strconv.Itoa(i%10)); err != nil {
			t.Fatalf("Failed to insert user: %v", err)
		}
		if _, err := duck.Exec("INSERT INTO orders VALUES (?, ?, ?)", i, 1+i%40, (i*7)%100); err != nil {
			t.Fatalf("Failed to insert order: %v", err)
		}
	}
	return duck
}

func duckRows(t *testing.T, duck *gosql.DB, query string) [][]string {
	t.Helper()
	rows, err := duck.Query(query)
	if err != nil {
		t.Fatalf("DuckDB query failed: %v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		t.Fatalf("Failed to read columns: %v", err)
	}
	var result [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			t.Fatalf("Failed to scan: %v", err)
		}
		cells := make([]string, len(values))
		for i, value := range values {
			cells[i] = oracleText(value)
		}
		result = append(result, cells)
	}
	return result
}

func engineRows(t *testing.T, engine *Engine, query string) [][]string {
	t.Helper()
	qr := mustQuery(t, engine, query, nil)
	result := make([][]string, len(qr.Rows))
	for i, row := range qr.Rows {
		cells := make([]string, len(row))
		for j, value := range row {
			cells[j] = oracleText(value)
		}
		result[i] = cells
	}
	return result
}

// oracleText renders numbers without a trailing .0 so int and float sums compare equal.
func oracleText(value any) string {
	switch v := value.(type) {
	case nil:
		return NullText
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case []byte:
		return string(v)
	}
	if number, ok := ps.ToInt(value); ok {
		if _, isString := value.(string); !isString {
			return strconv.FormatInt(number, 10)
		}
	}
	return fmt.Sprint(value)
}

func TestOracleAgainstDuckDB(t *testing.T) {
	engine := setupOracleEngine(t)
	duck := setupOracleDuckDB(t)

	queries := []string{
		"SELECT id, name FROM users WHERE age > 40 ORDER BY id",
		"SELECT city, COUNT(*) AS n, SUM(age) AS total FROM users GROUP BY city ORDER BY city",
		"SELECT city, MIN(age), MAX(age) FROM users GROUP BY city HAVING COUNT(*) > 10 ORDER BY city",
		"SELECT u.id, SUM(o.amount) AS spent FROM users u JOIN orders o ON o.userId = u.id GROUP BY u.id ORDER BY spent DESC, u.id LIMIT 10",
		"SELECT u.id, COUNT(o.id) FROM users u LEFT JOIN orders o ON o.userId = u.id WHERE u.id <= 50 GROUP BY u.id ORDER BY u.id",
		"SELECT DISTINCT age FROM users WHERE city IN ('City1', 'City2') ORDER BY age",
		"SELECT id FROM users WHERE id IN (SELECT userId FROM orders WHERE amount > 90) ORDER BY id",
		"SELECT id, ROW_NUMBER() OVER (PARTITION BY city ORDER BY age, id) AS rn FROM users ORDER BY id LIMIT 30",
		"SELECT id FROM users WHERE age BETWEEN 30 AND 35 UNION SELECT userId FROM orders WHERE amount < 5 ORDER BY 1",
		"SELECT name FROM users WHERE name LIKE 'User1%' ORDER BY id LIMIT 5 OFFSET 2",
		"WITH big AS (SELECT userId, SUM(amount) AS total FROM orders GROUP BY userId) SELECT userId FROM big WHERE total > 250 ORDER BY userId",
	}

	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			want := duckRows(t, duck, query)
			got := engineRows(t, engine, query)
			if len(want) == 0 && len(got) == 0 {
				return
			}
			if !reflect.DeepEqual(want, got) {
				t.Errorf("Results differ\nDuckDB: %v\nEngine: %v", want, got)
			}
		})
	}
}

// BenchmarkComparative runs the same queries on the engine and on DuckDB.
// DuckDB rows are fully scanned so both sides materialize the result.
func BenchmarkComparative(b *testing.B) {
	engine := setupOracleEngine(b)
	duck := setupOracleDuckDB(b)

	queries := []struct {
		name  string
		query string
	}{
		{"SelectAll", "SELECT * FROM users"},
		{"SelectWhere", "SELECT * FROM users WHERE age > 40"},
		{"OrderBy", "SELECT * FROM users ORDER BY age DESC, id"},
		{"Count", "SELECT COUNT(*) FROM users"},
		{"Sum", "SELECT SUM(age) FROM users"},
		{"GroupBy", "SELECT city, COUNT(*), AVG(age) FROM users GROUP BY city"},
		{"Limit", "SELECT * FROM users ORDER BY id LIMIT 10"},
		{"Join", "SELECT u.name, o.amount FROM users u JOIN orders o ON o.userId = u.id WHERE o.amount > 50"},
	}

	for _, q := range queries {
		b.Run("Engine/"+q.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := engine.Execute(q.query, nil); err != nil {
					b.Fatalf("Execute error: %v", err)
				}
			}
		})
		b.Run("DuckDB/"+q.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				rows, err := duck.Query(q.query)
				if err != nil {
					b.Fatalf("Query error: %v", err)
				}
				columns, _ := rows.Columns()
				values := make([]any, len(columns))
				pointers := make([]any, len(columns))
				for j := range values {
					pointers[j] = &values[j]
				}
				for rows.Next() {
					rows.Scan(pointers...)
				}
				rows.Close()
			}
		})
	}
}
