package db

import (
	"strconv"
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// setupBenchmarkEngine creates users(id, name, age, city) with 1000 rows.
func setupBenchmarkEngine(b *testing.B) *Engine {
	b.Helper()
	engine := NewEngine(ps.NewDatabase(core.MySQL(8)), core.Identity{Name: "benchmark", Email: "bench@test.com"})

	if _, err := engine.Execute("CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(50), age INT, city VARCHAR(50))", nil); err != nil {
		b.Fatalf("Failed to create table: %v", err)
	}
	for i := 1; i <= 1000; i++ {
		_, err := engine.Execute("INSERT INTO users (id, name, age, city) VALUES (@id, @name, @age, @city)", map[string]any{
			"id":   i,
			"name": "User" + strconv.Itoa(i),
			"age":  20 + i%50,
			"city": "City" + strconv.Itoa(i%10),
		})
		if err != nil {
			b.Fatalf("Failed to insert: %v", err)
		}
	}
	return engine
}

func BenchmarkParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"SimpleSelect", "SELECT * FROM users"},
		{"SelectWithWhere", "SELECT * FROM users WHERE age > 30"},
		{"SelectWithIn", "SELECT * FROM users WHERE city IN ('City1', 'City2', 'City3')"},
		{"SelectComplex", "SELECT * FROM users WHERE age > 25 AND city = 'City5' ORDER BY name ASC LIMIT 10"},
		{"Join", "SELECT u.name, o.amount FROM users u JOIN orders o ON o.userId = u.id WHERE o.amount > 10"},
		{"Insert", "INSERT INTO users (id, name, age, city) VALUES (1, 'Test', 25, 'NYC')"},
		{"Update", "UPDATE users SET age = 30 WHERE id = 1"},
	}

	dialect := core.MySQL(8)
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := sql.Parse(q.query, dialect); err != nil {
					b.Fatalf("Parse error: %v", err)
				}
			}
		})
	}
}

func BenchmarkSelect(b *testing.B) {
	engine := setupBenchmarkEngine(b)

	queries := []struct {
		name  string
		query string
	}{
		{"All", "SELECT * FROM users"},
		{"Where", "SELECT * FROM users WHERE age > 40"},
		{"PrimaryKey", "SELECT * FROM users WHERE id = 500"},
		{"OrderBy", "SELECT * FROM users ORDER BY age DESC"},
		{"Limit", "SELECT * FROM users LIMIT 10"},
		{"Count", "SELECT COUNT(*) FROM users"},
		{"GroupBy", "SELECT city, COUNT(*), AVG(age) FROM users GROUP BY city"},
		{"Complex", "SELECT * FROM users WHERE age > 30 AND city = 'City5' ORDER BY age DESC LIMIT 20"},
		{"Window", "SELECT id, ROW_NUMBER() OVER (PARTITION BY city ORDER BY age) AS rn FROM users"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Execute(q.query, nil); err != nil {
					b.Fatalf("Execute error: %v", err)
				}
			}
		})
	}
}

func BenchmarkInsert(b *testing.B) {
	engine := NewEngine(ps.NewDatabase(core.MySQL(8)), core.Identity{Name: "benchmark"})
	if _, err := engine.Execute("CREATE TABLE items (id INT PRIMARY KEY, value VARCHAR(50))", nil); err != nil {
		b.Fatalf("Failed to create table: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := engine.Execute("INSERT INTO items (id, value) VALUES (@id, 'value')", map[string]any{"id": i})
		if err != nil {
			b.Fatalf("Execute error: %v", err)
		}
	}
}

func BenchmarkTransactionRollback(b *testing.B) {
	engine := setupBenchmarkEngine(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Begin(); err != nil {
			b.Fatalf("Begin error: %v", err)
		}
		if _, err := engine.Execute("UPDATE users SET age = age + 1 WHERE city = 'City1'", nil); err != nil {
			b.Fatalf("Execute error: %v", err)
		}
		if err := engine.Rollback(); err != nil {
			b.Fatalf("Rollback error: %v", err)
		}
	}
}
