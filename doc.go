// Package SqlLikeMem provides an embedded in-memory SQL engine that emulates
// the MySQL, SQL Server and DB2 dialects, so code written against a real
// database can be tested without one.
//
// # Quick Start
//
// Create a MySQL 8 database and run statements against it:
//
//	instance := SqlLikeMem.Open(core.MySQL(8))
//	engine := instance.Engine(core.Identity{Name: "App", Email: "app@example.com"})
//
//	engine.Execute("CREATE TABLE users (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(50))", nil)
//	engine.Execute("INSERT INTO users (name) VALUES (@name)", map[string]any{"name": "Alice"})
//
//	result, _ := engine.Execute("SELECT * FROM users", nil)
//	result.Display()
//
// Every query leaves an execution plan behind:
//
//	fmt.Println(plan.Format(engine.LastPlan()))
//
// # Fixtures
//
// A fixture store keeps git-backed snapshots of a database:
//
//	store, _ := ps.NewMemoryFixtureStore()
//	instance := SqlLikeMem.Attach(database, store)
//	instance.Op().Snapshot(identity, "seed", "baseline")
//	instance.Op().Restore("baseline")
//
// # Supported SQL
//
// The dialect decides which of these are accepted:
//   - CREATE/DROP TABLE, VIEW, INDEX and temporary tables
//   - INSERT (multi-row, ON DUPLICATE KEY UPDATE), UPDATE, DELETE, UPDATE/DELETE with JOIN
//   - SELECT with WHERE, GROUP BY, HAVING, ORDER BY, DISTINCT
//   - LIMIT/OFFSET, TOP and OFFSET ... FETCH
//   - INNER, LEFT, RIGHT and CROSS joins, subqueries, derived tables and CTEs
//   - UNION and UNION ALL, window functions
//   - BEGIN, COMMIT, ROLLBACK and savepoints
//   - CALL and EXEC of registered procedures
//
// Applications that use database/sql can import the driver package instead.
package SqlLikeMem
