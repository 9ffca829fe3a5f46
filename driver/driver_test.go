package driver

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/ps"
)

type user struct {
	ID   int64          `db:"id"`
	Name string         `db:"name"`
	Age  sql.NullInt64  `db:"age"`
	City sql.NullString `db:"city"`
}

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

func openTestDB(t *testing.T, dsn string) *sqlx.DB {
	t.Helper()
	sqlDB, err := sqlx.Open(DriverName, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	sqlDB.MustExec("CREATE TABLE users (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(50) NOT NULL, age INT, city VARCHAR(50))")
	return sqlDB
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect string
		version int
		name    string
		wantErr bool
	}{
		{dsn: "mysql", dialect: core.MySQLName, version: 8},
		{dsn: "mysql:5", dialect: core.MySQLName, version: 5},
		{dsn: "sqlserver:2012?name=fixtures", dialect: core.SQLServerName, version: 2012, name: "fixtures"},
		{dsn: "db2:9?name=x&schema=app", dialect: core.DB2Name, version: 9, name: "x"},
		{dsn: "oracle", wantErr: true},
		{dsn: "mysql:eight", wantErr: true},
		{dsn: "mysql?name=%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			config, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, config.Dialect.Name)
			assert.Equal(t, tt.version, config.Dialect.Version)
			assert.Equal(t, tt.name, config.Name)
			assert.Equal(t, DriverName, config.Identity.Name)
		})
	}
}

func TestOpenInvalidDSN(t *testing.T) {
	_, err := sql.Open(DriverName, "oracle:19")
	assert.Error(t, err)
}

func TestExecAndSelect(t *testing.T) {
	sqlDB := openTestDB(t, "mysql:8")

	result, err := sqlDB.Exec("INSERT INTO users (name, age, city) VALUES (?, ?, ?)", "Alice", 30, "Oslo")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = sqlDB.Exec("INSERT INTO users (name, age) VALUES (?, ?), (?, ?)", "Bob", 25, "Charlie", nil)
	require.NoError(t, err)

	var users []user
	require.NoError(t, sqlDB.Select(&users, "SELECT id, name, age, city FROM users ORDER BY id"))
	require.Len(t, users, 3)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, sql.NullString{String: "Oslo", Valid: true}, users[0].City)
	assert.False(t, users[2].Age.Valid)

	var bob user
	require.NoError(t, sqlDB.Get(&bob, "SELECT id, name, age, city FROM users WHERE name = @name", sql.Named("name", "Bob")))
	assert.Equal(t, int64(2), bob.ID)
	assert.Equal(t, int64(25), bob.Age.Int64)

	var count int
	require.NoError(t, sqlDB.Get(&count, "SELECT COUNT(*) FROM users WHERE age IS NOT NULL"))
	assert.Equal(t, 2, count)
}

func TestNamedExec(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")

	_, err := sqlDB.NamedExec("INSERT INTO users (name, age) VALUES (:name, :age)", []map[string]any{
		{"name": "Alice", "age": 30},
		{"name": "Bob", "age": 25},
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, sqlDB.Select(&names, "SELECT name FROM users ORDER BY age"))
	assert.Equal(t, []string{"Bob", "Alice"}, names)
}

func TestPreparedStatement(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")

	insert, err := sqlDB.Preparex("INSERT INTO users (name, age) VALUES (?, ?)")
	require.NoError(t, err)
	defer insert.Close()

	for i, name := range []string{"a", "b", "c"} {
		_, err := insert.Exec(name, 20+i)
		require.NoError(t, err)
	}

	var total int
	require.NoError(t, sqlDB.Get(&total, "SELECT SUM(age) FROM users"))
	assert.Equal(t, 63, total)

	_, err = sqlDB.Preparex("SELEC name FROM users")
	var syntaxErr *core.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestSliceExpandsInsideIn(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")
	sqlDB.MustExec("INSERT INTO users (name) VALUES ('a'), ('b'), ('c')")

	var names []string
	require.NoError(t, sqlDB.Select(&names, "SELECT name FROM users WHERE id IN (@ids) ORDER BY id", sql.Named("ids", []int{1, 3})))
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestTransactions(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")
	sqlDB.MustExec("INSERT INTO users (name) VALUES ('keep')")

	tx, err := sqlDB.Beginx()
	require.NoError(t, err)
	tx.MustExec("INSERT INTO users (name) VALUES ('discard')")
	var inside int
	require.NoError(t, tx.Get(&inside, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 2, inside)
	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, sqlDB.Get(&count, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 1, count)

	tx, err = sqlDB.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	tx.MustExec("INSERT INTO users (name) VALUES ('committed')")
	require.NoError(t, tx.Commit())

	require.NoError(t, sqlDB.Get(&count, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 2, count)
}

func TestNamedDatabaseIsShared(t *testing.T) {
	t.Cleanup(func() { Forget("shared_test") })

	first := openTestDB(t, "mysql:8?name=shared_test")
	first.MustExec("INSERT INTO users (name) VALUES ('from-first')")

	second, err := sqlx.Open(DriverName, "mysql?name=shared_test")
	require.NoError(t, err)
	defer second.Close()

	var name string
	require.NoError(t, second.Get(&name, "SELECT name FROM users"))
	assert.Equal(t, "from-first", name)

	_, err = sql.Open(DriverName, "db2?name=shared_test")
	assert.ErrorIs(t, err, ErrDialectMismatch)
}

func TestUnnamedDatabasesAreIsolated(t *testing.T) {
	openTestDB(t, "mysql")
	other, err := sqlx.Open(DriverName, "mysql")
	require.NoError(t, err)
	defer other.Close()

	_, err = other.Exec("SELECT * FROM users")
	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, core.ErrNumUnknownTable, schemaErr.Number())
}

func TestMySQLErrorMapping(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")
	sqlDB.MustExec("INSERT INTO users (id, name) VALUES (1, 'a')")

	_, err := sqlDB.Exec("INSERT INTO users (id, name) VALUES (1, 'b')")
	require.Error(t, err)

	var mysqlErr *mysql.MySQLError
	require.ErrorAs(t, err, &mysqlErr)
	assert.Equal(t, uint16(1062), mysqlErr.Number)
	assert.Equal(t, "23000", string(mysqlErr.SQLState[:]))

	var constraintErr *core.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Contains(t, constraintErr.Message, "Duplicate entry")

	_, err = sqlDB.Exec("INSERT INTO users (name) VALUES (NULL)")
	require.ErrorAs(t, err, &mysqlErr)
	assert.Equal(t, uint16(1048), mysqlErr.Number)
}

func TestOtherDialectsKeepEngineErrors(t *testing.T) {
	sqlDB, err := sqlx.Open(DriverName, "sqlserver:2019")
	require.NoError(t, err)
	defer sqlDB.Close()
	sqlDB.MustExec("CREATE TABLE t (id INT PRIMARY KEY)")
	sqlDB.MustExec("INSERT INTO t (id) VALUES (1)")

	_, err = sqlDB.Exec("INSERT INTO t (id) VALUES (1)")
	require.Error(t, err)

	var mysqlErr *mysql.MySQLError
	assert.False(t, errors.As(err, &mysqlErr))
	assert.Equal(t, core.ErrNumDuplicateKey, core.ErrorNumber(err))
}

func TestColumnTypes(t *testing.T) {
	sqlDB := openTestDB(t, "mysql")
	sqlDB.MustExec("INSERT INTO users (name, age) VALUES ('a', 1)")

	rows, err := sqlDB.Query("SELECT id, name FROM users")
	require.NoError(t, err)
	defer rows.Close()

	types, err := rows.ColumnTypes()
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "INT", types[0].DatabaseTypeName())
	assert.Equal(t, "STRING", types[1].DatabaseTypeName())
	nullable, ok := types[1].Nullable()
	assert.True(t, ok)
	assert.False(t, nullable)
}

func TestConnectorOverExistingDatabase(t *testing.T) {
	database := ps.NewDatabase(core.MySQL(8), ps.WithThreadSafe(true))
	engine := db.NewEngine(database, core.Identity{Name: "seed"})
	_, err := engine.Execute("CREATE TABLE items (id INT PRIMARY KEY, label VARCHAR(20))", nil)
	require.NoError(t, err)
	_, err = engine.Execute("INSERT INTO items VALUES (1, 'seeded')", nil)
	require.NoError(t, err)

	connector := NewConnector(database, core.Identity{Name: "app", Email: "app@test.com"})
	assert.Same(t, database, connector.Database())

	sqlDB := sqlx.NewDb(sql.OpenDB(connector), DriverName)
	defer sqlDB.Close()

	var label string
	require.NoError(t, sqlDB.Get(&label, "SELECT label FROM items WHERE id = ?", 1))
	assert.Equal(t, "seeded", label)

	var who string
	require.NoError(t, sqlDB.Get(&who, "SELECT CURRENT_USER()"))
	assert.Equal(t, "app <app@test.com>", who)
}
