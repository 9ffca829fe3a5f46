package sql

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
)

func intPtr(v int) *int {
	return &v
}

func lit(v any) Literal {
	return Literal{Value: v}
}

func col(name string) ColumnRef {
	return ColumnRef{Name: name}
}

func TestParser(t *testing.T) {
	mysql := core.MySQL(8)
	sqlServer := core.SQLServer(2019)
	db2 := core.DB2(11)

	tests := []struct {
		name     string
		dialect  core.Dialect
		sql      string
		expected Statement
	}{
		{
			"select wildcard",
			mysql,
			"SELECT * FROM users",
			SelectStatement{
				Items: []SelectItem{{Expr: StarExpr{}}},
				From:  &TableSource{Table: TableName{Name: "users"}},
			},
		},
		{
			"select columns with aliases",
			mysql,
			"SELECT u.id, name AS n, age years FROM app.users u",
			SelectStatement{
				Items: []SelectItem{
					{Expr: ColumnRef{Table: "u", Name: "id"}},
					{Expr: col("name"), Alias: "n"},
					{Expr: col("age"), Alias: "years"},
				},
				From: &TableSource{Table: TableName{Schema: "app", Name: "users"}, Alias: "u"},
			},
		},
		{
			"and binds tighter than or",
			mysql,
			"SELECT id FROM users WHERE id = 1 OR id = 2 AND name = 'Bob'",
			SelectStatement{
				Items: []SelectItem{{Expr: col("id")}},
				From:  &TableSource{Table: TableName{Name: "users"}},
				Where: BinaryExpr{
					Op:   core.OpOr,
					Left: BinaryExpr{Op: core.OpEq, Left: col("id"), Right: lit(int64(1))},
					Right: BinaryExpr{
						Op:    core.OpAnd,
						Left:  BinaryExpr{Op: core.OpEq, Left: col("id"), Right: lit(int64(2))},
						Right: BinaryExpr{Op: core.OpEq, Left: col("name"), Right: lit("Bob")},
					},
				},
			},
		},
		{
			"arithmetic precedence",
			mysql,
			"SELECT 1 + 2 * -3",
			SelectStatement{
				Items: []SelectItem{{Expr: BinaryExpr{
					Op:    core.OpAdd,
					Left:  lit(int64(1)),
					Right: BinaryExpr{Op: core.OpMul, Left: lit(int64(2)), Right: lit(int64(-3))},
				}}},
			},
		},
		{
			"predicates",
			mysql,
			"SELECT id FROM t WHERE a NOT IN (1, 2) AND b BETWEEN 3 AND 4 AND c NOT LIKE 'x%' AND d IS NOT NULL",
			SelectStatement{
				Items: []SelectItem{{Expr: col("id")}},
				From:  &TableSource{Table: TableName{Name: "t"}},
				Where: BinaryExpr{
					Op: core.OpAnd,
					Left: BinaryExpr{
						Op: core.OpAnd,
						Left: BinaryExpr{
							Op:    core.OpAnd,
							Left:  InExpr{Operand: col("a"), List: []Expr{lit(int64(1)), lit(int64(2))}, Not: true},
							Right: BetweenExpr{Operand: col("b"), Low: lit(int64(3)), High: lit(int64(4))},
						},
						Right: LikeExpr{Operand: col("c"), Pattern: lit("x%"), Not: true},
					},
					Right: IsNullExpr{Operand: col("d"), Not: true},
				},
			},
		},
		{
			"parameters",
			mysql,
			"SELECT id FROM users WHERE id = @Id AND name = ?",
			SelectStatement{
				Items: []SelectItem{{Expr: col("id")}},
				From:  &TableSource{Table: TableName{Name: "users"}},
				Where: BinaryExpr{
					Op:    core.OpAnd,
					Left:  BinaryExpr{Op: core.OpEq, Left: col("id"), Right: Param{Name: "Id"}},
					Right: BinaryExpr{Op: core.OpEq, Left: col("name"), Right: Param{Position: 1}},
				},
			},
		},
		{
			"mysql limit offset comma form",
			mysql,
			"SELECT id FROM users ORDER BY id DESC LIMIT 5, 10",
			SelectStatement{
				Items:   []SelectItem{{Expr: col("id")}},
				From:    &TableSource{Table: TableName{Name: "users"}},
				OrderBy: []OrderItem{{Expr: col("id"), Descending: true}},
				Limit:   &LimitClause{Count: lit(int64(10)), Offset: lit(int64(5)), Syntax: LimitSyntaxLimit},
			},
		},
		{
			"sql server top",
			sqlServer,
			"SELECT TOP (3) [Name] FROM [dbo].[Users]",
			SelectStatement{
				Items: []SelectItem{{Expr: col("Name")}},
				From:  &TableSource{Table: TableName{Schema: "dbo", Name: "Users"}},
				Limit: &LimitClause{Count: lit(int64(3)), Syntax: LimitSyntaxTop},
			},
		},
		{
			"sql server offset fetch",
			sqlServer,
			"SELECT id FROM users ORDER BY id OFFSET 2 ROWS FETCH NEXT 4 ROWS ONLY",
			SelectStatement{
				Items:   []SelectItem{{Expr: col("id")}},
				From:    &TableSource{Table: TableName{Name: "users"}},
				OrderBy: []OrderItem{{Expr: col("id")}},
				Limit:   &LimitClause{Count: lit(int64(4)), Offset: lit(int64(2)), Syntax: LimitSyntaxFetch},
			},
		},
		{
			"db2 fetch first",
			db2,
			`SELECT "id" FROM users FETCH FIRST 3 ROWS ONLY`,
			SelectStatement{
				Items: []SelectItem{{Expr: col("id")}},
				From:  &TableSource{Table: TableName{Name: "users"}},
				Limit: &LimitClause{Count: lit(int64(3)), Syntax: LimitSyntaxFetch},
			},
		},
		{
			"union with trailing order and limit",
			mysql,
			"SELECT 1 UNION SELECT 1 ORDER BY 1 LIMIT 1",
			UnionStatement{
				Parts: []SelectStatement{
					{Items: []SelectItem{{Expr: lit(int64(1))}}},
					{Items: []SelectItem{{Expr: lit(int64(1))}}},
				},
				All:     []bool{false},
				OrderBy: []OrderItem{{Expr: lit(int64(1))}},
				Limit:   &LimitClause{Count: lit(int64(1)), Syntax: LimitSyntaxLimit},
			},
		},
		{
			"cte",
			mysql,
			"WITH big (id) AS (SELECT id FROM users) SELECT id FROM big",
			SelectStatement{
				With: []CTE{{
					Name:    "big",
					Columns: []string{"id"},
					Query: SelectStatement{
						Items: []SelectItem{{Expr: col("id")}},
						From:  &TableSource{Table: TableName{Name: "users"}},
					},
				}},
				Items: []SelectItem{{Expr: col("id")}},
				From:  &TableSource{Table: TableName{Name: "big"}},
			},
		},
		{
			"left join",
			mysql,
			"SELECT u.id FROM users u LEFT OUTER JOIN orders o ON o.userId = u.id",
			SelectStatement{
				Items: []SelectItem{{Expr: ColumnRef{Table: "u", Name: "id"}}},
				From:  &TableSource{Table: TableName{Name: "users"}, Alias: "u"},
				Joins: []JoinClause{{
					Type:   LeftJoin,
					Source: TableSource{Table: TableName{Name: "orders"}, Alias: "o"},
					On: BinaryExpr{
						Op:    core.OpEq,
						Left:  ColumnRef{Table: "o", Name: "userId"},
						Right: ColumnRef{Table: "u", Name: "id"},
					},
				}},
			},
		},
		{
			"group by having",
			mysql,
			"SELECT userId, SUM(amount) AS total FROM orders GROUP BY userId HAVING 2 > 10",
			SelectStatement{
				Items: []SelectItem{
					{Expr: col("userId")},
					{Expr: FuncCall{Name: "SUM", Args: []Expr{col("amount")}}, Alias: "total"},
				},
				From:    &TableSource{Table: TableName{Name: "orders"}},
				GroupBy: []Expr{col("userId")},
				Having:  BinaryExpr{Op: core.OpGreater, Left: lit(int64(2)), Right: lit(int64(10))},
			},
		},
		{
			"row number window",
			mysql,
			"SELECT ROW_NUMBER() OVER (PARTITION BY tenant ORDER BY id) AS rn FROM users",
			SelectStatement{
				Items: []SelectItem{{
					Expr: WindowExpr{
						Func:        FuncCall{Name: "ROW_NUMBER"},
						PartitionBy: []Expr{col("tenant")},
						OrderBy:     []OrderItem{{Expr: col("id")}},
					},
					Alias: "rn",
				}},
				From: &TableSource{Table: TableName{Name: "users"}},
			},
		},
		{
			"insert values",
			mysql,
			"INSERT INTO users (id, name) VALUES (1, 'a'), (2, DEFAULT)",
			InsertStatement{
				Table:   TableName{Name: "users"},
				Columns: []string{"id", "name"},
				Rows: [][]Expr{
					{lit(int64(1)), lit("a")},
					{lit(int64(2)), DefaultExpr{}},
				},
			},
		},
		{
			"insert on duplicate key update",
			mysql,
			"INSERT INTO users (id, name) VALUES (1, 'a') ON DUPLICATE KEY UPDATE name = VALUES(name)",
			InsertStatement{
				Table:       TableName{Name: "users"},
				Columns:     []string{"id", "name"},
				Rows:        [][]Expr{{lit(int64(1)), lit("a")}},
				OnDuplicate: []Assignment{{Column: col("name"), Value: FuncCall{Name: "VALUES", Args: []Expr{col("name")}}}},
			},
		},
		{
			"update",
			mysql,
			"UPDATE users SET name = 'x', age = age + 1 WHERE id = 5",
			UpdateStatement{
				Target: "users",
				Table:  TableSource{Table: TableName{Name: "users"}},
				Set: []Assignment{
					{Column: col("name"), Value: lit("x")},
					{Column: col("age"), Value: BinaryExpr{Op: core.OpAdd, Left: col("age"), Right: lit(int64(1))}},
				},
				Where: BinaryExpr{Op: core.OpEq, Left: col("id"), Right: lit(int64(5))},
			},
		},
		{
			"delete",
			db2,
			"DELETE FROM users WHERE id = 1",
			DeleteStatement{
				Target: "users",
				Table:  TableSource{Table: TableName{Name: "users"}},
				Where:  BinaryExpr{Op: core.OpEq, Left: col("id"), Right: lit(int64(1))},
			},
		},
		{
			"create table",
			mysql,
			"CREATE TABLE users (id INT PRIMARY KEY AUTO_INCREMENT, name VARCHAR(50) NOT NULL, amount DECIMAL(10,2) DEFAULT 0)",
			CreateTableStatement{
				Table: TableName{Name: "users"},
				Columns: []ColumnSpec{
					{Name: "id", TypeName: "INT", Type: core.IntType, PrimaryKey: true, Identity: true},
					{Name: "name", TypeName: "VARCHAR", Type: core.StringType, Size: intPtr(50)},
					{Name: "amount", TypeName: "DECIMAL", Type: core.DecimalType, Size: intPtr(10), DecimalPlaces: intPtr(2), Nullable: true, Default: lit(int64(0))},
				},
			},
		},
		{
			"create unique index with include",
			sqlServer,
			"CREATE UNIQUE INDEX IX_Users_Email ON Users (Email) INCLUDE (Name)",
			CreateIndexStatement{
				Name:    "IX_Users_Email",
				Table:   TableName{Name: "Users"},
				Columns: []string{"Email"},
				Include: []string{"Name"},
				Unique:  true,
			},
		},
		{
			"drop table if exists",
			mysql,
			"DROP TABLE IF EXISTS users",
			DropTableStatement{Table: TableName{Name: "users"}, IfExists: true},
		},
		{
			"rollback to savepoint",
			mysql,
			"ROLLBACK TO SAVEPOINT sp1",
			RollbackStatement{Savepoint: "sp1"},
		},
		{
			"exec with named output argument",
			sqlServer,
			"EXEC dbo.GetUser @id = 5, @name = @out OUTPUT",
			CallStatement{
				Procedure: TableName{Schema: "dbo", Name: "GetUser"},
				Args: []CallArg{
					{Name: "id", Value: lit(int64(5))},
					{Name: "name", Value: Param{Name: "out"}, Output: true},
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := Parse(test.sql, test.dialect)

			if err != nil {
				t.Errorf("Test Failed: Unexpected error: %v", err)
				return
			}

			if !reflect.DeepEqual(actual, test.expected) {
				t.Errorf("Test Failed: Expected %+v, got %+v", test.expected, actual)
			}
		})
	}
}

func TestParserDialectGates(t *testing.T) {
	tests := []struct {
		name    string
		dialect core.Dialect
		sql     string
	}{
		{"limit on sql server", core.SQLServer(2019), "SELECT id FROM users LIMIT 5"},
		{"top on mysql", core.MySQL(8), "SELECT TOP 5 id FROM users"},
		{"offset fetch before 2012", core.SQLServer(2008), "SELECT id FROM users ORDER BY id OFFSET 1 ROWS"},
		{"offset fetch without order by", core.SQLServer(2019), "SELECT id FROM users OFFSET 1 ROWS FETCH NEXT 2 ROWS ONLY"},
		{"offset fetch on mysql", core.MySQL(8), "SELECT id FROM users ORDER BY id OFFSET 1 ROWS"},
		{"cte below mysql 8", core.MySQL(5), "WITH x AS (SELECT 1) SELECT * FROM x"},
		{"window below mysql 8", core.MySQL(5), "SELECT ROW_NUMBER() OVER (ORDER BY id) FROM users"},
		{"null safe equality on sql server", core.SQLServer(2019), "SELECT id FROM users WHERE a <=> b"},
		{"json arrow on db2", core.DB2(11), "SELECT doc->'$.a' FROM users"},
		{"limit on db2", core.DB2(11), "SELECT id FROM users LIMIT 1"},
		{"on duplicate key on sql server", core.SQLServer(2019), "INSERT INTO users (id) VALUES (1) ON DUPLICATE KEY UPDATE id = 2"},
		{"backtick on db2", core.DB2(11), "SELECT `id` FROM users"},
		{"backtick on sql server", core.SQLServer(2019), "SELECT `id` FROM users"},
		{"delete without from on db2", core.DB2(11), "DELETE users WHERE id = 1"},
		{"index hint on sql server", core.SQLServer(2019), "SELECT id FROM users USE INDEX (ix) WHERE id = 1"},
		{"unterminated string", core.MySQL(8), "SELECT 'abc"},
		{"unterminated identifier", core.SQLServer(2019), "SELECT [abc FROM t"},
		{"trailing garbage", core.MySQL(8), "SELECT id FROM users users2 users3"},
		{"unknown statement", core.MySQL(8), "FROBNICATE users"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.sql, test.dialect)
			if err == nil {
				t.Fatalf("expected parse error for %q", test.sql)
			}
			var syntaxErr *core.SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Errorf("expected *core.SyntaxError, got %T: %v", err, err)
			}
			if core.ErrorNumber(err) != core.ErrNumSyntax {
				t.Errorf("expected error number %d, got %d", core.ErrNumSyntax, core.ErrorNumber(err))
			}
		})
	}
}

func TestParserAcceptsDialectSyntax(t *testing.T) {
	tests := []struct {
		name    string
		dialect core.Dialect
		sql     string
		kind    StatementType
	}{
		{"mysql update join", core.MySQL(8), "UPDATE users u JOIN (SELECT userId, SUM(amount) AS total FROM orders GROUP BY userId) s ON s.userId = u.id SET u.total = s.total WHERE u.active = 1", UpdateStatementType},
		{"sql server update from", core.SQLServer(2019), "UPDATE u SET u.total = s.total FROM users u JOIN (SELECT userId, SUM(amount) AS total FROM orders GROUP BY userId) s ON s.userId = u.id", UpdateStatementType},
		{"delete target alias", core.MySQL(8), "DELETE u FROM users u JOIN orders o ON o.userId = u.id WHERE o.amount > 10", DeleteStatementType},
		{"delete without from", core.SQLServer(2019), "DELETE users WHERE id = 1", DeleteStatementType},
		{"temporary table as select", core.MySQL(8), "CREATE TEMPORARY TABLE IF NOT EXISTS tmp AS SELECT id FROM users", CreateTemporaryTableStatementType},
		{"hash temp table", core.SQLServer(2019), "CREATE TABLE #tmp (id INT, name NVARCHAR(MAX))", CreateTemporaryTableStatementType},
		{"global temporary table", core.DB2(11), "CREATE GLOBAL TEMPORARY TABLE tmp (id, name) AS SELECT id, name FROM users", CreateTemporaryTableStatementType},
		{"view", core.MySQL(8), "CREATE OR REPLACE VIEW active_users AS SELECT * FROM users WHERE active = 1", CreateViewStatementType},
		{"computed column", core.SQLServer(2019), "CREATE TABLE items (price DECIMAL(10,2), qty INT, total AS (price * qty) PERSISTED)", CreateTableStatementType},
		{"generated column", core.MySQL(8), "CREATE TABLE items (price DECIMAL(10,2), qty INT, total DECIMAL(10,2) GENERATED ALWAYS AS (price * qty) STORED)", CreateTableStatementType},
		{"foreign key", core.MySQL(8), "CREATE TABLE orders (id INT PRIMARY KEY, userId INT, CONSTRAINT fk_user FOREIGN KEY (userId) REFERENCES users(id) ON DELETE CASCADE)", CreateTableStatementType},
		{"enum column", core.MySQL(8), "CREATE TABLE t (status ENUM('a','b') NOT NULL, tags SET('x','y'))", CreateTableStatementType},
		{"json arrows", core.MySQL(8), "SELECT doc->>'$.name' FROM docs WHERE doc->'$.id' = 1", SelectStatementType},
		{"null safe equality", core.DB2(11), "SELECT id FROM users WHERE a <=> NULL", SelectStatementType},
		{"mysql index hint", core.MySQL(8), "SELECT id FROM users USE INDEX (ix_name) WHERE name = 'a'", SelectStatementType},
		{"sql server table hint", core.SQLServer(2019), "SELECT id FROM users WITH (NOLOCK) WHERE id = 1", SelectStatementType},
		{"hash comment", core.MySQL(8), "SELECT id FROM users # trailing comment", SelectStatementType},
		{"exists subquery", core.DB2(11), "SELECT id FROM users u WHERE NOT EXISTS (SELECT 1 FROM orders o WHERE o.userId = u.id)", SelectStatementType},
		{"union all chain", core.SQLServer(2019), "SELECT id FROM a UNION ALL SELECT id FROM b UNION SELECT id FROM c", UnionStatementType},
		{"derived table", core.MySQL(8), "SELECT x.id FROM (SELECT id FROM users) AS x", SelectStatementType},
		{"case and cast", core.MySQL(8), "SELECT CASE WHEN id > 1 THEN 'big' ELSE 'small' END, CAST(id AS CHAR(10)) FROM users", SelectStatementType},
		{"begin", core.SQLServer(2019), "BEGIN TRANSACTION", BeginStatementType},
		{"start transaction", core.MySQL(8), "START TRANSACTION", BeginStatementType},
		{"save tran", core.SQLServer(2019), "SAVE TRANSACTION sp1", SavepointStatementType},
		{"release savepoint", core.DB2(11), "RELEASE SAVEPOINT sp1", ReleaseSavepointStatementType},
		{"set isolation", core.MySQL(8), "SET TRANSACTION ISOLATION LEVEL READ COMMITTED", SetTransactionStatementType},
		{"call", core.MySQL(8), "CALL sp_user(1, @out)", CallStatementType},
		{"alter add column", core.MySQL(8), "ALTER TABLE users ADD COLUMN email VARCHAR(100)", AlterTableStatementType},
		{"drop index on", core.MySQL(8), "DROP INDEX ix_name ON users", DropIndexStatementType},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			statement, err := Parse(test.sql, test.dialect)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if statement.Type() != test.kind {
				t.Errorf("expected %s, got %s", test.kind, statement.Type())
			}
		})
	}
}

func TestParseComputedColumn(t *testing.T) {
	statement, err := Parse("CREATE TABLE items (price DECIMAL(10,2), qty INT, total AS (price * qty) PERSISTED)", core.SQLServer(2019))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	create := statement.(CreateTableStatement)
	if len(create.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(create.Columns))
	}
	total := create.Columns[2]
	if total.Computed != "price * qty" {
		t.Errorf("expected computed text 'price * qty', got %q", total.Computed)
	}
	if !total.Persisted {
		t.Error("expected persisted computed column")
	}
}

func TestParseMulti(t *testing.T) {
	statements, err := ParseMulti(`
		CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20));
		INSERT INTO users VALUES (1, 'a');;
		SELECT * FROM users;
	`, core.MySQL(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []StatementType{CreateTableStatementType, InsertStatementType, SelectStatementType}
	if len(statements) != len(expected) {
		t.Fatalf("expected %d statements, got %d", len(expected), len(statements))
	}
	for i, statement := range statements {
		if statement.Type() != expected[i] {
			t.Errorf("statement %d: expected %s, got %s", i, expected[i], statement.Type())
		}
	}
}

func TestNormalizeParamName(t *testing.T) {
	tests := map[string]string{
		"@id":     "id",
		"@@id":    "id",
		":id":     "id",
		"?id":     "id",
		"@`id`":   "id",
		"@'id'":   "id",
		`@"id"`:   "id",
		"[id]":    "id",
		"?":       "",
		"plainId": "plainId",
	}
	for raw, expected := range tests {
		if actual := NormalizeParamName(raw); actual != expected {
			t.Errorf("NormalizeParamName(%q) = %q, expected %q", raw, actual, expected)
		}
	}
	if ParamKey("@UserId") != ParamKey(":userid") {
		t.Error("expected parameter keys to match case-insensitively")
	}
}

func TestExprString(t *testing.T) {
	statement, err := Parse("SELECT id FROM users WHERE name LIKE 'a%' AND id IN (1, 2)", core.MySQL(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	where := statement.(SelectStatement).Where.String()
	expected := "(name LIKE 'a%' AND id IN (1, 2))"
	if where != expected {
		t.Errorf("expected %q, got %q", expected, where)
	}
}
