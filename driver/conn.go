package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

type conn struct {
	engine *db.Engine
	closed bool
}

var (
	_ driver.Conn               = (*conn)(nil)
	_ driver.ConnBeginTx        = (*conn)(nil)
	_ driver.ConnPrepareContext = (*conn)(nil)
	_ driver.ExecerContext      = (*conn)(nil)
	_ driver.QueryerContext     = (*conn)(nil)
	_ driver.NamedValueChecker  = (*conn)(nil)
	_ driver.SessionResetter    = (*conn)(nil)
	_ driver.Validator          = (*conn)(nil)
)

// Engine exposes the connection's engine through sql.Conn.Raw.
func (c *conn) Engine() *db.Engine {
	return c.engine
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	statement, err := sql.Parse(query, c.engine.Dialect())
	if err != nil {
		return nil, c.translate(err)
	}
	return &stmt{conn: c, statement: statement}, nil
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.engine.Transaction() != nil {
		return c.engine.Rollback()
	}
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := c.engine.Begin(); err != nil {
		return nil, c.translate(err)
	}
	return &tx{conn: c}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := c.engine.Execute(query, bindArgs(args))
	if err != nil {
		return nil, c.translate(err)
	}
	return newResult(result), nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := c.engine.Execute(query, bindArgs(args))
	if err != nil {
		return nil, c.translate(err)
	}
	return newRows(result), nil
}

// CheckNamedValue lets slices through unchanged so they can expand inside IN.
func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if driver.IsValue(nv.Value) {
		return nil
	}
	if value := reflect.ValueOf(nv.Value); value.Kind() == reflect.Slice {
		return nil
	}
	converted, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = converted
	return nil
}

func (c *conn) ResetSession(ctx context.Context) error {
	if c.closed {
		return driver.ErrBadConn
	}
	return nil
}

func (c *conn) IsValid() bool {
	return !c.closed
}

func (c *conn) translate(err error) error {
	return translateError(c.engine.Dialect(), err)
}

// bindArgs keys named arguments by name and positional ones by their 1-based ordinal.
func bindArgs(args []driver.NamedValue) map[string]any {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		if arg.Name != "" {
			params[arg.Name] = arg.Value
			continue
		}
		params[strconv.Itoa(arg.Ordinal)] = arg.Value
	}
	return params
}

type stmt struct {
	conn      *conn
	statement sql.Statement
}

func (s *stmt) Close() error {
	return nil
}

// NumInput returns -1; parameters are checked when the statement runs.
func (s *stmt) NumInput() int {
	return -1
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if s.conn.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.conn.engine.ExecuteStatement(s.statement, bindArgs(args))
	if err != nil {
		return nil, s.conn.translate(err)
	}
	return newResult(result), nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.conn.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.conn.engine.ExecuteStatement(s.statement, bindArgs(args))
	if err != nil {
		return nil, s.conn.translate(err)
	}
	return newRows(result), nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, value := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: value}
	}
	return named
}

type tx struct {
	conn *conn
}

func (t *tx) Commit() error {
	return t.conn.translate(t.conn.engine.Commit())
}

func (t *tx) Rollback() error {
	return t.conn.translate(t.conn.engine.Rollback())
}

type result struct {
	rowsAffected int64
	lastInsertId int64
}

func newResult(r db.Result) result {
	commit, ok := r.(db.CommitResult)
	if !ok {
		return result{}
	}
	return result{
		rowsAffected: int64(commit.RowsAffected),
		lastInsertId: commit.LastInsertId,
	}
}

func (r result) LastInsertId() (int64, error) {
	return r.lastInsertId, nil
}

func (r result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// rows iterates a materialized query result. Statements that return no rows
// produce an empty result with no columns.
type rows struct {
	result db.QueryResult
	index  int
}

func newRows(r db.Result) *rows {
	query, _ := r.(db.QueryResult)
	return &rows{result: query}
}

func (r *rows) Columns() []string {
	return r.result.ColumnNames()
}

func (r *rows) Close() error {
	r.index = len(r.result.Rows)
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.index >= len(r.result.Rows) {
		return io.EOF
	}
	row := r.result.Rows[r.index]
	r.index++
	for i := range dest {
		dest[i] = driverValue(row[i])
	}
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.result.Columns[index].Type.String()
}

func (r *rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.result.Columns[index].Nullable, true
}

func driverValue(value any) driver.Value {
	if value == nil || driver.IsValue(value) {
		return value
	}
	if number, ok := ps.ToInt(value); ok {
		return number
	}
	return fmt.Sprint(value)
}
