package db

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/plan"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

var (
	ErrTransactionActive = errors.New("a transaction is already active")
	ErrNotAQuery         = errors.New("statement does not return rows")
	ErrIsAQuery          = errors.New("statement returns rows")
)

// Engine executes SQL against one in-memory database. An engine tracks the
// current transaction and the plan of the last query, so each connection
// should use its own engine over a shared database.
type Engine struct {
	database    *ps.Database
	identity    core.Identity
	logger      *slog.Logger
	planContext string

	mu          sync.Mutex
	transaction *ps.Transaction
	isolation   string
	lastPlan    *plan.Plan
}

type Option func(*Engine)

// WithLogger sets the logger statements are reported to at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithPlanContext sets the environment label plans are analyzed under, such as dev or prod.
func WithPlanContext(context string) Option {
	return func(engine *Engine) {
		engine.planContext = context
	}
}

func NewEngine(database *ps.Database, identity core.Identity, opts ...Option) *Engine {
	engine := &Engine{
		database:    database,
		identity:    identity,
		logger:      slog.New(slog.DiscardHandler),
		planContext: "dev",
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (engine *Engine) Database() *ps.Database {
	return engine.database
}

func (engine *Engine) Dialect() core.Dialect {
	return engine.database.Dialect
}

func (engine *Engine) Identity() core.Identity {
	return engine.identity
}

func (engine *Engine) SetIdentity(identity core.Identity) {
	engine.identity = identity
}

// LastPlan returns the plan of the most recent top-level query, or nil.
func (engine *Engine) LastPlan() *plan.Plan {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.lastPlan
}

// Execute parses and runs one statement. Params are keyed by name, with or
// without the dialect prefix, and by 1-based position for bare '?' markers.
func (engine *Engine) Execute(query string, params map[string]any) (Result, error) {
	statement, err := sql.Parse(query, engine.database.Dialect)
	if err != nil {
		return nil, err
	}
	return engine.ExecuteStatement(statement, params)
}

// ExecuteBatch runs semicolon-separated statements in order and stops at the first error.
func (engine *Engine) ExecuteBatch(text string, params map[string]any) ([]Result, error) {
	statements, err := sql.ParseMulti(text, engine.database.Dialect)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(statements))
	for i, statement := range statements {
		result, err := engine.ExecuteStatement(statement, params)
		if err != nil {
			return results, fmt.Errorf("statement %d: %w", i+1, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ExecuteSelect runs a query and returns its rows.
func (engine *Engine) ExecuteSelect(statement sql.QueryStatement, params map[string]any) (QueryResult, error) {
	result, err := engine.ExecuteStatement(statement, params)
	if err != nil {
		return QueryResult{}, err
	}
	return result.(QueryResult), nil
}

// ExecuteNonQuery runs a statement that does not return rows and reports
// the number of rows it affected.
func (engine *Engine) ExecuteNonQuery(statement sql.Statement, params map[string]any) (int, error) {
	if _, isQuery := statement.(sql.QueryStatement); isQuery {
		return 0, ErrIsAQuery
	}
	result, err := engine.ExecuteStatement(statement, params)
	if err != nil {
		return 0, err
	}
	commit := result.(CommitResult)
	return commit.RowsAffected, nil
}

// ExecuteStatement runs an already parsed statement. Queries take the
// database read lock and everything else the write lock.
func (engine *Engine) ExecuteStatement(statement sql.Statement, params map[string]any) (Result, error) {
	if _, isQuery := statement.(sql.QueryStatement); isQuery {
		engine.database.RLock()
		defer engine.database.RUnlock()
	} else {
		engine.database.Lock()
		defer engine.database.Unlock()
	}

	startTime := time.Now()
	result, err := engine.dispatch(engine.newContext(params), statement)
	if err != nil {
		engine.logger.Debug("statement failed", "kind", statement.Type().String(), "error", err)
		return nil, err
	}
	engine.logger.Debug("statement executed", "kind", statement.Type().String(),
		"duration", time.Since(startTime), "rows", resultRows(result))
	return result, nil
}

func resultRows(result Result) int {
	switch r := result.(type) {
	case QueryResult:
		return len(r.Rows)
	case CommitResult:
		return r.RowsAffected
	}
	return 0
}

func (engine *Engine) dispatch(ctx *execContext, statement sql.Statement) (Result, error) {
	switch statement.Type() {
	case sql.SelectStatementType, sql.UnionStatementType:
		return engine.executeQueryStatement(ctx, statement.(sql.QueryStatement))
	case sql.InsertStatementType:
		return engine.executeInsertStatement(ctx, statement.(sql.InsertStatement))
	case sql.UpdateStatementType:
		return engine.executeUpdateStatement(ctx, statement.(sql.UpdateStatement))
	case sql.DeleteStatementType:
		return engine.executeDeleteStatement(ctx, statement.(sql.DeleteStatement))
	case sql.CreateTableStatementType:
		return engine.executeCreateTableStatement(ctx, statement.(sql.CreateTableStatement))
	case sql.CreateTemporaryTableStatementType:
		return engine.executeCreateTemporaryTableStatement(ctx, statement.(sql.CreateTemporaryTableStatement))
	case sql.CreateViewStatementType:
		return engine.executeCreateViewStatement(ctx, statement.(sql.CreateViewStatement))
	case sql.CreateIndexStatementType:
		return engine.executeCreateIndexStatement(statement.(sql.CreateIndexStatement))
	case sql.DropTableStatementType:
		return engine.executeDropTableStatement(statement.(sql.DropTableStatement))
	case sql.DropViewStatementType:
		return engine.executeDropViewStatement(statement.(sql.DropViewStatement))
	case sql.DropIndexStatementType:
		return engine.executeDropIndexStatement(statement.(sql.DropIndexStatement))
	case sql.AlterTableStatementType:
		return engine.executeAlterTableStatement(ctx, statement.(sql.AlterTableStatement))
	case sql.BeginStatementType:
		return engine.executeBeginStatement(statement.(sql.BeginStatement))
	case sql.CommitStatementType:
		return engine.executeCommitStatement()
	case sql.RollbackStatementType:
		return engine.executeRollbackStatement(statement.(sql.RollbackStatement))
	case sql.SavepointStatementType:
		return engine.executeSavepointStatement(statement.(sql.SavepointStatement))
	case sql.ReleaseSavepointStatementType:
		return engine.executeReleaseSavepointStatement(statement.(sql.ReleaseSavepointStatement))
	case sql.SetTransactionStatementType:
		return engine.executeSetTransactionStatement(statement.(sql.SetTransactionStatement))
	case sql.CallStatementType:
		return engine.executeCallStatement(ctx, statement.(sql.CallStatement))
	default:
		return nil, fmt.Errorf("unsupported statement type: %v", statement.Type())
	}
}

// executeQueryStatement runs a top-level query and records its plan.
func (engine *Engine) executeQueryStatement(ctx *execContext, statement sql.QueryStatement) (QueryResult, error) {
	startTime := time.Now()

	rel, err := ctx.executeQuery(statement, nil)
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{
		Columns:          make([]ResultColumn, 0, len(rel.columns)),
		Rows:             rel.rows,
		RecordsRead:      int(ctx.stats.rowsRead),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     ctx.stats.ops,
	}
	for i, column := range rel.columns {
		result.Columns = append(result.Columns, ResultColumn{
			TableAlias: column.Source,
			Name:       column.Name,
			Alias:      column.Alias,
			Ordinal:    i,
			Type:       column.Type,
			Nullable:   column.Nullable,
		})
	}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}

	engine.recordPlan(statement, plan.Metrics{
		InputTables:       ctx.stats.inputTables,
		EstimatedRowsRead: ctx.stats.rowsRead,
		ActualRows:        len(result.Rows),
		ElapsedMs:         time.Since(startTime).Milliseconds(),
	})
	return result, nil
}

func (engine *Engine) recordPlan(statement sql.QueryStatement, metrics plan.Metrics) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.lastPlan = plan.Analyze(statement, metrics,
		plan.WithCatalog(engine.indexCatalog),
		plan.WithContext(engine.planContext),
		plan.WithPrevious(engine.lastPlan))
}

// indexCatalog lists the key columns of every index on a table for the plan analyzer.
func (engine *Engine) indexCatalog(name sql.TableName) ([][]string, bool) {
	table, err := engine.database.ResolveTable(name.Schema, name.Name)
	if err != nil {
		return nil, false
	}
	var indexes [][]string
	for _, index := range table.Indexes() {
		indexes = append(indexes, index.Columns)
	}
	return indexes, true
}

// Explain runs a query and returns its execution plan.
func (engine *Engine) Explain(query string, params map[string]any) (*plan.Plan, error) {
	statement, err := sql.Parse(query, engine.database.Dialect)
	if err != nil {
		return nil, err
	}
	if _, isQuery := statement.(sql.QueryStatement); !isQuery {
		return nil, ErrNotAQuery
	}
	if _, err := engine.ExecuteStatement(statement, params); err != nil {
		return nil, err
	}
	return engine.LastPlan(), nil
}

// Transaction returns the active transaction, or nil.
func (engine *Engine) Transaction() *ps.Transaction {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.transaction
}

// Begin starts a transaction. Only one can be active per engine.
func (engine *Engine) Begin() (*ps.Transaction, error) {
	engine.database.Lock()
	defer engine.database.Unlock()
	return engine.begin()
}

func (engine *Engine) begin() (*ps.Transaction, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.transaction != nil && engine.transaction.State() == ps.TransactionActive {
		return nil, ErrTransactionActive
	}
	engine.transaction = engine.database.Begin(engine.isolation)
	return engine.transaction, nil
}

// Commit ends the active transaction keeping its changes.
func (engine *Engine) Commit() error {
	engine.database.Lock()
	defer engine.database.Unlock()
	_, err := engine.finish(func(transaction *ps.Transaction) error {
		return transaction.Commit()
	})
	return err
}

// Rollback ends the active transaction restoring the database as it was at BEGIN.
func (engine *Engine) Rollback() error {
	engine.database.Lock()
	defer engine.database.Unlock()
	_, err := engine.finish(func(transaction *ps.Transaction) error {
		return transaction.Rollback()
	})
	return err
}

// Savepoint marks a point inside the active transaction.
func (engine *Engine) Savepoint(name string) error {
	engine.database.Lock()
	defer engine.database.Unlock()
	transaction, err := engine.current()
	if err != nil {
		return err
	}
	return transaction.Savepoint(name)
}

// RollbackTo restores the state captured by a savepoint. The transaction stays active.
func (engine *Engine) RollbackTo(name string) error {
	engine.database.Lock()
	defer engine.database.Unlock()
	transaction, err := engine.current()
	if err != nil {
		return err
	}
	return transaction.RollbackTo(name)
}

func (engine *Engine) Release(name string) error {
	engine.database.Lock()
	defer engine.database.Unlock()
	transaction, err := engine.current()
	if err != nil {
		return err
	}
	return transaction.Release(name)
}

func (engine *Engine) finish(end func(*ps.Transaction) error) (string, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.transaction == nil {
		return "", ps.ErrTransactionNotActive
	}
	transaction := engine.transaction
	if err := end(transaction); err != nil {
		return "", err
	}
	engine.transaction = nil
	return transaction.Id, nil
}

func (engine *Engine) current() (*ps.Transaction, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.transaction == nil {
		return nil, ps.ErrTransactionNotActive
	}
	return engine.transaction, nil
}

func (engine *Engine) executeBeginStatement(statement sql.BeginStatement) (CommitResult, error) {
	startTime := time.Now()

	if statement.Isolation != "" {
		engine.isolation = statement.Isolation
	}
	transaction, err := engine.begin()
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      transaction.Id,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeCommitStatement() (CommitResult, error) {
	startTime := time.Now()

	id, err := engine.finish(func(transaction *ps.Transaction) error {
		return transaction.Commit()
	})
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      id,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeRollbackStatement(statement sql.RollbackStatement) (CommitResult, error) {
	startTime := time.Now()

	if statement.Savepoint != "" {
		transaction, err := engine.current()
		if err != nil {
			return CommitResult{}, err
		}
		if err := transaction.RollbackTo(statement.Savepoint); err != nil {
			return CommitResult{}, err
		}
		return CommitResult{
			Transaction:      transaction.Id,
			Message:          fmt.Sprintf("rolled back to savepoint '%s'", statement.Savepoint),
			ExecutionTimeSec: time.Since(startTime).Seconds(),
			ExecutionOps:     1,
		}, nil
	}

	id, err := engine.finish(func(transaction *ps.Transaction) error {
		return transaction.Rollback()
	})
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      id,
		Message:          "rolled back",
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeSavepointStatement(statement sql.SavepointStatement) (CommitResult, error) {
	startTime := time.Now()

	transaction, err := engine.current()
	if err != nil {
		return CommitResult{}, err
	}
	if err := transaction.Savepoint(statement.Name); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      transaction.Id,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeReleaseSavepointStatement(statement sql.ReleaseSavepointStatement) (CommitResult, error) {
	startTime := time.Now()

	transaction, err := engine.current()
	if err != nil {
		return CommitResult{}, err
	}
	if err := transaction.Release(statement.Name); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      transaction.Id,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

// executeSetTransactionStatement stores the isolation level used by the next BEGIN.
func (engine *Engine) executeSetTransactionStatement(statement sql.SetTransactionStatement) (CommitResult, error) {
	engine.isolation = statement.Isolation
	return CommitResult{
		Message:      fmt.Sprintf("isolation level %s", engine.isolation),
		ExecutionOps: 1,
	}, nil
}
