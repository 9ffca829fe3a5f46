package ps

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nickyhof/SqlLikeMem/core"
)

var (
	ErrTransactionNotActive = errors.New("transaction is not active")
)

type TransactionState int

const (
	TransactionActive TransactionState = iota
	TransactionCommitted
	TransactionRolledBack
)

func (state TransactionState) String() string {
	switch state {
	case TransactionActive:
		return "Active"
	case TransactionCommitted:
		return "Committed"
	case TransactionRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

// Transaction restores the database to a snapshot on rollback. Snapshots
// copy every table, so isolation is whatever the single database lock gives;
// the requested level is only echoed back.
type Transaction struct {
	Id      string
	Started time.Time

	isolation  string
	state      TransactionState
	database   *Database
	begin      *databaseState
	savepoints []savepoint
}

type savepoint struct {
	name  string
	state *databaseState
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, Started: %s, State: %s}", transaction.Id, transaction.Started, transaction.state)
}

// Begin starts a transaction by snapshotting every table.
func (database *Database) Begin(isolation string) *Transaction {
	return &Transaction{
		Id:        uuid.NewString(),
		Started:   time.Now(),
		isolation: isolation,
		database:  database,
		begin:     database.capture(),
	}
}

func (transaction *Transaction) State() TransactionState {
	return transaction.state
}

func (transaction *Transaction) IsolationLevel() string {
	return transaction.isolation
}

func (transaction *Transaction) ensureActive() error {
	if transaction == nil || transaction.state != TransactionActive {
		return ErrTransactionNotActive
	}
	return nil
}

// Savepoint snapshots the database under name. Reusing a name replaces the older savepoint.
func (transaction *Transaction) Savepoint(name string) error {
	if err := transaction.ensureActive(); err != nil {
		return err
	}
	if i := transaction.findSavepoint(name); i >= 0 {
		transaction.savepoints = slices.Delete(transaction.savepoints, i, i+1)
	}
	transaction.savepoints = append(transaction.savepoints, savepoint{
		name:  name,
		state: transaction.database.capture(),
	})
	return nil
}

// RollbackTo restores the savepoint and drops every savepoint created after it.
// The savepoint itself stays usable.
func (transaction *Transaction) RollbackTo(name string) error {
	if err := transaction.ensureActive(); err != nil {
		return err
	}
	i := transaction.findSavepoint(name)
	if i < 0 {
		return unknownSavepoint(name)
	}
	transaction.savepoints = transaction.savepoints[:i+1]
	return transaction.database.restore(transaction.savepoints[i].state)
}

// Release drops the savepoint and every later one.
func (transaction *Transaction) Release(name string) error {
	if err := transaction.ensureActive(); err != nil {
		return err
	}
	i := transaction.findSavepoint(name)
	if i < 0 {
		return unknownSavepoint(name)
	}
	transaction.savepoints = transaction.savepoints[:i]
	return nil
}

func (transaction *Transaction) Commit() error {
	if err := transaction.ensureActive(); err != nil {
		return err
	}
	transaction.state = TransactionCommitted
	transaction.begin = nil
	transaction.savepoints = nil
	return nil
}

// Rollback restores the snapshot taken at Begin. Tables created since are dropped.
func (transaction *Transaction) Rollback() error {
	if err := transaction.ensureActive(); err != nil {
		return err
	}
	transaction.state = TransactionRolledBack
	err := transaction.database.restore(transaction.begin)
	transaction.begin = nil
	transaction.savepoints = nil
	return err
}

func (transaction *Transaction) findSavepoint(name string) int {
	for i := len(transaction.savepoints) - 1; i >= 0; i-- {
		if strings.EqualFold(transaction.savepoints[i].name, name) {
			return i
		}
	}
	return -1
}

func unknownSavepoint(name string) error {
	return core.NewRuntimeReferenceError(name, "SAVEPOINT %s does not exist", name)
}

// databaseState is a point-in-time copy of the catalog and every row store.
type databaseState struct {
	schemas map[*Schema]schemaState
	tables  map[*Table]tableState
}

type schemaState struct {
	tables     map[string]*Table
	tableOrder []string
	views      map[string]*View
	viewOrder  []string
}

func (database *Database) capture() *databaseState {
	state := &databaseState{
		schemas: make(map[*Schema]schemaState),
		tables:  make(map[*Table]tableState),
	}
	for _, schema := range append(database.Schemas(), database.temporary) {
		state.schemas[schema] = schemaState{
			tables:     cloneMap(schema.tables),
			tableOrder: slices.Clone(schema.tableOrder),
			views:      cloneMap(schema.views),
			viewOrder:  slices.Clone(schema.viewOrder),
		}
		for _, table := range schema.Tables() {
			state.tables[table] = table.state()
		}
	}
	return state
}

// restore is best effort: every table is restored and the first error is reported.
func (database *Database) restore(state *databaseState) error {
	var firstErr error
	for schema, saved := range state.schemas {
		schema.tables = cloneMap(saved.tables)
		schema.tableOrder = slices.Clone(saved.tableOrder)
		schema.views = cloneMap(saved.views)
		schema.viewOrder = slices.Clone(saved.viewOrder)
	}
	for table, saved := range state.tables {
		if err := table.restoreState(saved); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to restore table %s: %w", table.Name, err)
		}
	}
	return firstErr
}

func cloneMap[K comparable, V any](source map[K]V) map[K]V {
	clone := make(map[K]V, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}
