package op

import (
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

// DatabaseOp ties a database to the fixture store it is saved to.
type DatabaseOp struct {
	Database *ps.Database
	Store    *ps.FixtureStore
}

func NewDatabaseOp(database *ps.Database, store *ps.FixtureStore) *DatabaseOp {
	return &DatabaseOp{
		Database: database,
		Store:    store,
	}
}

func (op *DatabaseOp) GetTable(schema, name string) (*TableOp, error) {
	return GetTable(op.Database, schema, name)
}

func (op *DatabaseOp) TableNames(schema string) ([]string, error) {
	s, err := op.Database.Schema(schema)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, table := range s.Tables() {
		names = append(names, table.Name)
	}
	return names, nil
}

// Snapshot saves the database as a new fixture version, tagged when tag is not empty.
func (op *DatabaseOp) Snapshot(identity core.Identity, message, tag string) (ps.Commit, error) {
	if op.Store == nil {
		return ps.Commit{}, ps.ErrNotInitialized
	}

	op.Database.RLock()
	commit, err := op.Store.Save(op.Database, identity, message)
	op.Database.RUnlock()
	if err != nil {
		return ps.Commit{}, err
	}

	if tag != "" {
		if err := op.Store.Tag(tag, commit.Id); err != nil {
			return commit, err
		}
	}
	return commit, nil
}

// Restore replaces the database contents with a saved version.
func (op *DatabaseOp) Restore(ref string) error {
	if op.Store == nil {
		return ps.ErrNotInitialized
	}

	op.Database.Lock()
	defer op.Database.Unlock()
	return op.Store.Load(op.Database, ref)
}
