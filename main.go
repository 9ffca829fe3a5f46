package SqlLikeMem

import (
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/op"
	"github.com/nickyhof/SqlLikeMem/ps"
)

type Instance struct {
	Database *ps.Database
	Fixtures *ps.FixtureStore
}

func Open(dialect core.Dialect, opts ...ps.Option) *Instance {
	return &Instance{
		Database: ps.NewDatabase(dialect, opts...),
	}
}

// Attach wraps an existing database, optionally with the fixture store it
// is snapshotted to.
func Attach(database *ps.Database, fixtures *ps.FixtureStore) *Instance {
	return &Instance{
		Database: database,
		Fixtures: fixtures,
	}
}

func (instance *Instance) Engine(identity core.Identity, opts ...db.Option) *db.Engine {
	return db.NewEngine(instance.Database, identity, opts...)
}

// Op returns the fixture helpers for the instance.
func (instance *Instance) Op() *op.DatabaseOp {
	return op.NewDatabaseOp(instance.Database, instance.Fixtures)
}
