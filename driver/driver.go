// Package driver registers SqlLikeMem as a database/sql driver named
// "sqllikemem".
//
//	sqlDB, err := sql.Open("sqllikemem", "mysql:8?name=fixtures")
//
// The DSN is dialect[:version][?name=db&schema=s&user=u&email=e]. A DSN
// without a name gets a private database shared by the connections of one
// sql.DB; a named database is shared by every sql.DB that opens the same
// name until Forget is called.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/ps"
)

const DriverName = "sqllikemem"

var (
	ErrDialectMismatch = errors.New("named database already exists with another dialect")
	ErrConnClosed      = errors.New("connection is closed")
)

var (
	registryMu sync.Mutex
	registry   = map[string]*ps.Database{}
)

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver implements driver.Driver and driver.DriverContext.
type Driver struct{}

func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	config, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	var database *ps.Database
	if config.Name == "" {
		database = newDatabase(config)
	} else {
		database, err = sharedDatabase(config)
		if err != nil {
			return nil, err
		}
	}

	return &Connector{
		driver:   d,
		database: database,
		identity: config.Identity,
	}, nil
}

// Config is a parsed DSN.
type Config struct {
	Dialect  core.Dialect
	Name     string
	Schema   string
	Identity core.Identity
}

func ParseDSN(dsn string) (Config, error) {
	head, rawQuery, _ := strings.Cut(dsn, "?")
	name, rawVersion, hasVersion := strings.Cut(head, ":")

	version := 0
	if hasVersion {
		parsed, err := strconv.Atoi(rawVersion)
		if err != nil {
			return Config{}, fmt.Errorf("invalid dialect version %q: %w", rawVersion, err)
		}
		version = parsed
	}

	dialect, err := core.DialectByName(name, version)
	if err != nil {
		return Config{}, err
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DSN parameters: %w", err)
	}

	config := Config{
		Dialect: dialect,
		Name:    query.Get("name"),
		Schema:  query.Get("schema"),
		Identity: core.Identity{
			Name:  query.Get("user"),
			Email: query.Get("email"),
		},
	}
	if config.Identity.Name == "" {
		config.Identity.Name = DriverName
	}
	return config, nil
}

func newDatabase(config Config) *ps.Database {
	opts := []ps.Option{ps.WithThreadSafe(true)}
	if config.Name != "" {
		opts = append(opts, ps.WithName(config.Name))
	}
	if config.Schema != "" {
		opts = append(opts, ps.WithDefaultSchema(config.Schema))
	}
	return ps.NewDatabase(config.Dialect, opts...)
}

func sharedDatabase(config Config) (*ps.Database, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if database, ok := registry[config.Name]; ok {
		if database.Dialect.Name != config.Dialect.Name {
			return nil, fmt.Errorf("%w: %s is %s", ErrDialectMismatch, config.Name, database.Dialect)
		}
		return database, nil
	}
	database := newDatabase(config)
	registry[config.Name] = database
	return database, nil
}

// Forget drops a named database from the shared registry. Open sql.DB
// handles keep using it.
func Forget(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// Connector opens connections over one database. Each connection gets its
// own engine, so transactions are per connection.
type Connector struct {
	driver   *Driver
	database *ps.Database
	identity core.Identity
	options  []db.Option
}

// NewConnector wraps an existing database for use with sql.OpenDB.
func NewConnector(database *ps.Database, identity core.Identity, opts ...db.Option) *Connector {
	return &Connector{
		driver:   &Driver{},
		database: database,
		identity: identity,
		options:  opts,
	}
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &conn{engine: db.NewEngine(c.database, c.identity, c.options...)}, nil
}

func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Database returns the database the connector's connections share.
func (c *Connector) Database() *ps.Database {
	return c.database
}
