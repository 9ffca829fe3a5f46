package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SqlLikeMem/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mysql", config.Database.Dialect)
	assert.True(t, config.Database.ThreadSafe)
	assert.Equal(t, 3306, config.Server.Port)
	assert.Equal(t, "dev", config.Plan.Context)

	dialect, err := config.Dialect()
	require.NoError(t, err)
	assert.Equal(t, core.MySQLName, dialect.Name)
	assert.Equal(t, 8, dialect.Version)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "custom.yaml", `
database:
  dialect: sqlserver
  version: 2012
  name: fixtures
  schema: dbo
  thread_safe: false
server:
  port: 4000
  http_port: 8080
auth:
  enabled: true
  jwt_secret: s3cret
log:
  level: debug
plan:
  context: prod
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlserver", config.Database.Dialect)
	assert.Equal(t, 2012, config.Database.Version)
	assert.False(t, config.Database.ThreadSafe)
	assert.Equal(t, 4000, config.Server.Port)
	assert.Equal(t, 8080, config.Server.HTTPPort)
	assert.True(t, config.Auth.Enabled)
	assert.Equal(t, "prod", config.Plan.Context)

	level, err := config.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	database, err := config.NewDatabase()
	require.NoError(t, err)
	assert.Equal(t, "fixtures", database.Name)
	assert.Equal(t, core.SQLServerName, database.Dialect.Name)
	assert.Equal(t, "dbo", database.DefaultSchema().Name)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "database: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "base.yaml", "database:\n  dialect: mysql\n")

	t.Setenv("SQLLIKEMEM_DIALECT", "db2")
	t.Setenv("SQLLIKEMEM_VERSION", "9")
	t.Setenv("SQLLIKEMEM_PORT", "5000")
	t.Setenv("SQLLIKEMEM_THREAD_SAFE", "false")
	t.Setenv("SQLLIKEMEM_PLAN_CONTEXT", "prod")

	config, err := Load(path)
	require.NoError(t, err)

	dialect, err := config.Dialect()
	require.NoError(t, err)
	assert.Equal(t, core.DB2Name, dialect.Name)
	assert.Equal(t, 9, dialect.Version)
	assert.Equal(t, 5000, config.Server.Port)
	assert.False(t, config.Database.ThreadSafe)
	assert.Equal(t, "prod", config.Plan.Context)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "SQLLIKEMEM_LOG_LEVEL=warn\nSQLLIKEMEM_JWT_SECRET=from-dotenv\n")
	t.Cleanup(func() {
		os.Unsetenv("SQLLIKEMEM_LOG_LEVEL")
		os.Unsetenv("SQLLIKEMEM_JWT_SECRET")
	})

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Log.Level)
	assert.Equal(t, "from-dotenv", config.Auth.JWTSecret)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "extra.env", "SQLLIKEMEM_SCHEMA=sales\n")
	t.Cleanup(func() { os.Unsetenv("SQLLIKEMEM_SCHEMA") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "sales", os.Getenv("SQLLIKEMEM_SCHEMA"))

	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestInvalidEnvironmentValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"SQLLIKEMEM_PORT", "abc", "invalid SQLLIKEMEM_PORT"},
		{"SQLLIKEMEM_AUTH_ENABLED", "maybe", "invalid SQLLIKEMEM_AUTH_ENABLED"},
		{"SQLLIKEMEM_DIALECT", "oracle", "unknown dialect"},
		{"SQLLIKEMEM_LOG_LEVEL", "loud", "unsupported log level"},
		{"SQLLIKEMEM_PLAN_CONTEXT", "staging", "unsupported plan context"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAuthRequiresSecret(t *testing.T) {
	config := Default()
	config.Auth.Enabled = true

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	config.Auth.JWTSecret = "secret"
	assert.NoError(t, config.Validate())
}

func TestFixtureRemoteSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SQLLIKEMEM_FIXTURE_REMOTE", "https://example.com/fixtures.git")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/fixtures.git", config.Database.FixtureRemote)
	assert.Nil(t, config.RemoteAuth())

	t.Setenv("SQLLIKEMEM_FIXTURE_TOKEN", "t0ken")
	config, err = Load("")
	require.NoError(t, err)
	require.NotNil(t, config.RemoteAuth())
	assert.Equal(t, "t0ken", config.RemoteAuth().Token)
}

func TestOpenFixtures(t *testing.T) {
	config := Default()

	memory, err := config.OpenFixtures(context.Background())
	require.NoError(t, err)
	assert.True(t, memory.IsInitialized())
	_, err = memory.RemoteURL()
	assert.Error(t, err)

	dir := t.TempDir()
	config.Database.FixtureDir = dir
	onDisk, err := config.OpenFixtures(context.Background())
	require.NoError(t, err)
	assert.True(t, onDisk.IsInitialized())
	assert.DirExists(t, filepath.Join(dir, ".git"))
}
