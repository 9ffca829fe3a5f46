// Package config loads the settings shared by the SqlLikeMem commands from a
// YAML file, optional .env files and SQLLIKEMEM_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

const (
	DefaultPath = "sqllikemem.yaml"
	EnvPrefix   = "SQLLIKEMEM_"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Plan     PlanConfig     `yaml:"plan"`
}

type DatabaseConfig struct {
	Dialect    string `yaml:"dialect"`
	Version    int    `yaml:"version,omitempty"`
	Name       string `yaml:"name,omitempty"`
	Schema     string `yaml:"schema,omitempty"`
	ThreadSafe bool   `yaml:"thread_safe"`
	// FixtureDir holds git-backed fixture snapshots; empty keeps them in memory.
	FixtureDir string `yaml:"fixture_dir,omitempty"`
	// FixtureRemote is a Git URL fixtures are synced from and published to.
	FixtureRemote string `yaml:"fixture_remote,omitempty"`
	FixtureToken  string `yaml:"fixture_token,omitempty"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	HTTPPort int    `yaml:"http_port,omitempty"`
	TLSCert  string `yaml:"tls_cert,omitempty"`
	TLSKey   string `yaml:"tls_key,omitempty"`
}

type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	Issuer    string `yaml:"issuer,omitempty"`
	Audience  string `yaml:"audience,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PlanConfig struct {
	Context string `yaml:"context"`
}

// Default returns the settings used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:    "mysql",
			ThreadSafe: true,
		},
		Server: ServerConfig{
			Port: 3306,
		},
		Log: LogConfig{
			Level: "info",
		},
		Plan: PlanConfig{
			Context: "dev",
		},
	}
}

// Load reads the YAML file at configPath on top of the defaults. A missing
// file is only an error when the path was given explicitly. Values from .env
// files in the working directory and from SQLLIKEMEM_* variables win over the file.
func Load(configPath string) (*Config, error) {
	config := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %w", err)
	}

	// .env never overrides variables already present in the environment.
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFile loads an explicit .env file into the process environment.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (config *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, target *string) {
		if value, ok := lookup(EnvPrefix + key); ok {
			*target = value
		}
	}
	num := func(key string, target *int) error {
		if value, ok := lookup(EnvPrefix + key); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*target = parsed
		}
		return nil
	}
	flag := func(key string, target *bool) error {
		if value, ok := lookup(EnvPrefix + key); ok {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*target = parsed
		}
		return nil
	}

	str("DIALECT", &config.Database.Dialect)
	str("DATABASE", &config.Database.Name)
	str("SCHEMA", &config.Database.Schema)
	str("FIXTURE_DIR", &config.Database.FixtureDir)
	str("FIXTURE_REMOTE", &config.Database.FixtureRemote)
	str("FIXTURE_TOKEN", &config.Database.FixtureToken)
	str("TLS_CERT", &config.Server.TLSCert)
	str("TLS_KEY", &config.Server.TLSKey)
	str("JWT_SECRET", &config.Auth.JWTSecret)
	str("JWT_ISSUER", &config.Auth.Issuer)
	str("JWT_AUDIENCE", &config.Auth.Audience)
	str("LOG_LEVEL", &config.Log.Level)
	str("PLAN_CONTEXT", &config.Plan.Context)

	for key, target := range map[string]*int{
		"VERSION":   &config.Database.Version,
		"PORT":      &config.Server.Port,
		"HTTP_PORT": &config.Server.HTTPPort,
	} {
		if err := num(key, target); err != nil {
			return err
		}
	}
	for key, target := range map[string]*bool{
		"THREAD_SAFE":  &config.Database.ThreadSafe,
		"AUTH_ENABLED": &config.Auth.Enabled,
	} {
		if err := flag(key, target); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the dialect and the auth settings.
func (config *Config) Validate() error {
	if _, err := config.Dialect(); err != nil {
		return err
	}
	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return errors.New("auth is enabled but no jwt_secret is configured")
	}
	if _, err := config.LogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(config.Plan.Context) {
	case "dev", "prod":
	default:
		return fmt.Errorf("unsupported plan context: %s", config.Plan.Context)
	}
	return nil
}

// Dialect resolves the configured dialect name and version.
func (config *Config) Dialect() (core.Dialect, error) {
	return core.DialectByName(config.Database.Dialect, config.Database.Version)
}

func (config *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Log.Level)); err != nil {
		return level, fmt.Errorf("unsupported log level: %s", config.Log.Level)
	}
	return level, nil
}

// NewDatabase creates an empty database with the configured dialect and options.
func (config *Config) NewDatabase() (*ps.Database, error) {
	dialect, err := config.Dialect()
	if err != nil {
		return nil, err
	}
	opts := []ps.Option{ps.WithThreadSafe(config.Database.ThreadSafe)}
	if config.Database.Name != "" {
		opts = append(opts, ps.WithName(config.Database.Name))
	}
	if config.Database.Schema != "" {
		opts = append(opts, ps.WithDefaultSchema(config.Database.Schema))
	}
	return ps.NewDatabase(dialect, opts...), nil
}

// RemoteAuth returns the credentials for the fixture remote, nil for anonymous access.
func (config *Config) RemoteAuth() *ps.RemoteAuth {
	if config.Database.FixtureToken == "" {
		return nil
	}
	return &ps.RemoteAuth{Token: config.Database.FixtureToken}
}

// OpenFixtures opens the configured fixture store: a repository in
// FixtureDir, or an in-memory one. With a FixtureRemote the store is synced
// before it is returned.
func (config *Config) OpenFixtures(ctx context.Context) (*ps.FixtureStore, error) {
	var (
		store *ps.FixtureStore
		err   error
	)
	if config.Database.FixtureDir != "" {
		store, err = ps.NewFileFixtureStore(config.Database.FixtureDir, nil)
	} else {
		store, err = ps.NewMemoryFixtureStore()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture store: %w", err)
	}

	if config.Database.FixtureRemote == "" {
		return store, nil
	}
	if err := store.SetRemote(config.Database.FixtureRemote); err != nil {
		return nil, err
	}
	if err := store.Sync(ctx, config.RemoteAuth()); err != nil {
		return nil, err
	}
	return store, nil
}
