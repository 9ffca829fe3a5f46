package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nickyhof/SqlLikeMem"
	"github.com/nickyhof/SqlLikeMem/config"
	"github.com/nickyhof/SqlLikeMem/core"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file (default sqllikemem.yaml if present)")
	envFile := flag.String("env", "", "Extra .env file to load before the config")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	httpPort := flag.Int("http", 0, "HTTP API port, 0 to disable (overrides config)")
	dialectName := flag.String("dialect", "", "Dialect: mysql, sqlserver or db2 (overrides config)")
	tlsCert := flag.String("tls-cert", "", "TLS certificate file")
	tlsKey := flag.String("tls-key", "", "TLS key file")
	restore := flag.String("restore", "", "Fixture tag or commit to load at startup")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SqlLikeMem SQL Server v%s\n", Version)
		return
	}

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *httpPort != 0 {
		cfg.Server.HTTPPort = *httpPort
	}
	if *dialectName != "" {
		cfg.Database.Dialect = *dialectName
		cfg.Database.Version = 0
	}
	if *tlsCert != "" {
		cfg.Server.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		cfg.Server.TLSKey = *tlsKey
	}

	level, err := cfg.LogLevel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	database, err := cfg.NewDatabase()
	if err != nil {
		logger.Error("failed to create database", "error", err)
		os.Exit(1)
	}
	instance := SqlLikeMem.Attach(database, nil)

	if cfg.Database.FixtureDir != "" || cfg.Database.FixtureRemote != "" {
		store, err := cfg.OpenFixtures(context.Background())
		if err != nil {
			logger.Error("failed to open fixture store", "dir", cfg.Database.FixtureDir, "remote", cfg.Database.FixtureRemote, "error", err)
			os.Exit(1)
		}
		instance.Fixtures = store
		if *restore != "" {
			if err := instance.Op().Restore(*restore); err != nil {
				logger.Error("failed to restore fixture", "ref", *restore, "error", err)
				os.Exit(1)
			}
			logger.Info("fixture restored", "ref", *restore, "tables", len(database.Tables()))
		}
	}

	opts := []ServerOption{WithLogger(logger), WithPlanContext(cfg.Plan.Context)}
	var server *Server
	if cfg.Auth.Enabled {
		server = NewServerWithAuth(instance, &AuthConfig{
			Enabled:   true,
			JWTSecret: cfg.Auth.JWTSecret,
			Issuer:    cfg.Auth.Issuer,
			Audience:  cfg.Auth.Audience,
		}, opts...)
	} else {
		server = NewServer(instance, core.Identity{
			Name:  "SqlLikeMem Server",
			Email: "server@sqllikemem.local",
		}, opts...)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		err = server.StartTLS(addr, cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	if cfg.Server.HTTPPort != 0 {
		if _, err := server.StartHTTP(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil {
			logger.Error("failed to start HTTP API", "error", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   SqlLikeMem SQL Server v%-12s  ║\n", Version)
	fmt.Printf("║   Dialect: %-26s ║\n", database.Dialect.String())
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", cfg.Server.Port)
	fmt.Println("Send SQL statements (one per line), 'quit' to disconnect")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	server.Stop()
	logger.Info("server stopped")
}
