package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/blob"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/lostfound"
	"github.com/erazemk/najdeno/internal/notify"
	"github.com/erazemk/najdeno/internal/store"
)

const usage = `Usage: najdeno [flags]

Campus lost and found registry.

Flags:
  -c, --config <path>      YAML configuration file
  -d, --db <path>          SQLite database path (default: najdeno.sqlite3)
  -a, --addr <host:port>   listen address (default: :8080)
  -u, --user <name>        admin username on first run (default: admin)
  -l, --log <path>         rotating log file (default: stdout/stderr only)
      --uploads <dir>      directory for item photos (default: uploads)
  -h, --help               show this help and exit

Command-line flags override the configuration file.
`

// loadConfig parses args and returns the configuration they select.
func loadConfig(args []string) (config.Config, error) {
	fs := pflag.NewFlagSet("najdeno", pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	configPath := fs.StringP("config", "c", "", "")
	dbPath := fs.StringP("db", "d", "", "")
	addr := fs.StringP("addr", "a", "", "")
	adminUser := fs.StringP("user", "u", "", "")
	logPath := fs.StringP("log", "l", "", "")
	uploads := fs.String("uploads", "", "")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	if fs.Changed("db") {
		cfg.DB = *dbPath
	}
	if fs.Changed("addr") {
		cfg.Addr = *addr
	}
	if fs.Changed("user") {
		cfg.AdminUser = *adminUser
	}
	if fs.Changed("log") {
		cfg.Log.Path = *logPath
	}
	if fs.Changed("uploads") {
		cfg.UploadsDir = *uploads
	}

	return cfg, cfg.Validate()
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog := setupLogger(cfg.Log, os.Stdout, os.Stderr)
	defer closeLog()

	// Auto-init on first run.
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DB, cfg.AdminUser)
		if err != nil {
			fatal("failed to initialize database", "error", err)
		}
		database.Close()

		printInitResult(cfg.DB, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		fatal("failed to open database", "error", err)
	}
	defer database.Close()

	// Brings databases from older releases up to date (idempotent).
	if err := db.Migrate(database); err != nil {
		fatal("failed to migrate database", "error", err)
	}

	slog.Info("database ready", "path", cfg.DB)

	jwtSecret, err := store.JWTSecret(context.Background(), database)
	if err != nil {
		fatal("failed to get JWT secret", "error", err)
	}

	if n, err := store.PurgeRevokedTokens(context.Background(), database, time.Now()); err != nil {
		slog.Warn("purging revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}

	images, err := blob.NewFS(cfg.UploadsDir, imaging.MaxUploadSize)
	if err != nil {
		fatal("failed to set up uploads", "error", err)
	}

	dispatcher := notify.New(database, cfg.DispatchInterval)

	registry := lostfound.New(database, images, dispatcher)
	registry.AdminRecipient = cfg.AdminRecipient
	registry.CollectionPoint = cfg.CollectionPoint
	registry.HoldingPeriod = cfg.ResaleHoldingPeriod

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(database, registry, jwtSecret))
	mux.Handle("GET "+blob.URLPrefix, images.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Deliver intents left over from a previous run, then keep draining.
	if n := dispatcher.Drain(ctx); n > 0 {
		slog.Info("delivered pending notifications", "count", n)
	}
	dispatched := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatched)
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("server error", "error", err)
	}

	stop()
	<-dispatched

	slog.Info("server stopped, closing database")
}
