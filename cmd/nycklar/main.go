// Command nycklar serves the key loan API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/nycklar/internal/db"
	"github.com/erazemk/nycklar/internal/store"
)

// envOr returns the value of the environment variable key, or def if unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func main() {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("nycklar", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", envOr("NYCKLAR_DB", "nycklar.sqlite3"), "")
	fs.StringVar(&dbPath, "d", envOr("NYCKLAR_DB", "nycklar.sqlite3"), "")

	var addr string
	fs.StringVar(&addr, "addr", envOr("NYCKLAR_ADDR", ":8080"), "")
	fs.StringVar(&addr, "a", envOr("NYCKLAR_ADDR", ":8080"), "")

	var adminUser string
	fs.StringVar(&adminUser, "user", "Admin", "")
	fs.StringVar(&adminUser, "u", "Admin", "")

	var logPath string
	fs.StringVar(&logPath, "log", envOr("NYCKLAR_LOG", ""), "")
	fs.StringVar(&logPath, "l", envOr("NYCKLAR_LOG", ""), "")

	var logLevel string
	fs.StringVar(&logLevel, "log-level", envOr("NYCKLAR_LOG_LEVEL", "info"), "")

	var fileDriver string
	fs.StringVar(&fileDriver, "files", envOr("NYCKLAR_BLOB_DRIVER", driverDB), "")
	fs.StringVar(&fileDriver, "f", envOr("NYCKLAR_BLOB_DRIVER", driverDB), "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: nycklar [flags]

Flags:
  -d, -db <path>          SQLite database path (default: nycklar.sqlite3, env NYCKLAR_DB)
  -a, -addr <host:port>   listen address (default: :8080, env NYCKLAR_ADDR)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: stdout/stderr only, env NYCKLAR_LOG)
      -log-level <level>  debug, info, warn or error (default: info, env NYCKLAR_LOG_LEVEL)
  -f, -files <driver>     receipt file storage: db or s3 (default: db, env NYCKLAR_BLOB_DRIVER)
  -h, -help               show this help and exit

The s3 driver reads NYCKLAR_BLOB_S3_BUCKET, _REGION, _PREFIX, _ENDPOINT,
_PATH_STYLE, _ACCESS_KEY_ID and _SECRET_ACCESS_KEY. Variables may also be
set in a .env file in the working directory.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(logPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Auto-init on first run.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(context.Background(), dbPath, adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(dbPath, adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", dbPath)

	ctx := context.Background()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	if n, err := store.PurgeRevokedTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}

	files, err := openFileStore(ctx, fileDriver, database)
	if err != nil {
		slog.Error("failed to open receipt file store", "driver", fileDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("receipt file store ready", "driver", fileDriver)

	server := &http.Server{
		Addr:              addr,
		Handler:           newHandler(database, jwtSecret, files),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}
