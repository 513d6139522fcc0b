package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"libraryapi/internal/platform/postgres"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const usage = "up, up-by-one, down, reset, status, version, create"

func main() {
	var (
		command = flag.String("command", "up", "Migration command: "+usage)
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*command, *name, logger); err != nil {
		logger.Error("migrate failed", slog.String("command", *command), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(command, name string, logger *slog.Logger) error {
	loadEnvFiles()
	dir := migrationsDir()

	// create only writes a file; it does not need a database.
	if command == "create" {
		if name == "" {
			return fmt.Errorf("name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		logger.Info("migration created", slog.String("name", name), slog.String("dir", dir))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dsn := databaseDSN()
	pool, err := postgres.Open(ctx, dsn, postgres.Options{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, dir)
	case "up-by-one":
		err = goose.UpByOneContext(ctx, db, dir)
	case "down":
		err = goose.DownContext(ctx, db, dir)
	case "reset":
		err = goose.ResetContext(ctx, db, dir)
	case "status":
		err = goose.StatusContext(ctx, db, dir)
	case "version":
		err = goose.VersionContext(ctx, db, dir)
	default:
		return fmt.Errorf("unknown command %q, use: %s", command, usage)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	logger.Info("migrate done", slog.String("command", command), slog.String("dsn", postgres.RedactDSN(dsn)))
	return nil
}
