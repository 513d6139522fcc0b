// Command libctl is the operator tool for a library deployment. It talks to
// the database directly and needs no running API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"libraryapi/internal/availability"
	"libraryapi/internal/config"
	"libraryapi/internal/platform/postgres"
	"libraryapi/internal/user"

	"github.com/spf13/cobra"
)

// backend is what the commands need from the storage layer.
type backend interface {
	CreateAdmin(ctx context.Context, in user.RegisterInput) (user.User, error)
	ForISBN(ctx context.Context, isbn string) (availability.Report, error)
}

type connectFunc func(ctx context.Context) (backend, func(), error)

type services struct {
	*user.Service
	*availability.Engine
}

func connectPostgres(logger *slog.Logger) connectFunc {
	return func(ctx context.Context) (backend, func(), error) {
		cfg, err := config.Read()
		if err != nil {
			return nil, nil, err
		}
		pool, err := postgres.Open(ctx, cfg.DB.DSN, postgres.Options{MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		b := services{
			Service: user.NewService(user.NewPostgresRepo(pool, cfg.DB.Timeout), logger),
			Engine:  availability.NewEngine(pool, cfg.DB.Timeout),
		}
		return b, pool.Close, nil
	}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Operator commands for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCreateAdminCmd(connect), newAvailabilityCmd(connect))
	return root
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := newRootCmd(connectPostgres(logger)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
