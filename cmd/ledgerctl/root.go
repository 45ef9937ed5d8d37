package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgercore/internal/app"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// env supplies the resources commands run against.
type env struct {
	config func() (*app.Config, error)
	ledger func(ctx context.Context, cfg *app.Config) (*app.Ledger, error)
	pool   func(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error)
	queue  func(cfg *app.Config) (jobQueue, error)
	logger *slog.Logger

	once   sync.Once
	cfg    *app.Config
	cfgErr error
}

func defaultEnv() *env {
	return &env{
		config: app.LoadConfig,
		ledger: func(ctx context.Context, cfg *app.Config) (*app.Ledger, error) {
			return app.BuildLedger(ctx, app.LedgerParams{Config: cfg, Logger: app.NewLogger(cfg), Binary: "ledgerctl"})
		},
		pool: func(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
			return db.New(ctx, cfg.PGDSN, cfg.PoolOptions("ledgerctl")...)
		},
		queue: func(cfg *app.Config) (jobQueue, error) {
			return newJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}), nil
		},
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

func (e *env) loadConfig() (*app.Config, error) {
	e.once.Do(func() {
		e.cfg, e.cfgErr = e.config()
	})
	return e.cfg, e.cfgErr
}

func (e *env) openLedger(ctx context.Context) (*app.Ledger, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return e.ledger(ctx, cfg)
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer the ledger core",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCommand(e),
		newPruneKeysCommand(e),
		newSequenceCommand(e),
		newVerifyCommand(e),
		newJobsCommand(e),
	)
	return root
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema to PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != app.DriverPostgres {
				return fmt.Errorf("migrate needs STORE_DRIVER=%s", app.DriverPostgres)
			}
			pool, err := e.pool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := migrate(cmd.Context(), pool); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
			return printf(cmd.OutOrStdout(), "schema applied\n")
		},
	}
}

func newPruneKeysCommand(e *env) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune-keys",
		Short: "Delete idempotency keys older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != app.DriverPostgres {
				return fmt.Errorf("prune-keys needs STORE_DRIVER=%s", app.DriverPostgres)
			}
			pool, err := e.pool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := shared.NewIdempotencyStore(pool).Prune(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("pruning keys: %w", err)
			}
			return printf(cmd.OutOrStdout(), "pruned %d keys\n", n)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "retention window")
	return cmd
}

func printf(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
