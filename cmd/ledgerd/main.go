package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgercore/internal/api"
	"github.com/odyssey-erp/ledgercore/internal/app"
	"github.com/odyssey-erp/ledgercore/internal/observability"
	"github.com/odyssey-erp/ledgercore/internal/platform/cache"
	"github.com/odyssey-erp/ledgercore/jobs"
)

const shutdownGrace = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("LEDGER_TEST_MODE set, not starting ledgerd")
		return
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ledgerd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	// Redis only carries posting notifications here; the API works without it.
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, posting notifications disabled", slog.Any("error", err))
	} else if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := observability.NewMetrics()
	ledger, err := app.BuildLedger(ctx, app.LedgerParams{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Redis:   redisClient,
		Binary:  "ledgerd",
	})
	if err != nil {
		return err
	}
	defer ledger.Close()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer inspector.Close()

	params := app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		APIHandler: api.NewHandler(ledger.APIDeps(logger, metrics)),
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
	}
	if pg := ledger.Postgres; pg != nil {
		params.Ready = func(r *http.Request) error { return pg.Pool().Ping(r.Context()) }
	}
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("ledgerd listening", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("draining http server", slog.Duration("grace", shutdownGrace))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
