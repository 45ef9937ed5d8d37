package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/ap"
	"github.com/odyssey-erp/ledgercore/internal/api"
	"github.com/odyssey-erp/ledgercore/internal/ar"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/expense"
	"github.com/odyssey-erp/ledgercore/internal/notify"
	"github.com/odyssey-erp/ledgercore/internal/observability"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/store/memory"
	"github.com/odyssey-erp/ledgercore/internal/store/postgres"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
	"github.com/odyssey-erp/ledgercore/jobs"
)

// ports is satisfied by both store drivers.
type ports interface {
	Sequences() sequence.RepositoryPort
	Ledger() accounting.RepositoryPort
	Budget() budget.RepositoryPort
	Documents() subledger.RepositoryPort
	Assets() assets.RepositoryPort
	Periods() periods.Repository
}

type auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LedgerParams groups what BuildLedger needs.
type LedgerParams struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Redis   *redis.Client
	// Binary names the process in pg_stat_activity.
	Binary string
}

// Ledger holds every service built on one store.
type Ledger struct {
	Engine      *accounting.Engine
	Sequences   *sequence.Generator
	Periods     *periods.Service
	Guard       *budget.Guard
	Payables    *ap.Service
	Receivables *ar.Service
	Expenses    *expense.Service
	Assets      *assets.Service
	Idempotency api.IdempotencyStore
	Notifier    *notify.Publisher
	Postgres    *postgres.Store
	// Institutions lists institutions that own a chart of accounts.
	Institutions jobs.InstitutionLister

	close func()
}

// BuildLedger opens the configured store and wires the services on top of it.
func BuildLedger(ctx context.Context, p LedgerParams) (*Ledger, error) {
	cfg := p.Config
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := db.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.TxMaxAttempts
	if cfg.TxRetryInterval > 0 {
		policy.InitialInterval = cfg.TxRetryInterval
	}

	l := &Ledger{close: func() {}}
	var (
		store ports
		audit auditor
	)
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions(p.Binary)...)
		if err != nil {
			return nil, err
		}
		pg := postgres.New(pool, p.Metrics.Instrument(policy, DriverPostgres))
		store, audit = pg, pg.Audit()
		l.Idempotency = pg.Idempotency()
		l.Postgres = pg
		l.Institutions = pg
		l.close = pool.Close
	case DriverMemory:
		mem := memory.New(memory.WithRetryPolicy(p.Metrics.Instrument(policy, DriverMemory)))
		store, audit = mem, logAudit{logger: logger}
		l.Idempotency = mem.Idempotency()
		l.Institutions = mem
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	l.Notifier = notify.NewPublisher(p.Redis, logger)
	l.Engine = accounting.NewEngine(store.Ledger(), audit, l.Notifier)
	l.Engine.WithLogger(logger)
	l.Engine.WithSequenceType(cfg.JournalSequence)
	if p.Metrics != nil {
		l.Engine.WithObserver(p.Metrics)
	}
	l.Sequences = sequence.NewGenerator(store.Sequences(), audit)
	l.Sequences.WithLogger(logger)
	l.Periods = periods.NewService(store.Periods(), audit)
	l.Guard = budget.NewGuard(store.Budget())
	l.Payables = ap.NewService(store.Documents(), l.Engine, audit)
	l.Receivables = ar.NewService(store.Documents(), l.Engine, audit)
	l.Expenses = expense.NewService(store.Documents(), l.Engine, audit)
	for _, sub := range l.Ledgers() {
		sub.WithLogger(logger)
	}
	l.Assets = assets.NewService(store.Assets(), l.Engine, audit)
	l.Assets.WithLogger(logger)
	return l, nil
}

// Ledgers returns the document sub-ledgers.
func (l *Ledger) Ledgers() []*subledger.Ledger {
	return []*subledger.Ledger{l.Payables.Ledger, l.Receivables.Ledger, l.Expenses.Ledger}
}

// APIDeps adapts the ledger to the HTTP handler.
func (l *Ledger) APIDeps(logger *slog.Logger, metrics *observability.Metrics) api.Deps {
	deps := api.Deps{
		Engine:      l.Engine,
		Sequences:   l.Sequences,
		Periods:     l.Periods,
		Ledgers:     l.Ledgers(),
		Assets:      l.Assets,
		Guard:       l.Guard,
		Idempotency: l.Idempotency,
		Logger:      logger,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	if metrics != nil {
		deps.Errors = metrics
	}
	return deps
}

// Close releases the store connection.
func (l *Ledger) Close() {
	if l != nil && l.close != nil {
		l.close()
	}
}

// logAudit writes audit records to the structured log when no audit table
// is available.
type logAudit struct {
	logger *slog.Logger
}

func (a logAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("institution_id", log.InstitutionID.String()),
		slog.Int64("actor_id", log.ActorID),
		slog.String("action", log.Action),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
		slog.Any("meta", log.Meta))
	return nil
}
