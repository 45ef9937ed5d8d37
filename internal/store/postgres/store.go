// Package postgres implements every repository port on PostgreSQL. Each
// command runs in one SERIALIZABLE transaction that is re-run on
// serialization failures.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

//go:embed schema.sql
var schema string

// Migrate applies the ledger schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

// Store wraps a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// New constructs the store. A zero policy falls back to db.DefaultRetryPolicy.
func New(pool *pgxpool.Pool, retry db.RetryPolicy) *Store {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = db.DefaultRetryPolicy().MaxAttempts
	}
	return &Store{pool: pool, retry: retry}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) run(ctx context.Context, fn func(context.Context, *pgTx) error) error {
	return db.Retry(ctx, s.retry, db.IsSerializationFailure, func(ctx context.Context) error {
		return db.WithTx(ctx, s.pool, db.Serializable, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
	})
}

type pgTx struct {
	tx pgx.Tx
}

type txPort[T any] struct {
	s    *Store
	cast func(*pgTx) T
}

func (p txPort[T]) WithTx(ctx context.Context, fn func(context.Context, T) error) error {
	return p.s.run(ctx, func(ctx context.Context, tx *pgTx) error {
		return fn(ctx, p.cast(tx))
	})
}

// Sequences returns the sequence generator port.
func (s *Store) Sequences() sequence.RepositoryPort {
	return txPort[sequence.TxRepository]{s: s, cast: func(t *pgTx) sequence.TxRepository { return t }}
}

// Ledger returns the journal engine port.
func (s *Store) Ledger() accounting.RepositoryPort {
	return txPort[accounting.TxRepository]{s: s, cast: func(t *pgTx) accounting.TxRepository { return t }}
}

// Budget returns the budget guard port.
func (s *Store) Budget() budget.RepositoryPort {
	return txPort[budget.TxRepository]{s: s, cast: func(t *pgTx) budget.TxRepository { return t }}
}

// Documents returns the sub-ledger port.
func (s *Store) Documents() subledger.RepositoryPort {
	return txPort[subledger.TxRepository]{s: s, cast: func(t *pgTx) subledger.TxRepository { return t }}
}

// Assets returns the depreciation engine port.
func (s *Store) Assets() assets.RepositoryPort {
	return txPort[assets.TxRepository]{s: s, cast: func(t *pgTx) assets.TxRepository { return t }}
}

// Periods returns the fiscal period repository.
func (s *Store) Periods() periods.Repository {
	return periods.NewRepository(s.pool)
}

// Audit returns the audit_logs writer.
func (s *Store) Audit() *shared.AuditLogger {
	return shared.NewAuditLogger(s.pool)
}

// Idempotency returns the request key store.
func (s *Store) Idempotency() *shared.IdempotencyStore {
	return shared.NewIdempotencyStore(s.pool)
}

// Institutions lists every institution with a chart of accounts.
func (s *Store) Institutions(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT institution_id FROM accounts ORDER BY institution_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
