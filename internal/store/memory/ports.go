package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

// txPort adapts the store to one module's RepositoryPort.
type txPort[T any] struct {
	s    *Store
	cast func(*memTx) T
}

func (p txPort[T]) WithTx(ctx context.Context, fn func(context.Context, T) error) error {
	return p.s.run(ctx, func(ctx context.Context, tx *memTx) error {
		return fn(ctx, p.cast(tx))
	})
}

// Sequences returns the sequence generator port.
func (s *Store) Sequences() sequence.RepositoryPort {
	return txPort[sequence.TxRepository]{s: s, cast: func(t *memTx) sequence.TxRepository { return t }}
}

// Ledger returns the journal engine port.
func (s *Store) Ledger() accounting.RepositoryPort {
	return txPort[accounting.TxRepository]{s: s, cast: func(t *memTx) accounting.TxRepository { return t }}
}

// Budget returns the budget guard port.
func (s *Store) Budget() budget.RepositoryPort {
	return txPort[budget.TxRepository]{s: s, cast: func(t *memTx) budget.TxRepository { return t }}
}

// Documents returns the sub-ledger port.
func (s *Store) Documents() subledger.RepositoryPort {
	return txPort[subledger.TxRepository]{s: s, cast: func(t *memTx) subledger.TxRepository { return t }}
}

// Assets returns the depreciation engine port.
func (s *Store) Assets() assets.RepositoryPort {
	return txPort[assets.TxRepository]{s: s, cast: func(t *memTx) assets.TxRepository { return t }}
}

// Periods returns the fiscal period repository.
func (s *Store) Periods() periods.Repository {
	return periodRepo{s: s}
}

type periodRepo struct {
	s *Store
}

func (r periodRepo) FindOpenPeriodByDate(ctx context.Context, institutionID uuid.UUID, date time.Time) (periods.Period, error) {
	var found periods.Period
	err := r.s.run(ctx, func(ctx context.Context, tx *memTx) error {
		for _, id := range tx.index(key("periods", institutionID)) {
			p, err := tx.GetPeriod(ctx, institutionID, id)
			if err != nil {
				return err
			}
			if p.Status == periods.PeriodStatusOpen && p.Contains(date) {
				found = p
				return nil
			}
		}
		return periods.ErrPeriodNotFound
	})
	return found, err
}

func (r periodRepo) Get(ctx context.Context, institutionID, id uuid.UUID) (periods.Period, error) {
	var p periods.Period
	err := r.s.run(ctx, func(ctx context.Context, tx *memTx) error {
		var err error
		p, err = tx.GetPeriod(ctx, institutionID, id)
		return err
	})
	return p, err
}

func (r periodRepo) Create(ctx context.Context, p periods.Period) error {
	return r.s.run(ctx, func(ctx context.Context, tx *memTx) error {
		tx.put(key("period", p.InstitutionID, p.ID), p)
		tx.addToIndex(key("periods", p.InstitutionID), p.ID)
		return nil
	})
}

func (r periodRepo) UpdateStatus(ctx context.Context, institutionID, id uuid.UUID, status periods.PeriodStatus, at time.Time) error {
	return r.s.run(ctx, func(ctx context.Context, tx *memTx) error {
		k := key("period", institutionID, id)
		if err := tx.lock(k); err != nil {
			return err
		}
		p, err := tx.GetPeriod(ctx, institutionID, id)
		if err != nil {
			return err
		}
		p.Status = status
		p.UpdatedAt = at
		if status == periods.PeriodStatusOpen {
			p.ClosedAt = nil
		} else {
			closedAt := at
			p.ClosedAt = &closedAt
		}
		tx.put(k, p)
		return nil
	})
}

// Institutions lists every institution with a chart of accounts.
func (s *Store) Institutions(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := s.run(ctx, func(_ context.Context, t *memTx) error {
		out = t.index(key("institutions"))
		return nil
	})
	return out, err
}
