package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// IdempotencyStore records processed request keys per institution.
type IdempotencyStore struct {
	s *Store
}

// Idempotency returns the request key store.
func (s *Store) Idempotency() *IdempotencyStore {
	return &IdempotencyStore{s: s}
}

// CheckAndInsert claims key, failing with shared.ErrIdempotencyConflict when
// it was already claimed.
func (i *IdempotencyStore) CheckAndInsert(ctx context.Context, institutionID uuid.UUID, key, module string) error {
	if key == "" {
		return shared.ErrIdempotencyKeyRequired
	}
	return i.s.run(ctx, func(_ context.Context, tx *memTx) error {
		k := idemKey(institutionID, key)
		if err := tx.lock(k); err != nil {
			return err
		}
		if _, exists := tx.get(k); exists {
			return shared.ErrIdempotencyConflict.With("", key)
		}
		tx.put(k, module)
		return nil
	})
}

// Delete releases key so a failed command can be resubmitted.
func (i *IdempotencyStore) Delete(ctx context.Context, institutionID uuid.UUID, key string) error {
	if key == "" {
		return shared.ErrIdempotencyKeyRequired
	}
	return i.s.run(ctx, func(_ context.Context, tx *memTx) error {
		k := idemKey(institutionID, key)
		if err := tx.lock(k); err != nil {
			return err
		}
		tx.put(k, nil)
		return nil
	})
}

func idemKey(institutionID uuid.UUID, key string) string {
	return "idem/" + institutionID.String() + "/" + key
}
