package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrIdempotencyConflict indicates the key was already claimed.
	ErrIdempotencyConflict = &Error{Kind: KindConflict, Code: "DUPLICATE_REQUEST", Message: "request with this idempotency key was already processed"}
	// ErrIdempotencyKeyRequired rejects an empty key.
	ErrIdempotencyKeyRequired = Validation("IDEMPOTENCY_KEY_REQUIRED", "Idempotency-Key", "idempotency key required")
)

// IdempotencyStore claims request keys in idempotency_keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// CheckAndInsert claims key for the institution. A key already claimed yields
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, institutionID uuid.UUID, key, module string) error {
	if key == "" {
		return ErrIdempotencyKeyRequired
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (institution_id, key, module, created_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (institution_id, key) DO NOTHING`, institutionID, key, module, s.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict.With("", key)
	}
	return nil
}

// Delete releases a key so a failed command can be resubmitted.
func (s *IdempotencyStore) Delete(ctx context.Context, institutionID uuid.UUID, key string) error {
	if key == "" {
		return ErrIdempotencyKeyRequired
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE institution_id=$1 AND key=$2`, institutionID, key)
	return err
}

// Prune removes keys claimed before now minus retention and reports how many.
func (s *IdempotencyStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
