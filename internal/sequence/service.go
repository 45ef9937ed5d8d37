package sequence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// TxRepository exposes the counter operations available inside a transaction.
type TxRepository interface {
	// IncrementCounter advances the counter by one and returns its state
	// before the increment. It returns ErrNotConfigured when missing.
	IncrementCounter(ctx context.Context, institutionID uuid.UUID, documentType string) (Counter, error)
	InsertCounter(ctx context.Context, c Counter) error
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records standalone allocations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Generator allocates references.
type Generator struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator constructs the generator. audit may be nil.
func NewGenerator(repo RepositoryPort, audit AuditPort) *Generator {
	return &Generator{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithLogger sets the logger used for post-commit failures.
func (g *Generator) WithLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// WithNow overrides the clock.
func (g *Generator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// AllocateReference issues the next reference in its own transaction and
// records a sequence.allocate audit entry for actorID once it commits.
func (g *Generator) AllocateReference(ctx context.Context, institutionID uuid.UUID, documentType string, actorID int64) (string, error) {
	if err := validateKey(institutionID, documentType); err != nil {
		return "", err
	}
	if actorID <= 0 {
		return "", shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	var ref string
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ref, err = AllocateTx(ctx, tx, institutionID, documentType)
		return err
	})
	if err != nil {
		return "", err
	}
	if g.audit != nil {
		if err := g.audit.Record(ctx, shared.AuditLog{
			InstitutionID: institutionID,
			ActorID:       actorID,
			Action:        "sequence.allocate",
			Entity:        "document_sequence",
			EntityID:      documentType,
			Meta:          map[string]any{"reference": ref},
			At:            g.now().UTC(),
		}); err != nil {
			g.logger.Warn("sequence audit failed", slog.String("document_type", documentType), slog.String("reference", ref), slog.Any("error", err))
		}
	}
	return ref, nil
}

// AllocateTx issues the next reference inside the caller's transaction. The
// number is only consumed if that transaction commits.
func AllocateTx(ctx context.Context, tx TxRepository, institutionID uuid.UUID, documentType string) (string, error) {
	c, err := tx.IncrementCounter(ctx, institutionID, documentType)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", ErrNotConfigured.With("document_type", documentType)
		}
		return "", err
	}
	return c.Format(c.NextNumber), nil
}

// Configure creates a counter. Counters must exist before references are allocated.
func (g *Generator) Configure(ctx context.Context, c Counter) (Counter, error) {
	if c.NextNumber == 0 {
		c.NextNumber = 1
	}
	if err := c.Validate(); err != nil {
		return Counter{}, err
	}
	now := g.now()
	c.CreatedAt, c.UpdatedAt = now, now
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertCounter(ctx, c)
	})
	if err != nil {
		return Counter{}, err
	}
	return c, nil
}

func validateKey(institutionID uuid.UUID, documentType string) error {
	if institutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if !documentTypePattern.MatchString(documentType) {
		return shared.Validation("INVALID_DOCUMENT_TYPE", "document_type", "document type must be upper-case alphanumeric")
	}
	return nil
}
