package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one state change made by an actor.
type AuditLog struct {
	InstitutionID uuid.UUID
	ActorID       int64
	Action        string
	Entity        string
	EntityID      string
	Meta          map[string]any
	At            time.Time
}

// ErrIncompleteAuditLog rejects a record missing its subject.
var ErrIncompleteAuditLog = Validation("INCOMPLETE_AUDIT_LOG", "action", "audit log requires action, entity and entity id")

// Validate checks the record names what changed.
func (l AuditLog) Validate() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return ErrIncompleteAuditLog
	}
	return nil
}

// AuditLogger appends records to audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record appends log. Records are written after the command commits, so a
// failure here never rolls back ledger state.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (institution_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, log.InstitutionID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at.UTC())
	return err
}
