package periods

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// AuditPort records period transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages fiscal periods.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the period service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// FindOpenPeriodByDate resolves the period a command dated date must post into.
func (s *Service) FindOpenPeriodByDate(ctx context.Context, institutionID uuid.UUID, date time.Time) (Period, error) {
	return s.repo.FindOpenPeriodByDate(ctx, institutionID, date)
}

// Get loads a single period.
func (s *Service) Get(ctx context.Context, institutionID, id uuid.UUID) (Period, error) {
	return s.repo.Get(ctx, institutionID, id)
}

// Create opens a new period.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	now := s.now()
	p := Period{
		ID:            uuid.New(),
		InstitutionID: in.InstitutionID,
		Code:          in.Code,
		StartDate:     day(in.StartDate),
		EndDate:       day(in.EndDate),
		Status:        PeriodStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Transition moves a period between OPEN, CLOSED and LOCKED.
func (s *Service) Transition(ctx context.Context, institutionID, id uuid.UUID, target PeriodStatus, override bool, actorID int64) (Period, error) {
	if !target.Valid() {
		return Period{}, shared.Validation("INVALID_PERIOD_STATUS", "status", "unknown period status")
	}
	p, err := s.repo.Get(ctx, institutionID, id)
	if err != nil {
		return Period{}, err
	}
	if err := shared.ValidatePeriodTransition(string(p.Status), string(target), override); err != nil {
		return Period{}, err
	}
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, institutionID, id, target, now); err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			InstitutionID: institutionID,
			ActorID:       actorID,
			Action:        "period.transition",
			Entity:        "period",
			EntityID:      id.String(),
			Meta:          map[string]any{"from": p.Status, "to": target, "override": override},
			At:            now,
		})
	}
	from := p.Status
	p.Status = target
	p.UpdatedAt = now
	if target != PeriodStatusOpen {
		p.ClosedAt = &now
	} else if from != PeriodStatusOpen {
		p.ClosedAt = nil
	}
	return p, nil
}
