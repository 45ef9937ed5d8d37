package periods

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = shared.PeriodStatusOpen
	PeriodStatusClosed PeriodStatus = shared.PeriodStatusClosed
	PeriodStatusLocked PeriodStatus = shared.PeriodStatusLocked
)

// Valid reports whether s is a known status.
func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodStatusOpen, PeriodStatusClosed, PeriodStatusLocked:
		return true
	}
	return false
}

// Period represents a fiscal period window. StartDate and EndDate are inclusive days.
type Period struct {
	ID            uuid.UUID
	InstitutionID uuid.UUID
	Code          string
	StartDate     time.Time
	EndDate       time.Time
	Status        PeriodStatus
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrPeriodNotFound indicates the period id does not resolve.
	ErrPeriodNotFound = shared.NotFound("PERIOD_NOT_FOUND", "", "fiscal period not found")
	// ErrPeriodClosed rejects postings into a period that is not open.
	ErrPeriodClosed = shared.Policy("PERIOD_CLOSED", "fiscal period is not open for posting")
	// ErrDateOutOfRange rejects a posting date outside the period window.
	ErrDateOutOfRange = shared.Validation("DATE_OUT_OF_RANGE", "date", "date outside fiscal period")
	// ErrInvalidWindow rejects a period whose end precedes its start.
	ErrInvalidWindow = shared.Validation("INVALID_PERIOD_WINDOW", "end_date", "period end precedes start")
)

// Contains reports whether date falls on a day inside the window.
func (p Period) Contains(date time.Time) bool {
	d := day(date)
	return !d.Before(day(p.StartDate)) && !d.After(day(p.EndDate))
}

// EnsurePostable checks that an entry dated date may be posted into p.
func (p Period) EnsurePostable(date time.Time) error {
	if p.Status != PeriodStatusOpen {
		return ErrPeriodClosed.With("", p.ID.String())
	}
	if !p.Contains(date) {
		return ErrDateOutOfRange.Withf("date %s outside period %s (%s..%s)",
			date.Format(time.DateOnly), p.Code, p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
	}
	return nil
}

// Start returns the first instant of the window.
func (p Period) Start() time.Time {
	return day(p.StartDate)
}

// End returns the first instant after the window.
func (p Period) End() time.Time {
	return day(p.EndDate).AddDate(0, 0, 1)
}

// Months counts the calendar months the window touches, at least one.
func (p Period) Months() int {
	start, end := day(p.StartDate), day(p.EndDate)
	n := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// CreateInput describes a new period.
type CreateInput struct {
	InstitutionID uuid.UUID
	Code          string
	StartDate     time.Time
	EndDate       time.Time
}

// Validate ensures the window is well formed.
func (in CreateInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.Code == "" {
		return shared.Validation("PERIOD_CODE_REQUIRED", "code", "period code required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || day(in.EndDate).Before(day(in.StartDate)) {
		return ErrInvalidWindow
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
