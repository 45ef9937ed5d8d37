package periods

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists fiscal periods.
type Repository interface {
	FindOpenPeriodByDate(ctx context.Context, institutionID uuid.UUID, date time.Time) (Period, error)
	Get(ctx context.Context, institutionID, id uuid.UUID) (Period, error)
	Create(ctx context.Context, p Period) error
	UpdateStatus(ctx context.Context, institutionID, id uuid.UUID, status PeriodStatus, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, institution_id, code, start_date, end_date, status, closed_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.InstitutionID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

// FindOpenPeriodByDate returns the open period covering the supplied date.
func (r *repository) FindOpenPeriodByDate(ctx context.Context, institutionID uuid.UUID, date time.Time) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM periods WHERE institution_id=$1 AND status='OPEN' AND $2::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, institutionID, date))
	if errors.Is(err, ErrPeriodNotFound) {
		return Period{}, ErrPeriodNotFound.Withf("no open period covers %s", date.Format(time.DateOnly))
	}
	return p, err
}

func (r *repository) Get(ctx context.Context, institutionID, id uuid.UUID) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE institution_id=$1 AND id=$2`, institutionID, id))
	if errors.Is(err, ErrPeriodNotFound) {
		return Period{}, ErrPeriodNotFound.With("", id.String())
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Period) error {
	_, err := r.db.Exec(ctx, `INSERT INTO periods (id, institution_id, code, start_date, end_date, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`, p.ID, p.InstitutionID, p.Code, p.StartDate, p.EndDate, p.Status, p.CreatedAt)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, institutionID, id uuid.UUID, status PeriodStatus, at time.Time) error {
	var closedAt any
	if status != PeriodStatusOpen {
		closedAt = at
	}
	cmd, err := r.db.Exec(ctx, `UPDATE periods SET status=$3, closed_at=$4, updated_at=$5 WHERE institution_id=$1 AND id=$2`,
		institutionID, id, status, closedAt, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodNotFound.With("", id.String())
	}
	return nil
}
