package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
)

// ErrIntegrityViolation marks a run that found balances disagreeing with the journal.
var ErrIntegrityViolation = errors.New("ledger integrity violation")

// Reconciler replays the journal for one institution.
type Reconciler interface {
	Reconcile(ctx context.Context, institutionID uuid.UUID) ([]accounting.Discrepancy, error)
}

// IntegrityJob verifies stored balances against the journal.
type IntegrityJob struct {
	Institutions InstitutionLister
	Ledger       Reconciler
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewIntegrityJob wires dependencies for the integrity handler.
func NewIntegrityJob(institutions InstitutionLister, ledger Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Institutions: institutions, Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIntegrityCheck tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("integrity check: dependencies not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return j.metrics().Observe(TaskIntegrityCheck, func() error {
		_, err := j.Run(ctx, payload)
		if errors.Is(err, ErrIntegrityViolation) {
			// retrying cannot repair balances
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
		return err
	})
}

// Run reconciles every selected institution and returns the discrepancies
// found. The error wraps ErrIntegrityViolation when any were found.
func (j *IntegrityJob) Run(ctx context.Context, payload IntegrityPayload) (map[uuid.UUID][]accounting.Discrepancy, error) {
	institutions, err := resolveInstitutions(ctx, j.Institutions, payload.InstitutionID)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID][]accounting.Discrepancy)
	for _, inst := range institutions {
		diffs, err := j.Ledger.Reconcile(ctx, inst)
		if err != nil {
			j.log().Error("reconcile institution", slog.String("institution_id", inst.String()), slog.Any("error", err))
			return found, err
		}
		j.metrics().SetDiscrepancies(inst.String(), len(diffs))
		for _, d := range diffs {
			j.log().Error("balance disagrees with journal",
				slog.String("institution_id", inst.String()),
				slog.String("account_code", d.Code),
				slog.String("stored", d.Stored.String()),
				slog.String("replayed", d.Replayed.String()))
		}
		if len(diffs) > 0 {
			found[inst] = diffs
		}
	}
	j.log().Info("integrity check finished", slog.Int("institutions", len(institutions)), slog.Int("failing", len(found)))
	if len(found) > 0 {
		return found, fmt.Errorf("%w: %d institution(s)", ErrIntegrityViolation, len(found))
	}
	return found, nil
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntegrityCheck))
	}
	return slog.Default().With(slog.String("job", TaskIntegrityCheck))
}
