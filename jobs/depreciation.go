package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Depreciation outcomes other than skip reasons.
const (
	OutcomeCharged      = "charged"
	OutcomeFailed       = "failed"
	OutcomeNoOpenPeriod = "no_open_period"
)

// InstitutionLister enumerates institutions that own ledger data.
type InstitutionLister interface {
	Institutions(ctx context.Context) ([]uuid.UUID, error)
}

// AssetDepreciator is the part of the depreciation engine the job drives.
type AssetDepreciator interface {
	ListActive(ctx context.Context, institutionID uuid.UUID) ([]assets.Asset, error)
	RunDepreciation(ctx context.Context, in assets.RunInput) (assets.RunResult, error)
}

// PeriodFinder resolves the open period covering a date.
type PeriodFinder interface {
	FindOpenPeriodByDate(ctx context.Context, institutionID uuid.UUID, date time.Time) (periods.Period, error)
}

// DepreciationJob runs depreciation for every active asset.
type DepreciationJob struct {
	Institutions InstitutionLister
	Assets       AssetDepreciator
	Periods      PeriodFinder
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	// ActorID is recorded as the poster of scheduled entries.
	ActorID     int64
	Concurrency int
	clock       func() time.Time
}

// NewDepreciationJob wires dependencies for the depreciation handler.
func NewDepreciationJob(institutions InstitutionLister, depreciator AssetDepreciator, periodFinder PeriodFinder, actorID int64, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationJob {
	return &DepreciationJob{
		Institutions: institutions,
		Assets:       depreciator,
		Periods:      periodFinder,
		ActorID:      actorID,
		Logger:       logger,
		Metrics:      metrics,
		Concurrency:  4,
	}
}

// DepreciationReport counts run outcomes per institution.
type DepreciationReport map[uuid.UUID]map[string]int

// Handle processes TaskDepreciationRun tasks.
func (j *DepreciationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Assets == nil || j.Periods == nil {
		return errors.New("depreciation run: dependencies not configured")
	}
	var payload DepreciationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	return j.metrics().Observe(TaskDepreciationRun, func() error {
		_, err := j.Run(ctx, payload)
		return err
	})
}

// Run executes one depreciation pass. Per-asset failures that a retry cannot
// fix are counted and logged; the returned error is set only when a retry
// may succeed.
func (j *DepreciationJob) Run(ctx context.Context, payload DepreciationPayload) (DepreciationReport, error) {
	asOf, err := j.resolveAsOf(payload.AsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	institutions, err := j.resolveInstitutions(ctx, payload.InstitutionID)
	if err != nil {
		return nil, err
	}

	logger := j.log().With(slog.String("as_of", asOf.Format(time.DateOnly)))
	report := make(DepreciationReport, len(institutions))
	var retry error
	for _, inst := range institutions {
		counts, err := j.runInstitution(ctx, logger.With(slog.String("institution_id", inst.String())), inst, asOf, payload.PeriodMonths)
		report[inst] = counts
		for outcome, n := range counts {
			j.metrics().AddDepreciation(outcome, n)
		}
		retry = errors.Join(retry, err)
	}
	logger.Info("depreciation run finished", slog.Int("institutions", len(institutions)))
	return report, retry
}

func (j *DepreciationJob) runInstitution(ctx context.Context, logger *slog.Logger, inst uuid.UUID, asOf time.Time, months int) (map[string]int, error) {
	counts := make(map[string]int)
	period, err := j.Periods.FindOpenPeriodByDate(ctx, inst, asOf)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			logger.Warn("no open period for depreciation", slog.Any("error", err))
			counts[OutcomeNoOpenPeriod]++
			return counts, nil
		}
		return counts, err
	}
	active, err := j.Assets.ListActive(ctx, inst)
	if err != nil {
		return counts, err
	}

	var (
		mu    sync.Mutex
		retry error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())
	for _, asset := range active {
		g.Go(func() error {
			res, err := j.Assets.RunDepreciation(gctx, assets.RunInput{
				InstitutionID: inst,
				ActorID:       j.ActorID,
				AssetID:       asset.ID,
				PeriodID:      period.ID,
				AsOf:          asOf,
				PeriodMonths:  months,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				counts[OutcomeFailed]++
				logger.Error("depreciate asset", slog.String("asset_code", asset.Code), slog.Any("error", err))
				if shared.IsRetryable(err) || shared.KindOf(err) == "" {
					retry = errors.Join(retry, err)
				}
			case res.Entry != nil:
				counts[OutcomeCharged]++
			default:
				counts[string(res.Skipped)]++
			}
			return nil
		})
	}
	_ = g.Wait()
	return counts, retry
}

func (j *DepreciationJob) resolveAsOf(raw string) (time.Time, error) {
	if raw != "" {
		return time.Parse(time.DateOnly, raw)
	}
	now := j.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 0, -1), nil
}

func (j *DepreciationJob) resolveInstitutions(ctx context.Context, raw string) ([]uuid.UUID, error) {
	return resolveInstitutions(ctx, j.Institutions, raw)
}

func (j *DepreciationJob) concurrency() int {
	if j.Concurrency > 0 {
		return j.Concurrency
	}
	return 1
}

func (j *DepreciationJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DepreciationJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDepreciationRun))
	}
	return slog.Default().With(slog.String("job", TaskDepreciationRun))
}

func (j *DepreciationJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *DepreciationJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

func resolveInstitutions(ctx context.Context, lister InstitutionLister, raw string) ([]uuid.UUID, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid institution id %q", asynq.SkipRetry, raw)
		}
		return []uuid.UUID{id}, nil
	}
	if lister == nil {
		return nil, errors.New("jobs: institution lister not configured")
	}
	return lister.Institutions(ctx)
}
