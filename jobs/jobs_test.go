package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/testing/fixture"
	"github.com/odyssey-erp/ledgercore/jobs"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func registerAsset(t *testing.T, fx *fixture.Ledger, svc *assets.Service, code string) assets.Asset {
	t.Helper()
	a, err := svc.Register(context.Background(), assets.RegisterInput{
		InstitutionID:        fx.Institution,
		ActorID:              fx.Actor,
		Code:                 code,
		Name:                 "Forklift",
		PurchasePrice:        money.Major(6000),
		UsefulLifeYears:      5,
		Method:               assets.MethodStraightLine,
		ExpenseAccountID:     fx.Account(fixture.Depreciation),
		AccumulatedAccountID: fx.Account(fixture.AccumulatedDepreciation),
	})
	require.NoError(t, err)
	return a
}

func gauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestDepreciationRunChargesEachAssetOnce(t *testing.T) {
	fx := fixture.New(t)
	svc := assets.NewService(fx.Store.Assets(), fx.Engine, fx.Audit)
	svc.WithNow(func() time.Time { return fixture.Now })
	for _, code := range []string{"FL-01", "FL-02", "FL-03"} {
		registerAsset(t, fx, svc, code)
	}

	reg := prometheus.NewRegistry()
	job := jobs.NewDepreciationJob(fx.Store, svc, fx.Periods, 1, quiet, jobmetrics.NewMetrics(reg))
	job.WithClock(func() time.Time { return time.Date(2025, time.February, 3, 1, 0, 0, 0, time.UTC) })

	report, err := job.Run(context.Background(), jobs.DepreciationPayload{})
	require.NoError(t, err)
	require.Equal(t, map[string]int{jobs.OutcomeCharged: 3}, report[fx.Institution])
	require.Equal(t, money.Major(300), fx.Balance(t, fixture.Depreciation))

	task, _, err := jobs.NewDepreciationTask(jobs.DepreciationPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, money.Major(300), fx.Balance(t, fixture.Depreciation), "a rerun must not charge twice")
	require.Equal(t, float64(6), gauge(t, reg, "ledger_depreciation_assets_total"))
	fx.RequireReconciled(t)
}

func TestDepreciationWithoutOpenPeriodIsSkipped(t *testing.T) {
	fx := fixture.New(t)
	svc := assets.NewService(fx.Store.Assets(), fx.Engine, fx.Audit)
	svc.WithNow(func() time.Time { return fixture.Now })
	registerAsset(t, fx, svc, "FL-01")

	job := jobs.NewDepreciationJob(fx.Store, svc, fx.Periods, 1, quiet, nil)
	report, err := job.Run(context.Background(), jobs.DepreciationPayload{
		InstitutionID: fx.Institution.String(),
		AsOf:          "2025-03-31",
	})
	require.NoError(t, err)
	require.Equal(t, 1, report[fx.Institution][jobs.OutcomeNoOpenPeriod])
	require.Zero(t, fx.Balance(t, fixture.Depreciation))
}

type flakyDepreciator struct {
	list []assets.Asset
	errs map[uuid.UUID]error
}

func (f flakyDepreciator) ListActive(context.Context, uuid.UUID) ([]assets.Asset, error) {
	return f.list, nil
}

func (f flakyDepreciator) RunDepreciation(_ context.Context, in assets.RunInput) (assets.RunResult, error) {
	if err := f.errs[in.AssetID]; err != nil {
		return assets.RunResult{}, err
	}
	return assets.RunResult{Skipped: assets.SkipAtSalvage}, nil
}

func TestDepreciationOnlyRetriesRecoverableFailures(t *testing.T) {
	fx := fixture.New(t)
	invalid, conflicted, fine := uuid.New(), uuid.New(), uuid.New()
	dep := flakyDepreciator{
		list: []assets.Asset{{ID: invalid, Code: "A"}, {ID: conflicted, Code: "B"}, {ID: fine, Code: "C"}},
		errs: map[uuid.UUID]error{invalid: shared.Validation("BAD", "x", "bad")},
	}
	job := jobs.NewDepreciationJob(fx.Store, dep, fx.Periods, 1, quiet, nil)
	payload := jobs.DepreciationPayload{InstitutionID: fx.Institution.String(), AsOf: "2025-01-31"}

	report, err := job.Run(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, map[string]int{jobs.OutcomeFailed: 1, string(assets.SkipAtSalvage): 2}, report[fx.Institution])

	dep.errs[conflicted] = shared.ErrConflict
	_, err = job.Run(context.Background(), payload)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDepreciationRejectsMalformedPayload(t *testing.T) {
	fx := fixture.New(t)
	job := jobs.NewDepreciationJob(fx.Store, flakyDepreciator{}, fx.Periods, 1, quiet, nil)
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskDepreciationRun, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = job.Run(context.Background(), jobs.DepreciationPayload{AsOf: "31/01/2025"})
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDepreciationTaskIDsAreDeterministic(t *testing.T) {
	p := jobs.DepreciationPayload{InstitutionID: uuid.NewString(), AsOf: "2025-01-31"}
	_, first, err := jobs.NewDepreciationTask(p)
	require.NoError(t, err)
	_, second, err := jobs.NewDepreciationTask(p)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, scheduled, err := jobs.NewDepreciationTask(jobs.DepreciationPayload{})
	require.NoError(t, err)
	require.Len(t, scheduled, 2)
}

type brokenLedger struct{ diffs []accounting.Discrepancy }

func (b brokenLedger) Reconcile(context.Context, uuid.UUID) ([]accounting.Discrepancy, error) {
	return b.diffs, nil
}

func TestIntegrityCheck(t *testing.T) {
	fx := fixture.New(t)
	_, err := fx.Engine.Post(context.Background(), fx.Posting(fixture.Cash, fixture.Revenue, money.Major(25)))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	job := jobs.NewIntegrityJob(fx.Store, fx.Engine, quiet, jobmetrics.NewMetrics(reg))
	task, err := jobs.NewIntegrityTask(jobs.IntegrityPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, gauge(t, reg, "ledger_integrity_discrepancies"))

	job.Ledger = brokenLedger{diffs: []accounting.Discrepancy{{Code: fixture.Cash, Stored: money.Major(26), Replayed: money.Major(25)}}}
	found, err := job.Run(context.Background(), jobs.IntegrityPayload{})
	require.ErrorIs(t, err, jobs.ErrIntegrityViolation)
	require.Len(t, found[fx.Institution], 1)
	require.Equal(t, float64(1), gauge(t, reg, "ledger_integrity_discrepancies"))

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, jobs.ErrIntegrityViolation)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealthEndpoint(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1}}, quiet).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, float64(4), body["pending"])
	require.Equal(t, float64(1), body["retry"])

	r = chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(stubInspector{err: errors.New("redis down")}, quiet).MountRoutes)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
