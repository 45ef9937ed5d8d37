package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/app"
	"github.com/odyssey-erp/ledgercore/jobs"
)

type stubQueue struct {
	depreciation []jobs.DepreciationPayload
	integrity    []jobs.IntegrityPayload
	conflict     bool
}

func (q *stubQueue) EnqueueDepreciation(_ context.Context, p jobs.DepreciationPayload) (*asynq.TaskInfo, error) {
	if q.conflict {
		return nil, asynq.ErrTaskIDConflict
	}
	q.depreciation = append(q.depreciation, p)
	return &asynq.TaskInfo{ID: "t1", Type: jobs.TaskDepreciationRun, Queue: jobs.QueueDefault}, nil
}

func (q *stubQueue) EnqueueIntegrity(_ context.Context, p jobs.IntegrityPayload) (*asynq.TaskInfo, error) {
	q.integrity = append(q.integrity, p)
	return &asynq.TaskInfo{ID: "t2", Type: jobs.TaskIntegrityCheck, Queue: jobs.QueueDefault}, nil
}

func (q *stubQueue) InspectQueue(context.Context) (QueueStats, error) {
	return QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}, nil
}

func (q *stubQueue) Close() error { return nil }

func memoryEnv(t *testing.T, queue *stubQueue) *env {
	t.Helper()
	cfg := &app.Config{StoreDriver: app.DriverMemory, TxMaxAttempts: 3, JournalSequence: "JOURNAL", SystemActorID: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger, err := app.BuildLedger(context.Background(), app.LedgerParams{Config: cfg, Logger: logger})
	require.NoError(t, err)
	return &env{
		config: func() (*app.Config, error) { return cfg, nil },
		ledger: func(context.Context, *app.Config) (*app.Ledger, error) { return ledger, nil },
		queue:  func(*app.Config) (jobQueue, error) { return queue, nil },
		logger: logger,
	}
}

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(e)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSequenceConfigureAndAllocate(t *testing.T) {
	e := memoryEnv(t, &stubQueue{})
	inst := uuid.NewString()

	out, err := run(t, e, "sequence", "configure", "BILL", "--institution", inst, "--prefix", "BILL-", "--padding", "4")
	require.NoError(t, err)
	require.Equal(t, "configured BILL: next BILL-0001\n", out)

	for _, want := range []string{"BILL-0001\n", "BILL-0002\n"} {
		out, err = run(t, e, "sequence", "allocate", "BILL", "--institution", inst)
		require.NoError(t, err)
		require.Equal(t, want, out)
	}

	_, err = run(t, e, "sequence", "allocate", "INVOICE", "--institution", inst)
	require.ErrorContains(t, err, "SEQUENCE_NOT_CONFIGURED")

	_, err = run(t, e, "sequence", "allocate", "BILL")
	require.Error(t, err)
}

func TestVerifyReportsConsistentLedger(t *testing.T) {
	e := memoryEnv(t, &stubQueue{})
	out, err := run(t, e, "verify")
	require.NoError(t, err)
	require.Equal(t, "ledger consistent\n", out)
}

func TestMigrateNeedsPostgres(t *testing.T) {
	e := memoryEnv(t, &stubQueue{})
	_, err := run(t, e, "migrate")
	require.ErrorContains(t, err, "STORE_DRIVER=postgres")
}

func TestPruneKeysValidatesInput(t *testing.T) {
	e := memoryEnv(t, &stubQueue{})
	_, err := run(t, e, "prune-keys", "--older-than", "0s")
	require.ErrorContains(t, err, "--older-than")
	_, err = run(t, e, "prune-keys")
	require.ErrorContains(t, err, "STORE_DRIVER=postgres")
}

func TestJobsTriggerAndStats(t *testing.T) {
	queue := &stubQueue{}
	e := memoryEnv(t, queue)
	inst := uuid.NewString()

	out, err := run(t, e, "jobs", "trigger", "depreciation", "--institution", inst, "--as-of", "2025-01-31")
	require.NoError(t, err)
	require.Contains(t, out, "enqueued assets:depreciation:run")
	require.Equal(t, []jobs.DepreciationPayload{{InstitutionID: inst, AsOf: "2025-01-31"}}, queue.depreciation)

	_, err = run(t, e, "jobs", "trigger", "integrity")
	require.NoError(t, err)
	require.Len(t, queue.integrity, 1)

	queue.conflict = true
	out, err = run(t, e, "jobs", "trigger", "depreciation", "--as-of", "2025-01-31")
	require.NoError(t, err)
	require.Contains(t, out, "already queued")

	_, err = run(t, e, "jobs", "trigger", "payroll")
	require.ErrorContains(t, err, "unsupported job")

	out, err = run(t, e, "jobs", "stats")
	require.NoError(t, err)
	require.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=1 archived=0\n", out)
}
