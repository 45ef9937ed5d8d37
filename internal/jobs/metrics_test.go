package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveClassifiesRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	boom := errors.New("redis down")

	require.NoError(t, m.Observe("ledger:integrity:check", func() error { return nil }))
	require.ErrorIs(t, m.Observe("ledger:integrity:check", func() error { return boom }), boom)
	require.ErrorIs(t, m.Observe("ledger:integrity:check", func() error {
		return fmt.Errorf("%w: broken", asynq.SkipRetry)
	}), asynq.SkipRetry)

	for status, want := range map[string]float64{StatusSuccess: 1, StatusRetry: 1, StatusAbandoned: 1} {
		require.Equal(t, want, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity:check", status)), status)
	}
	require.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:integrity:check")))
}

func TestNilMetricsStillRuns(t *testing.T) {
	var m *Metrics
	called := false
	require.NoError(t, m.Observe("x", func() error { called = true; return nil }))
	require.True(t, called)
	m.SetDiscrepancies("inst", 3)
	m.AddDepreciation("charged", 1)
}

func TestAddDepreciationIgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDepreciation("charged", 0)
	m.AddDepreciation("charged", 2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.assets.WithLabelValues("charged")))
}
