package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/api"
	"github.com/odyssey-erp/ledgercore/internal/observability"
)

func memoryConfig() *Config {
	return &Config{
		StoreDriver:     DriverMemory,
		TxMaxAttempts:   3,
		JournalSequence: "JOURNAL",
		RateLimit:       1000,
	}
}

type client struct {
	t      *testing.T
	router http.Handler
	inst   uuid.UUID
}

func (c client) send(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(api.HeaderInstitution, c.inst.String())
	req.Header.Set(api.HeaderActor, "11")
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr.Code, out
}

func TestRouterServesLedgerOverMemoryStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	cfg := memoryConfig()

	ledger, err := BuildLedger(ctx, LedgerParams{Config: cfg, Logger: logger, Metrics: metrics})
	require.NoError(t, err)
	defer ledger.Close()

	router := NewRouter(RouterParams{
		Logger:     logger,
		Config:     cfg,
		APIHandler: api.NewHandler(ledger.APIDeps(logger, metrics)),
		Metrics:    metrics,
	})
	c := client{t: t, router: router, inst: uuid.New()}

	code, _ := c.send(http.MethodPut, "/api/v1/sequences/JOURNAL", map[string]any{"prefix": "JV-", "padding": 4})
	require.Equal(t, http.StatusCreated, code)
	code, period := c.send(http.MethodPost, "/api/v1/periods", map[string]any{
		"code": "2025-03", "start_date": "2025-03-01", "end_date": "2025-03-31",
	})
	require.Equal(t, http.StatusCreated, code)
	code, cash := c.send(http.MethodPost, "/api/v1/accounts", map[string]any{"code": "1000", "name": "Cash", "type": "ASSET"})
	require.Equal(t, http.StatusCreated, code)
	code, equity := c.send(http.MethodPost, "/api/v1/accounts", map[string]any{"code": "3000", "name": "Capital", "type": "EQUITY"})
	require.Equal(t, http.StatusCreated, code)

	code, entry := c.send(http.MethodPost, "/api/v1/journals", map[string]any{
		"period_id": period["id"],
		"date":      "2025-03-02",
		"lines": []map[string]any{
			{"account_id": cash["id"], "amount": "5000.00", "side": "DEBIT"},
			{"account_id": equity["id"], "amount": "5000.00", "side": "CREDIT"},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "JV-0001", entry["reference"])

	code, acct := c.send(http.MethodGet, "/api/v1/accounts/"+cash["id"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "5000.00", acct["balance"])

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `ledger_postings_total{source_module="MANUAL"} 1`)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestHealthzReportsReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ready := errors.New("postgres down")
	router := NewRouter(RouterParams{
		Logger: logger,
		Config: memoryConfig(),
		Ready:  func(*http.Request) error { return ready },
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	ready = nil
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
