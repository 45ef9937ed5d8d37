package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`ledger_[a-z_]+`)

// Every alert must reference a series this process exports.
func TestLedgerAlertsReferenceExportedSeries(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)
	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(data, &rules))
	require.Len(t, rules.Groups, 1)
	require.Equal(t, "ledger", rules.Groups[0].Name)

	m := NewMetrics()
	m.ObserveError(shared.ErrConflict)
	m.Jobs().SetDiscrepancies("sweep", 0)
	_ = m.Jobs().Observe("sweep", func() error { return errors.New("sweep failed") })
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	exported := rr.Body.String()

	severities := map[string]string{
		"LedgerIntegrityDiscrepancy": "critical",
		"LedgerConflictRate":         "warning",
		"LedgerJobFailures":          "warning",
	}
	require.Len(t, rules.Groups[0].Rules, len(severities))
	for _, rule := range rules.Groups[0].Rules {
		require.Contains(t, severities, rule.Alert)
		require.Equal(t, severities[rule.Alert], rule.Labels["severity"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		for _, key := range []string{"summary", "description", "runbook"} {
			require.NotEmpty(t, rule.Annotations[key], "%s lacks %s", rule.Alert, key)
		}
		names := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, names, rule.Alert)
		for _, name := range names {
			require.True(t, strings.Contains(exported, "\n"+name), "%s uses unexported %s", rule.Alert, name)
		}
	}
}
