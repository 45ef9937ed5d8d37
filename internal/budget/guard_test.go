package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/money"
)

func TestEvaluate(t *testing.T) {
	limit := money.Major(1000)
	tol := decimal.RequireFromString("0.05")

	res := evaluate(limit, money.Major(600), money.Major(450), tol, true)
	require.True(t, res.Allowed)
	require.False(t, res.Advisory)
	require.Equal(t, "1050", res.Threshold.String())

	res = evaluate(limit, money.Major(600), money.MustParse("450.01"), tol, true)
	require.False(t, res.Allowed)
	require.Contains(t, res.Reason, "1050.01")

	res = evaluate(limit, money.Major(600), money.MustParse("450.01"), tol, false)
	require.True(t, res.Allowed)
	require.True(t, res.Advisory)
	require.True(t, res.Exceeded())
}

func TestPolicyStrict(t *testing.T) {
	p := Policy{StrictBudgetControl: true}
	require.True(t, p.Strict(SourceExpense))
	require.False(t, p.Strict(SourcePurchaseOrder))
	require.False(t, p.Strict("OTHER"))
}
