package expense_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/expense"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
	"github.com/odyssey-erp/ledgercore/internal/testing/fixture"
)

func requisition(fx *fixture.Ledger, code string, amount money.Amount) subledger.IssueInput {
	return subledger.IssueInput{
		InstitutionID:    fx.Institution,
		ActorID:          fx.Actor,
		PeriodID:         fx.Period.ID,
		CounterpartyName: "Dewi Lestari",
		Date:             fixture.Now,
		DueDate:          fixture.Now,
		Amount:           amount,
		ControlAccountID: fx.Account(fixture.ClaimsPayable),
		OffsetAccountID:  fx.Account(code),
	}
}

func newService(fx *fixture.Ledger) *expense.Service {
	svc := expense.NewService(fx.Store.Documents(), fx.Engine, fx.Audit)
	svc.WithNow(func() time.Time { return fixture.Now })
	return svc
}

func TestRequisitionWithinBudget(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)

	res, err := svc.Issue(context.Background(), requisition(fx, fixture.OfficeSupplies, money.Major(400)))
	require.NoError(t, err)
	require.Equal(t, "EXP-000001", res.Document.Number)
	require.NotNil(t, res.Budget)
	require.True(t, res.Budget.Allowed)
	require.False(t, res.Budget.Advisory)
	require.Equal(t, money.Major(400), fx.Balance(t, fixture.ClaimsPayable))
}

func TestRequisitionOverBudgetStrict(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)
	ctx := context.Background()

	_, err := fx.Guard.SetPolicy(ctx, budget.Policy{
		InstitutionID:       fx.Institution,
		StrictBudgetControl: true,
		VarianceTolerance:   decimal.RequireFromString("0.10"),
	})
	require.NoError(t, err)

	_, err = svc.Issue(ctx, requisition(fx, fixture.OfficeSupplies, money.Major(900)))
	require.NoError(t, err)

	// 900 + 200 = 1100 sits exactly on the 10% tolerance
	_, err = svc.Issue(ctx, requisition(fx, fixture.OfficeSupplies, money.Major(200)))
	require.NoError(t, err)

	_, err = svc.Issue(ctx, requisition(fx, fixture.OfficeSupplies, money.MustParse("0.01")))
	require.ErrorIs(t, err, budget.ErrBudgetExceeded)

	require.Equal(t, money.Major(1100), fx.Balance(t, fixture.OfficeSupplies))
	fx.RequireReconciled(t)
}

func TestRequisitionOverBudgetAdvisory(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)

	res, err := svc.Issue(context.Background(), requisition(fx, fixture.OfficeSupplies, money.Major(1500)))
	require.NoError(t, err)
	require.True(t, res.Budget.Allowed)
	require.True(t, res.Budget.Advisory)
	require.NotEmpty(t, res.Budget.Reason)
	require.Equal(t, money.Major(1500), fx.Balance(t, fixture.OfficeSupplies))
}

func TestRequisitionOnUntrackedAccount(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)

	res, err := svc.Issue(context.Background(), requisition(fx, fixture.Travel, money.Major(99999)))
	require.NoError(t, err)
	require.True(t, res.Budget.Allowed)
	require.False(t, res.Budget.Advisory)
}
