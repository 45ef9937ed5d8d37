package ap_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/ap"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
	"github.com/odyssey-erp/ledgercore/internal/testing/fixture"
)

func newService(fx *fixture.Ledger) *ap.Service {
	svc := ap.NewService(fx.Store.Documents(), fx.Engine, fx.Audit)
	svc.WithNow(func() time.Time { return fixture.Now })
	return svc
}

func billInput(fx *fixture.Ledger, amount money.Amount) subledger.IssueInput {
	return subledger.IssueInput{
		InstitutionID:    fx.Institution,
		ActorID:          fx.Actor,
		PeriodID:         fx.Period.ID,
		CounterpartyName: "PT Sumber Makmur",
		Date:             fixture.Now,
		DueDate:          fixture.Now.AddDate(0, 0, 14),
		Amount:           amount,
		ControlAccountID: fx.Account(fixture.Payables),
		OffsetAccountID:  fx.Account(fixture.Travel),
	}
}

func payment(fx *fixture.Ledger, doc uuid.UUID, amount money.Amount) subledger.PaymentInput {
	return subledger.PaymentInput{
		InstitutionID: fx.Institution,
		ActorID:       fx.Actor,
		PeriodID:      fx.Period.ID,
		DocumentID:    doc,
		Amount:        amount,
		CashAccountID: fx.Account(fixture.Cash),
		Date:          fixture.Now,
	}
}

func TestBillLifecycle(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, billInput(fx, money.Major(1000)))
	require.NoError(t, err)
	bill := issued.Document
	require.Equal(t, "BILL-000001", bill.Number)
	require.Equal(t, subledger.StatusOpen, bill.Status)
	require.Equal(t, money.Major(1000), bill.Balance)
	require.Equal(t, issued.Entry.Reference, bill.IssueReference)
	require.Equal(t, money.Major(1000), fx.Balance(t, fixture.Payables))
	require.Equal(t, money.Major(1000), fx.Balance(t, fixture.Travel))

	paid, err := svc.ApplyPayment(ctx, payment(fx, bill.ID, money.Major(400)))
	require.NoError(t, err)
	require.Equal(t, money.Major(600), paid.Document.Balance)
	require.Equal(t, subledger.StatusPartiallyPaid, paid.Document.Status)
	require.Equal(t, paid.Document.Amount, paid.Document.Balance+paid.Document.Applied())

	paid, err = svc.ApplyPayment(ctx, payment(fx, bill.ID, money.Major(600)))
	require.NoError(t, err)
	require.Zero(t, paid.Document.Balance)
	require.Equal(t, subledger.StatusPaid, paid.Document.Status)

	_, err = svc.ApplyPayment(ctx, payment(fx, bill.ID, money.Major(1)))
	require.ErrorIs(t, err, subledger.ErrOverpayment)
	require.True(t, shared.IsValidation(err))

	require.Zero(t, fx.Balance(t, fixture.Payables))
	require.Equal(t, money.Major(-1000), fx.Balance(t, fixture.Cash))

	payments, err := svc.Payments(ctx, fx.Institution, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	var applied money.Amount
	for _, p := range payments {
		applied += p.Amount
	}
	stored, err := svc.Get(ctx, fx.Institution, bill.ID)
	require.NoError(t, err)
	require.Equal(t, stored.Amount, stored.Balance+applied)
	require.Equal(t, []string{"journal.post", "document.issue", "journal.post", "document.payment", "journal.post", "document.payment"}, fx.Audit.Actions())
	fx.RequireReconciled(t)
}

func TestIssueValidation(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)

	in := billInput(fx, 0)
	_, err := svc.Issue(context.Background(), in)
	require.ErrorIs(t, err, subledger.ErrInvalidAmount)

	in = billInput(fx, money.Major(5))
	in.ControlAccountID = uuid.Nil
	_, err = svc.Issue(context.Background(), in)
	require.True(t, shared.IsValidation(err))

	in = billInput(fx, money.Major(5))
	in.OffsetAccountID = uuid.New()
	_, err = svc.Issue(context.Background(), in)
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))

	// nothing was committed, so the next bill still takes the first number
	issued, err := svc.Issue(context.Background(), billInput(fx, money.Major(5)))
	require.NoError(t, err)
	require.Equal(t, "BILL-000001", issued.Document.Number)
}

func TestPaymentAgainstOtherKindIsNotFound(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, payment(fx, uuid.New(), money.Major(1)))
	require.ErrorIs(t, err, subledger.ErrDocumentNotFound)
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, billInput(fx, money.Major(100)))
	require.NoError(t, err)

	const payers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyPayment(ctx, payment(fx, issued.Document.ID, money.Major(10)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.ErrorIs(t, err, subledger.ErrOverpayment)
		}()
	}
	wg.Wait()

	require.Equal(t, 10, succeeded)
	doc, err := svc.Get(ctx, fx.Institution, issued.Document.ID)
	require.NoError(t, err)
	require.Zero(t, doc.Balance)
	require.Equal(t, subledger.StatusPaid, doc.Status)
	fx.RequireReconciled(t)
}

func TestPurchaseOrderBillConsultsBudget(t *testing.T) {
	fx := fixture.New(t)
	svc := newService(fx)
	ctx := context.Background()

	in := billInput(fx, money.Major(1200))
	in.OffsetAccountID = fx.Account(fixture.OfficeSupplies)

	// without a purchase order the budget is not consulted
	res, err := svc.Issue(ctx, in)
	require.NoError(t, err)
	require.Nil(t, res.Budget)

	in.FromPurchaseOrder = true
	in.Amount = money.Major(10)
	res, err = svc.Issue(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, res.Budget)
	require.True(t, res.Budget.Allowed)
	require.True(t, res.Budget.Advisory)

	_, err = fx.Guard.SetPolicy(ctx, budget.Policy{
		InstitutionID:       fx.Institution,
		StrictPOEnforcement: true,
		VarianceTolerance:   decimal.Zero,
	})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, in)
	require.ErrorIs(t, err, budget.ErrBudgetExceeded)
	require.Equal(t, shared.KindPolicy, shared.KindOf(err))
}
