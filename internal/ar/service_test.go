package ar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/ar"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
	"github.com/odyssey-erp/ledgercore/internal/testing/fixture"
)

func TestInvoiceIssueAndCollection(t *testing.T) {
	fx := fixture.New(t)
	svc := ar.NewService(fx.Store.Documents(), fx.Engine, fx.Audit)
	svc.WithNow(func() time.Time { return fixture.Now })
	ctx := context.Background()

	res, err := svc.Issue(ctx, subledger.IssueInput{
		InstitutionID:    fx.Institution,
		ActorID:          fx.Actor,
		PeriodID:         fx.Period.ID,
		CounterpartyName: "Universitas Contoh",
		Date:             fixture.Now,
		DueDate:          fixture.Now.AddDate(0, 0, 30),
		Amount:           money.MustParse("2500.75"),
		ControlAccountID: fx.Account(fixture.Receivables),
		OffsetAccountID:  fx.Account(fixture.Revenue),
	})
	require.NoError(t, err)
	require.Equal(t, subledger.KindReceivable, res.Document.Kind)
	require.Equal(t, "INV-000001", res.Document.Number)
	require.Equal(t, accounting.SideDebit, res.Entry.Lines[1].Side)
	require.Equal(t, fx.Account(fixture.Receivables), res.Entry.Lines[1].AccountID)
	require.Equal(t, money.MustParse("2500.75"), fx.Balance(t, fixture.Receivables))
	require.Equal(t, money.MustParse("2500.75"), fx.Balance(t, fixture.Revenue))
	require.Nil(t, res.Budget)

	paid, err := svc.ApplyPayment(ctx, subledger.PaymentInput{
		InstitutionID: fx.Institution,
		ActorID:       fx.Actor,
		PeriodID:      fx.Period.ID,
		DocumentID:    res.Document.ID,
		Amount:        money.MustParse("500.75"),
		CashAccountID: fx.Account(fixture.Cash),
		Date:          fixture.Now,
	})
	require.NoError(t, err)
	require.Equal(t, money.Major(2000), paid.Document.Balance)
	require.Equal(t, subledger.StatusPartiallyPaid, paid.Document.Status)
	require.Equal(t, money.MustParse("500.75"), fx.Balance(t, fixture.Cash))
	require.Equal(t, money.Major(2000), fx.Balance(t, fixture.Receivables))
	require.NotNil(t, paid.Payment)
	require.Equal(t, paid.Entry.ID, paid.Payment.EntryID)

	report, err := svc.Aging(ctx, fx.Institution, fixture.Now.AddDate(0, 0, 45))
	require.NoError(t, err)
	require.Equal(t, money.Major(2000), report.Summary.Bucket30)
	require.Equal(t, money.Major(2000), report.Summary.Total())
	fx.RequireReconciled(t)
}
