package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/ap"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

func (l *pgLedger) bill(vendor string, amount money.Amount, due time.Time) subledger.IssueInput {
	return subledger.IssueInput{
		InstitutionID:    l.inst,
		ActorID:          1,
		PeriodID:         l.period.ID,
		CounterpartyName: vendor,
		Date:             january,
		DueDate:          due,
		Amount:           amount,
		ControlAccountID: l.accounts["2000"],
		OffsetAccountID:  l.accounts["6200"],
	}
}

func (l *pgLedger) payment(doc subledger.Document, amount money.Amount) subledger.PaymentInput {
	return subledger.PaymentInput{
		InstitutionID: l.inst,
		ActorID:       1,
		PeriodID:      l.period.ID,
		DocumentID:    doc.ID,
		Amount:        amount,
		CashAccountID: l.accounts["1000"],
		Date:          january,
	}
}

func TestPostgresBillPaymentsAndOverpayment(t *testing.T) {
	l := seedLedger(t, openStore(t))
	svc := ap.NewService(l.store.Documents(), l.engine, l.store.Audit())
	svc.WithNow(func() time.Time { return january })
	ctx := context.Background()

	issued, err := svc.Issue(ctx, l.bill("PT Sumber Makmur", money.Major(1000), january.AddDate(0, 0, 14)))
	require.NoError(t, err)
	bill := issued.Document
	require.Equal(t, "BILL-000001", bill.Number)
	require.Equal(t, subledger.StatusOpen, bill.Status)
	require.Equal(t, issued.Entry.Reference, bill.IssueReference)
	require.Equal(t, money.Major(1000), l.balance(t, "2000"))

	paid, err := svc.ApplyPayment(ctx, l.payment(bill, money.Major(400)))
	require.NoError(t, err)
	require.Equal(t, money.Major(600), paid.Document.Balance)
	require.Equal(t, subledger.StatusPartiallyPaid, paid.Document.Status)

	paid, err = svc.ApplyPayment(ctx, l.payment(bill, money.Major(600)))
	require.NoError(t, err)
	require.Zero(t, paid.Document.Balance)
	require.Equal(t, subledger.StatusPaid, paid.Document.Status)

	_, err = svc.ApplyPayment(ctx, l.payment(bill, money.Major(1)))
	require.ErrorIs(t, err, subledger.ErrOverpayment)

	stored, err := svc.Get(ctx, l.inst, bill.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Balance)
	require.Equal(t, subledger.StatusPaid, stored.Status)
	require.Equal(t, money.Major(1000), stored.Applied())

	payments, err := svc.Payments(ctx, l.inst, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	amounts := make([]money.Amount, 0, len(payments))
	for _, p := range payments {
		require.NotEmpty(t, p.Reference)
		require.Equal(t, bill.ID, p.DocumentID)
		amounts = append(amounts, p.Amount)
	}
	require.ElementsMatch(t, []money.Amount{money.Major(400), money.Major(600)}, amounts)

	require.Zero(t, l.balance(t, "2000"))
	require.Equal(t, money.Major(-1000), l.balance(t, "1000"))
	require.Equal(t, money.Major(1000), l.balance(t, "6200"))
	l.requireReconciled(t)
}

func TestPostgresAgingListsOnlyOpenDocuments(t *testing.T) {
	l := seedLedger(t, openStore(t))
	svc := ap.NewService(l.store.Documents(), l.engine, nil)
	svc.WithNow(func() time.Time { return january })
	ctx := context.Background()

	settled, err := svc.Issue(ctx, l.bill("CV Lunas", money.Major(100), january))
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, l.payment(settled.Document, money.Major(100)))
	require.NoError(t, err)

	_, err = svc.Issue(ctx, l.bill("PT Baru", money.Major(250), january.AddDate(0, 0, 30)))
	require.NoError(t, err)
	late, err := svc.Issue(ctx, l.bill("PT Lama", money.Major(300), january))
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, l.payment(late.Document, money.Major(50)))
	require.NoError(t, err)

	report, err := svc.Aging(ctx, l.inst, january.AddDate(0, 0, 45))
	require.NoError(t, err)
	require.Equal(t, money.Major(500), report.Summary.Total())
	require.Equal(t, money.Major(250), report.Summary.Bucket30)
	require.Equal(t, money.Major(250), report.Summary.Bucket60)
	require.Len(t, report.Details, 2)
	require.Equal(t, "PT Baru", report.Details[0].CounterpartyName)
	require.Equal(t, money.Major(250), report.Details[0].Bucket30)
	require.Equal(t, "PT Lama", report.Details[1].CounterpartyName)
	require.Equal(t, money.Major(250), report.Details[1].Bucket60)
}

func TestPostgresDepreciationRunIsIdempotent(t *testing.T) {
	l := seedLedger(t, openStore(t))
	svc := assets.NewService(l.store.Assets(), l.engine, l.store.Audit())
	svc.WithNow(func() time.Time { return january })
	ctx := context.Background()

	asset, err := svc.Register(ctx, assets.RegisterInput{
		InstitutionID:        l.inst,
		ActorID:              1,
		Code:                 "EQ-RACK",
		Name:                 "Server rack",
		PurchasePrice:        money.Major(6000),
		UsefulLifeYears:      5,
		Method:               assets.MethodStraightLine,
		ExpenseAccountID:     l.accounts["6100"],
		AccumulatedAccountID: l.accounts["1590"],
	})
	require.NoError(t, err)
	_, err = svc.Register(ctx, assets.RegisterInput{
		InstitutionID:        l.inst,
		ActorID:              1,
		Code:                 "EQ-RACK",
		Name:                 "Duplicate",
		PurchasePrice:        money.Major(10),
		UsefulLifeYears:      1,
		Method:               assets.MethodStraightLine,
		ExpenseAccountID:     l.accounts["6100"],
		AccumulatedAccountID: l.accounts["1590"],
	})
	require.ErrorIs(t, err, assets.ErrDuplicateAssetCode)

	run := assets.RunInput{
		InstitutionID: l.inst,
		ActorID:       1,
		AssetID:       asset.ID,
		PeriodID:      l.period.ID,
		AsOf:          l.period.EndDate,
	}
	first, err := svc.RunDepreciation(ctx, run)
	require.NoError(t, err)
	require.NotNil(t, first.Entry)
	require.Equal(t, money.Major(100), first.Charge)
	require.Equal(t, money.Major(5900), first.Asset.CurrentValue)

	again, err := svc.RunDepreciation(ctx, run)
	require.NoError(t, err)
	require.Nil(t, again.Entry)
	require.Equal(t, assets.SkipAlreadyCovered, again.Skipped)

	stored, err := svc.Get(ctx, l.inst, asset.ID)
	require.NoError(t, err)
	require.Equal(t, money.Major(100), stored.AccumulatedDepreciation)
	require.Equal(t, money.Major(5900), stored.CurrentValue)
	require.NotNil(t, stored.DepreciatedThrough)

	active, err := svc.ListActive(ctx, l.inst)
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = svc.Dispose(ctx, l.inst, asset.ID, 1)
	require.NoError(t, err)
	active, err = svc.ListActive(ctx, l.inst)
	require.NoError(t, err)
	require.Empty(t, active)

	require.Equal(t, money.Major(100), l.balance(t, "6100"))
	l.requireReconciled(t)
}
