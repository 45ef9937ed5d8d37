package accounting

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

func validPosting() PostingInput {
	return PostingInput{
		InstitutionID: uuid.New(),
		ActorID:       1,
		PeriodID:      uuid.New(),
		Date:          time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		SourceModule:  "GL",
		Lines: []JournalLine{
			{AccountID: uuid.New(), Amount: 1500, Side: SideDebit},
			{AccountID: uuid.New(), Amount: 1000, Side: SideCredit},
			{AccountID: uuid.New(), Amount: 500, Side: SideCredit},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	require.NoError(t, validPosting().Validate())

	cases := map[string]struct {
		mutate func(*PostingInput)
		want   error
	}{
		"unbalanced": {func(in *PostingInput) { in.Lines[2].Amount = 499 }, ErrUnbalanced},
		"empty":      {func(in *PostingInput) { in.Lines = nil }, ErrEmptyEntry},
		"zero":       {func(in *PostingInput) { in.Lines[0].Amount = 0 }, ErrInvalidLineAmount},
		"negative":   {func(in *PostingInput) { in.Lines[1].Amount = -1000 }, ErrInvalidLineAmount},
		"side":       {func(in *PostingInput) { in.Lines[0].Side = "LEFT" }, ErrInvalidSide},
		"overflow": {func(in *PostingInput) {
			in.Lines = []JournalLine{
				{AccountID: uuid.New(), Amount: math.MaxInt64, Side: SideDebit},
				{AccountID: uuid.New(), Amount: 1, Side: SideDebit},
				{AccountID: uuid.New(), Amount: 1, Side: SideCredit},
			}
		}, ErrInvalidLineAmount},
		"actor":       {func(in *PostingInput) { in.ActorID = 0 }, shared.ErrValidation},
		"institution": {func(in *PostingInput) { in.InstitutionID = uuid.Nil }, shared.ErrValidation},
		"period":      {func(in *PostingInput) { in.PeriodID = uuid.Nil }, shared.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validPosting()
			tc.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
			require.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}
}

func TestUnbalancedCarriesField(t *testing.T) {
	in := validPosting()
	in.Lines[0].Amount = 1501
	err := in.Validate()
	var typed *shared.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, "UNBALANCED_ENTRY", typed.Code)
	require.Equal(t, "lines", typed.Field)
}

func TestSignedAmount(t *testing.T) {
	amt := money.Amount(250)
	require.Equal(t, amt, SignedAmount(AccountTypeAsset, SideDebit, amt))
	require.Equal(t, -amt, SignedAmount(AccountTypeAsset, SideCredit, amt))
	require.Equal(t, amt, SignedAmount(AccountTypeExpense, SideDebit, amt))
	require.Equal(t, -amt, SignedAmount(AccountTypeLiability, SideDebit, amt))
	require.Equal(t, amt, SignedAmount(AccountTypeEquity, SideCredit, amt))
	require.Equal(t, amt, SignedAmount(AccountTypeIncome, SideCredit, amt))
}

func TestReplayFoldsLines(t *testing.T) {
	cash, revenue := uuid.New(), uuid.New()
	types := map[uuid.UUID]AccountType{cash: AccountTypeAsset, revenue: AccountTypeIncome}
	entries := []JournalEntry{
		{Lines: []JournalLine{{AccountID: cash, Amount: 900, Side: SideDebit}, {AccountID: revenue, Amount: 900, Side: SideCredit}}},
		{Lines: []JournalLine{{AccountID: revenue, Amount: 100, Side: SideDebit}, {AccountID: cash, Amount: 100, Side: SideCredit}}},
	}
	got := Replay(types, entries)
	require.Equal(t, money.Amount(800), got[cash])
	require.Equal(t, money.Amount(800), got[revenue])

	debit, credit := entries[0].Totals()
	require.Equal(t, debit, credit)
}

func TestCreateAccountInputValidate(t *testing.T) {
	base := CreateAccountInput{InstitutionID: uuid.New(), ActorID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset}
	require.NoError(t, base.Validate())

	bad := base
	bad.Type = "ASSETS"
	require.ErrorIs(t, bad.Validate(), ErrInvalidAccount)

	tracked := base
	tracked.IsTrackedForBudget = true
	require.ErrorIs(t, tracked.Validate(), ErrInvalidAccount)
}

func TestSideOpposite(t *testing.T) {
	require.Equal(t, SideCredit, SideDebit.Opposite())
	require.Equal(t, SideDebit, SideCredit.Opposite())
	require.Equal(t, SideDebit, AccountTypeExpense.NormalSide())
	require.Equal(t, SideCredit, AccountTypeEquity.NormalSide())
}
