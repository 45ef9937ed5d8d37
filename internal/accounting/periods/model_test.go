package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

func TestEnsurePostable(t *testing.T) {
	p := Period{
		Code:      "2026-03",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    PeriodStatusOpen,
	}
	require.NoError(t, p.EnsurePostable(time.Date(2026, 3, 31, 18, 30, 0, 0, time.UTC)))
	require.NoError(t, p.EnsurePostable(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.ErrorIs(t, p.EnsurePostable(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)), ErrDateOutOfRange)

	p.Status = PeriodStatusClosed
	err := p.EnsurePostable(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrPeriodClosed)
	require.ErrorIs(t, err, shared.ErrPolicy)

	p.Status = PeriodStatusLocked
	require.ErrorIs(t, p.EnsurePostable(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)), ErrPeriodClosed)
}

func TestWindowBounds(t *testing.T) {
	p := Period{
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), p.End())
	require.Equal(t, p.StartDate, p.Start())
}

func TestMonths(t *testing.T) {
	month := Period{StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, 1, month.Months())
	quarter := Period{StartDate: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, 3, quarter.Months())
	inverted := Period{StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, 1, inverted.Months())
}

func TestCreateInputValidate(t *testing.T) {
	in := CreateInput{Code: "2026-03", StartDate: time.Now(), EndDate: time.Now()}
	require.ErrorIs(t, in.Validate(), shared.ErrValidation)
}
