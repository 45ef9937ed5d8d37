package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParse(t *testing.T) {
	cases := map[string]Amount{
		"1000":    100000,
		"0.01":    1,
		"1250.50": 125050,
		" 12.3 ":  1230,
		"-4.00":   -400,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseRejectsSubCentAndGarbage(t *testing.T) {
	_, err := Parse("1.005")
	require.ErrorIs(t, err, ErrTooPrecise)

	_, err = Parse("ten")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromMinorDecimalRoundsHalfUp(t *testing.T) {
	require.Equal(t, Amount(3), FromMinorDecimal(decimal.RequireFromString("2.5")))
	require.Equal(t, Amount(2), FromMinorDecimal(decimal.RequireFromString("2.49")))
}

func TestStringAndFormat(t *testing.T) {
	a := Amount(123456789)
	require.Equal(t, "1234567.89", a.String())
	require.Equal(t, "1,234,567.89", a.Format(language.English))
	require.Equal(t, "0.05", Amount(5).String())
}
