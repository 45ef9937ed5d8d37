// Package money represents currency values as integral minor units.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MinorDigits is the number of fractional digits carried by an Amount.
const MinorDigits = 2

var (
	// ErrInvalidAmount indicates the value could not be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrTooPrecise indicates the value has more fractional digits than MinorDigits.
	ErrTooPrecise = errors.New("money: amount has sub-cent precision")
)

// Amount is a signed monetary value in minor units (cents).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromDecimal converts a major-unit decimal into minor units without rounding.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(MinorDigits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Amount(scaled.IntPart()), nil
}

// Parse reads a major-unit decimal string such as "1250.50".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMinorDecimal rounds a decimal expressed in minor units half away from zero.
func FromMinorDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(0).IntPart())
}

// Major builds an amount from whole major units.
func Major(units int64) Amount {
	return Amount(units * 100)
}

// Decimal returns the value in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorDigits)
}

// Minor returns the value in minor units as a decimal, for exact arithmetic.
func (a Amount) Minor() decimal.Decimal {
	return decimal.NewFromInt(int64(a))
}

// String renders the amount with two fixed decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorDigits)
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a > 0 }

// Neg returns -a.
func (a Amount) Neg() Amount { return -a }

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Format renders the amount with locale-aware grouping, e.g. "1,250.50".
func (a Amount) Format(tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(a.Decimal().InexactFloat64(), number.Scale(MinorDigits)))
}
