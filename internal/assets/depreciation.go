package assets

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/money"
)

var twelve = decimal.NewFromInt(12)

// Charge computes the depreciation for months, capped so the carrying value
// never drops below salvage. The result is rounded half-up to cents.
func Charge(a Asset, months int) money.Amount {
	if months <= 0 || a.AtSalvage() {
		return 0
	}
	var raw decimal.Decimal
	m := decimal.NewFromInt(int64(months))
	switch a.Method {
	case MethodStraightLine:
		base := decimal.NewFromInt(int64(a.PurchasePrice - a.SalvageValue))
		raw = base.Mul(m).Div(decimal.NewFromInt(int64(a.UsefulLifeYears)).Mul(twelve))
	case MethodReducingBalance:
		rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(a.UsefulLifeYears)))
		if a.DeclineRate != nil {
			rate = *a.DeclineRate
		}
		raw = decimal.NewFromInt(int64(a.CurrentValue)).Mul(rate).Mul(m).Div(twelve)
	default:
		return 0
	}
	charge := money.FromMinorDecimal(raw)
	return money.Min(charge, a.CurrentValue-a.SalvageValue)
}
