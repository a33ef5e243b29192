package model

import "github.com/shopspring/decimal"

var (
	FreeShippingThreshold = decimal.RequireFromString("100.00")
	FlatShippingFee       = decimal.RequireFromString("15.00")
	TaxRate               = decimal.RequireFromString("0.05")
)

// RoundMoney rounds half away from zero to cents. Amounts in this module are
// never negative, so this is round-half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
