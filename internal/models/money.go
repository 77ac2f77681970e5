package models

import "github.com/shopspring/decimal"

// Cents is the number of fractional digits every stored amount carries.
const Cents = 2

// Normalize rounds an amount to two decimal places, half away from zero.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Cents)
}

// IsPositive reports whether the normalized amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return Normalize(amount).Cmp(decimal.Zero) > 0
}

func toFloat(amount decimal.Decimal) float64 {
	return Normalize(amount).InexactFloat64()
}

func fromFloat(value float64) decimal.Decimal {
	return Normalize(decimal.NewFromFloat(value))
}
