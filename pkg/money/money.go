package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every persisted monetary amount carries.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Zero is the canonical zero amount at monetary scale.
func Zero() decimal.Decimal {
	return decimal.Zero.Round(Scale)
}

// Round applies the platform rounding rule: two decimal places, round half up.
// Rounding happens once at the end of a calculation, never per intermediate
// step, so callers must only round their final result.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// Percent returns base * percent / 100 without rounding.
func Percent(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}

// Clamp bounds amount by the optional floor and ceiling. A nil bound is open.
func Clamp(amount decimal.Decimal, min, max *decimal.Decimal) decimal.Decimal {
	if min != nil && amount.LessThan(*min) {
		amount = *min
	}
	if max != nil && amount.GreaterThan(*max) {
		amount = *max
	}
	return amount
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// FloorAtZero returns the amount, or zero when the amount is negative.
// Writer compensation is never allowed to go below zero.
func FloorAtZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return Zero()
	}
	return amount
}
