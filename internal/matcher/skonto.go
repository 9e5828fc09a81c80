package matcher

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedAmount applies an early-payment discount (Skonto) to a
// total. An absent, zero, or negative percentage leaves the total
// unchanged. Percentages above 100 are clamped to 100, so the discount
// consumes the full amount and the result is zero. The arithmetic stays
// in decimal precision throughout; there is no intermediate float
// rounding.
func DiscountedAmount(total, percentage decimal.Decimal) decimal.Decimal {
	if percentage.LessThanOrEqual(decimal.Zero) {
		return total
	}

	if percentage.GreaterThan(hundred) {
		percentage = hundred
	}

	discount := total.Mul(percentage).Div(hundred)
	return total.Sub(discount)
}

// HasValidSkonto reports whether a Skonto percentage is present and
// positive. Magnitude is not checked here; DiscountedAmount clamps
// out-of-range values.
func HasValidSkonto(percentage decimal.Decimal) bool {
	return percentage.GreaterThan(decimal.Zero)
}
