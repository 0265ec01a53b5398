package discount

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply returns base reduced by rule and clamped at zero. The result is
// exact; rounding to cents happens only when a price is formatted.
// Out-of-range values are coerced: percentages into [0, 100] and fixed
// amounts to be non-negative. Any type other than percentage is a fixed
// amount.
func Apply(rule *Rule, base decimal.Decimal) decimal.Decimal {
	if rule.DiscountType == Percentage {
		pct := clamp(rule.Value, zero, hundred)
		return floorAtZero(base.Sub(base.Mul(pct).Div(hundred)))
	}
	return floorAtZero(base.Sub(floorAtZero(rule.Value)))
}

// PercentOff returns the reduction from regular to price as a percentage of
// regular, rounded to one decimal place.
func PercentOff(regular, price decimal.Decimal) decimal.Decimal {
	if !regular.IsPositive() {
		return zero
	}
	return regular.Sub(price).Div(regular).Mul(hundred).Round(1)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(d, lo), hi)
}
