package discount

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		base string
		want string
	}{
		{
			name: "percentage 20% off 100",
			rule: Rule{DiscountType: Percentage, Value: d("20")},
			base: "100",
			want: "80",
		},
		{
			name: "fixed 5 off 100",
			rule: Rule{DiscountType: Fixed, Value: d("5")},
			base: "100",
			want: "95",
		},
		{
			name: "fixed larger than base clamps at zero",
			rule: Rule{DiscountType: Fixed, Value: d("150")},
			base: "100",
			want: "0",
		},
		{
			name: "percentage 100% is free",
			rule: Rule{DiscountType: Percentage, Value: d("100")},
			base: "42.50",
			want: "0",
		},
		{
			name: "percentage above 100 is coerced",
			rule: Rule{DiscountType: Percentage, Value: d("150")},
			base: "10",
			want: "0",
		},
		{
			name: "negative percentage is coerced to no discount",
			rule: Rule{DiscountType: Percentage, Value: d("-10")},
			base: "10",
			want: "10",
		},
		{
			name: "negative fixed is coerced to no discount",
			rule: Rule{DiscountType: Fixed, Value: d("-5")},
			base: "10",
			want: "10",
		},
		{
			// 10.01 - 10.01 * 33.333 / 100
			name: "percentage keeps sub-cent precision",
			rule: Rule{DiscountType: Percentage, Value: d("33.333")},
			base: "10.01",
			want: "6.6733667",
		},
		{
			name: "half of a cent is still a discount",
			rule: Rule{DiscountType: Percentage, Value: d("50")},
			base: "0.01",
			want: "0.005",
		},
		{
			name: "unknown type is applied as fixed",
			rule: Rule{DiscountType: "Percentage", Value: d("20")},
			base: "10",
			want: "0",
		},
		{
			name: "legacy type is applied as fixed",
			rule: Rule{DiscountType: "free_lowest", Value: d("1")},
			base: "10",
			want: "9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(&tt.rule, d(tt.base))
			assert.True(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestPercentOff(t *testing.T) {
	assert.Equal(t, "20", PercentOff(d("100"), d("80")).String())
	assert.Equal(t, "33.3", PercentOff(d("30"), d("20")).String())
	assert.Equal(t, "0", PercentOff(d("0"), d("0")).String())
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func TestApply_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("percentage result follows the formula and stays within [0, base]", prop.ForAll(
		func(base, value float64) bool {
			b, v := money(base), money(value)
			got := Apply(&Rule{DiscountType: Percentage, Value: v}, b)
			want := decimal.Max(b.Sub(b.Mul(v).Div(hundred)), decimal.Zero)
			return got.Equal(want) && !got.IsNegative() && got.LessThanOrEqual(b)
		},
		gen.Float64Range(0.01, 9999.99),
		gen.Float64Range(0, 100),
	))

	properties.Property("fixed result is max(0, base - value)", prop.ForAll(
		func(base, value float64) bool {
			b, v := money(base), money(value)
			got := Apply(&Rule{DiscountType: Fixed, Value: v}, b)
			return got.Equal(decimal.Max(b.Sub(v), decimal.Zero))
		},
		gen.Float64Range(0.01, 9999.99),
		gen.Float64Range(0, 20000),
	))

	properties.Property("applying twice from the same base is idempotent", prop.ForAll(
		func(base, value float64) bool {
			rule := &Rule{DiscountType: Percentage, Value: money(value)}
			first := Apply(rule, money(base))
			second := Apply(rule, money(base))
			return first.Equal(second)
		},
		gen.Float64Range(0.01, 9999.99),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
