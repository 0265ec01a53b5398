package discount

import (
	"fmt"
	"html"

	"github.com/shopspring/decimal"
)

const (
	amountSpan = `<span class="woocommerce-Price-amount amount">%s</span>`
	badgeStyle = "background: #e74c3c; color: white; padding: 2px 6px; border-radius: 3px; font-size: 0.8em; margin-left: 5px;"
)

// MoneyFormatter renders a monetary amount as text.
type MoneyFormatter func(decimal.Decimal) string

// CurrencyFormatter renders amounts with two decimals after symbol.
func CurrencyFormatter(symbol string) MoneyFormatter {
	return func(d decimal.Decimal) string {
		return symbol + d.StringFixed(2)
	}
}

// Presentation is what a storefront needs to show a price.
type Presentation struct {
	Regular    decimal.Decimal
	Price      decimal.Decimal
	Percentage decimal.Decimal
	Discounted bool
}

// PresentQuote builds the presentation of a single-unit quote.
func PresentQuote(q Quote) Presentation {
	if !q.Discounted() {
		return Presentation{Regular: q.Base, Price: q.Price}
	}
	return Presentation{
		Regular:    q.Base,
		Price:      q.Price,
		Percentage: q.Percentage(),
		Discounted: true,
	}
}

// Scale multiplies both prices by quantity, keeping the unit percentage.
func (p Presentation) Scale(quantity int) Presentation {
	n := decimal.NewFromInt(int64(quantity))
	p.Regular = p.Regular.Mul(n)
	p.Price = p.Price.Mul(n)
	return p
}

// FormatHTML renders the struck-through regular price, the discounted price
// and a percentage badge. Undiscounted presentations render the plain price.
func FormatHTML(p Presentation, money MoneyFormatter) string {
	price := fmt.Sprintf(amountSpan, html.EscapeString(money(p.Price)))
	if !p.Discounted {
		return price
	}
	return fmt.Sprintf(`<del aria-hidden="true">%s</del> <ins>%s</ins> <span class="discount-badge" style="%s">-%s%%</span>`,
		fmt.Sprintf(amountSpan, html.EscapeString(money(p.Regular))),
		price,
		badgeStyle,
		p.Percentage.String(),
	)
}
