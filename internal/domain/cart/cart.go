// Package cart applies discounts to the lines of a shopping cart.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

// Annotation records a discount applied to a cart line. It is transient
// and recomputed on every pricing pass.
type Annotation struct {
	OriginalPrice decimal.Decimal
	Amount        decimal.Decimal
	// Percentage is rounded to one decimal place.
	Percentage decimal.Decimal
}

// Line is a single cart entry.
type Line struct {
	Key      string
	Item     discount.Item
	Quantity int
	// Price is the effective unit price.
	Price    decimal.Decimal
	Discount *Annotation
}

// NewLine creates a line priced at the item's current price.
func NewLine(key string, item discount.Item, quantity int) *Line {
	l := &Line{Key: key, Item: item, Quantity: quantity}
	if item != nil {
		l.Price = item.CurrentPrice()
	}
	return l
}

// Subtotal returns unit price times quantity.
func (l *Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Presentation returns the unit price presentation of the line.
func (l *Line) Presentation() discount.Presentation {
	if l.Discount == nil {
		return discount.Presentation{Regular: l.Price, Price: l.Price}
	}
	return discount.Presentation{
		Regular:    l.Discount.OriginalPrice,
		Price:      l.Price,
		Percentage: l.Discount.Percentage,
		Discounted: true,
	}
}

// SubtotalPresentation returns the presentation of the line total.
func (l *Line) SubtotalPresentation() discount.Presentation {
	return l.Presentation().Scale(l.Quantity)
}

// Cart is an ordered collection of lines.
type Cart struct {
	Lines []*Line
}

// Total returns the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Savings returns the total discount across all lines.
func (c *Cart) Savings() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		if l.Discount != nil {
			sum = sum.Add(l.Discount.Amount.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}
	return sum
}
