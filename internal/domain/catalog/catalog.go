// Package catalog models the products that discount rules are matched
// against.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Type distinguishes plain products from variable products and their
// variations.
type Type string

const (
	TypeSimple    Type = "simple"
	TypeVariable  Type = "variable"
	TypeVariation Type = "variation"
)

// Content types as stored by the catalog.
const (
	PostTypeProduct   = "product"
	PostTypeVariation = "product_variation"
)

var _ discount.Item = (*Product)(nil)

// Product is a sellable catalog entry.
type Product struct {
	ID       int64
	ParentID int64
	Name     string
	Type     Type
	PostType string
	// Regular is the list price; Valid is false when none is set.
	Regular decimal.NullDecimal
	Price   decimal.Decimal
	// Terms maps a namespace to the term ids the product belongs to.
	Terms map[string][]discount.TermID
}

func (p *Product) ItemID() int64 { return p.ID }

func (p *Product) RegularPrice() (decimal.Decimal, bool) {
	return p.Regular.Decimal, p.Regular.Valid
}

func (p *Product) CurrentPrice() decimal.Decimal { return p.Price }

func (p *Product) ContentType() string { return p.PostType }

func (p *Product) TermIDs(namespace string) []discount.TermID {
	return p.Terms[namespace]
}

// AddTerm records membership of the product in a term.
func (p *Product) AddTerm(namespace string, id discount.TermID) {
	if p.Terms == nil {
		p.Terms = make(map[string][]discount.TermID)
	}
	p.Terms[namespace] = append(p.Terms[namespace], id)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// Variations returns the variations of a variable product.
	Variations(ctx context.Context, parentID int64) ([]Product, error)
}

// AsItems adapts products to the discount item capability.
func AsItems(products []Product) []discount.Item {
	items := make([]discount.Item, len(products))
	for i := range products {
		items[i] = &products[i]
	}
	return items
}
