package wordpress

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

func TestTables(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "default prefix", prefix: "", want: "wp_dynamic_discounts"},
		{name: "custom prefix", prefix: "shop_", want: "shop_dynamic_discounts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTables(tt.prefix).Discounts())
		})
	}

	tables := NewTables("")
	assert.Equal(t, "wp_term_relationships", tables.TermRelationships())
	assert.Equal(t, "wp_postmeta", tables.PostMeta())
}

func TestDiscountModel(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("row to rule", func(t *testing.T) {
		m := discountModel{
			ID:            7,
			Name:          "Brand week",
			DiscountType:  "percentage",
			DiscountValue: decimal.RequireFromString("15.00"),
			TargetType:    "brand",
			TargetValue:   "pwb-brand:3",
			Priority:      2,
			IsActive:      1,
			CreatedAt:     created,
		}
		rule := m.toRule()
		assert.Equal(t, int64(7), rule.ID)
		assert.Equal(t, discount.Percentage, rule.DiscountType)
		assert.True(t, rule.Active)
		assert.Equal(t, discount.BrandTarget{Namespace: "pwb-brand", Term: 3}, rule.Target)
		assert.True(t, decimal.NewFromInt(15).Equal(rule.Value))
	})

	t.Run("rule to row", func(t *testing.T) {
		rule := &discount.Rule{
			Name:         "Shoes",
			DiscountType: discount.Fixed,
			Value:        decimal.NewFromInt(5),
			Target:       discount.ParseTarget(discount.TargetCategory, "4"),
			Priority:     10,
			CreatedAt:    created,
		}
		m := fromRule(rule)
		assert.Equal(t, "fixed", m.DiscountType)
		assert.Equal(t, "category", m.TargetType)
		assert.Equal(t, "product_cat:4", m.TargetValue)
		assert.Equal(t, int8(0), m.IsActive)
	})
}

func TestAssemble(t *testing.T) {
	posts := []postRow{
		{ID: 10, PostTitle: "Sneaker", PostType: catalog.PostTypeProduct},
		{ID: 11, PostTitle: "Sneaker 42", PostType: catalog.PostTypeVariation, PostParent: 10},
		{ID: 20, PostTitle: "Gift card", PostType: catalog.PostTypeProduct},
	}
	metas := []metaRow{
		{PostID: 10, MetaKey: metaRegularPrice, MetaValue: "100"},
		{PostID: 10, MetaKey: metaPrice, MetaValue: "100"},
		{PostID: 11, MetaKey: metaRegularPrice, MetaValue: " 80.50 "},
		{PostID: 20, MetaKey: metaRegularPrice, MetaValue: ""},
		{PostID: 20, MetaKey: metaPrice, MetaValue: "25"},
	}
	terms := []termRow{
		{ObjectID: 10, Taxonomy: productTypeTaxonomy, TermID: 2, Slug: "variable"},
		{ObjectID: 10, Taxonomy: discount.CategoryNamespace, TermID: 1},
		{ObjectID: 11, Taxonomy: "pa_brand", TermID: 9},
	}

	products := assemble(posts, metas, terms)
	require.Len(t, products, 3)

	parent, variation, card := products[0], products[1], products[2]

	assert.Equal(t, catalog.TypeVariable, parent.Type)
	assert.Equal(t, []discount.TermID{1}, parent.TermIDs(discount.CategoryNamespace))
	assert.Empty(t, parent.TermIDs(productTypeTaxonomy))

	assert.Equal(t, catalog.TypeVariation, variation.Type)
	assert.Equal(t, int64(10), variation.ParentID)
	regular, ok := variation.RegularPrice()
	require.True(t, ok)
	assert.Equal(t, "80.5", regular.String())
	assert.Equal(t, "80.5", variation.CurrentPrice().String(), "price falls back to the regular price")
	assert.Equal(t, []discount.TermID{9}, variation.TermIDs("pa_brand"))
	assert.Equal(t, []discount.TermID{1}, variation.TermIDs(discount.CategoryNamespace))

	assert.Equal(t, catalog.TypeSimple, card.Type)
	_, ok = card.RegularPrice()
	assert.False(t, ok)
	assert.Equal(t, "25", card.CurrentPrice().String())
}

func TestCatalogLabel(t *testing.T) {
	repo := NewCatalogRepository(nil, NewTables(""), map[string]string{"pwb-brand": "Brands", "pa_brand": ""})
	assert.Equal(t, "Brands", repo.label("pwb-brand"))
	assert.Equal(t, "pa_brand", repo.label("pa_brand"))
	assert.Equal(t, "product_cat", repo.label("product_cat"))
}
