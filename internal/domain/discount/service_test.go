package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo *mockRepo, tax *mockTaxonomy) *Service {
	t.Helper()
	svc := NewService(repo, tax, newTestResolver(t, repo, tax))
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func intPtr(v int) *int { return &v }

func TestService_Create_Validation(t *testing.T) {
	valid := CreateRequest{
		Name:         "Spring sale",
		DiscountType: Percentage,
		Value:        d("10"),
		TargetType:   TargetCategory,
		TargetValue:  "product_cat:5",
	}

	tests := []struct {
		name      string
		mutate    func(*CreateRequest)
		wantField string
	}{
		{"empty name", func(r *CreateRequest) { r.Name = "  " }, "name"},
		{"unknown discount type", func(r *CreateRequest) { r.DiscountType = "bogo" }, "discount_type"},
		{"zero value", func(r *CreateRequest) { r.Value = d("0") }, "discount_value"},
		{"negative value", func(r *CreateRequest) { r.Value = d("-1") }, "discount_value"},
		{"percentage above 100", func(r *CreateRequest) { r.Value = d("100.01") }, "discount_value"},
		{"unknown target type", func(r *CreateRequest) { r.TargetType = "sku" }, "target_type"},
		{"empty target value", func(r *CreateRequest) { r.TargetValue = "" }, "target_value"},
		{"malformed target value", func(r *CreateRequest) { r.TargetValue = "product_cat:abc" }, "target_value"},
		{"bare custom taxonomy", func(r *CreateRequest) {
			r.TargetType = TargetCustomTaxonomy
			r.TargetValue = "5"
		}, "target_value"},
		{"category without namespace", func(r *CreateRequest) { r.TargetValue = ":5" }, "target_value"},
		{"brand without namespace", func(r *CreateRequest) {
			r.TargetType = TargetBrand
			r.TargetValue = ":5"
		}, "target_value"},
		{"negative priority", func(r *CreateRequest) { r.Priority = intPtr(-1) }, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := newTestService(t, repo, newTaxonomy(CategoryNamespace))

			req := valid
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRule)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, repo.rules, "rejected input must not be persisted")
		})
	}
}

func TestService_Create(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(t, repo, newTaxonomy(CategoryNamespace))

	rule, err := svc.Create(context.Background(), CreateRequest{
		Name:         " Fixed off ",
		DiscountType: Fixed,
		Value:        d("250"),
		TargetType:   TargetCategory,
		TargetValue:  "5",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), rule.ID)
	assert.Equal(t, "Fixed off", rule.Name)
	assert.Equal(t, DefaultPriority, rule.Priority)
	assert.True(t, rule.Active)
	assert.Equal(t, 2024, rule.CreatedAt.Year())
	assert.Equal(t, category(5), rule.Target)
}

func TestService_Create_NormalizesLegacyBrand(t *testing.T) {
	tax := newTaxonomy("pa_brand").term("pa_brand", 9, "Acme")

	t.Run("namespace found", func(t *testing.T) {
		repo := &mockRepo{}
		svc := newTestService(t, repo, tax)

		rule, err := svc.Create(context.Background(), CreateRequest{
			Name: "Acme", DiscountType: Percentage, Value: d("5"),
			TargetType: TargetBrand, TargetValue: "9", Priority: intPtr(0),
		})
		require.NoError(t, err)
		assert.Equal(t, BrandTarget{Namespace: "pa_brand", Term: 9}, rule.Target)
		assert.Equal(t, 0, rule.Priority)
	})

	t.Run("namespace not found keeps bare value", func(t *testing.T) {
		repo := &mockRepo{}
		svc := newTestService(t, repo, tax)

		rule, err := svc.Create(context.Background(), CreateRequest{
			Name: "Ghost", DiscountType: Percentage, Value: d("5"),
			TargetType: TargetBrand, TargetValue: "10",
		})
		require.NoError(t, err)
		assert.Equal(t, BrandTarget{Term: 10}, rule.Target)
	})
}

func TestService_Create_RepositoryError(t *testing.T) {
	repo := &mockRepo{err: errors.New("disk full")}
	svc := newTestService(t, repo, newTaxonomy())

	_, err := svc.Create(context.Background(), CreateRequest{
		Name: "x", DiscountType: Fixed, Value: d("1"),
		TargetType: TargetCustomPostType, TargetValue: "product",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRule)
}

func TestService_DeleteAndSetActive(t *testing.T) {
	ctx := context.Background()
	repo := &mockRepo{}
	rule := repo.add(pct("10", category(1), 1))
	svc := newTestService(t, repo, newTaxonomy(CategoryNamespace))

	require.ErrorIs(t, svc.Delete(ctx, 0), ErrInvalidRule)
	require.ErrorIs(t, svc.SetActive(ctx, -1, true), ErrInvalidRule)
	require.ErrorIs(t, svc.SetActive(ctx, 99, false), ErrNotFound)

	require.NoError(t, svc.SetActive(ctx, rule.ID, false))
	active, err := repo.ActiveByPriority(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.Delete(ctx, rule.ID))
	require.ErrorIs(t, svc.Delete(ctx, rule.ID), ErrNotFound)
}

func TestService_List_NewestFirst(t *testing.T) {
	repo := &mockRepo{}
	repo.add(pct("10", category(1), 1))
	second := repo.add(pct("20", category(1), 1))
	svc := newTestService(t, repo, newTaxonomy())

	rules, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, second.ID, rules[0].ID)
}

func TestService_TargetLabel(t *testing.T) {
	tax := newTaxonomy(CategoryNamespace, TagNamespace, "pwb-brand").
		term(CategoryNamespace, 1, "Shoes").
		term(TagNamespace, 2, "Summer").
		term("pwb-brand", 3, "Acme")
	tax.namespaces["pwb-brand"] = "Brands"
	svc := newTestService(t, &mockRepo{}, tax)

	tests := []struct {
		target Target
		want   string
	}{
		{category(1), "Shoes"},
		{category(9), "category not found (ID: 9)"},
		{tag(2), "Summer"},
		{BrandTarget{Namespace: "pwb-brand", Term: 3}, "Acme (Brands)"},
		{BrandTarget{Term: 3}, "Acme (Brands)"},
		{BrandTarget{Term: 4}, "brand not found (ID: 4)"},
		{CustomTaxonomyTarget{Selector: Selector{Namespace: "season", Term: 1}}, "term namespace not found (season)"},
		{PostTypeTarget{PostType: "product"}, "product"},
		{UnknownTarget{Kind: TargetCustomTaxonomy, Raw: "44"}, "44"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rule := pct("10", tt.target, 1)
			assert.Equal(t, tt.want, svc.TargetLabel(context.Background(), &rule))
		})
	}
}

func TestService_ProductSummary(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, Rule, Rule) {
		repo := &mockRepo{}
		shoes := repo.add(pct("10", category(1), 1))
		summer := repo.add(pct("10", tag(2), 2))
		tax := newTaxonomy(CategoryNamespace, TagNamespace).
			term(CategoryNamespace, 1, "Shoes").
			term(TagNamespace, 2, "Summer")
		return newTestService(t, repo, tax), shoes, summer
	}

	t.Run("variations sharing a rule collapse", func(t *testing.T) {
		svc, shoes, _ := setup(t)
		parent := newItem(1, "10")
		vars := []Item{
			newItem(2, "10").with(CategoryNamespace, 1),
			newItem(3, "12").with(CategoryNamespace, 1),
			newItem(4, "12"),
		}

		s, err := svc.ProductSummary(ctx, parent, vars)
		require.NoError(t, err)
		require.NotNil(t, s.Rule)
		assert.Equal(t, shoes.ID, s.Rule.ID)
		assert.Equal(t, "Shoes", s.Label)
		assert.False(t, s.Varies)
	})

	t.Run("identical values under different rule ids vary", func(t *testing.T) {
		svc, _, _ := setup(t)
		vars := []Item{
			newItem(2, "10").with(CategoryNamespace, 1),
			newItem(3, "10").with(TagNamespace, 2),
		}

		s, err := svc.ProductSummary(ctx, newItem(1, "10"), vars)
		require.NoError(t, err)
		assert.True(t, s.Varies)
		assert.Nil(t, s.Rule)
	})

	t.Run("no discounted variation falls back to parent", func(t *testing.T) {
		svc, _, summer := setup(t)
		parent := newItem(1, "10").with(TagNamespace, 2)

		s, err := svc.ProductSummary(ctx, parent, []Item{newItem(2, "10")})
		require.NoError(t, err)
		require.NotNil(t, s.Rule)
		assert.Equal(t, summer.ID, s.Rule.ID)
	})

	t.Run("nothing applies", func(t *testing.T) {
		svc, _, _ := setup(t)

		s, err := svc.ProductSummary(ctx, newItem(1, "10"), nil)
		require.NoError(t, err)
		assert.Equal(t, Summary{}, s)
	})
}
