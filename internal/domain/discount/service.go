package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateRequest holds administrative input for a new rule.
type CreateRequest struct {
	Name         string
	DiscountType DiscountType
	Value        decimal.Decimal
	TargetType   TargetType
	TargetValue  string
	// Priority defaults to DefaultPriority when nil. Lower runs first.
	Priority *int
}

// Summary describes the rule shown for a product in administrative listings.
type Summary struct {
	// Rule is nil when nothing applies or when variations disagree.
	Rule  *Rule
	Label string
	// Varies is set when discounted variations resolve to different rules.
	Varies bool
}

// Service implements rule administration on top of a Repository.
type Service struct {
	rules    Repository
	taxonomy Taxonomy
	resolver *Resolver
	now      func() time.Time
}

// NewService creates a Service. The resolver is used for brand namespace
// discovery and per-product summaries.
func NewService(rules Repository, taxonomy Taxonomy, resolver *Resolver) *Service {
	return &Service{
		rules:    rules,
		taxonomy: taxonomy,
		resolver: resolver,
		now:      time.Now,
	}
}

// Create validates req and persists a new active rule.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Rule, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if req.DiscountType != Percentage && req.DiscountType != Fixed {
		return nil, &ValidationError{Field: "discount_type", Reason: "must be percentage or fixed"}
	}
	if !req.Value.IsPositive() {
		return nil, &ValidationError{Field: "discount_value", Reason: "must be greater than zero"}
	}
	if req.DiscountType == Percentage && req.Value.GreaterThan(hundred) {
		return nil, &ValidationError{Field: "discount_value", Reason: "percentage cannot exceed 100"}
	}
	if !req.TargetType.Valid() {
		return nil, &ValidationError{Field: "target_type", Reason: fmt.Sprintf("unknown target type %q", req.TargetType)}
	}
	if strings.TrimSpace(req.TargetValue) == "" {
		return nil, &ValidationError{Field: "target_value", Reason: "required"}
	}

	priority := DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < 0 {
		return nil, &ValidationError{Field: "priority", Reason: "must not be negative"}
	}

	target := ParseTarget(req.TargetType, req.TargetValue)
	if _, ok := target.(UnknownTarget); ok {
		return nil, &ValidationError{Field: "target_value", Reason: fmt.Sprintf("malformed value %q", req.TargetValue)}
	}
	if bt, ok := target.(BrandTarget); ok && bt.Legacy() {
		if ns, found := s.resolver.BrandNamespace(ctx, bt.Term); found {
			bt.Namespace = ns
			target = bt
		}
	}

	rule := &Rule{
		Name:         name,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		Target:       target,
		Priority:     priority,
		Active:       true,
		CreatedAt:    s.now(),
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("creating rule %q: %w", name, err)
	}
	return rule, nil
}

// Delete removes a rule permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Reason: "must be positive"}
	}
	return s.rules.Delete(ctx, id)
}

// SetActive enables or disables a rule. The change applies to the next
// resolution.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Reason: "must be positive"}
	}
	return s.rules.SetActive(ctx, id, active)
}

// List returns every rule, newest first.
func (s *Service) List(ctx context.Context) ([]Rule, error) {
	return s.rules.List(ctx)
}

// TargetLabel returns a human readable label for the rule's target. Dangling
// references produce a descriptive placeholder instead of an error.
func (s *Service) TargetLabel(ctx context.Context, rule *Rule) string {
	switch t := rule.Target.(type) {
	case CategoryTarget:
		return s.termLabel(ctx, "category", t.Selector, false)
	case TagTarget:
		return s.termLabel(ctx, "tag", t.Selector, false)
	case CustomTaxonomyTarget:
		return s.termLabel(ctx, "term", t.Selector, true)
	case BrandTarget:
		if !t.Legacy() {
			return s.termLabel(ctx, "brand", Selector{Namespace: t.Namespace, Term: t.Term}, true)
		}
		ns, ok := s.resolver.BrandNamespace(ctx, t.Term)
		if !ok {
			return fmt.Sprintf("brand not found (ID: %d)", t.Term)
		}
		return s.termLabel(ctx, "brand", Selector{Namespace: ns, Term: t.Term}, true)
	case PostTypeTarget:
		return t.PostType
	case UnknownTarget:
		return t.Raw
	default:
		return ""
	}
}

func (s *Service) termLabel(ctx context.Context, kind string, sel Selector, withNamespace bool) string {
	lg := zctx.From(ctx)

	exists, err := s.taxonomy.NamespaceExists(ctx, sel.Namespace)
	if err != nil {
		lg.Warn("Namespace lookup failed", zap.String("namespace", sel.Namespace), zap.Error(err))
	}
	if !exists {
		return fmt.Sprintf("%s namespace not found (%s)", kind, sel.Namespace)
	}

	term, found, err := s.taxonomy.LookupTerm(ctx, sel.Namespace, sel.Term)
	if err != nil {
		lg.Warn("Term lookup failed", zap.Stringer("selector", sel), zap.Error(err))
	}
	if !found {
		return fmt.Sprintf("%s not found (ID: %d)", kind, sel.Term)
	}
	if withNamespace && term.NamespaceLabel != "" {
		return fmt.Sprintf("%s (%s)", term.Name, term.NamespaceLabel)
	}
	return term.Name
}

// ProductSummary resolves the rule to show for a product. Variations
// collapse to one rule only when every discounted variation resolves to the
// same rule id; with no discounted variation the product's own rule is used.
func (s *Service) ProductSummary(ctx context.Context, product Item, variations []Item) (Summary, error) {
	var matched []*Rule
	for _, v := range variations {
		rule, err := s.resolver.Resolve(ctx, v)
		if err != nil {
			return Summary{}, err
		}
		if rule != nil {
			matched = append(matched, rule)
		}
	}

	var rule *Rule
	if len(matched) > 0 {
		for _, m := range matched[1:] {
			if m.ID != matched[0].ID {
				return Summary{Varies: true}, nil
			}
		}
		rule = matched[0]
	} else {
		var err error
		if rule, err = s.resolver.Resolve(ctx, product); err != nil {
			return Summary{}, err
		}
	}

	if rule == nil {
		return Summary{}, nil
	}
	return Summary{Rule: rule, Label: s.TargetLabel(ctx, rule)}, nil
}
