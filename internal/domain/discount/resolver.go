package discount

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/dynamic-discounts/internal/domain/discount"

// Resolution outcomes recorded on the resolutions counter.
const (
	outcomeMatched    = "matched"
	outcomeUnmatched  = "unmatched"
	outcomeSkipped    = "skipped"
	outcomeStoreError = "store_error"
)

// Quote is the result of pricing one item.
type Quote struct {
	// Base is the regular price, or the current price when the item has no
	// usable regular price.
	Base  decimal.Decimal
	Price decimal.Decimal
	// Rule is the applied rule, nil when none matched.
	Rule *Rule
}

// Discounted reports whether the quote lowers the price to a positive value
// below Base.
func (q Quote) Discounted() bool {
	return q.Rule != nil && q.Price.IsPositive() && q.Price.LessThan(q.Base)
}

// Amount is the absolute reduction.
func (q Quote) Amount() decimal.Decimal {
	return q.Base.Sub(q.Price)
}

// Percentage is the reduction relative to Base, one decimal place.
func (q Quote) Percentage() decimal.Decimal {
	return PercentOff(q.Base, q.Price)
}

// Option configures a Resolver.
type Option func(*options)

type options struct {
	brandNamespaces []string
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
}

// WithBrandNamespaces overrides the probing order for legacy brand rules.
func WithBrandNamespaces(namespaces ...string) Option {
	return func(o *options) {
		o.brandNamespaces = slices.Clone(namespaces)
	}
}

// WithTracerProvider sets the tracer provider used for quote spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider used for resolution counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Resolver picks the first matching active rule for an item and prices it.
// It holds no rule state between calls, so store changes are visible on the
// next resolution.
type Resolver struct {
	store           Store
	taxonomy        Taxonomy
	brandNamespaces []string

	tracer      trace.Tracer
	resolutions metric.Int64Counter
}

// NewResolver creates a Resolver reading rules from store and classification
// data from taxonomy.
func NewResolver(store Store, taxonomy Taxonomy, opts ...Option) (*Resolver, error) {
	o := options{
		brandNamespaces: DefaultBrandNamespaces,
		tracerProvider:  tracenoop.NewTracerProvider(),
		meterProvider:   metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	resolutions, err := o.meterProvider.Meter(instrumentationName).Int64Counter(
		"discount.resolutions",
		metric.WithDescription("Discount resolutions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resolutions counter")
	}

	return &Resolver{
		store:           store,
		taxonomy:        taxonomy,
		brandNamespaces: o.brandNamespaces,
		tracer:          o.tracerProvider.Tracer(instrumentationName),
		resolutions:     resolutions,
	}, nil
}

// Resolve returns the first active rule, in store order, that matches item.
// It returns nil without error when no rule matches. The error wraps
// ErrStoreUnavailable when rules could not be read.
func (r *Resolver) Resolve(ctx context.Context, item Item) (*Rule, error) {
	if item == nil {
		return nil, nil
	}

	rules, err := r.store.ActiveByPriority(ctx)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	for i := range rules {
		if r.Match(ctx, item, &rules[i]) {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// Quote prices item against the active rules. The regular price is the
// base; an item without a positive regular price keeps its current price.
// On store failure the returned quote is undiscounted and the error wraps
// ErrStoreUnavailable.
func (r *Resolver) Quote(ctx context.Context, item Item) (Quote, error) {
	if item == nil {
		return Quote{}, nil
	}

	ctx, span := r.tracer.Start(ctx, "discount.Quote",
		trace.WithAttributes(attribute.Int64("item.id", item.ItemID())),
	)
	defer span.End()

	base, ok := item.RegularPrice()
	if !ok || !base.IsPositive() {
		current := item.CurrentPrice()
		r.record(ctx, outcomeSkipped)
		return Quote{Base: current, Price: current}, nil
	}

	q := Quote{Base: base, Price: base}

	rule, err := r.Resolve(ctx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve rule")
		r.record(ctx, outcomeStoreError)
		return q, err
	}
	if rule == nil {
		r.record(ctx, outcomeUnmatched)
		return q, nil
	}

	if rule.DiscountType != Percentage && rule.DiscountType != Fixed {
		zctx.From(ctx).Warn("Applying unknown discount type as fixed",
			zap.Int64("rule_id", rule.ID),
			zap.String("discount_type", string(rule.DiscountType)),
		)
	}
	price := Apply(rule, base)

	span.SetAttributes(attribute.Int64("discount.rule_id", rule.ID))
	r.record(ctx, outcomeMatched)

	q.Price = price
	q.Rule = rule
	return q, nil
}

// DiscountedPrice is the fail-open variant of Quote: store failures are
// logged and the undiscounted price is returned.
func (r *Resolver) DiscountedPrice(ctx context.Context, item Item) decimal.Decimal {
	q, err := r.Quote(ctx, item)
	if err != nil {
		zctx.From(ctx).Error("Pricing without discounts", zap.Error(err))
	}
	return q.Price
}

// Match reports whether rule targets item. Missing namespaces and taxonomy
// lookup failures are logged and count as a non-match.
func (r *Resolver) Match(ctx context.Context, item Item, rule *Rule) bool {
	if item == nil || rule == nil {
		return false
	}

	switch t := rule.Target.(type) {
	case CategoryTarget:
		return r.inTerm(ctx, item, t.Selector)
	case TagTarget:
		return r.inTerm(ctx, item, t.Selector)
	case CustomTaxonomyTarget:
		return r.inTerm(ctx, item, t.Selector)
	case BrandTarget:
		if !t.Legacy() {
			return r.inTerm(ctx, item, Selector{Namespace: t.Namespace, Term: t.Term})
		}
		ns, ok := r.BrandNamespace(ctx, t.Term)
		if !ok {
			return false
		}
		return hasTerm(item, ns, t.Term)
	case PostTypeTarget:
		return item.ContentType() == t.PostType
	default:
		return false
	}
}

// BrandNamespace returns the first brand namespace that exists and contains
// term.
func (r *Resolver) BrandNamespace(ctx context.Context, term TermID) (string, bool) {
	lg := zctx.From(ctx)
	for _, ns := range r.brandNamespaces {
		if !r.namespaceExists(ctx, ns) {
			continue
		}
		_, found, err := r.taxonomy.LookupTerm(ctx, ns, term)
		if err != nil {
			lg.Warn("Brand term lookup failed",
				zap.String("namespace", ns),
				zap.Int64("term_id", int64(term)),
				zap.Error(err),
			)
			continue
		}
		if found {
			return ns, true
		}
	}
	return "", false
}

func (r *Resolver) inTerm(ctx context.Context, item Item, sel Selector) bool {
	if !r.namespaceExists(ctx, sel.Namespace) {
		return false
	}
	return hasTerm(item, sel.Namespace, sel.Term)
}

func (r *Resolver) namespaceExists(ctx context.Context, ns string) bool {
	exists, err := r.taxonomy.NamespaceExists(ctx, ns)
	if err != nil {
		zctx.From(ctx).Warn("Namespace lookup failed",
			zap.String("namespace", ns),
			zap.Error(err),
		)
		return false
	}
	if !exists {
		zctx.From(ctx).Debug("Namespace does not exist", zap.String("namespace", ns))
	}
	return exists
}

func (r *Resolver) record(ctx context.Context, outcome string) {
	r.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func hasTerm(item Item, ns string, term TermID) bool {
	return slices.Contains(item.TermIDs(ns), term)
}
