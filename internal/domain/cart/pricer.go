package cart

import (
	"context"
	"sync/atomic"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

// Quoter prices a single item.
type Quoter interface {
	Quote(ctx context.Context, item discount.Item) (discount.Quote, error)
}

var _ Quoter = (*discount.Resolver)(nil)

type passKey struct{}

// pass marks whether the collection pricer already ran for a request.
type pass struct {
	done atomic.Bool
}

// NewPass returns a context scoping one pricing pass. ApplyToCollection
// runs at most once per pass; without a pass it always runs.
func NewPass(ctx context.Context) context.Context {
	return context.WithValue(ctx, passKey{}, &pass{})
}

func passFrom(ctx context.Context) *pass {
	p, _ := ctx.Value(passKey{}).(*pass)
	return p
}

// Pricer applies discounts across cart lines.
type Pricer struct {
	quoter Quoter
}

// NewPricer creates a Pricer backed by quoter.
func NewPricer(quoter Quoter) *Pricer {
	return &Pricer{quoter: quoter}
}

// ApplyToCollection reprices every line from its regular price. A line is
// discounted only when the resulting price is positive and below the regular
// price; otherwise its price is left as it is and any annotation is dropped.
// Store failures leave lines undiscounted and the first one is returned.
func (p *Pricer) ApplyToCollection(ctx context.Context, c *Cart) error {
	lg := zctx.From(ctx)
	if ps := passFrom(ctx); ps != nil && !ps.done.CompareAndSwap(false, true) {
		lg.Debug("Cart already priced in this pass")
		return nil
	}

	var firstErr error
	for _, line := range c.Lines {
		if line.Item == nil {
			line.Discount = nil
			continue
		}

		q, err := p.quoter.Quote(ctx, line.Item)
		if err != nil && firstErr == nil {
			firstErr = err
			lg.Error("Pricing cart without discounts", zap.Error(err))
		}
		if err != nil || !q.Discounted() {
			line.Discount = nil
			continue
		}

		line.Price = q.Price
		line.Discount = &Annotation{
			OriginalPrice: q.Base,
			Amount:        q.Amount(),
			Percentage:    q.Percentage(),
		}
	}
	return firstErr
}
