package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/dynamic-discounts/internal/domain/cart"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodePercent(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// encodeRuleRef writes the short form of a rule, or null.
func encodeRuleRef(e *jx.Encoder, rule *discount.Rule) {
	if rule == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(rule.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(rule.Name) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(rule.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { encodePercent(e, rule.Value) })
	})
}

// encodeRule writes the full administrative form of a rule.
func encodeRule(e *jx.Encoder, rule *discount.Rule, label string) {
	kind, value := discount.EncodeTarget(rule.Target)
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(rule.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(rule.Name) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(rule.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { encodePercent(e, rule.Value) })
		e.Field("targetType", func(e *jx.Encoder) { e.Str(string(kind)) })
		e.Field("targetValue", func(e *jx.Encoder) { e.Str(value) })
		e.Field("target", func(e *jx.Encoder) { e.Str(label) })
		e.Field("priority", func(e *jx.Encoder) { e.Int(rule.Priority) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(rule.Active) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(rule.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodePresentation(e *jx.Encoder, p discount.Presentation) {
	e.Field("regularPrice", func(e *jx.Encoder) { encodeMoney(e, p.Regular) })
	e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
	e.Field("discounted", func(e *jx.Encoder) { e.Bool(p.Discounted) })
	e.Field("percentage", func(e *jx.Encoder) { encodePercent(e, p.Percentage) })
}

func encodeAnnotation(e *jx.Encoder, a *cart.Annotation) {
	if a == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("originalPrice", func(e *jx.Encoder) { encodeMoney(e, a.OriginalPrice) })
		e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, a.Amount) })
		e.Field("percentage", func(e *jx.Encoder) { encodePercent(e, a.Percentage) })
	})
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.New("expected number")
	}
	return decimal.NewFromString(raw)
}
