package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/pkg/httpmiddleware"
)

// ListRules returns every rule, newest first, with a readable target label.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rules, err := h.rules.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range rules {
			encodeRule(e, &rules[i], h.rules.TargetLabel(ctx, &rules[i]))
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func decodeCreateRequest(r io.Reader) (discount.CreateRequest, error) {
	var req discount.CreateRequest
	err := jx.Decode(r, 1024).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "discountType":
			var s string
			s, err = d.Str()
			req.DiscountType = discount.DiscountType(s)
		case "discountValue":
			req.Value, err = decodeDecimal(d)
		case "targetType":
			var s string
			s, err = d.Str()
			req.TargetType = discount.TargetType(s)
		case "targetValue":
			req.TargetValue, err = d.Str()
		case "priority":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var p int
			p, err = d.Int()
			req.Priority = &p
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

// CreateRule validates and stores a new active rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeCreateRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.rules.Create(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeRule(&e, rule, h.rules.TargetLabel(ctx, rule))
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// DeleteRule removes a rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRuleActive toggles a rule from a {"active": bool} body.
func (h *Handler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var (
		active bool
		set    bool
	)
	err := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), 256).Obj(func(d *jx.Decoder, key string) error {
		if key != "active" {
			return d.Skip()
		}
		v, err := d.Bool()
		active, set = v, true
		return err
	})
	if err != nil || !set {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.rules.SetActive(r.Context(), id, active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProductDiscount summarises the rule that applies to a product. Variable
// products collapse their variations into a single rule when they agree.
func (h *Handler) ProductDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(r, "id")
	if !ok {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var variations []catalog.Product
	if p.Type == catalog.TypeVariable {
		if variations, err = h.products.Variations(ctx, p.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	summary, err := h.rules.ProductSummary(ctx, p, catalog.AsItems(variations))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("varies", func(e *jx.Encoder) { e.Bool(summary.Varies) })
		e.Field("rule", func(e *jx.Encoder) { encodeRuleRef(e, summary.Rule) })
		e.Field("target", func(e *jx.Encoder) { e.Str(summary.Label) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}
