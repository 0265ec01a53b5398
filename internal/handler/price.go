package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dynamic-discounts/internal/domain/cart"
	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/pkg/httpmiddleware"
)

// ProductPrice quotes a single product. Store failures fall back to the
// undiscounted price.
func (h *Handler) ProductPrice(w http.ResponseWriter, r *http.Request) {
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

	q, err := h.resolver.Quote(ctx, p)
	if err != nil {
		zctx.From(ctx).Warn("Pricing product without discounts",
			zap.Int64("product_id", p.ID),
			zap.Error(err),
		)
	}
	pres := discount.PresentQuote(q)

	var rule *discount.Rule
	if q.Discounted() {
		rule = q.Rule
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Int64(p.ID) })
		encodePresentation(e, pres)
		e.Field("rule", func(e *jx.Encoder) { encodeRuleRef(e, rule) })
		e.Field("html", func(e *jx.Encoder) { e.Str(discount.FormatHTML(pres, h.money)) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

type cartItem struct {
	productID int64
	quantity  int
}

func decodeCart(r io.Reader) ([]cartItem, error) {
	var items []cartItem
	err := jx.Decode(r, 4096).Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var it cartItem
			err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "productId":
					it.productID, err = d.Int64()
				case "quantity":
					it.quantity, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			})
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		})
	})
	return items, err
}

func validateCart(items []cartItem) error {
	if len(items) == 0 {
		return errors.New("items are required")
	}
	for i, it := range items {
		if it.productID <= 0 {
			return errors.Errorf("items[%d]: invalid productId", i)
		}
		if it.quantity < 1 {
			return errors.Errorf("items[%d]: quantity must be at least 1", i)
		}
	}
	return nil
}

// PriceCart prices a cart in one pricing pass of the request.
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := decodeCart(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateCart(items); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.productID]; !ok {
			seen[it.productID] = struct{}{}
			ids = append(ids, it.productID)
		}
	}
	products, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	byID := make(map[int64]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	c := &cart.Cart{Lines: make([]*cart.Line, 0, len(items))}
	for i, it := range items {
		p, ok := byID[it.productID]
		if !ok {
			httpmiddleware.WriteError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("product %d not found", it.productID))
			return
		}
		c.Lines = append(c.Lines, cart.NewLine(strconv.Itoa(i), p, it.quantity))
	}

	// Failures are logged by the pricer and leave lines undiscounted.
	_ = h.pricer.ApplyToCollection(ctx, c)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range c.Lines {
					h.encodeLine(e, line)
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, c.Total()) })
		e.Field("savings", func(e *jx.Encoder) { encodeMoney(e, c.Savings()) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) encodeLine(e *jx.Encoder, line *cart.Line) {
	unit := line.Presentation()
	subtotal := line.SubtotalPresentation()
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Int64(line.Item.ItemID()) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
		encodePresentation(e, unit)
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, line.Subtotal()) })
		e.Field("discount", func(e *jx.Encoder) { encodeAnnotation(e, line.Discount) })
		e.Field("html", func(e *jx.Encoder) { e.Str(discount.FormatHTML(unit, h.money)) })
		e.Field("subtotalHtml", func(e *jx.Encoder) { e.Str(discount.FormatHTML(subtotal, h.money)) })
	})
}
