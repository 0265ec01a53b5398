// Package handler exposes pricing and rule administration over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dynamic-discounts/internal/domain/cart"
	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the pricing and rule administration endpoints.
type Handler struct {
	products catalog.Repository
	resolver *discount.Resolver
	rules    *discount.Service
	pricer   *cart.Pricer
	money    discount.MoneyFormatter
}

// NewHandler constructs a Handler. money renders amounts in HTML fragments.
func NewHandler(
	products catalog.Repository,
	resolver *discount.Resolver,
	rules *discount.Service,
	money discount.MoneyFormatter,
) *Handler {
	return &Handler{
		products: products,
		resolver: resolver,
		rules:    rules,
		pricer:   cart.NewPricer(resolver),
		money:    money,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{id}/price", h.ProductPrice)
	mux.HandleFunc("GET /api/products/{id}/discount", h.ProductDiscount)
	mux.HandleFunc("POST /api/cart/price", h.PriceCart)
	mux.HandleFunc("GET /api/rules", h.ListRules)
	mux.HandleFunc("POST /api/rules", h.CreateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", h.DeleteRule)
	mux.HandleFunc("PUT /api/rules/{id}/active", h.SetRuleActive)
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *discount.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, discount.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, catalog.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, discount.ErrStoreUnavailable):
		zctx.From(r.Context()).Error("Rule store unavailable", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusServiceUnavailable, "discount rules unavailable")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
