package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// handleCheckShipping quotes one unit to a destination.
// GET /shipping/check?product_id=P1&country=US[&variant_id=V1]
func (h *Handler) handleCheckShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	productID := q.Get("product_id")
	country := q.Get("country")
	variantID := q.Get("variant_id")

	if productID == "" {
		h.writeError(w, model.NewValidationError("product_id", "required"))
		return
	}
	if country == "" {
		h.writeError(w, model.NewValidationError("country", "required"))
		return
	}

	result, err := h.service.CheckShipping(ctx, productID, country, variantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ShippingGroupsRequest is the body of POST /cart/shipping-groups.
type ShippingGroupsRequest struct {
	Destination string           `json:"destination"`
	Items       []model.CartItem `json:"items"`
}

// ShippingGroupsResponse wraps the per-origin groups.
type ShippingGroupsResponse struct {
	Groups []model.CartOriginGroup `json:"groups"`
}

// handleShippingGroups splits a cart by origin and prices each group.
// POST /cart/shipping-groups
func (h *Handler) handleShippingGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ShippingGroupsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "grouping cart by origin",
		slog.Int("items", len(req.Items)),
		slog.String("destination", req.Destination),
	)

	groups, err := h.service.GroupByOrigin(ctx, req.Items, req.Destination)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ShippingGroupsResponse{Groups: groups})
}

// VariantsResponse wraps a product's variants with stock.
type VariantsResponse struct {
	ProductID string                   `json:"product_id"`
	Variants  []model.VariantWithStock `json:"variants"`
}

// handleProductStock returns every variant with aggregated stock.
// GET /products/{id}/stock
func (h *Handler) handleProductStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	variants, err := h.service.GetVariantsWithStock(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if variants == nil {
		variants = []model.VariantWithStock{}
	}

	h.writeJSON(w, http.StatusOK, VariantsResponse{ProductID: productID, Variants: variants})
}

// handleVariantStock returns one variant's stock.
// GET /variants/{id}/stock
func (h *Handler) handleVariantStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.GetVariantStock(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stock)
}

// handleSKUStock returns stock for a SKU.
// GET /skus/{sku}/stock
func (h *Handler) handleSKUStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.GetStockBySKU(r.Context(), r.PathValue("sku"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stock)
}

// handleImportProduct copies a provider product into the catalog.
// POST /products/{id}/import
func (h *Handler) handleImportProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("id")

	h.logger.InfoContext(ctx, "importing product", slog.String("product_id", productID))

	product, err := h.service.ImportProduct(ctx, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// handleProductReviews pages through provider reviews.
// GET /products/{id}/reviews?page=1&size=20
func (h *Handler) handleProductReviews(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		h.writeError(w, err)
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		h.writeError(w, err)
		return
	}

	reviews, err := h.service.GetProductReviews(r.Context(), r.PathValue("id"), page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reviews)
}

// CategoriesResponse wraps the flattened category list.
type CategoriesResponse struct {
	Categories []provider.Category `json:"categories"`
}

// handleCategories lists provider categories.
// GET /categories
func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if categories == nil {
		categories = []provider.Category{}
	}
	h.writeJSON(w, http.StatusOK, CategoriesResponse{Categories: categories})
}

// handleCreateOrder places an order with the provider.
// POST /orders
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req provider.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "creating order",
		slog.String("order_number", req.OrderNumber),
		slog.Int("products", len(req.Products)),
		slog.String("destination", req.ShippingCountryCode),
	)

	order, err := h.service.CreateOrder(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

// handleGetOrder fetches an order.
// GET /orders/{id}
func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// handleTokenStatus reports the provider session expiry. The token itself is masked.
// GET /provider/token
func (h *Handler) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.TokenStatus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// queryInt parses an optional positive integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, model.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}
