// Package handler provides HTTP handlers for the dropship gateway API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"dropship-gateway/internal/dropship"
	"dropship-gateway/internal/metrics"
	"dropship-gateway/internal/model"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service dropship.Service
	logger  *slog.Logger
}

// New creates a new Handler with the given service and logger.
func New(service dropship.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Shipping and cart
	mux.HandleFunc("GET /shipping/check", h.handleCheckShipping)
	mux.HandleFunc("POST /cart/shipping-groups", h.handleShippingGroups)

	// Catalog and stock
	mux.HandleFunc("GET /products/{id}/stock", h.handleProductStock)
	mux.HandleFunc("POST /products/{id}/import", h.handleImportProduct)
	mux.HandleFunc("GET /products/{id}/reviews", h.handleProductReviews)
	mux.HandleFunc("GET /variants/{id}/stock", h.handleVariantStock)
	mux.HandleFunc("GET /skus/{sku}/stock", h.handleSKUStock)
	mux.HandleFunc("GET /categories", h.handleCategories)

	// Orders
	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)

	// Provider session
	mux.HandleFunc("GET /provider/token", h.handleTokenStatus)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Operations
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response. Provider failures become 429/502 with
// the provider request id kept in the message; anything unrecognized is a
// 500 with details withheld.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := model.AsAPIError(err)
	if apiErr == nil {
		apiErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	} else if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}

	if apiErr.StatusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
