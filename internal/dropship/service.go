// Package dropship composes the provider integration into the operations the
// HTTP and MCP surfaces serve.
package dropship

import (
	"context"
	"log/slog"
	"time"

	"dropship-gateway/internal/cart"
	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
	"dropship-gateway/internal/shipping"
	"dropship-gateway/internal/stock"
)

// Service is the dropshipping surface consumed by the rest of the application.
//
// Business outcomes such as an unshippable destination are results, not
// errors. Errors carry model.APIError or model.UpstreamError in their chain.
type Service interface {
	// CheckShipping quotes one unit of a product (or variant) to a destination.
	// Results are cached for the quote TTL.
	CheckShipping(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error)

	// GroupByOrigin splits a cart by ship-from country and prices each group.
	GroupByOrigin(ctx context.Context, items []model.CartItem, destination string) ([]model.CartOriginGroup, error)

	// GetVariantsWithStock returns every variant of a provider product with
	// freshly aggregated stock.
	GetVariantsWithStock(ctx context.Context, productID string) ([]model.VariantWithStock, error)
	GetVariantStock(ctx context.Context, variantID string) (model.VariantStock, error)
	GetStockBySKU(ctx context.Context, sku string) (model.VariantStock, error)

	// EnsureValidToken returns an access token valid for at least an hour.
	EnsureValidToken(ctx context.Context) (string, error)
	// TokenStatus reports the current token without exposing it.
	TokenStatus(ctx context.Context) (*TokenStatus, error)

	// ImportProduct copies a provider product and its stock into the catalog.
	ImportProduct(ctx context.Context, providerProductID string) (*catalog.Product, error)

	ListCategories(ctx context.Context) ([]provider.Category, error)
	GetProductReviews(ctx context.Context, productID string, page, size int) (*provider.ReviewPage, error)

	// CreateOrder places an order. OrderNumber is the idempotency key.
	CreateOrder(ctx context.Context, req provider.OrderRequest) (*provider.Order, error)
	GetOrder(ctx context.Context, orderID string) (*provider.Order, error)
}

// TokenStatus is the serializable view of the provider session.
type TokenStatus struct {
	Token     string     `json:"token"` // masked
	ExpiresAt time.Time  `json:"expires_at"`
	Tier      model.Tier `json:"tier"`
}

// TokenManager is the token lifecycle the gateway reads from.
type TokenManager interface {
	EnsureValidToken(ctx context.Context) (string, error)
	Credentials(ctx context.Context) (model.Credentials, error)
	Current() *model.TokenState
}

// Config holds the collaborators a Gateway is built from.
type Config struct {
	Provider provider.API
	Tokens   TokenManager
	Catalog  catalog.Store
	Cache    shipping.Cache
	QuoteTTL time.Duration // <= 0 means shipping.DefaultTTL
	Logger   *slog.Logger
}

// Gateway implements Service over the provider client and local stores.
type Gateway struct {
	api      provider.API
	tokens   TokenManager
	stock    *stock.Aggregator
	shipping *shipping.Checker
	cart     *cart.Grouper
	importer *catalog.Importer
	logger   *slog.Logger
}

// Compile-time interface checks
var (
	_ Service = (*Gateway)(nil)
	_ Service = (*Mock)(nil)
)

// New wires the stock, shipping, cart and import components together.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	agg := stock.NewAggregator(cfg.Provider, logger.With("component", "stock"))
	checker := shipping.NewChecker(cfg.Cache, cfg.Provider, cfg.Catalog, cfg.QuoteTTL, logger.With("component", "shipping"))
	return &Gateway{
		api:      cfg.Provider,
		tokens:   cfg.Tokens,
		stock:    agg,
		shipping: checker,
		cart:     cart.NewGrouper(checker, cfg.Catalog, logger.With("component", "cart")),
		importer: catalog.NewImporter(cfg.Provider, agg, cfg.Catalog, logger.With("component", "import")),
		logger:   logger,
	}
}

func (g *Gateway) CheckShipping(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error) {
	return g.shipping.CheckShipping(ctx, productID, destination, variantID)
}

func (g *Gateway) GroupByOrigin(ctx context.Context, items []model.CartItem, destination string) ([]model.CartOriginGroup, error) {
	return g.cart.GroupByOrigin(ctx, items, destination)
}

func (g *Gateway) GetVariantsWithStock(ctx context.Context, productID string) ([]model.VariantWithStock, error) {
	if productID == "" {
		return nil, model.NewValidationError("product_id", "required")
	}
	return g.stock.GetVariantsWithStock(ctx, productID)
}

func (g *Gateway) GetVariantStock(ctx context.Context, variantID string) (model.VariantStock, error) {
	if variantID == "" {
		return model.VariantStock{}, model.NewValidationError("variant_id", "required")
	}
	return g.stock.GetVariantStock(ctx, variantID)
}

func (g *Gateway) GetStockBySKU(ctx context.Context, sku string) (model.VariantStock, error) {
	if sku == "" {
		return model.VariantStock{}, model.NewValidationError("sku", "required")
	}
	return g.stock.GetStockBySKU(ctx, sku)
}

func (g *Gateway) EnsureValidToken(ctx context.Context) (string, error) {
	return g.tokens.EnsureValidToken(ctx)
}

func (g *Gateway) TokenStatus(ctx context.Context) (*TokenStatus, error) {
	tok, err := g.tokens.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}
	creds, err := g.tokens.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	status := &TokenStatus{Token: MaskToken(tok), Tier: creds.Tier}
	if cur := g.tokens.Current(); cur != nil {
		status.ExpiresAt = cur.ExpiresAt
	}
	return status, nil
}

func (g *Gateway) ImportProduct(ctx context.Context, providerProductID string) (*catalog.Product, error) {
	return g.importer.Import(ctx, providerProductID)
}

func (g *Gateway) ListCategories(ctx context.Context) ([]provider.Category, error) {
	return g.api.ListCategories(ctx)
}

func (g *Gateway) GetProductReviews(ctx context.Context, productID string, page, size int) (*provider.ReviewPage, error) {
	if productID == "" {
		return nil, model.NewValidationError("product_id", "required")
	}
	return g.api.GetProductReviews(ctx, productID, page, size)
}

func (g *Gateway) CreateOrder(ctx context.Context, req provider.OrderRequest) (*provider.Order, error) {
	order, err := g.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	g.logger.InfoContext(ctx, "order created",
		"order_number", req.OrderNumber,
		"order_id", order.OrderID,
		"products", len(req.Products),
	)
	return order, nil
}

func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	if orderID == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	return g.api.GetOrder(ctx, orderID)
}

// MaskToken keeps the last four characters of a token.
func MaskToken(tok string) string {
	const keep = 4
	if len(tok) <= keep {
		return "****"
	}
	return "****" + tok[len(tok)-keep:]
}
