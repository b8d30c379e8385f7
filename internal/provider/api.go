package provider

import (
	"context"
	"encoding/json"
)

// API is the full provider surface. Components depend on the narrower
// interfaces they declare; API exists so Client and Mock stay in step.
type API interface {
	Batch(ctx context.Context, fn func(ctx context.Context) error) error

	GetProductDetail(ctx context.Context, pid string) (*ProductDetail, error)
	GetProductVariants(ctx context.Context, pid string) ([]Variant, error)

	GetInventoryByProduct(ctx context.Context, pid string) (json.RawMessage, error)
	GetInventoryByVariant(ctx context.Context, vid string) (json.RawMessage, error)
	GetInventoryBySKU(ctx context.Context, sku string) (json.RawMessage, error)

	CalculateFreight(ctx context.Context, req FreightRequest) ([]json.RawMessage, error)

	ListCategories(ctx context.Context) ([]Category, error)
	GetProductReviews(ctx context.Context, pid string, page, size int) (*ReviewPage, error)

	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

// Compile-time interface checks
var (
	_ API = (*Client)(nil)
	_ API = (*Mock)(nil)
)
