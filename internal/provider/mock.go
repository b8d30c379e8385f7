package provider

import (
	"context"
	"encoding/json"

	"dropship-gateway/internal/model"
)

// Mock implements API for testing.
// Each method can be configured via function fields.
type Mock struct {
	GetProductDetailFunc      func(ctx context.Context, pid string) (*ProductDetail, error)
	GetProductVariantsFunc    func(ctx context.Context, pid string) ([]Variant, error)
	GetInventoryByProductFunc func(ctx context.Context, pid string) (json.RawMessage, error)
	GetInventoryByVariantFunc func(ctx context.Context, vid string) (json.RawMessage, error)
	GetInventoryBySKUFunc     func(ctx context.Context, sku string) (json.RawMessage, error)
	CalculateFreightFunc      func(ctx context.Context, req FreightRequest) ([]json.RawMessage, error)
	ListCategoriesFunc        func(ctx context.Context) ([]Category, error)
	GetProductReviewsFunc     func(ctx context.Context, pid string, page, size int) (*ReviewPage, error)
	CreateOrderFunc           func(ctx context.Context, req OrderRequest) (*Order, error)
	GetOrderFunc              func(ctx context.Context, orderID string) (*Order, error)
}

// Batch runs fn directly; the mock has no pipeline to drain.
func (m *Mock) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// GetProductDetail calls the configured GetProductDetailFunc or returns not found.
func (m *Mock) GetProductDetail(ctx context.Context, pid string) (*ProductDetail, error) {
	if m.GetProductDetailFunc != nil {
		return m.GetProductDetailFunc(ctx, pid)
	}
	return nil, model.NewNotFoundError("provider product " + pid)
}

// GetProductVariants calls the configured GetProductVariantsFunc or returns none.
func (m *Mock) GetProductVariants(ctx context.Context, pid string) ([]Variant, error) {
	if m.GetProductVariantsFunc != nil {
		return m.GetProductVariantsFunc(ctx, pid)
	}
	return nil, nil
}

// GetInventoryByProduct calls the configured GetInventoryByProductFunc or returns no data.
func (m *Mock) GetInventoryByProduct(ctx context.Context, pid string) (json.RawMessage, error) {
	if m.GetInventoryByProductFunc != nil {
		return m.GetInventoryByProductFunc(ctx, pid)
	}
	return nil, nil
}

// GetInventoryByVariant calls the configured GetInventoryByVariantFunc or returns no data.
func (m *Mock) GetInventoryByVariant(ctx context.Context, vid string) (json.RawMessage, error) {
	if m.GetInventoryByVariantFunc != nil {
		return m.GetInventoryByVariantFunc(ctx, vid)
	}
	return nil, nil
}

// GetInventoryBySKU calls the configured GetInventoryBySKUFunc or returns no data.
func (m *Mock) GetInventoryBySKU(ctx context.Context, sku string) (json.RawMessage, error) {
	if m.GetInventoryBySKUFunc != nil {
		return m.GetInventoryBySKUFunc(ctx, sku)
	}
	return nil, nil
}

// CalculateFreight calls the configured CalculateFreightFunc or returns no options.
func (m *Mock) CalculateFreight(ctx context.Context, req FreightRequest) ([]json.RawMessage, error) {
	if m.CalculateFreightFunc != nil {
		return m.CalculateFreightFunc(ctx, req)
	}
	return nil, nil
}

// ListCategories calls the configured ListCategoriesFunc or returns none.
func (m *Mock) ListCategories(ctx context.Context) ([]Category, error) {
	if m.ListCategoriesFunc != nil {
		return m.ListCategoriesFunc(ctx)
	}
	return nil, nil
}

// GetProductReviews calls the configured GetProductReviewsFunc or returns an empty page.
func (m *Mock) GetProductReviews(ctx context.Context, pid string, page, size int) (*ReviewPage, error) {
	if m.GetProductReviewsFunc != nil {
		return m.GetProductReviewsFunc(ctx, pid, page, size)
	}
	return &ReviewPage{PageNum: FlexInt(page), PageSize: FlexInt(size)}, nil
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// GetOrder calls the configured GetOrderFunc or returns not found.
func (m *Mock) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	return nil, model.NewNotFoundError("order " + orderID)
}
