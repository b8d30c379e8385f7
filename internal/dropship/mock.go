package dropship

import (
	"context"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// Mock implements Service for testing.
// Each method can be configured via function fields.
type Mock struct {
	CheckShippingFunc        func(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error)
	GroupByOriginFunc        func(ctx context.Context, items []model.CartItem, destination string) ([]model.CartOriginGroup, error)
	GetVariantsWithStockFunc func(ctx context.Context, productID string) ([]model.VariantWithStock, error)
	GetVariantStockFunc      func(ctx context.Context, variantID string) (model.VariantStock, error)
	GetStockBySKUFunc        func(ctx context.Context, sku string) (model.VariantStock, error)
	EnsureValidTokenFunc     func(ctx context.Context) (string, error)
	TokenStatusFunc          func(ctx context.Context) (*TokenStatus, error)
	ImportProductFunc        func(ctx context.Context, providerProductID string) (*catalog.Product, error)
	ListCategoriesFunc       func(ctx context.Context) ([]provider.Category, error)
	GetProductReviewsFunc    func(ctx context.Context, productID string, page, size int) (*provider.ReviewPage, error)
	CreateOrderFunc          func(ctx context.Context, req provider.OrderRequest) (*provider.Order, error)
	GetOrderFunc             func(ctx context.Context, orderID string) (*provider.Order, error)
}

// CheckShipping calls the configured CheckShippingFunc or returns NotShippable.
func (m *Mock) CheckShipping(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error) {
	if m.CheckShippingFunc != nil {
		return m.CheckShippingFunc(ctx, productID, destination, variantID)
	}
	return model.NotShippable("not configured in mock"), nil
}

// GroupByOrigin calls the configured GroupByOriginFunc or returns no groups.
func (m *Mock) GroupByOrigin(ctx context.Context, items []model.CartItem, destination string) ([]model.CartOriginGroup, error) {
	if m.GroupByOriginFunc != nil {
		return m.GroupByOriginFunc(ctx, items, destination)
	}
	return []model.CartOriginGroup{}, nil
}

// GetVariantsWithStock calls the configured GetVariantsWithStockFunc or returns an error.
func (m *Mock) GetVariantsWithStock(ctx context.Context, productID string) ([]model.VariantWithStock, error) {
	if m.GetVariantsWithStockFunc != nil {
		return m.GetVariantsWithStockFunc(ctx, productID)
	}
	return nil, model.NewNotFoundError("product")
}

// GetVariantStock calls the configured GetVariantStockFunc or returns zero stock.
func (m *Mock) GetVariantStock(ctx context.Context, variantID string) (model.VariantStock, error) {
	if m.GetVariantStockFunc != nil {
		return m.GetVariantStockFunc(ctx, variantID)
	}
	return model.NewVariantStock(variantID, nil), nil
}

// GetStockBySKU calls the configured GetStockBySKUFunc or returns zero stock.
func (m *Mock) GetStockBySKU(ctx context.Context, sku string) (model.VariantStock, error) {
	if m.GetStockBySKUFunc != nil {
		return m.GetStockBySKUFunc(ctx, sku)
	}
	return model.NewVariantStock(sku, nil), nil
}

// EnsureValidToken calls the configured EnsureValidTokenFunc or returns a config error.
func (m *Mock) EnsureValidToken(ctx context.Context) (string, error) {
	if m.EnsureValidTokenFunc != nil {
		return m.EnsureValidTokenFunc(ctx)
	}
	return "", model.NewConfigError("provider credentials not configured")
}

// TokenStatus calls the configured TokenStatusFunc or returns a config error.
func (m *Mock) TokenStatus(ctx context.Context) (*TokenStatus, error) {
	if m.TokenStatusFunc != nil {
		return m.TokenStatusFunc(ctx)
	}
	return nil, model.NewConfigError("provider credentials not configured")
}

// ImportProduct calls the configured ImportProductFunc or returns an error.
func (m *Mock) ImportProduct(ctx context.Context, providerProductID string) (*catalog.Product, error) {
	if m.ImportProductFunc != nil {
		return m.ImportProductFunc(ctx, providerProductID)
	}
	return nil, model.NewNotFoundError("product")
}

// ListCategories calls the configured ListCategoriesFunc or returns none.
func (m *Mock) ListCategories(ctx context.Context) ([]provider.Category, error) {
	if m.ListCategoriesFunc != nil {
		return m.ListCategoriesFunc(ctx)
	}
	return []provider.Category{}, nil
}

// GetProductReviews calls the configured GetProductReviewsFunc or returns an empty page.
func (m *Mock) GetProductReviews(ctx context.Context, productID string, page, size int) (*provider.ReviewPage, error) {
	if m.GetProductReviewsFunc != nil {
		return m.GetProductReviewsFunc(ctx, productID, page, size)
	}
	return &provider.ReviewPage{PageNum: provider.FlexInt(page), PageSize: provider.FlexInt(size)}, nil
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, req provider.OrderRequest) (*provider.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// GetOrder calls the configured GetOrderFunc or returns an error.
func (m *Mock) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	return nil, model.NewNotFoundError("order")
}
