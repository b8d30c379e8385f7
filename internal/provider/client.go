package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"dropship-gateway/internal/model"
)

// Endpoint paths, relative to the versioned API base.
const (
	pathProductDetail      = "/product/query"
	pathProductVariants    = "/product/variant/query"
	pathInventoryByProduct = "/product/stock/getInventoryByPid"
	pathInventoryByVariant = "/product/stock/queryByVid"
	pathInventoryBySKU     = "/product/stock/queryBySku"
	pathFreightCalculate   = "/logistic/freightCalculate"
	pathCategories         = "/product/getCategory"
	pathProductReviews     = "/product/productComments"
	pathCreateOrder        = "/shopping/order/createOrderV2"
	pathOrderDetail        = "/shopping/order/getOrderDetail"
)

// Client exposes the provider endpoints used by the gateway.
// Inventory and freight payloads are returned raw: their shapes vary by
// endpoint version and are normalized by the stock and shipping packages.
type Client struct {
	exec *Executor
}

// NewClient creates a Client over an authenticated Executor.
func NewClient(exec *Executor) *Client {
	return &Client{exec: exec}
}

// Batch runs fn with exclusive use of the provider pipeline. See Executor.Batch.
func (c *Client) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.exec.Batch(ctx, fn)
}

// =============================================================================
// PRODUCTS
// =============================================================================

// GetProductDetail fetches a product with its variant list.
func (c *Client) GetProductDetail(ctx context.Context, pid string) (*ProductDetail, error) {
	if pid == "" {
		return nil, model.NewValidationError("pid", "required")
	}
	var detail ProductDetail
	env, err := c.exec.Execute(ctx, http.MethodGet, pathProductDetail, url.Values{"pid": {pid}}, &detail)
	if err != nil {
		return nil, fmt.Errorf("fetching product %s: %w", pid, err)
	}
	if !env.hasData() {
		return nil, model.NewNotFoundError("provider product " + pid)
	}
	return &detail, nil
}

// GetProductVariants lists a product's variants without stock.
func (c *Client) GetProductVariants(ctx context.Context, pid string) ([]Variant, error) {
	var variants []Variant
	if _, err := c.exec.Execute(ctx, http.MethodGet, pathProductVariants, url.Values{"pid": {pid}}, &variants); err != nil {
		return nil, fmt.Errorf("listing variants of %s: %w", pid, err)
	}
	return variants, nil
}

// =============================================================================
// INVENTORY
// =============================================================================

// GetInventoryByProduct returns the raw bulk inventory payload for every variant of pid.
func (c *Client) GetInventoryByProduct(ctx context.Context, pid string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, pathInventoryByProduct, url.Values{"pid": {pid}})
}

// GetInventoryByVariant returns the raw per-warehouse inventory of one variant.
func (c *Client) GetInventoryByVariant(ctx context.Context, vid string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, pathInventoryByVariant, url.Values{"vid": {vid}})
}

// GetInventoryBySKU returns the raw per-warehouse inventory of one SKU.
func (c *Client) GetInventoryBySKU(ctx context.Context, sku string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, pathInventoryBySKU, url.Values{"sku": {sku}})
}

func (c *Client) raw(ctx context.Context, method, endpoint string, payload any) (json.RawMessage, error) {
	env, err := c.exec.Execute(ctx, method, endpoint, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	if !env.hasData() {
		return nil, nil
	}
	return env.Data, nil
}

// =============================================================================
// LOGISTICS
// =============================================================================

// CalculateFreight returns one raw item per carrier option. An empty slice
// means no carrier serves the route.
func (c *Client) CalculateFreight(ctx context.Context, req FreightRequest) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if _, err := c.exec.Execute(ctx, http.MethodPost, pathFreightCalculate, req, &items); err != nil {
		return nil, fmt.Errorf("calculating freight %s→%s: %w", req.StartCountryCode, req.EndCountryCode, err)
	}
	return items, nil
}

// =============================================================================
// CATEGORIES & REVIEWS
// =============================================================================

// ListCategories flattens the provider's category tree to its leaves.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var tree []categoryFirst
	if _, err := c.exec.Execute(ctx, http.MethodGet, pathCategories, nil, &tree); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	var out []Category
	for _, first := range tree {
		for _, second := range first.Second {
			for _, third := range second.Third {
				out = append(out, Category{
					ID:   third.ID,
					Name: third.Name,
					Path: []string{first.Name, second.Name, third.Name},
				})
			}
		}
	}
	return out, nil
}

// GetProductReviews fetches one page of reviews. Pages start at 1.
func (c *Client) GetProductReviews(ctx context.Context, pid string, page, size int) (*ReviewPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	q := url.Values{
		"pid":      {pid},
		"pageNum":  {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(size)},
	}
	var reviews ReviewPage
	if _, err := c.exec.Execute(ctx, http.MethodGet, pathProductReviews, q, &reviews); err != nil {
		return nil, fmt.Errorf("fetching reviews of %s: %w", pid, err)
	}
	return &reviews, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// CreateOrder submits an order. The executor may resend the same payload on
// retry; the provider deduplicates on OrderNumber.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.OrderNumber == "" {
		return nil, model.NewValidationError("orderNumber", "required as idempotency key")
	}
	if len(req.Products) == 0 {
		return nil, model.NewValidationError("products", "at least one product required")
	}
	var order Order
	if _, err := c.exec.Execute(ctx, http.MethodPost, pathCreateOrder, req, &order); err != nil {
		return nil, fmt.Errorf("creating order %s: %w", req.OrderNumber, err)
	}
	if order.OrderNumber == "" {
		order.OrderNumber = req.OrderNumber
	}
	return &order, nil
}

// GetOrder fetches an order by provider order id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	env, err := c.exec.Execute(ctx, http.MethodGet, pathOrderDetail, url.Values{"orderId": {orderID}}, &order)
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", orderID, err)
	}
	if !env.hasData() {
		return nil, model.NewNotFoundError("order " + orderID)
	}
	return &order, nil
}
