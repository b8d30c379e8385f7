// MCP transport handler for the dropship gateway using the official MCP Go SDK.
// Exposes shipping, cart and stock lookups as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"dropship-gateway/internal/model"
)

// === MCP Tool Input Types ===
// Prices travel as decimal strings so no amount passes through a float.

// CheckShippingInput is the input schema for the check_shipping tool.
type CheckShippingInput struct {
	ProductID string `json:"product_id" jsonschema:"catalog or provider product ID"`
	Country   string `json:"country" jsonschema:"destination ISO 3166-1 alpha-2 country code"`
	VariantID string `json:"variant_id,omitempty" jsonschema:"variant to quote; defaults to the first available"`
}

// GroupCartInput is the input schema for the group_cart_by_origin tool.
type GroupCartInput struct {
	Destination string          `json:"destination" jsonschema:"destination ISO 3166-1 alpha-2 country code"`
	Items       []CartItemInput `json:"items" jsonschema:"cart lines"`
}

// CartItemInput is one cart line.
type CartItemInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID"`
	VariantID string `json:"variant_id,omitempty" jsonschema:"variant ID"`
	Quantity  int    `json:"quantity" jsonschema:"quantity, at least 1"`
	UnitPrice string `json:"unit_price" jsonschema:"unit price as a decimal string, e.g. 12.50"`
}

// VariantStockInput is the input schema for the get_variant_stock tool.
type VariantStockInput struct {
	ProductID string `json:"product_id" jsonschema:"provider product ID"`
}

// NewMCPServer creates an MCP server with the dropship tools registered.
// The server exposes a subset of the REST API via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "dropship-gateway",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Dropship gateway - shipping quotes, cart origin grouping and live variant stock " +
				"for products fulfilled by the dropshipping provider. Amounts are in USD.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_shipping",
		Description: "Quote shipping for one unit of a product to a destination country. Returns carrier options or a not-shippable reason.",
	}, h.mcpCheckShipping)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "group_cart_by_origin",
		Description: "Split cart items by ship-from country and price freight per group.",
	}, h.mcpGroupCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_variant_stock",
		Description: "List a product's variants with per-warehouse stock.",
	}, h.mcpVariantStock)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===
// Outputs are untyped so results serialize as text content without an
// inferred schema for decimal amounts.

func (h *Handler) mcpCheckShipping(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CheckShippingInput,
) (*mcp.CallToolResult, any, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	if input.Country == "" {
		return nil, nil, fmt.Errorf("country is required")
	}

	result, err := h.service.CheckShipping(ctx, input.ProductID, input.Country, input.VariantID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, result, nil
}

func (h *Handler) mcpGroupCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GroupCartInput,
) (*mcp.CallToolResult, any, error) {
	items := make([]model.CartItem, len(input.Items))
	for i, it := range input.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, nil, fmt.Errorf("items[%d].unit_price: %q is not a decimal", i, it.UnitPrice)
		}
		items[i] = model.CartItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: price,
		}
	}

	groups, err := h.service.GroupByOrigin(ctx, items, input.Destination)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, ShippingGroupsResponse{Groups: groups}, nil
}

func (h *Handler) mcpVariantStock(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input VariantStockInput,
) (*mcp.CallToolResult, any, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	variants, err := h.service.GetVariantsWithStock(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	if variants == nil {
		variants = []model.VariantWithStock{}
	}

	return nil, VariantsResponse{ProductID: input.ProductID, Variants: variants}, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	if apiErr := model.AsAPIError(err); apiErr != nil {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request canceled")
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
