// Package cart splits a live cart by ship-from country and prices freight per
// origin group.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/model"
)

// ShippingResolver resolves freight for one product unit.
type ShippingResolver interface {
	CheckShipping(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error)
}

// ProductLookup reads catalog records.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// Grouper groups cart items by origin country.
type Grouper struct {
	shipping ShippingResolver
	products ProductLookup
	logger   *slog.Logger
}

// NewGrouper creates a Grouper. A nil logger means slog.Default().
func NewGrouper(shipping ShippingResolver, products ProductLookup, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{shipping: shipping, products: products, logger: logger}
}

// resolvedItem is a cart line with the catalog facts grouping needs.
type resolvedItem struct {
	item              model.CartItem
	origin            string
	providerVariantID string
}

// GroupByOrigin partitions items by origin country, in order of first
// appearance, and prices each group.
//
// Freight for a group is the cheapest quote for one unit of its first item
// that has a provider variant, applied to the whole group. Groups with no
// provider item ship for 0.
func (g *Grouper) GroupByOrigin(ctx context.Context, items []model.CartItem, destination string) ([]model.CartOriginGroup, error) {
	destination = strings.ToUpper(strings.TrimSpace(destination))
	if len(destination) != 2 {
		return nil, model.NewValidationError("country", "must be an ISO 3166-1 alpha-2 code")
	}

	var (
		order  []string
		groups = make(map[string][]resolvedItem)
	)
	for i, item := range items {
		if item.ProductID == "" {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if item.Quantity <= 0 {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		r, err := g.resolve(ctx, item)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[r.origin]; !seen {
			order = append(order, r.origin)
		}
		groups[r.origin] = append(groups[r.origin], r)
	}

	out := make([]model.CartOriginGroup, 0, len(order))
	for _, origin := range order {
		group, err := g.price(ctx, origin, groups[origin], destination)
		if err != nil {
			return nil, err
		}
		out = append(out, group)
	}
	return out, nil
}

func (g *Grouper) resolve(ctx context.Context, item model.CartItem) (resolvedItem, error) {
	product, err := g.products.GetProduct(ctx, item.ProductID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return resolvedItem{}, fmt.Errorf("loading product %s: %w", item.ProductID, err)
	}

	r := resolvedItem{item: item, origin: catalog.OriginCountry(product)}
	switch {
	case product == nil:
		// Uncatalogued: ids are provider ids.
		r.providerVariantID = item.VariantID
	case product.FromProvider():
		if item.VariantID != "" {
			if v, ok := product.FindVariant(item.VariantID); ok {
				r.providerVariantID = v.ProviderVariantID
			}
		} else if v, ok := product.FirstAvailableVariant(); ok {
			r.providerVariantID = v.ProviderVariantID
		}
	}
	return r, nil
}

func (g *Grouper) price(ctx context.Context, origin string, items []resolvedItem, destination string) (model.CartOriginGroup, error) {
	group := model.CartOriginGroup{
		OriginCountry: origin,
		Items:         make([]model.CartItem, 0, len(items)),
		Subtotal:      decimal.Zero,
		ShippingCost:  decimal.Zero,
		Shippable:     true,
	}
	var rep *resolvedItem
	for i := range items {
		group.Items = append(group.Items, items[i].item)
		group.Subtotal = group.Subtotal.Add(items[i].item.LineTotal())
		if rep == nil && items[i].providerVariantID != "" {
			rep = &items[i]
		}
	}

	// TODO: price locally fulfilled groups from a store rate table; they ship for 0 until then.
	if rep != nil {
		result, err := g.shipping.CheckShipping(ctx, rep.item.ProductID, destination, rep.item.VariantID)
		if err != nil {
			return model.CartOriginGroup{}, fmt.Errorf("pricing %s group: %w", origin, err)
		}
		if q, ok := result.Cheapest(); ok {
			group.ShippingCost = q.Freight
			group.Carrier = q.CarrierName
			group.TransitTime = q.TransitTime
		} else if !result.Shippable {
			group.Shippable = false
			group.Reason = result.Reason
			g.logger.Info("origin group not shippable",
				"origin", origin,
				"destination", destination,
				"product_id", rep.item.ProductID,
				"reason", result.Reason,
			)
		}
	}

	group.Total = group.Subtotal.Add(group.ShippingCost)
	return group, nil
}
