// Package stock merges provider inventory from the bulk, per-variant and
// per-SKU endpoints into one VariantStock per variant.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// MaxPerVariantLookups caps single-variant inventory calls per aggregation.
// Each one costs a throttle slot, so a large product cannot stall the gate.
const MaxPerVariantLookups = 10

// Provider is the subset of the provider API the aggregator reads.
type Provider interface {
	GetProductDetail(ctx context.Context, pid string) (*provider.ProductDetail, error)
	GetProductVariants(ctx context.Context, pid string) ([]provider.Variant, error)
	GetInventoryByProduct(ctx context.Context, pid string) (json.RawMessage, error)
	GetInventoryByVariant(ctx context.Context, vid string) (json.RawMessage, error)
	GetInventoryBySKU(ctx context.Context, sku string) (json.RawMessage, error)
}

// Aggregator is stateless: every call recomputes stock from fresh responses.
type Aggregator struct {
	provider Provider
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. A nil logger means slog.Default().
func NewAggregator(p Provider, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{provider: p, logger: logger}
}

// GetVariantsWithStock returns every variant of a provider product with its stock.
//
// Fallback order:
//  1. bulk inventory for the product
//  2. with bulk data: product detail for metadata, joined by variant id;
//     stock entries without metadata are kept with the id as name and SKU
//  3. without bulk data: the variant listing plus a second bulk call
//
// Variants that still have no stock entry get single-variant lookups
// (by id, then by SKU) up to MaxPerVariantLookups; the rest have zero stock.
func (a *Aggregator) GetVariantsWithStock(ctx context.Context, productID string) ([]model.VariantWithStock, error) {
	logger := a.logger.With("product_id", productID)

	bulk, err := a.bulk(ctx, productID)
	if err != nil {
		if isFatal(err) {
			return nil, err
		}
		logger.Warn("bulk inventory failed, falling back to variant listing", "error", err)
	}

	var (
		variants []provider.Variant
		out      []model.VariantWithStock
	)

	if !bulk.empty() {
		detail, err := a.provider.GetProductDetail(ctx, productID)
		switch {
		case err != nil && isFatal(err):
			return nil, err
		case err != nil:
			logger.Warn("product detail failed, synthesizing variant metadata", "error", err)
		default:
			variants = detail.Variants
		}
		out = join(variants, bulk, true)
	} else {
		variants, err = a.provider.GetProductVariants(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("listing variants for stock: %w", err)
		}
		if len(variants) == 0 {
			return []model.VariantWithStock{}, nil
		}
		bulk, err = a.bulk(ctx, productID)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("second bulk inventory failed", "error", err)
		}
		out = join(variants, bulk, false)
	}

	if err := a.fillMissing(ctx, out, bulk, logger); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVariantStock returns one variant's stock from the per-variant endpoint.
func (a *Aggregator) GetVariantStock(ctx context.Context, variantID string) (model.VariantStock, error) {
	raw, err := a.provider.GetInventoryByVariant(ctx, variantID)
	if err != nil {
		return model.VariantStock{}, err
	}
	whs, _, err := parseWarehouseList(raw)
	if err != nil {
		return model.VariantStock{}, &model.UpstreamError{Kind: model.KindUpstream, Endpoint: "product/stock/queryByVid", Message: "malformed inventory", Err: err}
	}
	return model.NewVariantStock(variantID, whs), nil
}

// GetStockBySKU returns stock for a SKU. VariantID is set when the provider
// includes it in the records.
func (a *Aggregator) GetStockBySKU(ctx context.Context, sku string) (model.VariantStock, error) {
	raw, err := a.provider.GetInventoryBySKU(ctx, sku)
	if err != nil {
		return model.VariantStock{}, err
	}
	whs, vid, err := parseWarehouseList(raw)
	if err != nil {
		return model.VariantStock{}, &model.UpstreamError{Kind: model.KindUpstream, Endpoint: "product/stock/queryBySku", Message: "malformed inventory", Err: err}
	}
	return model.NewVariantStock(vid, whs), nil
}

func (a *Aggregator) bulk(ctx context.Context, productID string) (bulkInventory, error) {
	raw, err := a.provider.GetInventoryByProduct(ctx, productID)
	if err != nil {
		return bulkInventory{byVariant: map[string][]model.WarehouseStock{}}, err
	}
	return parseBulkInventory(raw)
}

// join pairs variant metadata with bulk stock. Metadata order wins; with
// synthesize set, bulk entries that have no metadata are appended in bulk order.
func join(variants []provider.Variant, bulk bulkInventory, synthesize bool) []model.VariantWithStock {
	out := make([]model.VariantWithStock, 0, len(variants)+len(bulk.order))
	seen := make(map[string]bool, len(variants))

	for _, v := range variants {
		if v.VID == "" || seen[v.VID] {
			continue
		}
		seen[v.VID] = true
		out = append(out, model.VariantWithStock{
			VariantID: v.VID,
			Name:      v.NameEn,
			SKU:       v.SKU,
			Image:     v.Image,
			SellPrice: v.Price(),
			Stock:     model.NewVariantStock(v.VID, bulk.byVariant[v.VID]),
		})
	}

	if synthesize {
		for _, vid := range bulk.order {
			if seen[vid] {
				continue
			}
			seen[vid] = true
			out = append(out, model.VariantWithStock{
				VariantID: vid,
				Name:      vid,
				SKU:       vid,
				Stock:     model.NewVariantStock(vid, bulk.byVariant[vid]),
			})
		}
	}
	return out
}

// fillMissing looks up variants absent from the bulk payload, in output order.
func (a *Aggregator) fillMissing(ctx context.Context, out []model.VariantWithStock, bulk bulkInventory, logger *slog.Logger) error {
	lookups := 0
	for i := range out {
		vid := out[i].VariantID
		if _, ok := bulk.byVariant[vid]; ok {
			continue
		}
		if lookups >= MaxPerVariantLookups {
			logger.Debug("per-variant lookup cap reached, defaulting to zero stock", "variant_id", vid)
			continue
		}
		lookups++

		whs, err := a.lookupVariant(ctx, vid, out[i].SKU)
		if err != nil {
			if isFatal(err) {
				return err
			}
			logger.Warn("per-variant stock lookup failed", "variant_id", vid, "error", err)
			continue
		}
		out[i].Stock = model.NewVariantStock(vid, whs)
	}
	return nil
}

// lookupVariant tries the variant endpoint, then the SKU endpoint.
func (a *Aggregator) lookupVariant(ctx context.Context, vid, sku string) ([]model.WarehouseStock, error) {
	raw, err := a.provider.GetInventoryByVariant(ctx, vid)
	if err != nil && isFatal(err) {
		return nil, err
	}
	if err == nil {
		whs, _, perr := parseWarehouseList(raw)
		if perr == nil && len(whs) > 0 {
			return whs, nil
		}
	}

	if sku == "" || sku == vid {
		return nil, err
	}
	raw, err = a.provider.GetInventoryBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	whs, _, err := parseWarehouseList(raw)
	return whs, err
}

// isFatal reports errors that no fallback can fix.
func isFatal(err error) bool {
	return errors.Is(err, model.ErrNotConfigured)
}
