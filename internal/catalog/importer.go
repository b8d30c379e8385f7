package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// ProductSource is the provider surface the importer reads from.
type ProductSource interface {
	Batch(ctx context.Context, fn func(ctx context.Context) error) error
	GetProductDetail(ctx context.Context, pid string) (*provider.ProductDetail, error)
}

// StockSource resolves variants joined with their current stock.
type StockSource interface {
	GetVariantsWithStock(ctx context.Context, productID string) ([]model.VariantWithStock, error)
}

// Importer copies a provider product, its variants and their stock into the
// catalog.
type Importer struct {
	source ProductSource
	stock  StockSource
	store  Store
	logger *slog.Logger
}

// NewImporter creates an Importer. A nil logger means slog.Default().
func NewImporter(source ProductSource, stock StockSource, store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{source: source, stock: stock, store: store, logger: logger}
}

// Import fetches providerProductID and upserts it under the same id.
// All provider calls run as one batch so other callers cannot interleave.
// Catalog variant ids and a recorded origin survive re-imports.
func (i *Importer) Import(ctx context.Context, providerProductID string) (*Product, error) {
	providerProductID = strings.TrimSpace(providerProductID)
	if providerProductID == "" {
		return nil, model.NewValidationError("product_id", "required")
	}

	var (
		detail   *provider.ProductDetail
		variants []model.VariantWithStock
	)
	err := i.source.Batch(ctx, func(ctx context.Context) error {
		var err error
		detail, err = i.source.GetProductDetail(ctx, providerProductID)
		if err != nil {
			return fmt.Errorf("fetching product detail: %w", err)
		}
		variants, err = i.stock.GetVariantsWithStock(ctx, providerProductID)
		if err != nil {
			return fmt.Errorf("fetching variant stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	existing, err := i.store.GetProduct(ctx, providerProductID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("loading existing product: %w", err)
	}

	p := buildProduct(providerProductID, detail, variants, existing)
	if err := i.store.UpsertProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("saving product: %w", err)
	}

	i.logger.Info("product imported",
		"product_id", p.ID,
		"origin", OriginCountry(p),
		"variants", len(p.Variants),
	)
	return p, nil
}

func buildProduct(pid string, detail *provider.ProductDetail, variants []model.VariantWithStock, existing *Product) *Product {
	p := &Product{
		ID:                pid,
		Source:            SourceProvider,
		ProviderProductID: pid,
		OriginCountry:     strings.ToUpper(strings.TrimSpace(detail.SourceCountry)),
		Name:              detail.NameEn,
		Variants:          make([]Variant, 0, len(variants)),
	}
	if p.OriginCountry == "" && existing != nil {
		p.OriginCountry = existing.OriginCountry
	}

	for _, v := range variants {
		id := v.VariantID
		if existing != nil {
			if prev, ok := existing.FindVariant(v.VariantID); ok {
				id = prev.ID
			}
		}
		p.Variants = append(p.Variants, Variant{
			ID:                id,
			ProviderVariantID: v.VariantID,
			SKU:               v.SKU,
			Name:              v.Name,
			Price:             v.SellPrice,
			Available:         v.Stock.TotalStock > 0,
			Stock:             v.Stock.TotalStock,
		})
	}
	return p
}
