// Package catalog is the product/variant record store the shipping and cart
// components read origin and provider ids from, and the importer that fills
// it from the provider.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dropship-gateway/internal/model"
)

// Source says where a product is fulfilled from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceLocal    Source = "local"
)

// Product is a catalog product. Only provider products have provider ids.
type Product struct {
	ID                string    `json:"id"`
	Source            Source    `json:"source"`
	ProviderProductID string    `json:"provider_product_id,omitempty"`
	OriginCountry     string    `json:"origin_country,omitempty"`
	Name              string    `json:"name"`
	Variants          []Variant `json:"variants"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Variant is a catalog variant with the stock last written by an import.
type Variant struct {
	ID                string          `json:"id"`
	ProviderVariantID string          `json:"provider_variant_id,omitempty"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Available         bool            `json:"available"`
	Stock             int             `json:"stock"`
}

// FromProvider reports whether the product is fulfilled by the provider.
func (p *Product) FromProvider() bool {
	return p != nil && p.Source == SourceProvider && p.ProviderProductID != ""
}

// OriginCountry is the product's ship-from country, "CN" when unrecorded.
// Shipping checks and cart grouping both use this rule.
func OriginCountry(p *Product) string {
	if p == nil {
		return model.DefaultOriginCountry
	}
	if c := strings.ToUpper(strings.TrimSpace(p.OriginCountry)); c != "" {
		return c
	}
	return model.DefaultOriginCountry
}

// FindVariant matches id against catalog and provider variant ids.
func (p *Product) FindVariant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id || (v.ProviderVariantID != "" && v.ProviderVariantID == id) {
			return v, true
		}
	}
	return Variant{}, false
}

// FirstAvailableVariant returns the first available variant that has a provider id.
func (p *Product) FirstAvailableVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.Available && v.ProviderVariantID != "" {
			return v, true
		}
	}
	return Variant{}, false
}

// Store persists catalog products.
type Store interface {
	// GetProduct returns a NOT_FOUND APIError for unknown ids.
	GetProduct(ctx context.Context, id string) (*Product, error)
	// UpsertProduct replaces the product and its variant list.
	UpsertProduct(ctx context.Context, p *Product) error
	UpdateVariantStock(ctx context.Context, productID, variantID string, stock int) error
}

// Compile-time interface checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
