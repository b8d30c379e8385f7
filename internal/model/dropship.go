// Package model defines the records shared between the provider client, the
// stock/shipping/cart components and the HTTP surface, plus the error taxonomy.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOriginCountry is assumed for products without a recorded origin.
const DefaultOriginCountry = "CN"

// Tier is the provider account service level.
type Tier string

const (
	TierFree     Tier = "free"
	TierPlus     Tier = "plus"
	TierPrime    Tier = "prime"
	TierAdvanced Tier = "advanced"
)

// ParseTier accepts tier names case-insensitively. Empty input means free.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case "", TierFree:
		return TierFree, nil
	case TierPlus:
		return TierPlus, nil
	case TierPrime:
		return TierPrime, nil
	case TierAdvanced:
		return TierAdvanced, nil
	default:
		return "", fmt.Errorf("unknown provider tier %q (want free, plus, prime or advanced)", s)
	}
}

// Credentials are the provider account settings. Immutable for a session.
type Credentials struct {
	Email         string `json:"email"`
	APIKey        string `json:"api_key"`
	Tier          Tier   `json:"tier"`
	PlatformToken string `json:"platform_token,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// Usable reports whether the credentials can be exchanged for a token.
func (c Credentials) Usable() bool {
	return c.Enabled && c.Email != "" && c.APIKey != ""
}

// TokenState is the provider access/refresh token pair.
type TokenState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ValidFor reports whether the access token is still usable for at least margin.
func (t *TokenState) ValidFor(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.Sub(now) > margin
}

// WarehouseStock is one warehouse's inventory for a variant, in canonical form.
type WarehouseStock struct {
	CountryCode string `json:"country_code"`
	TotalQty    int    `json:"total_qty"`
	ProviderQty int    `json:"provider_qty"`
	FactoryQty  int    `json:"factory_qty"`
	Verified    bool   `json:"verified"`
}

// VariantStock is derived per fetch and never merged across fetches.
type VariantStock struct {
	VariantID    string           `json:"variant_id"`
	TotalStock   int              `json:"total_stock"`
	PerWarehouse []WarehouseStock `json:"per_warehouse"`
}

// NewVariantStock computes TotalStock as the sum of warehouse totals.
// A variant without warehouses has zero stock.
func NewVariantStock(variantID string, warehouses []WarehouseStock) VariantStock {
	if warehouses == nil {
		warehouses = []WarehouseStock{}
	}
	total := 0
	for _, w := range warehouses {
		total += w.TotalQty
	}
	return VariantStock{VariantID: variantID, TotalStock: total, PerWarehouse: warehouses}
}

// VariantWithStock joins variant metadata with its stock.
type VariantWithStock struct {
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Image     string          `json:"image,omitempty"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Stock     VariantStock    `json:"stock"`
}

// ShippingQuote is one carrier option for a product+destination lookup.
type ShippingQuote struct {
	CarrierName string          `json:"carrier_name"`
	TransitTime string          `json:"transit_time"`
	Freight     decimal.Decimal `json:"freight"`
	Currency    string          `json:"currency"`
	Warning     string          `json:"warning,omitempty"`
}

// ShippingResult is either Shippable with quotes or NotShippable with a reason.
// NotShippable is a business outcome, not an error.
type ShippingResult struct {
	Shippable bool            `json:"shippable"`
	Quotes    []ShippingQuote `json:"quotes,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Shippable builds a shippable result.
func Shippable(quotes []ShippingQuote) ShippingResult {
	return ShippingResult{Shippable: true, Quotes: quotes}
}

// NotShippable builds a not-shippable result.
func NotShippable(reason string) ShippingResult {
	return ShippingResult{Shippable: false, Reason: reason}
}

// Cheapest returns the lowest-freight quote, or false when there are none.
func (r ShippingResult) Cheapest() (ShippingQuote, bool) {
	if len(r.Quotes) == 0 {
		return ShippingQuote{}, false
	}
	best := r.Quotes[0]
	for _, q := range r.Quotes[1:] {
		if q.Freight.LessThan(best.Freight) {
			best = q
		}
	}
	return best, true
}

// CartItem is one live cart line.
type CartItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal is UnitPrice × Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartOriginGroup is the per-origin slice of a cart with its freight.
// Amounts are in the provider's currency; no rounding is applied.
type CartOriginGroup struct {
	OriginCountry string          `json:"origin_country"`
	Items         []CartItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	Total         decimal.Decimal `json:"total"`
	Carrier       string          `json:"carrier,omitempty"`
	TransitTime   string          `json:"transit_time,omitempty"`
	Shippable     bool            `json:"shippable"`
	Reason        string          `json:"reason,omitempty"`
}
