// Package shipping answers "can product P ship to country D, and for how
// much", memoizing provider freight lookups for an hour.
package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/metrics"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// ReasonRateLimited is the NotShippable reason for a throttled lookup.
// Such results are returned but never cached.
const ReasonRateLimited = "rate_limited"

// FreightCalculator is the provider call the checker depends on.
type FreightCalculator interface {
	CalculateFreight(ctx context.Context, req provider.FreightRequest) ([]json.RawMessage, error)
	GetProductVariants(ctx context.Context, pid string) ([]provider.Variant, error)
}

// ProductLookup reads catalog records.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// Checker resolves shipping options through the cache.
type Checker struct {
	cache    Cache
	freight  FreightCalculator
	products ProductLookup
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewChecker creates a Checker. ttl <= 0 means DefaultTTL; a nil logger means slog.Default().
func NewChecker(cache Cache, freight FreightCalculator, products ProductLookup, ttl time.Duration, logger *slog.Logger) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cache:    cache,
		freight:  freight,
		products: products,
		ttl:      ttl,
		logger:   logger,
	}
}

// outcome is a resolved result plus whether it may be cached.
type outcome struct {
	result    model.ShippingResult
	cacheable bool
}

// CheckShipping returns the carrier options for one unit of productID (or
// the given variant) shipped to destination.
//
// Concurrent misses on the same key share a single provider call. ctx bounds
// only this caller's wait; the shared call keeps running for the others.
func (c *Checker) CheckShipping(ctx context.Context, productID, destination, variantID string) (model.ShippingResult, error) {
	destination = strings.ToUpper(strings.TrimSpace(destination))
	if productID == "" {
		return model.ShippingResult{}, model.NewValidationError("product_id", "required")
	}
	if len(destination) != 2 {
		return model.ShippingResult{}, model.NewValidationError("country", "must be an ISO 3166-1 alpha-2 code")
	}

	key := Key(productID, destination, variantID)
	logger := c.logger.With("product_id", productID, "destination", destination, "variant_id", variantID)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("quote cache read failed, treating as miss", "error", err)
	} else if ok {
		metrics.ShippingCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ShippingCacheTotal.WithLabelValues("miss").Inc()

	// The shared lookup outlives any single caller: one caller giving up must
	// not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		out, err := c.resolve(shared, productID, destination, variantID, logger)
		if err != nil {
			return nil, err
		}
		if out.cacheable {
			if err := c.cache.Set(shared, key, out.result, c.ttl); err != nil {
				logger.Warn("quote cache write failed", "error", err)
			} else {
				metrics.ShippingCacheTotal.WithLabelValues("store").Inc()
			}
		} else {
			metrics.ShippingCacheTotal.WithLabelValues("skip").Inc()
		}
		return out.result, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.ShippingResult{}, res.Err
		}
		return res.Val.(model.ShippingResult), nil
	case <-ctx.Done():
		return model.ShippingResult{}, ctx.Err()
	}
}

func (c *Checker) resolve(ctx context.Context, productID, destination, variantID string, logger *slog.Logger) (outcome, error) {
	product, err := c.products.GetProduct(ctx, productID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return outcome{}, fmt.Errorf("loading product: %w", err)
	}

	providerPID := productID
	if product != nil {
		if !product.FromProvider() {
			// Not fulfilled by the provider: shippable, nothing to quote.
			return outcome{result: model.Shippable(nil)}, nil
		}
		providerPID = product.ProviderProductID
	}
	// An uncatalogued id is taken to be a provider product id.

	origin := catalog.OriginCountry(product)

	vid, err := c.selectVariant(ctx, product, providerPID, variantID)
	if err != nil {
		return c.classifyError(err, logger)
	}
	if vid == "" {
		return outcome{result: model.NotShippable("no available variant to quote")}, nil
	}

	items, err := c.freight.CalculateFreight(ctx, provider.FreightRequest{
		StartCountryCode: origin,
		EndCountryCode:   destination,
		Products:         []provider.FreightProduct{{VID: vid, Quantity: 1}},
	})
	if err != nil {
		return c.classifyError(err, logger)
	}

	quotes := make([]model.ShippingQuote, 0, len(items))
	for _, item := range items {
		q, err := parseFreightItem(item)
		if err != nil {
			logger.Warn("skipping freight item", "error", err)
			continue
		}
		if q.Warning != "" {
			logger.Warn("freight price coerced", "carrier", q.CarrierName, "warning", q.Warning)
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 {
		return outcome{result: model.NotShippable(fmt.Sprintf("no carrier ships from %s to %s", origin, destination)), cacheable: true}, nil
	}
	return outcome{result: model.Shippable(quotes), cacheable: true}, nil
}

// selectVariant returns the provider variant id to quote: the requested one,
// else the first available catalog variant, else the first provider variant.
func (c *Checker) selectVariant(ctx context.Context, product *catalog.Product, providerPID, requested string) (string, error) {
	if requested != "" {
		if product != nil {
			if v, ok := product.FindVariant(requested); ok && v.ProviderVariantID != "" {
				return v.ProviderVariantID, nil
			}
		}
		return requested, nil
	}

	if product != nil {
		if v, ok := product.FirstAvailableVariant(); ok {
			return v.ProviderVariantID, nil
		}
		if len(product.Variants) > 0 {
			return "", nil
		}
	}

	variants, err := c.freight.GetProductVariants(ctx, providerPID)
	if err != nil {
		return "", err
	}
	for _, v := range variants {
		if v.VID != "" {
			return v.VID, nil
		}
	}
	return "", nil
}

// classifyError applies the failure policy: config errors propagate,
// rate limits are reported but not cached, other provider failures are
// cached as not shippable.
func (c *Checker) classifyError(err error, logger *slog.Logger) (outcome, error) {
	if errors.Is(err, model.ErrNotConfigured) {
		return outcome{}, err
	}
	if model.IsRateLimited(err) {
		logger.Warn("freight lookup rate limited, not caching", "error", err)
		return outcome{result: model.NotShippable(ReasonRateLimited)}, nil
	}
	var upErr *model.UpstreamError
	if errors.As(err, &upErr) {
		logger.Warn("freight lookup failed", "error", err)
		reason := upErr.Message
		if reason == "" {
			reason = "provider freight lookup failed"
		}
		return outcome{result: model.NotShippable(reason), cacheable: true}, nil
	}
	return outcome{}, err
}
