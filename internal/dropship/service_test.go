package dropship

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
	"dropship-gateway/internal/shipping"
	"dropship-gateway/internal/token"
)

type stubAuth struct{ logins atomic.Int32 }

func (a *stubAuth) GetAccessToken(context.Context, string, string) (*model.TokenState, error) {
	a.logins.Add(1)
	return &model.TokenState{AccessToken: "access-token-1234abcd", RefreshToken: "rt"}, nil
}

func (a *stubAuth) RefreshAccessToken(context.Context, string) (*model.TokenState, error) {
	return &model.TokenState{AccessToken: "access-token-refreshed", RefreshToken: "rt"}, nil
}

var _ token.Authenticator = (*stubAuth)(nil)

type fixture struct {
	gw       *Gateway
	api      *provider.Mock
	catalog  *catalog.MemoryStore
	auth     *stubAuth
	freights atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{catalog: catalog.NewMemoryStore(), auth: &stubAuth{}}
	f.api = &provider.Mock{
		GetProductDetailFunc: func(_ context.Context, pid string) (*provider.ProductDetail, error) {
			return &provider.ProductDetail{
				PID:    pid,
				NameEn: "Desk lamp",
				Variants: []provider.Variant{
					{VID: "VID-W", PID: pid, NameEn: "White", SKU: "LAMP-W", SellPrice: "12"},
				},
			}, nil
		},
		GetInventoryByProductFunc: func(context.Context, string) (json.RawMessage, error) {
			return json.RawMessage(`[{"vid":"VID-W","countryCode":"CN","totalInventoryNum":7}]`), nil
		},
		CalculateFreightFunc: func(context.Context, provider.FreightRequest) ([]json.RawMessage, error) {
			f.freights.Add(1)
			return []json.RawMessage{
				json.RawMessage(`{"logisticName":"CJPacket","logisticAging":"8-12","logisticPrice":"3.10"}`),
				json.RawMessage(`{"option":{"enName":"EPacket"},"wrapPostage":"4.50","arrivalTime":"7-12 days"}`),
			}, nil
		},
	}
	creds := model.Credentials{Email: "ops@example.com", APIKey: "key", Tier: model.TierPrime, Enabled: true}
	lifecycle := token.NewLifecycle(token.NewMemoryStore(creds), f.auth, nil)
	f.gw = New(Config{
		Provider: f.api,
		Tokens:   lifecycle,
		Catalog:  f.catalog,
		Cache:    shipping.NewMemoryCache(nil),
	})
	return f
}

func TestGateway_ImportThenQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.gw.ImportProduct(ctx, "PID-LAMP")
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, 7, p.Variants[0].Stock)
	assert.True(t, p.Variants[0].Available)

	var req provider.FreightRequest
	f.api.CalculateFreightFunc = func(_ context.Context, r provider.FreightRequest) ([]json.RawMessage, error) {
		f.freights.Add(1)
		req = r
		return []json.RawMessage{json.RawMessage(`{"logisticName":"CJPacket","logisticPrice":"3.10"}`)}, nil
	}

	got, err := f.gw.CheckShipping(ctx, "PID-LAMP", "US", "")
	require.NoError(t, err)
	assert.True(t, got.Shippable)
	assert.Equal(t, "VID-W", req.Products[0].VID)
	assert.Equal(t, "CN", req.StartCountryCode)

	_, err = f.gw.CheckShipping(ctx, "PID-LAMP", "US", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.freights.Load(), "second quote served from cache")
}

func TestGateway_GroupByOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.gw.ImportProduct(ctx, "PID-LAMP")
	require.NoError(t, err)
	require.NoError(t, f.catalog.UpsertProduct(ctx, &catalog.Product{ID: "SOAP", Source: catalog.SourceLocal, OriginCountry: "FR"}))

	groups, err := f.gw.GroupByOrigin(ctx, []model.CartItem{
		{ProductID: "PID-LAMP", Quantity: 1, UnitPrice: decimal.RequireFromString("12")},
		{ProductID: "SOAP", Quantity: 2, UnitPrice: decimal.RequireFromString("5")},
	}, "US")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "CJPacket", groups[0].Carrier, "cheapest of the two quotes")
	assert.True(t, groups[0].Total.Equal(decimal.RequireFromString("15.1")), "CN total = %s", groups[0].Total)
	assert.True(t, groups[1].Total.Equal(decimal.RequireFromString("10")))
}

func TestGateway_Stock(t *testing.T) {
	f := newFixture(t)

	variants, err := f.gw.GetVariantsWithStock(context.Background(), "PID-LAMP")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, 7, variants[0].Stock.TotalStock)

	_, err = f.gw.GetVariantsWithStock(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = f.gw.GetVariantStock(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = f.gw.GetStockBySKU(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestGateway_TokenStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.gw.TokenStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "****abcd", status.Token)
	assert.Equal(t, model.TierPrime, status.Tier)
	assert.False(t, status.ExpiresAt.IsZero())

	tok, err := f.gw.EnsureValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-token-1234abcd", tok)
	assert.Equal(t, int32(1), f.auth.logins.Load(), "token reused")
}

func TestGateway_Orders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.CreateOrderFunc = func(_ context.Context, req provider.OrderRequest) (*provider.Order, error) {
		return &provider.Order{OrderID: "CJ-1", OrderNumber: req.OrderNumber, Status: "CREATED"}, nil
	}

	order, err := f.gw.CreateOrder(ctx, provider.OrderRequest{OrderNumber: "SO-42"})
	require.NoError(t, err)
	assert.Equal(t, "CJ-1", order.OrderID)

	_, err = f.gw.GetOrder(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = f.gw.GetOrder(ctx, "CJ-404")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMaskToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "****"},
		{"abcd", "****"},
		{"abcdef", "****cdef"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
