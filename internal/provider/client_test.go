package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/token"
)

var _ token.Authenticator = (*AuthAPI)(nil)

func TestClient_GetProductDetail(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{
		"code":200,"result":true,"data":{
			"pid":"P1","productNameEn":"Lamp","productSku":"CJLP01","sellPrice":"2.10-3.40",
			"variants":[
				{"vid":"V1","pid":"P1","variantNameEn":"Lamp Red","variantSku":"CJLP01-R","variantSellPrice":2.1},
				{"vid":"V2","pid":"P1","variantNameEn":"Lamp Blue","variantSku":"CJLP01-B","variantSellPrice":"3.40"}
			]}}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})
	client := NewClient(exec)

	detail, err := client.GetProductDetail(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "Lamp", detail.NameEn)
	assert.Equal(t, FlexString("2.10-3.40"), detail.SellPrice)
	require.Len(t, detail.Variants, 2)
	assert.True(t, detail.Variants[0].Price().Equal(decimal.RequireFromString("2.1")))
	assert.True(t, detail.Variants[1].Price().Equal(decimal.RequireFromString("3.4")))
	assert.Equal(t, "/product/query", srv.request(0).URL.Path)
}

func TestClient_GetProductDetailNullData(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":null}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

	_, err := NewClient(exec).GetProductDetail(context.Background(), "P404")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClient_CalculateFreightEmpty(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":[]}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

	items, err := NewClient(exec).CalculateFreight(context.Background(), FreightRequest{
		StartCountryCode: "CN", EndCountryCode: "US", Products: []FreightProduct{{VID: "V1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, http.MethodPost, srv.request(0).Method)
}

func TestClient_ListCategoriesFlattensTree(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":[
		{"categoryFirstName":"Home","categoryFirstList":[
			{"categorySecondName":"Lighting","categorySecondList":[
				{"categoryId":"C1","categoryName":"Lamps"},
				{"categoryId":"C2","categoryName":"Bulbs"}
			]}
		]}
	]}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

	cats, err := NewClient(exec).ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Category{
		{ID: "C1", Name: "Lamps", Path: []string{"Home", "Lighting", "Lamps"}},
		{ID: "C2", Name: "Bulbs", Path: []string{"Home", "Lighting", "Bulbs"}},
	}, cats)
}

func TestClient_GetProductReviews(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":{
		"pageNum":"1","pageSize":"20","total":"1",
		"list":[{"commentId":1234,"pid":"P1","comment":"great","score":"5","countryCode":"US"}]}}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

	page, err := NewClient(exec).GetProductReviews(context.Background(), "P1", 0, 0)
	require.NoError(t, err)

	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, FlexString("1234"), page.Reviews[0].ID)
	assert.EqualValues(t, 5, page.Reviews[0].Score)

	q := srv.request(0).URL.Query()
	assert.Equal(t, "1", q.Get("pageNum"))
	assert.Equal(t, "20", q.Get("pageSize"))
}

func TestClient_CreateOrder(t *testing.T) {
	t.Run("requires order number", func(t *testing.T) {
		client := NewClient(nil)
		_, err := client.CreateOrder(context.Background(), OrderRequest{Products: []OrderProduct{{VID: "V1", Quantity: 1}}})
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})

	t.Run("sends order number", func(t *testing.T) {
		srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":{"orderId":"O-9","orderStatus":"CREATED"}}`})
		exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

		order, err := NewClient(exec).CreateOrder(context.Background(), OrderRequest{
			OrderNumber:         "ord-1",
			ShippingCountryCode: "US",
			ShippingCity:        "Austin",
			ShippingAddress:     "1 Main St",
			ShippingCustomer:    "Sam Doe",
			LogisticName:        "CJPacket",
			Products:            []OrderProduct{{VID: "V1", Quantity: 2}},
		})
		require.NoError(t, err)
		assert.Equal(t, "O-9", order.OrderID)
		assert.Equal(t, "ord-1", order.OrderNumber)
		assert.Contains(t, srv.body(0), `"orderNumber":"ord-1"`)
	})
}

func TestAuthAPI_GetAccessToken(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{"code":200,"result":true,"data":{
		"accessToken":"at-1","accessTokenExpiryDate":"2026-03-16T09:16:33+08:00",
		"refreshToken":"rt-1","refreshTokenExpiryDate":"2026-08-16T09:16:33+08:00"}}`})
	exec, _ := newTestExecutor(t, srv.URL, nil)

	state, err := NewAuthAPI(exec).GetAccessToken(context.Background(), "ops@example.com", "key")
	require.NoError(t, err)

	assert.Equal(t, "at-1", state.AccessToken)
	assert.Equal(t, "rt-1", state.RefreshToken)
	assert.True(t, state.ExpiresAt.Equal(time.Date(2026, 3, 16, 1, 16, 33, 0, time.UTC)))

	assert.Empty(t, srv.request(0).Header.Get("CJ-Access-Token"))
	assert.JSONEq(t, `{"email":"ops@example.com","apiKey":"key"}`, srv.body(0))
}

func TestAuthAPI_NoAuthRetry(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 401, body: `{"code":1600001,"message":"bad key"}`})
	exec, _ := newTestExecutor(t, srv.URL, nil)

	_, err := NewAuthAPI(exec).RefreshAccessToken(context.Background(), "rt")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"garbage", time.Time{}},
		{"2026-03-16T09:16:33Z", time.Date(2026, 3, 16, 9, 16, 33, 0, time.UTC)},
		{"2026-03-16 09:16:33", time.Date(2026, 3, 16, 9, 16, 33, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := parseExpiry(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseExpiry(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want FlexInt
	}{
		{`12`, 12},
		{`"12"`, 12},
		{`"12.0"`, 12},
		{`null`, 0},
		{`""`, 0},
		{`"n/a"`, 0},
	}
	for _, tt := range tests {
		var got FlexInt
		if err := got.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Fatalf("UnmarshalJSON(%s) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("FlexInt(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClient_GetProductVariantsLenientPrices(t *testing.T) {
	srv := newRecordingServer(t, scripted{status: 200, body: `{
		"code":200,"result":true,"data":[
			{"vid":"V1","variantSku":"S1","variantSellPrice":""},
			{"vid":"V2","variantSku":"S2","variantSellPrice":"1.20-3.40"},
			{"vid":"V3","variantSku":"S3","variantSellPrice":null},
			{"vid":"V4","variantSku":"S4","variantSellPrice":5}
		]}`})
	exec, _ := newTestExecutor(t, srv.URL, &fakeTokens{})

	variants, err := NewClient(exec).GetProductVariants(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, variants, 4)

	assert.True(t, variants[0].Price().IsZero())
	assert.True(t, variants[1].Price().Equal(decimal.RequireFromString("1.2")))
	assert.True(t, variants[2].Price().IsZero())
	assert.True(t, variants[3].Price().Equal(decimal.RequireFromString("5")))
}

func TestVariantPrice(t *testing.T) {
	tests := []struct {
		in   FlexString
		want string
	}{
		{"", "0"},
		{"  ", "0"},
		{"4.50", "4.5"},
		{"$1,234.5", "1234.5"},
		{"1.20-3.40", "1.2"},
		{"1.20 - 3.40", "1.2"},
		{"-2", "0"},
		{"n/a", "0"},
	}
	for _, tt := range tests {
		got := Variant{SellPrice: tt.in}.Price()
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Variant{SellPrice: %q}.Price() = %s, want %s", tt.in, got, tt.want)
		}
	}
}
