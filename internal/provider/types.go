package provider

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dropship-gateway/internal/model"
)

// Provider business codes that carry retry meaning regardless of HTTP status.
const (
	CodeOK           = 200
	CodeTokenInvalid = 1600001
	CodeTokenExpired = 1600003
	CodeTooManyCalls = 1600200
)

// Envelope is the provider's common response wrapper.
// Data is left raw so each endpoint decodes its own payload shape.
type Envelope struct {
	Code      int             `json:"code"`
	Result    bool            `json:"result"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
}

// OK reports whether the envelope signals business success.
func (e *Envelope) OK() bool {
	return e.Code == CodeOK || e.Result || e.Success
}

// hasData reports whether Data holds something other than JSON null.
func (e *Envelope) hasData() bool {
	d := strings.TrimSpace(string(e.Data))
	return d != "" && d != "null"
}

// FlexString decodes a JSON string or number into a string.
// IDs and prices arrive as either depending on the endpoint version.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	*f = FlexString(s)
	return nil
}

// FlexInt decodes a JSON number, numeric string, or null into an int.
// Unparseable strings decode as 0 rather than failing the whole payload.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var fs FlexString
	if err := fs.UnmarshalJSON(b); err != nil {
		return err
	}
	s := strings.TrimSpace(string(fs))
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(n)
		return nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		*f = FlexInt(d.IntPart())
		return nil
	}
	*f = 0
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDetail is the product/query payload, trimmed to the fields we use.
type ProductDetail struct {
	PID           string     `json:"pid"`
	NameEn        string     `json:"productNameEn"`
	SKU           string     `json:"productSku"`
	Image         string     `json:"productImage"`
	SellPrice     FlexString `json:"sellPrice"` // may be a range like "1.20-3.40"
	CategoryID    string     `json:"categoryId"`
	CategoryName  string     `json:"categoryName"`
	Weight        FlexString `json:"productWeight"`
	Status        FlexString `json:"status"`
	Variants      []Variant  `json:"variants"`
	SourceCountry string     `json:"sourceFrom,omitempty"`
}

// Variant is a sellable SKU of a product.
type Variant struct {
	VID       string     `json:"vid"`
	PID       string     `json:"pid"`
	NameEn    string     `json:"variantNameEn"`
	SKU       string     `json:"variantSku"`
	Image     string     `json:"variantImage"`
	Key       string     `json:"variantKey"`
	SellPrice FlexString `json:"variantSellPrice"` // may be blank or a range
}

// Price is the variant's sell price. A range resolves to its lower bound;
// blank, negative or unparseable prices are zero.
func (v Variant) Price() decimal.Decimal {
	s := strings.TrimSpace(string(v.SellPrice))
	if lo, _, ok := strings.Cut(s, "-"); ok && lo != "" {
		s = lo
	}
	d, err := model.ParseAmount(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// LOGISTICS
// =============================================================================

// FreightProduct is one line of a freight calculation request.
type FreightProduct struct {
	VID      string `json:"vid"`
	Quantity int    `json:"quantity"`
}

// FreightRequest asks for carrier options between two countries.
type FreightRequest struct {
	StartCountryCode string           `json:"startCountryCode"`
	EndCountryCode   string           `json:"endCountryCode"`
	Products         []FreightProduct `json:"products"`
}

// =============================================================================
// CATEGORIES & REVIEWS
// =============================================================================

// Category is a leaf of the provider's three-level category tree.
type Category struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Path []string `json:"path"`
}

type categoryFirst struct {
	Name   string           `json:"categoryFirstName"`
	Second []categorySecond `json:"categoryFirstList"`
}

type categorySecond struct {
	Name  string          `json:"categorySecondName"`
	Third []categoryThird `json:"categorySecondList"`
}

type categoryThird struct {
	ID   string `json:"categoryId"`
	Name string `json:"categoryName"`
}

// Review is one buyer comment on a product.
type Review struct {
	ID          FlexString `json:"commentId"`
	PID         string     `json:"pid"`
	Comment     string     `json:"comment"`
	Date        string     `json:"commentDate"`
	User        string     `json:"commentUser"`
	Score       FlexInt    `json:"score"`
	CountryCode string     `json:"countryCode"`
	Images      []string   `json:"commentUrls"`
}

// ReviewPage is one page of product reviews.
type ReviewPage struct {
	PageNum  FlexInt  `json:"pageNum"`
	PageSize FlexInt  `json:"pageSize"`
	Total    FlexInt  `json:"total"`
	Reviews  []Review `json:"list"`
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderProduct is one order line.
type OrderProduct struct {
	VID      string `json:"vid"`
	Quantity int    `json:"quantity"`
}

// OrderRequest creates a provider order. OrderNumber is caller-generated and
// doubles as the idempotency key: a retried request carries the same number.
type OrderRequest struct {
	OrderNumber         string         `json:"orderNumber"`
	ShippingCountryCode string         `json:"shippingCountryCode"`
	ShippingCountry     string         `json:"shippingCountry,omitempty"`
	ShippingProvince    string         `json:"shippingProvince,omitempty"`
	ShippingCity        string         `json:"shippingCity"`
	ShippingAddress     string         `json:"shippingAddress"`
	ShippingZip         string         `json:"shippingZip,omitempty"`
	ShippingCustomer    string         `json:"shippingCustomerName"`
	ShippingPhone       string         `json:"shippingPhone,omitempty"`
	FromCountryCode     string         `json:"fromCountryCode,omitempty"`
	LogisticName        string         `json:"logisticName"`
	Remark              string         `json:"remark,omitempty"`
	Products            []OrderProduct `json:"products"`
}

// Order is the provider's view of an order.
type Order struct {
	OrderID      string     `json:"orderId"`
	OrderNumber  string     `json:"orderNumber"`
	Status       string     `json:"orderStatus"`
	TrackNumber  string     `json:"trackNumber,omitempty"`
	LogisticName string     `json:"logisticName,omitempty"`
	Amount       FlexString `json:"orderAmount,omitempty"`
	PostageFee   FlexString `json:"postageAmount,omitempty"`
	CreatedAt    string     `json:"createDate,omitempty"`
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type accessTokenRequest struct {
	Email  string `json:"email"`
	APIKey string `json:"apiKey"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiryDate  string `json:"accessTokenExpiryDate"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiryDate string `json:"refreshTokenExpiryDate"`
}
