package shipping

import (
	"encoding/json"
	"fmt"
	"strings"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// =============================================================================
// FREIGHT RESPONSE SHAPES
// =============================================================================
//
// The freight endpoint has returned two item shapes over its versions:
//
//   flat:   {"logisticName":"CJPacket","logisticAging":"7-12",
//            "logisticPrice":3.1,"totalPostageFee":3.6}
//   nested: {"option":{"enName":"EPacket"},"channel":{"enName":"..."},
//            "arrivalTime":"7-12 days","postage":"4.10","wrapPostage":"4.50"}
//
// Each item is classified first, decoded into its own type, then converted to
// one canonical ShippingQuote. Prices that include packaging
// (totalPostageFee, wrapPostage) win over bare postage.
// =============================================================================

type freightShape int

const (
	shapeUnknown freightShape = iota
	shapeFlat
	shapeNested
)

// classifyFreightItem picks the shape by which discriminating keys are present.
func classifyFreightItem(raw json.RawMessage) freightShape {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return shapeUnknown
	}
	if _, ok := keys["logisticName"]; ok {
		return shapeFlat
	}
	_, hasOption := keys["option"]
	_, hasChannel := keys["channel"]
	if hasOption || hasChannel {
		return shapeNested
	}
	return shapeUnknown
}

type flatFreight struct {
	LogisticName    string               `json:"logisticName"`
	LogisticAging   provider.FlexString  `json:"logisticAging"`
	LogisticPrice   *provider.FlexString `json:"logisticPrice"`
	TotalPostageFee *provider.FlexString `json:"totalPostageFee"`
}

func (f flatFreight) quote() model.ShippingQuote {
	return buildQuote(f.LogisticName, string(f.LogisticAging), f.TotalPostageFee, f.LogisticPrice)
}

type namedOption struct {
	EnName string `json:"enName"`
	Name   string `json:"name"`
}

func (o *namedOption) label() string {
	if o == nil {
		return ""
	}
	if o.EnName != "" {
		return o.EnName
	}
	return o.Name
}

type nestedFreight struct {
	Option      *namedOption         `json:"option"`
	Channel     *namedOption         `json:"channel"`
	ArrivalTime provider.FlexString  `json:"arrivalTime"`
	WrapPostage *provider.FlexString `json:"wrapPostage"`
	Postage     *provider.FlexString `json:"postage"`
}

func (n nestedFreight) quote() model.ShippingQuote {
	name := n.Option.label()
	if name == "" {
		name = n.Channel.label()
	}
	return buildQuote(name, string(n.ArrivalTime), n.WrapPostage, n.Postage)
}

// buildQuote takes prices in preference order; the first non-empty one is used.
func buildQuote(carrier, transit string, prices ...*provider.FlexString) model.ShippingQuote {
	price := ""
	for _, p := range prices {
		if p != nil && strings.TrimSpace(string(*p)) != "" {
			price = string(*p)
			break
		}
	}
	freight, warning := model.ParseFreight(price)
	return model.ShippingQuote{
		CarrierName: strings.TrimSpace(carrier),
		TransitTime: strings.TrimSpace(transit),
		Freight:     freight,
		Currency:    model.DefaultCurrency,
		Warning:     warning,
	}
}

// parseFreightItem normalizes one raw item.
func parseFreightItem(raw json.RawMessage) (model.ShippingQuote, error) {
	switch classifyFreightItem(raw) {
	case shapeFlat:
		var f flatFreight
		if err := json.Unmarshal(raw, &f); err != nil {
			return model.ShippingQuote{}, fmt.Errorf("decoding flat freight item: %w", err)
		}
		return f.quote(), nil
	case shapeNested:
		var n nestedFreight
		if err := json.Unmarshal(raw, &n); err != nil {
			return model.ShippingQuote{}, fmt.Errorf("decoding nested freight item: %w", err)
		}
		return n.quote(), nil
	default:
		return model.ShippingQuote{}, fmt.Errorf("unrecognized freight item: %.120s", string(raw))
	}
}
