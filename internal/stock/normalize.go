package stock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
)

// rawWarehouse is a warehouse record as any inventory endpoint returns it.
// Quantities are pointers so "absent" and "zero" stay distinguishable while
// picking among alias keys.
type rawWarehouse struct {
	VID         string `json:"vid"`
	CountryCode string `json:"countryCode"`
	AreaEn      string `json:"areaEn"`

	TotalInventoryNum *provider.FlexInt `json:"totalInventoryNum"`
	TotalInventory    *provider.FlexInt `json:"totalInventory"`
	StorageNum        *provider.FlexInt `json:"storageNum"` // deprecated alias of the total

	CJInventoryNum *provider.FlexInt `json:"cjInventoryNum"`
	CJInventory    *provider.FlexInt `json:"cjInventory"`

	FactoryInventoryNum *provider.FlexInt `json:"factoryInventoryNum"`
	FactoryInventory    *provider.FlexInt `json:"factoryInventory"`

	VerifiedWarehouse flexBool `json:"verifiedWarehouse"`
}

// normalizeWarehouse maps whichever alias keys are present onto the canonical
// triple. When no total key is present the total is provider + factory.
func normalizeWarehouse(r rawWarehouse) model.WarehouseStock {
	providerQty, _ := firstOf(r.CJInventoryNum, r.CJInventory)
	factoryQty, _ := firstOf(r.FactoryInventoryNum, r.FactoryInventory)
	total, ok := firstOf(r.TotalInventoryNum, r.TotalInventory, r.StorageNum)
	if !ok {
		total = providerQty + factoryQty
	}

	country := strings.ToUpper(strings.TrimSpace(r.CountryCode))

	return model.WarehouseStock{
		CountryCode: country,
		TotalQty:    nonNegative(total),
		ProviderQty: nonNegative(providerQty),
		FactoryQty:  nonNegative(factoryQty),
		Verified:    bool(r.VerifiedWarehouse),
	}
}

func firstOf(vals ...*provider.FlexInt) (int, bool) {
	for _, v := range vals {
		if v != nil {
			return int(*v), true
		}
	}
	return 0, false
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// flexBool accepts true/false, 1/0 and their string forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var s provider.FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "true", "1", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

// =============================================================================
// RESPONSE SHAPES
// =============================================================================
//
// Bulk inventory arrives in one of two shapes:
//
//   grouped: {"inventories":[...], "variantInventories":[{"vid":"V1","inventory":[...]}]}
//   flat:    [{"vid":"V1","countryCode":"CN","totalInventoryNum":3}, ...]
//
// Per-variant and per-SKU endpoints return a flat list, occasionally a single
// object. Each shape is decoded into rawWarehouse records before any merging.
// =============================================================================

// bulkInventory is bulk stock keyed by variant, with first-seen order kept.
type bulkInventory struct {
	order     []string
	byVariant map[string][]model.WarehouseStock
}

func (b bulkInventory) empty() bool {
	return len(b.order) == 0
}

func (b *bulkInventory) add(vid string, whs []model.WarehouseStock) {
	if vid == "" {
		return
	}
	if _, seen := b.byVariant[vid]; !seen {
		b.order = append(b.order, vid)
		b.byVariant[vid] = []model.WarehouseStock{}
	}
	b.byVariant[vid] = append(b.byVariant[vid], whs...)
}

type groupedInventory struct {
	VariantInventories []struct {
		VID       string         `json:"vid"`
		Inventory []rawWarehouse `json:"inventory"`
	} `json:"variantInventories"`
}

// parseBulkInventory decodes either bulk shape. Empty or null input yields an
// empty result, not an error.
func parseBulkInventory(raw json.RawMessage) (bulkInventory, error) {
	out := bulkInventory{byVariant: map[string][]model.WarehouseStock{}}

	switch shapeOf(raw) {
	case shapeNone:
		return out, nil

	case shapeObject:
		var g groupedInventory
		if err := json.Unmarshal(raw, &g); err != nil {
			return out, fmt.Errorf("decoding grouped inventory: %w", err)
		}
		for _, vi := range g.VariantInventories {
			out.add(vi.VID, normalizeAll(vi.Inventory))
		}
		return out, nil

	default:
		var records []rawWarehouse
		if err := json.Unmarshal(raw, &records); err != nil {
			return out, fmt.Errorf("decoding inventory list: %w", err)
		}
		for _, r := range records {
			out.add(r.VID, []model.WarehouseStock{normalizeWarehouse(r)})
		}
		return out, nil
	}
}

// parseWarehouseList decodes a per-variant or per-SKU payload. The returned
// vid is the first one found in the records, if any.
func parseWarehouseList(raw json.RawMessage) ([]model.WarehouseStock, string, error) {
	var records []rawWarehouse

	switch shapeOf(raw) {
	case shapeNone:
		return nil, "", nil
	case shapeObject:
		var r rawWarehouse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, "", fmt.Errorf("decoding warehouse record: %w", err)
		}
		records = []rawWarehouse{r}
	default:
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, "", fmt.Errorf("decoding warehouse list: %w", err)
		}
	}

	vid := ""
	for _, r := range records {
		if r.VID != "" {
			vid = r.VID
			break
		}
	}
	return normalizeAll(records), vid, nil
}

func normalizeAll(records []rawWarehouse) []model.WarehouseStock {
	out := make([]model.WarehouseStock, 0, len(records))
	for _, r := range records {
		out = append(out, normalizeWarehouse(r))
	}
	return out
}

type payloadShape int

const (
	shapeNone payloadShape = iota
	shapeObject
	shapeArray
)

func shapeOf(raw json.RawMessage) payloadShape {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return shapeNone
	case trimmed[0] == '{':
		return shapeObject
	default:
		return shapeArray
	}
}
