package stock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropship-gateway/internal/model"
)

func TestNormalizeWarehouse(t *testing.T) {
	tests := []struct {
		name string
		json string
		want model.WarehouseStock
	}{
		{
			name: "num keys",
			json: `{"countryCode":"CN","totalInventoryNum":30,"cjInventoryNum":10,"factoryInventoryNum":20,"verifiedWarehouse":1}`,
			want: model.WarehouseStock{CountryCode: "CN", TotalQty: 30, ProviderQty: 10, FactoryQty: 20, Verified: true},
		},
		{
			name: "short keys as strings",
			json: `{"countryCode":"us","totalInventory":"7","cjInventory":"7","factoryInventory":"0","verifiedWarehouse":"true"}`,
			want: model.WarehouseStock{CountryCode: "US", TotalQty: 7, ProviderQty: 7, FactoryQty: 0, Verified: true},
		},
		{
			name: "deprecated storageNum",
			json: `{"countryCode":"CN","storageNum":12}`,
			want: model.WarehouseStock{CountryCode: "CN", TotalQty: 12},
		},
		{
			name: "total derived when absent",
			json: `{"countryCode":"CN","cjInventoryNum":4,"factoryInventory":6}`,
			want: model.WarehouseStock{CountryCode: "CN", TotalQty: 10, ProviderQty: 4, FactoryQty: 6},
		},
		{
			name: "num key preferred over alias",
			json: `{"totalInventoryNum":5,"totalInventory":99,"storageNum":1}`,
			want: model.WarehouseStock{TotalQty: 5},
		},
		{
			name: "explicit zero total is kept",
			json: `{"totalInventoryNum":0,"cjInventoryNum":3}`,
			want: model.WarehouseStock{TotalQty: 0, ProviderQty: 3},
		},
		{
			name: "negative and garbage clamp to zero",
			json: `{"totalInventoryNum":-4,"cjInventoryNum":"n/a","verifiedWarehouse":2}`,
			want: model.WarehouseStock{},
		},
		{
			name: "nothing present",
			json: `{}`,
			want: model.WarehouseStock{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw rawWarehouse
			require.NoError(t, json.Unmarshal([]byte(tt.json), &raw))
			assert.Equal(t, tt.want, normalizeWarehouse(raw))
		})
	}
}

func TestParseBulkInventory(t *testing.T) {
	t.Run("grouped shape", func(t *testing.T) {
		raw := json.RawMessage(`{
			"inventories":[{"countryCode":"CN","totalInventoryNum":8}],
			"variantInventories":[
				{"vid":"V2","inventory":[{"countryCode":"CN","totalInventory":5},{"countryCode":"US","totalInventory":1}]},
				{"vid":"V1","inventory":[]}
			]}`)
		got, err := parseBulkInventory(raw)
		require.NoError(t, err)

		assert.Equal(t, []string{"V2", "V1"}, got.order)
		assert.Len(t, got.byVariant["V2"], 2)
		assert.NotNil(t, got.byVariant["V1"])
		assert.Empty(t, got.byVariant["V1"])
	})

	t.Run("flat shape groups by vid", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"vid":"V1","countryCode":"CN","storageNum":"3"},
			{"vid":"V2","countryCode":"CN","storageNum":"4"},
			{"vid":"V1","countryCode":"US","storageNum":"2"},
			{"countryCode":"CN","storageNum":"100"}
		]`)
		got, err := parseBulkInventory(raw)
		require.NoError(t, err)

		assert.Equal(t, []string{"V1", "V2"}, got.order)
		assert.Equal(t, 5, model.NewVariantStock("V1", got.byVariant["V1"]).TotalStock)
	})

	t.Run("null is empty", func(t *testing.T) {
		got, err := parseBulkInventory(json.RawMessage(`null`))
		require.NoError(t, err)
		assert.True(t, got.empty())

		got, err = parseBulkInventory(nil)
		require.NoError(t, err)
		assert.True(t, got.empty())
	})

	t.Run("malformed is an error", func(t *testing.T) {
		_, err := parseBulkInventory(json.RawMessage(`[{"vid":`))
		assert.Error(t, err)
	})
}

func TestParseWarehouseList(t *testing.T) {
	whs, vid, err := parseWarehouseList(json.RawMessage(`{"vid":"V9","countryCode":"CN","totalInventoryNum":2}`))
	require.NoError(t, err)
	assert.Equal(t, "V9", vid)
	assert.Equal(t, []model.WarehouseStock{{CountryCode: "CN", TotalQty: 2}}, whs)

	whs, vid, err = parseWarehouseList(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, vid)
	assert.Empty(t, whs)
}
