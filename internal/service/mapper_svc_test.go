package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vipsmoke_erp/pkg/vendors/airtable"
	"vipsmoke_erp/pkg/vendors/zoho"
)

func nf(v float64) zoho.NullFloat { return zoho.NullFloat{Float64: v, Valid: true} }

func TestFieldMapper_MapZohoItem(t *testing.T) {
	m := NewFieldMapper(nil, nil)

	item := &zoho.Item{
		ItemID:       "1",
		SKU:          " GB-PULSE-01 ",
		Name:         "Geek Bar Pulse Disposable Vape 5% Nicotine",
		Rate:         nf(19.999),
		StockOnHand:  nf(12),
		Status:       "Active",
		CategoryID:   "c-1",
		CategoryName: "Disposables",
		PackageDetails: zoho.PackageDetails{
			Weight:        nf(2),
			WeightUnit:    "oz",
			Length:        nf(1),
			Width:         nf(2),
			DimensionUnit: "in",
		},
		Images:           []zoho.ItemImage{{URL: "https://img.example.com/1.jpg"}},
		LastModifiedTime: "2024-05-01T10:00:00-0500",
	}

	f, err := m.MapZohoItem(item)
	require.NoError(t, err)

	assert.Equal(t, "GB-PULSE-01", *f.SKU)
	assert.Equal(t, "1", *f.ZohoItemID)
	assert.Equal(t, "20", f.Price.String())
	assert.Equal(t, 12, *f.Stock)
	assert.Equal(t, "active", f.Status)
	assert.InDelta(t, 56.699, *f.WeightGrams, 0.0001)
	assert.InDelta(t, 25.4, *f.LengthMM, 0.0001)
	assert.InDelta(t, 50.8, *f.WidthMM, 0.0001)
	assert.Nil(t, f.HeightMM, "缺失的尺寸保持为空")
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, f.ImageURLs)
	assert.Equal(t, "Geek Bar", f.BrandName)
	assert.Equal(t, "c-1", f.ZohoCategoryID)
	assert.True(t, f.Flags.IsNicotine)
	assert.True(t, f.Flags.IsAgeRestricted)
	assert.False(t, f.Flags.IsTobacco)
	require.NotNil(t, f.VendorModifiedAt)
	assert.NotEmpty(t, f.RawPayload)
}

func TestFieldMapper_MapZohoItem_Errors(t *testing.T) {
	m := NewFieldMapper(nil, nil)

	tests := []struct {
		name    string
		item    *zoho.Item
		wantMsg string
	}{
		{
			name:    "缺少 SKU",
			item:    &zoho.Item{ItemID: "2", Name: "Mystery Item"},
			wantMsg: "zoho item 2: missing sku",
		},
		{
			name:    "缺少名称",
			item:    &zoho.Item{ItemID: "3", SKU: "X-1"},
			wantMsg: "zoho item 3",
		},
		{
			name: "未知重量单位",
			item: &zoho.Item{
				ItemID:         "4",
				SKU:            "X-2",
				Name:           "Heavy Thing",
				PackageDetails: zoho.PackageDetails{Weight: nf(1), WeightUnit: "stone"},
			},
			wantMsg: "zoho item 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MapZohoItem(tt.item)
			require.Error(t, err)

			var mapErr *MappingError
			require.True(t, errors.As(err, &mapErr))
			assert.Equal(t, tt.item.ItemID, mapErr.VendorID)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFieldMapper_DefaultUnits(t *testing.T) {
	m := NewFieldMapper(nil, nil)

	f, err := m.MapZohoItem(&zoho.Item{
		ItemID:         "5",
		SKU:            "K-1",
		Name:           "Kava Root Powder",
		PackageDetails: zoho.PackageDetails{Weight: nf(1), Height: nf(2)},
	})
	require.NoError(t, err)

	// 未给单位时重量按磅、尺寸按英寸
	assert.InDelta(t, 453.592, *f.WeightGrams, 0.0001)
	assert.InDelta(t, 50.8, *f.HeightMM, 0.0001)
	assert.Nil(t, f.Price)
	assert.Nil(t, f.Stock)
	assert.False(t, f.Flags.IsAgeRestricted)
}

func TestFieldMapper_MapAirtableRecord(t *testing.T) {
	m := NewFieldMapper(nil, nil)

	rec := airtable.Record{
		ID: "rec001",
		Fields: map[string]interface{}{
			"Name":        "Cookies - Rolling Tray Large",
			"Price":       "$12.50",
			"Weight (oz)": 2.0,
			"Images": []interface{}{
				map[string]interface{}{"id": "att1", "url": "https://dl.airtable.com/a.png"},
				map[string]interface{}{"id": "att2"},
			},
			"Image URL": "https://cdn.example.com/b.png",
		},
	}

	f, err := m.MapAirtableRecord(rec)
	require.NoError(t, err)

	assert.Nil(t, f.SKU)
	assert.Equal(t, "rec001", *f.AirtableRecordID)
	assert.Equal(t, "12.5", f.Price.String())
	assert.InDelta(t, 56.699, *f.WeightGrams, 0.0001)
	assert.Equal(t, []string{"https://dl.airtable.com/a.png", "https://cdn.example.com/b.png"}, f.ImageURLs)
	assert.Equal(t, "Cookies", f.BrandName)
	assert.True(t, f.Flags.IsAgeRestricted)

	_, err = m.MapAirtableRecord(airtable.Record{ID: "rec002", Fields: map[string]interface{}{"SKU": "A"}})
	var mapErr *MappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, "rec002", mapErr.VendorID)
}

func TestBrandExtractor_Extract(t *testing.T) {
	b := DefaultBrandExtractor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"已知品牌前缀", "Geek Bar Pulse 15000 Watermelon", "Geek Bar"},
		{"已知品牌忽略大小写", "RAW Classic Rolling Papers", "RAW"},
		{"方括号", "[Acme] Glass Water Pipe", "Acme"},
		{"短横线分隔", "Blazy Susan - Pink Cones", "Blazy Susan"},
		{"by 后缀", "Herbal Tea Blend by Yogi", "Yogi"},
		{"无品牌", "Plain Product", ""},
		{"空串", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Extract(tt.input))
		})
	}
}

func TestFieldMapper_MapSalesOrder(t *testing.T) {
	m := NewFieldMapper(nil, nil)

	so := &zoho.SalesOrder{
		SalesOrderID:     "so-1",
		SalesOrderNumber: "SO-00001",
		CustomerID:       "cust-1",
		CustomerName:     "Jane Doe",
		Status:           "confirmed",
		Date:             "2024-06-01",
		Total:            nf(42.5),
		CurrencyCode:     "USD",
		ShippingAddress:  &zoho.Address{Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Country: "US"},
		LineItems: []zoho.LineItem{
			{LineItemID: "li-1", ItemID: "1", SKU: "A", Name: "Thing", Quantity: nf(2), Rate: nf(21.25)},
		},
	}

	order := m.MapSalesOrder(so)
	assert.Equal(t, "so-1", order.ZohoSalesOrderID)
	assert.Equal(t, "42.5", order.Total.String())
	require.NotNil(t, order.OrderDate)
	assert.Equal(t, "Jane Doe", order.ShippingAddress["name"])
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "21.25", order.Items[0].Rate.String())
}
