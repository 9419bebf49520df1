package dto

import (
	"time"

	"vipsmoke_erp/internal/model"
)

// ProductResp 商品响应
type ProductResp struct {
	ID               string   `json:"id"`
	SKU              string   `json:"sku"`
	ZohoItemID       string   `json:"zoho_item_id"`
	AirtableRecordID string   `json:"airtable_record_id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Price            string   `json:"price"`
	Stock            int      `json:"stock"`
	Status           string   `json:"status"`
	Unit             string   `json:"unit"`
	WeightGrams      *float64 `json:"weight_grams"`
	LengthMM         *float64 `json:"length_mm"`
	WidthMM          *float64 `json:"width_mm"`
	HeightMM         *float64 `json:"height_mm"`
	ImageURLs        []string `json:"image_urls"`

	// 合规标记
	IsNicotine      bool `json:"is_nicotine"`
	IsTobacco       bool `json:"is_tobacco"`
	IsAgeRestricted bool `json:"is_age_restricted"`

	Category string `json:"category"`
	Brand    string `json:"brand"`

	LastSyncedAt *time.Time `json:"last_synced_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProductListResp 列表响应
type ProductListResp struct {
	Code     int           `json:"code"`
	Message  string        `json:"message"`
	Data     []ProductResp `json:"data"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// RecommendationResp 推荐响应
type RecommendationResp struct {
	Product ProductResp `json:"product"`
	Score   float64     `json:"score"`
	Method  string      `json:"method"`
}

// ToProductResp 模型转响应
func ToProductResp(p *model.Product) ProductResp {
	resp := ProductResp{
		ID:               p.ID.String(),
		SKU:              deref(p.SKU),
		ZohoItemID:       deref(p.ZohoItemID),
		AirtableRecordID: deref(p.AirtableRecordID),
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price.StringFixed(2),
		Stock:            p.Stock,
		Status:           p.Status,
		Unit:             p.Unit,
		WeightGrams:      p.WeightGrams,
		LengthMM:         p.LengthMM,
		WidthMM:          p.WidthMM,
		HeightMM:         p.HeightMM,
		ImageURLs:        []string(p.ImageURLs),
		IsNicotine:       p.IsNicotine,
		IsTobacco:        p.IsTobacco,
		IsAgeRestricted:  p.IsAgeRestricted,
		LastSyncedAt:     p.LastSyncedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if resp.ImageURLs == nil {
		resp.ImageURLs = []string{}
	}
	if p.Category != nil {
		resp.Category = p.Category.Name
	}
	if p.Brand != nil {
		resp.Brand = p.Brand.Name
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
