package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 商品状态
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Product 本地商品 (系统记录)
// 自然键为 SKU，SKU 为空时退化为 ZohoItemID
type Product struct {
	BaseModel

	// --- 身份字段 ---
	SKU              *string `gorm:"size:100;uniqueIndex" json:"sku"`
	ZohoItemID       *string `gorm:"size:64;uniqueIndex" json:"zoho_item_id"`
	AirtableRecordID *string `gorm:"size:64;index" json:"airtable_record_id"`

	// --- 基本信息 ---
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"price"`
	Stock       int             `gorm:"default:0" json:"stock"`
	Status      string          `gorm:"size:20;index;default:active" json:"status"`
	Unit        string          `gorm:"size:20" json:"unit"`

	// --- 规格 (统一为克/毫米，未知时为空) ---
	WeightGrams *float64 `json:"weight_grams"`
	LengthMM    *float64 `json:"length_mm"`
	WidthMM     *float64 `json:"width_mm"`
	HeightMM    *float64 `json:"height_mm"`

	ImageURLs datatypes.JSONSlice[string] `json:"image_urls"`

	// --- 合规标记 ---
	IsNicotine      bool `gorm:"default:false" json:"is_nicotine"`
	IsTobacco       bool `gorm:"default:false" json:"is_tobacco"`
	IsAgeRestricted bool `gorm:"default:false;index" json:"is_age_restricted"`

	// --- 关联 ---
	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category   *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	BrandID    *uuid.UUID `gorm:"type:uuid;index" json:"brand_id"`
	Brand      *Brand     `gorm:"foreignKey:BrandID" json:"brand,omitempty"`

	// --- 同步上下文 ---
	RawPayload       datatypes.JSON `json:"-"`
	VendorModifiedAt *time.Time     `json:"vendor_modified_at"`
	LastSyncedAt     *time.Time     `json:"last_synced_at"`
}

func (Product) TableName() string {
	return "products"
}

// SKUValue SKU 为空时返回空串
func (p *Product) SKUValue() string {
	if p.SKU == nil {
		return ""
	}
	return *p.SKU
}

// Category 商品分类，自然键 ZohoCategoryID
type Category struct {
	BaseModel
	ZohoCategoryID *string    `gorm:"size:64;uniqueIndex" json:"zoho_category_id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	Slug           string     `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	ParentID       *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
}

func (Category) TableName() string {
	return "categories"
}

// Brand 品牌，自然键 Slug
type Brand struct {
	BaseModel
	Name string `gorm:"size:255;not null" json:"name"`
	Slug string `gorm:"size:255;uniqueIndex;not null" json:"slug"`
}

func (Brand) TableName() string {
	return "brands"
}
