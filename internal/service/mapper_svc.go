package service

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vipsmoke_erp/internal/compliance"
	"vipsmoke_erp/pkg/units"
	"vipsmoke_erp/pkg/vendors/airtable"
	"vipsmoke_erp/pkg/vendors/zoho"
)

// ==================== 映射结果 ====================

// ProductFields 供应商记录映射后的本地商品字段
// 可选字段缺失时保持 nil，不做默认值填充
type ProductFields struct {
	SKU              *string
	ZohoItemID       *string
	AirtableRecordID *string

	Name        string
	Description string
	Price       *decimal.Decimal
	Stock       *int
	Status      string
	Unit        string

	WeightGrams *float64
	LengthMM    *float64
	WidthMM     *float64
	HeightMM    *float64

	ImageURLs []string
	Flags     compliance.Flags

	BrandName      string
	CategoryName   string
	ZohoCategoryID string

	VendorModifiedAt *time.Time
	RawPayload       []byte
}

// MappingError 单条记录映射失败，携带供应商记录 ID
type MappingError struct {
	Source   string // zoho item / airtable record / zoho salesorder
	VendorID string
	Reason   string
}

func (e *MappingError) Error() string {
	id := e.VendorID
	if id == "" {
		id = "(unknown)"
	}
	return fmt.Sprintf("%s %s: %s", e.Source, id, e.Reason)
}

// ==================== 品牌提取 ====================

// BrandExtractor 依次尝试正则，返回第一个命中的品牌
type BrandExtractor struct {
	patterns []*regexp.Regexp
}

// defaultBrandPatterns 顺序即优先级
var defaultBrandPatterns = []string{
	// 已知品牌 (前缀)
	`(?i)^(geek ?bar|elf ?bar|lost mary|raz|breeze|hqd|puff ?bar|juul|vuse|njoy|zyn|swisher sweets|backwoods|black & mild|raw|zig-zag|elements|cookies|delta extrax|3chi|cake|mit45|og kratom|smok|vaporesso|geekvape|uwell|voopoo|puffco|yocan|lookah)\b`,
	// [Brand] Product
	`^\[([^\]]+)\]`,
	// Brand - Product
	`^([A-Za-z0-9][\w&'.]*(?:\s+[A-Za-z0-9][\w&'.]*){0,2})\s+[-|:]\s+\S`,
	// Product by Brand
	`(?i)\bby\s+([A-Za-z0-9][\w&'.]*(?:\s+[A-Za-z0-9][\w&'.]*)?)\s*$`,
}

// NewBrandExtractor 使用自定义正则创建
func NewBrandExtractor(patterns ...string) *BrandExtractor {
	b := &BrandExtractor{}
	for _, p := range patterns {
		b.patterns = append(b.patterns, regexp.MustCompile(p))
	}
	return b
}

// DefaultBrandExtractor 默认品牌规则
func DefaultBrandExtractor() *BrandExtractor {
	return NewBrandExtractor(defaultBrandPatterns...)
}

// Extract 从商品名提取品牌，未命中返回空串
func (b *BrandExtractor) Extract(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, re := range b.patterns {
		if m := re.FindStringSubmatch(name); len(m) > 1 {
			if brand := strings.TrimSpace(m[1]); brand != "" {
				return brand
			}
		}
	}
	return ""
}

// ==================== 字段映射器 ====================

// FieldMapper 供应商记录到本地字段的纯函数映射，无内部状态
type FieldMapper struct {
	taxonomy             *compliance.Taxonomy
	brands               *BrandExtractor
	DefaultWeightUnit    string
	DefaultDimensionUnit string
}

// NewFieldMapper 创建映射器
func NewFieldMapper(taxonomy *compliance.Taxonomy, brands *BrandExtractor) *FieldMapper {
	if taxonomy == nil {
		taxonomy = compliance.Default()
	}
	if brands == nil {
		brands = DefaultBrandExtractor()
	}
	return &FieldMapper{
		taxonomy:             taxonomy,
		brands:               brands,
		DefaultWeightUnit:    "lb",
		DefaultDimensionUnit: "in",
	}
}

// Brands 品牌提取器
func (m *FieldMapper) Brands() *BrandExtractor {
	return m.brands
}

// MapZohoItem 映射 Zoho 商品
func (m *FieldMapper) MapZohoItem(item *zoho.Item) (*ProductFields, error) {
	if item == nil {
		return nil, &MappingError{Source: "zoho item", Reason: "记录为空"}
	}
	fail := func(reason string) error {
		return &MappingError{Source: "zoho item", VendorID: item.ItemID, Reason: reason}
	}

	if err := item.Validate(); err != nil {
		return nil, fail(err.Error())
	}
	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		return nil, fail("missing sku")
	}

	f := &ProductFields{
		SKU:              &sku,
		ZohoItemID:       strPtr(item.ItemID),
		Name:             strings.TrimSpace(item.Name),
		Description:      strings.TrimSpace(item.Description),
		Status:           normalizeStatus(item.Status),
		Unit:             item.Unit,
		CategoryName:     item.CategoryName,
		ZohoCategoryID:   item.CategoryID,
		VendorModifiedAt: item.ModifiedAt(),
	}

	if item.Rate.Valid {
		price := decimal.NewFromFloat(item.Rate.Float64).Round(2)
		f.Price = &price
	}
	if item.StockOnHand.Valid {
		stock := int(math.Round(item.StockOnHand.Float64))
		f.Stock = &stock
	}

	pd := item.PackageDetails
	var err error
	if f.WeightGrams, err = convert(pd.Weight.Ptr(), pd.WeightUnit, m.DefaultWeightUnit, units.WeightToGrams); err != nil {
		return nil, fail(err.Error())
	}
	for _, dim := range []struct {
		src *float64
		dst **float64
	}{
		{pd.Length.Ptr(), &f.LengthMM},
		{pd.Width.Ptr(), &f.WidthMM},
		{pd.Height.Ptr(), &f.HeightMM},
	} {
		if *dim.dst, err = convert(dim.src, pd.DimensionUnit, m.DefaultDimensionUnit, units.DimensionToMM); err != nil {
			return nil, fail(err.Error())
		}
	}

	for _, img := range item.Images {
		if img.URL != "" {
			f.ImageURLs = append(f.ImageURLs, img.URL)
		}
	}
	if cf, ok := item.CustomField("image_url"); ok {
		if url := cf.StringValue(); url != "" {
			f.ImageURLs = append(f.ImageURLs, url)
		}
	}

	f.BrandName = firstNonEmpty(item.Brand, item.Manufacturer, m.brands.Extract(f.Name))
	f.Flags = m.taxonomy.Flags(f.Name, f.Description, item.CategoryName)

	if raw, err := json.Marshal(item); err == nil {
		f.RawPayload = raw
	}
	return f, nil
}

// 常见 Airtable 列名
var (
	airtableNameFields  = []string{"Name", "Product Name", "Title"}
	airtableSKUFields   = []string{"SKU", "Sku", "sku"}
	airtableImageFields = []string{"Images", "Image", "Photos"}
)

// MapAirtableRecord 映射 Airtable 记录
// Airtable 记录允许没有 SKU，后续按名称匹配
func (m *FieldMapper) MapAirtableRecord(rec airtable.Record) (*ProductFields, error) {
	name := rec.String(airtableNameFields...)
	if name == "" {
		return nil, &MappingError{Source: "airtable record", VendorID: rec.ID, Reason: "missing name"}
	}

	f := &ProductFields{
		AirtableRecordID: strPtr(rec.ID),
		Name:             name,
		Description:      rec.String("Description"),
		CategoryName:     rec.String("Category"),
	}
	if sku := rec.String(airtableSKUFields...); sku != "" {
		f.SKU = &sku
	}
	if price := rec.Float("Price"); price != nil {
		d := decimal.NewFromFloat(*price).Round(2)
		f.Price = &d
	}

	var err error
	switch {
	case rec.Float("Weight (oz)") != nil:
		f.WeightGrams, err = convert(rec.Float("Weight (oz)"), "oz", "", units.WeightToGrams)
	case rec.Float("Weight (lb)") != nil:
		f.WeightGrams, err = convert(rec.Float("Weight (lb)"), "lb", "", units.WeightToGrams)
	default:
		f.WeightGrams, err = convert(rec.Float("Weight"), rec.String("Weight Unit"), m.DefaultWeightUnit, units.WeightToGrams)
	}
	if err != nil {
		return nil, &MappingError{Source: "airtable record", VendorID: rec.ID, Reason: err.Error()}
	}

	for _, field := range airtableImageFields {
		for _, a := range rec.Attachments(field) {
			f.ImageURLs = append(f.ImageURLs, a.URL)
		}
	}
	if url := rec.String("Image URL"); url != "" {
		f.ImageURLs = append(f.ImageURLs, url)
	}

	f.BrandName = firstNonEmpty(rec.String("Brand"), m.brands.Extract(name))
	f.Flags = m.taxonomy.Flags(f.Name, f.Description, f.CategoryName)
	return f, nil
}

// ==================== 工具函数 ====================

func convert(v *float64, unit, fallback string, fn func(float64, string) (float64, error)) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if strings.TrimSpace(unit) == "" {
		unit = fallback
	}
	out, err := fn(*v, unit)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactive":
		return "inactive"
	default:
		return "active"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
