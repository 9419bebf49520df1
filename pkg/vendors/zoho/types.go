package zoho

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout Zoho 时间格式
const TimeLayout = "2006-01-02T15:04:05-0700"

// ==================== 宽松数值 ====================

// NullFloat 兼容数字、数字字符串和空串
// 空串或 null 视为缺失
type NullFloat struct {
	Float64 float64
	Valid   bool
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = NullFloat{}
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*n = NullFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("无法解析数值 %s: %w", b, err)
	}
	*n = NullFloat{Float64: v, Valid: true}
	return nil
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// Ptr 缺失时返回 nil
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// ==================== 商品 ====================

// PackageDetails 包装规格
type PackageDetails struct {
	Length        NullFloat `json:"length"`
	Width         NullFloat `json:"width"`
	Height        NullFloat `json:"height"`
	Weight        NullFloat `json:"weight"`
	WeightUnit    string    `json:"weight_unit"`
	DimensionUnit string    `json:"dimension_unit"`
}

// CustomField 自定义字段
type CustomField struct {
	CustomFieldID string          `json:"customfield_id"`
	APIName       string          `json:"api_name"`
	Label         string          `json:"label"`
	Value         json.RawMessage `json:"value"`
}

// StringValue 以字符串形式读取字段值
func (f CustomField) StringValue() string {
	raw := bytes.TrimSpace(f.Value)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ItemImage 商品图片
type ItemImage struct {
	DocumentID string `json:"image_document_id"`
	Name       string `json:"image_name"`
	URL        string `json:"image_url"`
}

// Item Zoho 商品
// 列表接口只返回部分字段，图片和自定义字段需调用详情接口
type Item struct {
	ItemID           string         `json:"item_id"`
	Name             string         `json:"name"`
	SKU              string         `json:"sku"`
	Description      string         `json:"description"`
	Rate             NullFloat      `json:"rate"`
	StockOnHand      NullFloat      `json:"stock_on_hand"`
	AvailableStock   NullFloat      `json:"available_stock"`
	Status           string         `json:"status"`
	Unit             string         `json:"unit"`
	Brand            string         `json:"brand"`
	Manufacturer     string         `json:"manufacturer"`
	CategoryID       string         `json:"category_id"`
	CategoryName     string         `json:"category_name"`
	ImageName        string         `json:"image_name"`
	ImageDocumentID  string         `json:"image_document_id"`
	Images           []ItemImage    `json:"images"`
	PackageDetails   PackageDetails `json:"package_details"`
	CustomFields     []CustomField  `json:"custom_fields"`
	LastModifiedTime string         `json:"last_modified_time"`
}

// Validate 校验必需字段
func (i *Item) Validate() error {
	var missing []string
	if strings.TrimSpace(i.ItemID) == "" {
		missing = append(missing, "item_id")
	}
	if strings.TrimSpace(i.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: 缺少字段 %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}
	return nil
}

// ModifiedAt 解析最后修改时间，无法解析返回 nil
func (i *Item) ModifiedAt() *time.Time {
	return parseTime(i.LastModifiedTime)
}

// CustomField 按 api_name 或 label 查找
func (i *Item) CustomField(name string) (CustomField, bool) {
	for _, f := range i.CustomFields {
		if strings.EqualFold(f.APIName, name) || strings.EqualFold(f.Label, name) {
			return f, true
		}
	}
	return CustomField{}, false
}

// InvalidItem 列表中无法解码的条目
type InvalidItem struct {
	ItemID string
	Index  int
	Err    error
}

// ItemPage 一页商品
// Invalid 保存解码失败的条目，由调用方逐条记为失败
type ItemPage struct {
	Items   []Item
	Invalid []InvalidItem
	Page    int
	PerPage int
	HasMore bool
}

// ListFilter 列表过滤
type ListFilter struct {
	LastModifiedAfter *time.Time
	Status            string
}

// ItemRequest 创建/更新商品请求
type ItemRequest struct {
	Name        string   `json:"name"`
	SKU         string   `json:"sku,omitempty"`
	Description string   `json:"description,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// ==================== 分类 ====================

// Category Zoho 分类
type Category struct {
	CategoryID       string `json:"category_id"`
	Name             string `json:"name"`
	ParentCategoryID string `json:"parent_category_id"`
	IsActive         *bool  `json:"is_active"`
}

// ==================== 订单 ====================

// Address 地址
type Address struct {
	Attention string `json:"attention"`
	Address   string `json:"address"`
	Street2   string `json:"street2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// LineItem 订单行
type LineItem struct {
	LineItemID string    `json:"line_item_id"`
	ItemID     string    `json:"item_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Quantity   NullFloat `json:"quantity"`
	Rate       NullFloat `json:"rate"`
}

// SalesOrder 销售订单
type SalesOrder struct {
	SalesOrderID     string     `json:"salesorder_id"`
	SalesOrderNumber string     `json:"salesorder_number"`
	CustomerID       string     `json:"customer_id"`
	CustomerName     string     `json:"customer_name"`
	Email            string     `json:"email"`
	Status           string     `json:"status"`
	Date             string     `json:"date"`
	Total            NullFloat  `json:"total"`
	CurrencyCode     string     `json:"currency_code"`
	ShippingAddress  *Address   `json:"shipping_address"`
	LineItems        []LineItem `json:"line_items"`
	LastModifiedTime string     `json:"last_modified_time"`
}

// Validate 校验必需字段
func (o *SalesOrder) Validate() error {
	if strings.TrimSpace(o.SalesOrderID) == "" {
		return fmt.Errorf("%w: 缺少字段 salesorder_id", ErrInvalidPayload)
	}
	return nil
}

// OrderDate 解析订单日期 (yyyy-mm-dd)
func (o *SalesOrder) OrderDate() *time.Time {
	if o.Date == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", o.Date)
	if err != nil {
		return nil
	}
	return &t
}

// SalesOrderPage 一页订单
type SalesOrderPage struct {
	SalesOrders []SalesOrder
	HasMore     bool
}

// Contact 联系人
type Contact struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
}

// ==================== 响应包装 ====================

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type pageContext struct {
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	HasMorePage bool `json:"has_more_page"`
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{TimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
