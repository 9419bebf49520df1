package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== 订单状态常量 ====================

const (
	OrderStatusDraft     = "draft"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCanceled  = "void"
)

// ==================== Order 订单主表 ====================

// Order 销售订单，自然键 ZohoSalesOrderID
type Order struct {
	BaseModel
	ZohoSalesOrderID string `gorm:"size:64;uniqueIndex;not null" json:"zoho_salesorder_id"`
	SalesOrderNumber string `gorm:"size:64;index" json:"salesorder_number"`

	// 客户
	CustomerID    string `gorm:"size:64" json:"customer_id"`
	CustomerName  string `gorm:"size:255" json:"customer_name"`
	CustomerEmail string `gorm:"size:255" json:"customer_email"`

	Status    string          `gorm:"size:32;index" json:"status"`
	OrderDate *time.Time      `gorm:"index" json:"order_date"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total"`
	Currency  string          `gorm:"size:8" json:"currency"`

	ShippingAddress datatypes.JSONMap `json:"shipping_address"`

	// ShipStation 履约
	ShipStationOrderID *int64     `gorm:"index" json:"shipstation_order_id"`
	PushedAt           *time.Time `json:"pushed_at"`
	TrackingNumber     string     `gorm:"size:128" json:"tracking_number"`
	Carrier            string     `gorm:"size:64" json:"carrier"`
	ShippedAt          *time.Time `json:"shipped_at"`

	Items      []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	RawPayload datatypes.JSON `json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单行
type OrderItem struct {
	BaseModel
	OrderID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ZohoLineItemID string          `gorm:"size:64" json:"zoho_line_item_id"`
	ZohoItemID     string          `gorm:"size:64" json:"zoho_item_id"`
	ProductID      *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	SKU            string          `gorm:"size:100" json:"sku"`
	Name           string          `gorm:"size:255" json:"name"`
	Quantity       int             `json:"quantity"`
	Rate           decimal.Decimal `gorm:"type:decimal(12,2)" json:"rate"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
