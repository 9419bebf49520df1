package shipstation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Config ShipStation 配置
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // 默认 https://ssapi.shipstation.com
	StoreID   int
	Timeout   time.Duration
}

// APIError ShipStation 非成功响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ShipStation API 错误 (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client ShipStation API 客户端
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient 创建客户端
// ShipStation 限制每分钟 40 次请求
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ssapi.shipstation.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetBasicAuth(cfg.APIKey, cfg.APISecret).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Every(1500*time.Millisecond), 5),
	}
}

// ==================== 数据结构 ====================

// Address 收件地址
type Address struct {
	Name       string `json:"name"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderItem 订单行
type OrderItem struct {
	LineItemKey string  `json:"lineItemKey,omitempty"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// AdvancedOptions 高级选项
type AdvancedOptions struct {
	StoreID int `json:"storeId,omitempty"`
}

// OrderRequest 创建/更新订单 (orderKey 相同即覆盖)
type OrderRequest struct {
	OrderNumber     string           `json:"orderNumber"`
	OrderKey        string           `json:"orderKey"`
	OrderDate       string           `json:"orderDate"`
	OrderStatus     string           `json:"orderStatus"`
	CustomerEmail   string           `json:"customerEmail,omitempty"`
	BillTo          Address          `json:"billTo"`
	ShipTo          Address          `json:"shipTo"`
	Items           []OrderItem      `json:"items"`
	AmountPaid      float64          `json:"amountPaid"`
	AdvancedOptions *AdvancedOptions `json:"advancedOptions,omitempty"`
}

// OrderResponse 创建订单响应
type OrderResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	OrderKey    string `json:"orderKey"`
	OrderStatus string `json:"orderStatus"`
}

// Shipment 运单
type Shipment struct {
	ShipmentID     int64  `json:"shipmentId"`
	OrderID        int64  `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	OrderKey       string `json:"orderKey"`
	TrackingNumber string `json:"trackingNumber"`
	CarrierCode    string `json:"carrierCode"`
	ShipDate       string `json:"shipDate"`
	Voided         bool   `json:"voided"`
}

// ShippedAt 解析发货日期
func (s Shipment) ShippedAt() *time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05.0000000", time.RFC3339} {
		if t, err := time.Parse(layout, s.ShipDate); err == nil {
			return &t
		}
	}
	return nil
}

// ShipmentFilter 运单查询条件
type ShipmentFilter struct {
	ShipDateStart *time.Time
	Page          int
	PageSize      int
}

// ShipmentPage 一页运单
type ShipmentPage struct {
	Shipments []Shipment `json:"shipments"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	Pages     int        `json:"pages"`
}

// HasMore 是否还有下一页
func (p *ShipmentPage) HasMore() bool {
	return p.Page < p.Pages
}

// ==================== 接口 ====================

// CreateOrUpdateOrder 创建或更新订单
func (c *Client) CreateOrUpdateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if c.cfg.StoreID > 0 && req.AdvancedOptions == nil {
		req.AdvancedOptions = &AdvancedOptions{StoreID: c.cfg.StoreID}
	}
	var resp OrderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/createorder", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("推送订单失败 (%s): %w", req.OrderNumber, err)
	}
	return &resp, nil
}

// ListShipments 查询运单
func (c *Client) ListShipments(ctx context.Context, filter ShipmentFilter) (*ShipmentPage, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	query := map[string]string{
		"page":     strconv.Itoa(filter.Page),
		"pageSize": strconv.Itoa(filter.PageSize),
	}
	if filter.ShipDateStart != nil {
		query["shipDateStart"] = filter.ShipDateStart.Format("2006-01-02")
	}

	var resp ShipmentPage
	if err := c.doRequest(ctx, http.MethodGet, "/shipments", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("查询运单失败: %w", err)
	}
	return &resp, nil
}

// Ping 连通性检查
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/carriers", nil, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	if !resp.IsSuccess() {
		var e struct {
			Message string `json:"Message"`
		}
		_ = json.Unmarshal(resp.Body(), &e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode())
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
