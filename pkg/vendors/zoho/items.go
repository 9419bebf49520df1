package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ==================== 商品 ====================

// GetProducts 获取一页商品 (简要字段)
func (c *Client) GetProducts(ctx context.Context, page, perPage int, filter ListFilter) (*ItemPage, error) {
	query := map[string]string{
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	}
	if filter.Status != "" {
		query["filter_by"] = "Status." + filter.Status
	}
	if filter.LastModifiedAfter != nil {
		// 按修改时间倒序，调用方遇到早于游标的记录即可停止翻页
		query["sort_column"] = "last_modified_time"
		query["sort_order"] = "D"
		query["last_modified_time"] = filter.LastModifiedAfter.UTC().Format(TimeLayout)
	}

	var resp struct {
		Items       []json.RawMessage `json:"items"`
		PageContext pageContext       `json:"page_context"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/items", query: query}, &resp); err != nil {
		return nil, fmt.Errorf("获取商品列表失败 (page %d): %w", page, err)
	}

	result := &ItemPage{
		Items:   make([]Item, 0, len(resp.Items)),
		Page:    page,
		PerPage: perPage,
		HasMore: resp.PageContext.HasMorePage,
	}
	// 逐条解码，单条字段异常不影响整页
	for idx, raw := range resp.Items {
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			result.Invalid = append(result.Invalid, InvalidItem{
				ItemID: rawItemID(raw),
				Index:  idx,
				Err:    fmt.Errorf("%w: %v", ErrInvalidPayload, err),
			})
			continue
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// rawItemID 从无法完整解码的条目中尽量取出 item_id
func rawItemID(raw json.RawMessage) string {
	var head struct {
		ItemID json.RawMessage `json:"item_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || len(head.ItemID) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(head.ItemID, &id); err == nil {
		return id
	}
	return string(head.ItemID)
}

// GetProduct 获取商品详情 (含图片、自定义字段)
func (c *Client) GetProduct(ctx context.Context, itemID string) (*Item, error) {
	var resp struct {
		Item *Item `json:"item"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/items/" + itemID}, &resp); err != nil {
		return nil, fmt.Errorf("获取商品详情失败 (item %s): %w", itemID, err)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("%w: item %s 响应缺少 item", ErrInvalidPayload, itemID)
	}
	return resp.Item, nil
}

// CreateProduct 创建商品
func (c *Client) CreateProduct(ctx context.Context, req *ItemRequest) (*Item, error) {
	var resp struct {
		Item *Item `json:"item"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/items", body: req}, &resp); err != nil {
		return nil, fmt.Errorf("创建商品失败: %w", err)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("%w: 创建响应缺少 item", ErrInvalidPayload)
	}
	return resp.Item, nil
}

// UpdateProduct 更新商品
func (c *Client) UpdateProduct(ctx context.Context, itemID string, req *ItemRequest) (*Item, error) {
	var resp struct {
		Item *Item `json:"item"`
	}
	if err := c.do(ctx, request{method: http.MethodPut, path: "/items/" + itemID, body: req}, &resp); err != nil {
		return nil, fmt.Errorf("更新商品失败 (item %s): %w", itemID, err)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("%w: item %s 更新响应缺少 item", ErrInvalidPayload, itemID)
	}
	return resp.Item, nil
}

// ==================== 分类 ====================

// GetCategories 获取全部分类
func (c *Client) GetCategories(ctx context.Context) ([]Category, error) {
	var resp struct {
		Categories []Category `json:"categories"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/settings/categories"}, &resp); err != nil {
		return nil, fmt.Errorf("获取分类失败: %w", err)
	}
	return resp.Categories, nil
}

// ==================== 订单 ====================

// GetSalesOrders 获取一页销售订单
// startDate 非空时仅返回该日期之后的订单
func (c *Client) GetSalesOrders(ctx context.Context, page, perPage int, startDate string) (*SalesOrderPage, error) {
	query := map[string]string{
		"page":        strconv.Itoa(page),
		"per_page":    strconv.Itoa(perPage),
		"sort_column": "date",
		"sort_order":  "A",
	}
	if startDate != "" {
		query["date_start"] = startDate
	}

	var resp struct {
		SalesOrders []SalesOrder `json:"salesorders"`
		PageContext pageContext  `json:"page_context"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/salesorders", query: query}, &resp); err != nil {
		return nil, fmt.Errorf("获取订单列表失败 (page %d): %w", page, err)
	}
	return &SalesOrderPage{SalesOrders: resp.SalesOrders, HasMore: resp.PageContext.HasMorePage}, nil
}

// GetSalesOrder 获取订单详情 (含订单行)
func (c *Client) GetSalesOrder(ctx context.Context, salesOrderID string) (*SalesOrder, error) {
	var resp struct {
		SalesOrder *SalesOrder `json:"salesorder"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/salesorders/" + salesOrderID}, &resp); err != nil {
		return nil, fmt.Errorf("获取订单详情失败 (salesorder %s): %w", salesOrderID, err)
	}
	if resp.SalesOrder == nil {
		return nil, fmt.Errorf("%w: salesorder %s 响应缺少 salesorder", ErrInvalidPayload, salesOrderID)
	}
	return resp.SalesOrder, nil
}

// ==================== 联系人 ====================

// GetContact 获取联系人
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	var resp struct {
		Contact *Contact `json:"contact"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/contacts/" + contactID}, &resp); err != nil {
		return nil, fmt.Errorf("获取联系人失败 (contact %s): %w", contactID, err)
	}
	return resp.Contact, nil
}

// Ping 连通性检查
func (c *Client) Ping(ctx context.Context) error {
	query := map[string]string{"page": "1", "per_page": "1"}
	return c.do(ctx, request{method: http.MethodGet, path: "/items", query: query}, nil)
}
