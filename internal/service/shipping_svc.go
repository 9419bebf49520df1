package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/shipstation"
)

// ShipStationAPI 履约所需的 ShipStation 接口
type ShipStationAPI interface {
	CreateOrUpdateOrder(ctx context.Context, req *shipstation.OrderRequest) (*shipstation.OrderResponse, error)
	ListShipments(ctx context.Context, filter shipstation.ShipmentFilter) (*shipstation.ShipmentPage, error)
}

// ShippingConfig 履约配置
type ShippingConfig struct {
	StoreID      int
	PushBatch    int
	PageSize     int
	PageLimit    int
	LookbackDays int
	LockTTL      time.Duration
}

// ShippingService 订单推送与物流回传
type ShippingService struct {
	*syncRunner
	client ShipStationAPI
	orders repository.OrderRepository
	cfg    ShippingConfig
	now    func() time.Time
}

// NewShippingService 创建履约服务
func NewShippingService(client ShipStationAPI, orders repository.OrderRepository, runs repository.SyncRunRepository, locker lock.Locker, cfg ShippingConfig) *ShippingService {
	if cfg.PushBatch <= 0 {
		cfg.PushBatch = 100
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 14
	}
	return &ShippingService{
		syncRunner: newSyncRunner(locker, runs, cfg.LockTTL),
		client:     client,
		orders:     orders,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SyncShipments 先推送订单再回传物流，任一步失败时整体失败
func (s *ShippingService) SyncShipments(ctx context.Context, since *time.Time) (*SyncResult, error) {
	total := newSyncResult(model.ResourceShipments, model.SyncModeIncremental)

	var failed []string
	for _, step := range []struct {
		name string
		fn   func() (*SyncResult, error)
	}{
		{model.ResourceOrderPush, func() (*SyncResult, error) { return s.PushOrders(ctx) }},
		{model.ResourceShipments, func() (*SyncResult, error) { return s.PullShipments(ctx, since) }},
	} {
		res, err := step.fn()
		if errors.Is(err, ErrSyncInProgress) {
			return nil, err
		}
		if err != nil {
			failed = append(failed, step.name)
			total.Errors = append(total.Errors, fmt.Sprintf("%s: %v", step.name, err))
			continue
		}
		total.absorb(res)
		if !res.Success {
			failed = append(failed, step.name)
		}
	}

	var stepErr error
	if len(failed) > 0 {
		stepErr = fmt.Errorf("以下步骤失败: %s", strings.Join(failed, ", "))
	}
	total.finish(stepErr)
	return total, nil
}

// ==================== 订单推送 ====================

// PushOrders 把尚未推送的订单发送到 ShipStation
// orderKey 使用 Zoho 销售单 ID，重复推送由 ShipStation 覆盖
func (s *ShippingService) PushOrders(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, model.ResourceOrderPush, model.SyncModeIncremental, func(ctx context.Context, result *SyncResult) error {
		pending, err := s.orders.ListPendingPush(ctx, s.cfg.PushBatch)
		if err != nil {
			return fmt.Errorf("查询待推送订单失败: %w", err)
		}
		for i := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o := &pending[i]
			result.Processed++

			resp, err := s.client.CreateOrUpdateOrder(ctx, s.buildOrderRequest(o))
			if err != nil {
				var apiErr *shipstation.APIError
				if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
					return fmt.Errorf("ShipStation 认证失败: %w", err)
				}
				result.fail("order", o.ZohoSalesOrderID, err)
				continue
			}

			pushedAt := s.now()
			if err := s.orders.UpdateFields(ctx, o.ID, map[string]interface{}{
				"ship_station_order_id": resp.OrderID,
				"pushed_at":             pushedAt,
			}); err != nil {
				result.fail("order", o.ZohoSalesOrderID, err)
				continue
			}
			result.record(outcomeUpdated)
		}
		return nil
	})
}

func (s *ShippingService) buildOrderRequest(o *model.Order) *shipstation.OrderRequest {
	addr := addressFromMap(o.ShippingAddress)
	if addr.Name == "" {
		addr.Name = o.CustomerName
	}

	orderDate := o.CreatedAt
	if o.OrderDate != nil {
		orderDate = *o.OrderDate
	}

	req := &shipstation.OrderRequest{
		OrderNumber:   o.SalesOrderNumber,
		OrderKey:      o.ZohoSalesOrderID,
		OrderDate:     orderDate.Format("2006-01-02T15:04:05"),
		OrderStatus:   "awaiting_shipment",
		CustomerEmail: o.CustomerEmail,
		BillTo:        addr,
		ShipTo:        addr,
		AmountPaid:    o.Total.InexactFloat64(),
	}
	if s.cfg.StoreID > 0 {
		req.AdvancedOptions = &shipstation.AdvancedOptions{StoreID: s.cfg.StoreID}
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, shipstation.OrderItem{
			LineItemKey: it.ZohoLineItemID,
			SKU:         it.SKU,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Rate.InexactFloat64(),
		})
	}
	return req
}

func addressFromMap(m map[string]interface{}) shipstation.Address {
	get := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	return shipstation.Address{
		Name:       get("name"),
		Street1:    get("street1"),
		Street2:    get("street2"),
		City:       get("city"),
		State:      get("state"),
		PostalCode: get("zip"),
		Country:    get("country"),
		Phone:      get("phone"),
	}
}

// ==================== 物流回传 ====================

// PullShipments 拉取运单并回写物流单号
// since 为空时使用上次成功回传的开始时间，没有历史则回看 LookbackDays 天
func (s *ShippingService) PullShipments(ctx context.Context, since *time.Time) (*SyncResult, error) {
	return s.run(ctx, model.ResourceShipments, model.SyncModeIncremental, func(ctx context.Context, result *SyncResult) error {
		start := since
		if start == nil {
			last, err := s.runs.LastSuccessful(ctx, model.ResourceShipments)
			if err != nil {
				return fmt.Errorf("查询上次回传记录失败: %w", err)
			}
			if last != nil {
				t := last.StartedAt
				start = &t
			} else {
				t := s.now().AddDate(0, 0, -s.cfg.LookbackDays)
				start = &t
			}
		}

		for page := 1; page <= s.cfg.PageLimit; page++ {
			if page > 1 {
				if err := renewLease(ctx); err != nil {
					return err
				}
			}
			resp, err := s.client.ListShipments(ctx, shipstation.ShipmentFilter{
				ShipDateStart: start,
				Page:          page,
				PageSize:      s.cfg.PageSize,
			})
			if err != nil {
				return fmt.Errorf("获取运单第 %d 页失败: %w", page, err)
			}
			for _, sh := range resp.Shipments {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result.Processed++
				o, err := s.applyShipment(ctx, sh)
				if err != nil {
					result.fail("shipment", fmt.Sprint(sh.ShipmentID), err)
					continue
				}
				result.record(o)
			}
			if !resp.HasMore() {
				break
			}
		}
		return nil
	})
}

// applyShipment 作废运单和找不到本地订单的运单跳过
func (s *ShippingService) applyShipment(ctx context.Context, sh shipstation.Shipment) (outcome, error) {
	if sh.Voided || strings.TrimSpace(sh.TrackingNumber) == "" {
		return outcomeSkipped, nil
	}

	order, err := s.findOrder(ctx, sh)
	if err != nil {
		return 0, err
	}
	if order == nil {
		return outcomeSkipped, nil
	}
	if order.TrackingNumber == sh.TrackingNumber && order.Carrier == sh.CarrierCode && order.Status == model.OrderStatusShipped {
		return outcomeSkipped, nil
	}

	fields := map[string]interface{}{
		"tracking_number": sh.TrackingNumber,
		"carrier":         sh.CarrierCode,
		"status":          model.OrderStatusShipped,
	}
	if at := sh.ShippedAt(); at != nil {
		fields["shipped_at"] = *at
	}
	if order.ShipStationOrderID == nil && sh.OrderID != 0 {
		fields["ship_station_order_id"] = sh.OrderID
	}
	if err := s.orders.UpdateFields(ctx, order.ID, fields); err != nil {
		return 0, fmt.Errorf("更新订单物流失败: %w", err)
	}
	return outcomeUpdated, nil
}

func (s *ShippingService) findOrder(ctx context.Context, sh shipstation.Shipment) (*model.Order, error) {
	if sh.OrderKey != "" {
		o, err := s.orders.FindByZohoID(ctx, sh.OrderKey)
		if err != nil || o != nil {
			return o, err
		}
	}
	if sh.OrderNumber != "" {
		return s.orders.FindByNumber(ctx, sh.OrderNumber)
	}
	return nil, nil
}

