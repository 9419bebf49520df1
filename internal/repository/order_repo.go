package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vipsmoke_erp/internal/model"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	FindByZohoID(ctx context.Context, zohoSalesOrderID string) (*model.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Save 新建或覆盖订单，订单行整体替换
	Save(ctx context.Context, order *model.Order) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	ListPendingPush(ctx context.Context, limit int) ([]model.Order, error)
	FindByNumber(ctx context.Context, salesOrderNumber string) (*model.Order, error)
}

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) FindByZohoID(ctx context.Context, zohoSalesOrderID string) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("zoho_sales_order_id = ?", zohoSalesOrderID).
		First(&o).Error
	return notFoundAsNil(&o, err)
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByNumber(ctx context.Context, salesOrderNumber string) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("sales_order_number = ?", salesOrderNumber).First(&o).Error
	return notFoundAsNil(&o, err)
}

func (r *orderRepo) Save(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		order.Items = nil

		if err := tx.Save(order).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = uuid.Nil
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
}

func (r *orderRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListPendingPush 已确认但尚未推送到 ShipStation 的订单
func (r *orderRepo) ListPendingPush(ctx context.Context, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("ship_station_order_id IS NULL").
		Where("status IN ?", []string{model.OrderStatusConfirmed, model.OrderStatusDraft}).
		Order("order_date ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
