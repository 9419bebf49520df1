package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vipsmoke_erp/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)

	// 自然键查询，未找到返回 nil, nil
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	FindByZohoItemID(ctx context.Context, itemID string) (*model.Product, error)
	FindByNaturalKey(ctx context.Context, sku, zohoItemID *string) (*model.Product, error)

	// 批量查询
	ListAll(ctx context.Context) ([]*model.Product, error)
	ListUnclassified(ctx context.Context, limit int) ([]model.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)

	// 库存
	UpdateStockByZohoItemID(ctx context.Context, itemID string, stock int) (bool, error)

	// 统计
	Count(ctx context.Context) (int64, error)
	CountDuplicateSKUs(ctx context.Context) (int64, error)

	// 事务
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error
}

// ==================== 过滤条件 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	Keyword       string
	Status        string
	CategoryID    *uuid.UUID
	BrandID       *uuid.UUID
	AgeRestricted *bool
	Page          int
	PageSize      int
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Brand").Save(product).Error
}

func (r *productRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{})

	if filter.Keyword != "" {
		kw := "%" + strings.ToLower(filter.Keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", kw, kw)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.BrandID != nil {
		query = query.Where("brand_id = ?", *filter.BrandID)
	}
	if filter.AgeRestricted != nil {
		query = query.Where("is_age_restricted = ?", *filter.AgeRestricted)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := query.
		Order("updated_at DESC").
		Offset(offset).
		Limit(filter.PageSize).
		Find(&products).Error

	return products, total, err
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return r.findOne(ctx, "sku = ?", sku)
}

func (r *productRepo) FindByZohoItemID(ctx context.Context, itemID string) (*model.Product, error) {
	return r.findOne(ctx, "zoho_item_id = ?", itemID)
}

// FindByNaturalKey 先按 SKU 查找，未命中再按 Zoho 商品 ID
func (r *productRepo) FindByNaturalKey(ctx context.Context, sku, zohoItemID *string) (*model.Product, error) {
	if sku != nil && *sku != "" {
		p, err := r.FindBySKU(ctx, *sku)
		if err != nil || p != nil {
			return p, err
		}
	}
	if zohoItemID != nil && *zohoItemID != "" {
		return r.FindByZohoItemID(ctx, *zohoItemID)
	}
	return nil, nil
}

func (r *productRepo) findOne(ctx context.Context, cond string, args ...interface{}) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where(cond, args...).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Preload("Brand").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListUnclassified(ctx context.Context, limit int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Where("id NOT IN (?)", r.db.Model(&model.ProductClassification{}).Select("product_id")).
		Order("created_at ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []model.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

// UpdateStockByZohoItemID 更新库存，返回是否命中本地商品
func (r *productRepo) UpdateStockByZohoItemID(ctx context.Context, itemID string, stock int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("zoho_item_id = ?", itemID).
		Update("stock", stock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error
	return count, err
}

// CountDuplicateSKUs 统计出现多次的非空 SKU 数量
func (r *productRepo) CountDuplicateSKUs(ctx context.Context) (int64, error) {
	var count int64
	sub := r.db.Model(&model.Product{}).
		Select("sku").
		Where("sku IS NOT NULL").
		Group("sku").
		Having("COUNT(*) > 1")
	err := r.db.WithContext(ctx).Table("(?) AS dup", sub).Count(&count).Error
	return count, err
}

// ==================== 事务支持 ====================

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
