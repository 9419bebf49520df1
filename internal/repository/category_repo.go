package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vipsmoke_erp/internal/model"
)

// ==================== 分类仓储 ====================

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	FindByZohoID(ctx context.Context, zohoCategoryID string) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, category *model.Category) error
	List(ctx context.Context) ([]model.Category, error)
}

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) FindByZohoID(ctx context.Context, zohoCategoryID string) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("zoho_category_id = ?", zohoCategoryID).First(&c).Error
	return notFoundAsNil(&c, err)
}

func (r *categoryRepo) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error
	return notFoundAsNil(&c, err)
}

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepo) Update(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *categoryRepo) List(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

// ==================== 品牌仓储 ====================

// BrandRepository 品牌仓储接口
type BrandRepository interface {
	FindBySlug(ctx context.Context, slug string) (*model.Brand, error)
	// FirstOrCreate 按 slug 查找或创建，并发创建时以已存在的为准
	FirstOrCreate(ctx context.Context, brand *model.Brand) (*model.Brand, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Brand, error)
	List(ctx context.Context) ([]model.Brand, error)
}

type brandRepo struct {
	db *gorm.DB
}

// NewBrandRepository 创建品牌仓储
func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepo{db: db}
}

func (r *brandRepo) FindBySlug(ctx context.Context, slug string) (*model.Brand, error) {
	var b model.Brand
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&b).Error
	return notFoundAsNil(&b, err)
}

func (r *brandRepo) FirstOrCreate(ctx context.Context, brand *model.Brand) (*model.Brand, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(brand).Error
	if err != nil {
		return nil, err
	}
	return r.FindBySlug(ctx, brand.Slug)
}

func (r *brandRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Brand, error) {
	var b model.Brand
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *brandRepo) List(ctx context.Context) ([]model.Brand, error) {
	var list []model.Brand
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

// ==================== 工具 ====================

func notFoundAsNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
