package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vipsmoke_erp/internal/model"
)

// ==================== 合规分类 ====================

// ClassificationRepository 合规分类仓储
type ClassificationRepository interface {
	Upsert(ctx context.Context, c *model.ProductClassification) error
	GetByProductID(ctx context.Context, productID uuid.UUID) (*model.ProductClassification, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type classificationRepo struct {
	db *gorm.DB
}

// NewClassificationRepository 创建合规分类仓储
func NewClassificationRepository(db *gorm.DB) ClassificationRepository {
	return &classificationRepo{db: db}
}

// Upsert 每个商品仅保留最新一次分类
func (r *classificationRepo) Upsert(ctx context.Context, c *model.ProductClassification) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"category", "substance_type", "confidence", "risk_level",
				"required_compliance", "reasoning", "source", "classified_at", "updated_at",
			}),
		}).
		Create(c).Error
}

func (r *classificationRepo) GetByProductID(ctx context.Context, productID uuid.UUID) (*model.ProductClassification, error) {
	var c model.ProductClassification
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&c).Error
	return notFoundAsNil(&c, err)
}

func (r *classificationRepo) CountByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Category string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.ProductClassification{}).
		Select("category, COUNT(*) as count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Count
	}
	return out, nil
}

// ==================== 向量缓存 ====================

// EmbeddingRepository 商品向量仓储
type EmbeddingRepository interface {
	Get(ctx context.Context, productID uuid.UUID) (*model.ProductEmbedding, error)
	Upsert(ctx context.Context, e *model.ProductEmbedding) error
	ListByModel(ctx context.Context, modelName string) ([]model.ProductEmbedding, error)
}

type embeddingRepo struct {
	db *gorm.DB
}

// NewEmbeddingRepository 创建向量仓储
func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepo{db: db}
}

func (r *embeddingRepo) Get(ctx context.Context, productID uuid.UUID) (*model.ProductEmbedding, error) {
	var e model.ProductEmbedding
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&e).Error
	return notFoundAsNil(&e, err)
}

func (r *embeddingRepo) Upsert(ctx context.Context, e *model.ProductEmbedding) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"model_name", "content_hash", "vector", "updated_at"}),
		}).
		Create(e).Error
}

func (r *embeddingRepo) ListByModel(ctx context.Context, modelName string) ([]model.ProductEmbedding, error) {
	var list []model.ProductEmbedding
	err := r.db.WithContext(ctx).Where("model_name = ?", modelName).Find(&list).Error
	return list, err
}
