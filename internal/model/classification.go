package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductClassification 商品合规分类，可随时重新生成
type ProductClassification struct {
	BaseModel
	ProductID          uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null" json:"product_id"`
	Category           string                      `gorm:"size:32;index" json:"category"`
	SubstanceType      string                      `gorm:"size:64" json:"substance_type"`
	Confidence         float64                     `json:"confidence"`
	RiskLevel          string                      `gorm:"size:16;index" json:"risk_level"`
	RequiredCompliance datatypes.JSONSlice[string] `json:"required_compliance"`
	Reasoning          string                      `gorm:"type:text" json:"reasoning"`
	Source             string                      `gorm:"size:16" json:"source"` // ai / keyword
	ClassifiedAt       time.Time                   `json:"classified_at"`
}

func (ProductClassification) TableName() string {
	return "product_classifications"
}

// ProductEmbedding 商品向量缓存，内容哈希变化时重算
type ProductEmbedding struct {
	BaseModel
	ProductID   uuid.UUID                    `gorm:"type:uuid;uniqueIndex;not null"`
	ModelName   string                       `gorm:"size:64"`
	ContentHash string                       `gorm:"size:64"`
	Vector      datatypes.JSONSlice[float32]
}

func (ProductEmbedding) TableName() string {
	return "product_embeddings"
}
