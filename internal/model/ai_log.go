package model

import "github.com/google/uuid"

// AICallLog AI调用日志
type AICallLog struct {
	BaseModel

	ProductID *uuid.UUID `gorm:"type:uuid;index;comment:商品ID"`

	// 调用信息
	CallType  string `gorm:"size:32;index;comment:调用类型(text/vision/embedding)"`
	Purpose   string `gorm:"size:32;index;comment:用途(classify/coa/recommend)"`
	ModelName string `gorm:"size:64;comment:模型名称"`

	// 用量统计
	InputTokens  int `gorm:"default:0;comment:输入token数"`
	OutputTokens int `gorm:"default:0;comment:输出token数"`

	DurationMs int64 `gorm:"comment:耗时(毫秒)"`

	// 状态
	Status   string `gorm:"size:32;index;default:success;comment:状态(success/failed)"`
	ErrorMsg string `gorm:"size:1024;comment:错误信息"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用类型常量 ====================

const (
	AICallTypeText      = "text"
	AICallTypeVision    = "vision"
	AICallTypeEmbedding = "embedding"
)

// ==================== 用途常量 ====================

const (
	AIPurposeClassify  = "classify"
	AIPurposeCOA       = "coa"
	AIPurposeRecommend = "recommend"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&Category{},
		&Brand{},
		&Product{},
		&Order{},
		&OrderItem{},
		&VendorToken{},
		&SyncRun{},
		&ProductClassification{},
		&ProductEmbedding{},
		&AICallLog{},
	}
}
