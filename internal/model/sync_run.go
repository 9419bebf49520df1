package model

import "time"

// 同步资源类型
const (
	ResourceProducts   = "products"
	ResourceCategories = "categories"
	ResourceOrders     = "orders"
	ResourceInventory  = "inventory"
	ResourceAirtable   = "airtable"
	ResourceShipments  = "shipments"
	ResourceOrderPush  = "order_push"
)

// 同步模式
const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
	SyncModeSingle      = "single"
)

// SyncRun 单次同步运行记录
// 用于健康检查的时效判断和增量同步游标
type SyncRun struct {
	BaseModel
	Resource    string     `gorm:"size:32;index:idx_sync_run_resource;not null" json:"resource"`
	Mode        string     `gorm:"size:16" json:"mode"`
	StartedAt   time.Time  `gorm:"index:idx_sync_run_resource" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Success     bool       `gorm:"index" json:"success"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Message     string     `gorm:"size:512" json:"message"`
	ErrorSample string     `gorm:"type:text" json:"error_sample"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
