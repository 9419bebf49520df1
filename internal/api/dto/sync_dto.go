package dto

import (
	"fmt"
	"strings"
	"time"
)

// Request DTO

// SyncProductsReq 商品同步请求
type SyncProductsReq struct {
	FullSync bool   `json:"fullSync"`
	Since    string `json:"since"` // 可选，RFC3339 或 2006-01-02
}

// SyncOrdersReq 订单同步请求
type SyncOrdersReq struct {
	StartDate string `json:"startDate"` // 可选，2006-01-02
}

// SyncShipmentsReq 物流同步请求
type SyncShipmentsReq struct {
	Direction string `json:"direction" binding:"omitempty,oneof=push pull both"`
	Since     string `json:"since"`
}

// ClassifyBatchReq 批量分类请求
type ClassifyBatchReq struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=500"`
}

// Response DTO

// SyncResp 同步类接口统一响应
type SyncResp struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
}

// ParseDate 解析日期参数，空串返回 nil
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("无效的日期: %s", s)
}
