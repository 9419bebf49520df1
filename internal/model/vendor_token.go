package model

import "time"

// Token 状态常量
const (
	TokenStatusValid   = "valid"
	TokenStatusInvalid = "auth_invalid" // 需重新授权
)

// 供应商标识
const (
	VendorZoho = "zoho"
)

// VendorToken 供应商 OAuth 令牌，每个供应商一行
type VendorToken struct {
	BaseModel
	Vendor       string    `gorm:"size:32;uniqueIndex;not null"`
	AccessToken  string    `gorm:"type:text"`
	RefreshToken string    `gorm:"type:text"`
	ExpiresAt    time.Time `gorm:"index"`
	Status       string    `gorm:"size:20;default:valid"`
	LastError    string    `gorm:"size:1024"`
}

func (VendorToken) TableName() string {
	return "vendor_tokens"
}
