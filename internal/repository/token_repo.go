package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vipsmoke_erp/internal/model"
)

// TokenRepository 供应商令牌仓储
type TokenRepository interface {
	Get(ctx context.Context, vendor string) (*model.VendorToken, error)
	Save(ctx context.Context, token *model.VendorToken) error
	MarkInvalid(ctx context.Context, vendor, reason string) error
}

type tokenRepo struct {
	db *gorm.DB
}

// NewTokenRepository 创建令牌仓储
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) Get(ctx context.Context, vendor string) (*model.VendorToken, error) {
	var t model.VendorToken
	err := r.db.WithContext(ctx).Where("vendor = ?", vendor).First(&t).Error
	return notFoundAsNil(&t, err)
}

// Save 按 vendor 覆盖写入
func (r *tokenRepo) Save(ctx context.Context, token *model.VendorToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "status", "last_error", "updated_at"}),
		}).
		Create(token).Error
}

func (r *tokenRepo) MarkInvalid(ctx context.Context, vendor, reason string) error {
	if len(reason) > 1000 {
		reason = reason[:1000]
	}
	return r.db.WithContext(ctx).
		Model(&model.VendorToken{}).
		Where("vendor = ?", vendor).
		Updates(map[string]interface{}{
			"status":     model.TokenStatusInvalid,
			"last_error": reason,
		}).Error
}
