package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vipsmoke_erp/internal/model"
)

// SyncRunRepository 同步运行记录仓储
type SyncRunRepository interface {
	Create(ctx context.Context, run *model.SyncRun) error
	Update(ctx context.Context, run *model.SyncRun) error
	// LastSuccessful 某资源最近一次成功的运行，无记录返回 nil, nil
	LastSuccessful(ctx context.Context, resource string) (*model.SyncRun, error)
	Recent(ctx context.Context, resource string, limit int) ([]model.SyncRun, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type syncRunRepo struct {
	db *gorm.DB
}

// NewSyncRunRepository 创建同步运行记录仓储
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepo{db: db}
}

func (r *syncRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncRunRepo) Update(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *syncRunRepo) LastSuccessful(ctx context.Context, resource string) (*model.SyncRun, error) {
	var run model.SyncRun
	err := r.db.WithContext(ctx).
		Where("resource = ? AND success = ?", resource, true).
		Where("finished_at IS NOT NULL").
		Order("started_at DESC").
		First(&run).Error
	return notFoundAsNil(&run, err)
}

func (r *syncRunRepo) Recent(ctx context.Context, resource string, limit int) ([]model.SyncRun, error) {
	var runs []model.SyncRun
	query := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if resource != "" {
		query = query.Where("resource = ?", resource)
	}
	err := query.Find(&runs).Error
	return runs, err
}

func (r *syncRunRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("started_at < ?", before).
		Delete(&model.SyncRun{})
	return result.RowsAffected, result.Error
}
