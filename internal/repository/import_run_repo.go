package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_ingest_v1/internal/model"
)

// ImportRunRepository 导入审计记录仓储
type ImportRunRepository interface {
	Create(ctx context.Context, run *model.ImportRun) error
	Update(ctx context.Context, run *model.ImportRun) error
	GetByRunID(ctx context.Context, runID string) (*model.ImportRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.ImportRun, error)
}

type importRunRepo struct {
	db *gorm.DB
}

// NewImportRunRepository 创建导入审计仓储
func NewImportRunRepository(db *gorm.DB) ImportRunRepository {
	return &importRunRepo{db: db}
}

func (r *importRunRepo) Create(ctx context.Context, run *model.ImportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *importRunRepo) Update(ctx context.Context, run *model.ImportRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *importRunRepo) GetByRunID(ctx context.Context, runID string) (*model.ImportRun, error) {
	var run model.ImportRun
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *importRunRepo) ListRecent(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []model.ImportRun
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
