package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog_ingest_v1/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	// BulkInsert 单条多行 INSERT，冲突行跳过；返回实际写入行数
	BulkInsert(ctx context.Context, products []model.Product) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountOrphans(ctx context.Context) (OrphanStats, error)
}

// OrphanStats 外键悬空统计
type OrphanStats struct {
	MissingSubcategory int64
	MissingSupplier    int64
}

// Total 悬空行总数
func (s OrphanStats) Total() int64 {
	return s.MissingSubcategory + s.MissingSupplier
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) BulkInsert(ctx context.Context, products []model.Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&products)
	return res.RowsAffected, res.Error
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&n).Error
	return n, err
}

func (r *productRepo) CountOrphans(ctx context.Context) (OrphanStats, error) {
	var stats OrphanStats

	err := r.db.WithContext(ctx).
		Table("products AS p").
		Joins("LEFT JOIN subcategories AS s ON s.id = p.subcategory_id").
		Where("s.id IS NULL").
		Count(&stats.MissingSubcategory).Error
	if err != nil {
		return stats, err
	}

	err = r.db.WithContext(ctx).
		Table("products AS p").
		Joins("LEFT JOIN suppliers AS s ON s.id = p.supplier_id").
		Where("s.id IS NULL").
		Count(&stats.MissingSupplier).Error
	return stats, err
}
