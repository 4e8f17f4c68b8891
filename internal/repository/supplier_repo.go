package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_ingest_v1/internal/model"
)

// SupplierRepository 供应商仓储接口
type SupplierRepository interface {
	// FindAll 只加载 id 与 identity_key，用于预热缓存
	FindAll(ctx context.Context) ([]model.Supplier, error)
	GetByIdentity(ctx context.Context, identityKey string) (*model.Supplier, error)
	CreateIfAbsent(ctx context.Context, supplier *model.Supplier) (CreateResult, error)
	// Upsert 不存在则创建，存在则刷新联系信息（location/email/website）
	Upsert(ctx context.Context, supplier *model.Supplier) (CreateResult, error)
	BulkCreate(ctx context.Context, suppliers []model.Supplier, batchSize int) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountDuplicateKeys(ctx context.Context) (int64, error)
}

type supplierRepo struct {
	db *gorm.DB
}

// NewSupplierRepository 创建供应商仓储
func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepo{db: db}
}

func (r *supplierRepo) FindAll(ctx context.Context) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	err := r.db.WithContext(ctx).
		Select("id", "identity_key").
		Find(&suppliers).Error
	return suppliers, err
}

func (r *supplierRepo) GetByIdentity(ctx context.Context, identityKey string) (*model.Supplier, error) {
	var supplier model.Supplier
	err := r.db.WithContext(ctx).
		Where("identity_key = ?", identityKey).
		First(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepo) CreateIfAbsent(ctx context.Context, supplier *model.Supplier) (CreateResult, error) {
	return createIfAbsent(ctx, r.db, supplier, []string{"identity_key"}, func(ctx context.Context) (int64, error) {
		existing, err := r.GetByIdentity(ctx, supplier.IdentityKey)
		if err != nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

func (r *supplierRepo) Upsert(ctx context.Context, supplier *model.Supplier) (CreateResult, error) {
	result, err := r.CreateIfAbsent(ctx, supplier)
	if err != nil || result.Outcome == OutcomeCreated {
		return result, err
	}

	err = r.db.WithContext(ctx).
		Model(&model.Supplier{}).
		Where("id = ?", result.ID).
		Updates(map[string]interface{}{
			"location": supplier.Location,
			"email":    supplier.Email,
			"website":  supplier.Website,
		}).Error
	return result, err
}

func (r *supplierRepo) BulkCreate(ctx context.Context, suppliers []model.Supplier, batchSize int) (int64, error) {
	return bulkCreate(ctx, r.db, suppliers, batchSize)
}

func (r *supplierRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Supplier{}).Count(&n).Error
	return n, err
}

func (r *supplierRepo) CountDuplicateKeys(ctx context.Context) (int64, error) {
	return countDuplicateKeys(ctx, r.db, &model.Supplier{}, "identity_key")
}
