package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_ingest_v1/internal/model"
)

// ==================== 接口定义 ====================

// SectorRepository 行业仓储接口
type SectorRepository interface {
	FindAll(ctx context.Context) ([]model.Sector, error)
	GetByName(ctx context.Context, name string) (*model.Sector, error)
	CreateIfAbsent(ctx context.Context, sector *model.Sector) (CreateResult, error)
	BulkCreate(ctx context.Context, sectors []model.Sector, batchSize int) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountDuplicateKeys(ctx context.Context) (int64, error)
}

// CategoryRepository 类目仓储接口
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]model.Category, error)
	GetByKey(ctx context.Context, sectorID int64, name string) (*model.Category, error)
	CreateIfAbsent(ctx context.Context, category *model.Category) (CreateResult, error)
	BulkCreate(ctx context.Context, categories []model.Category, batchSize int) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountDuplicateKeys(ctx context.Context) (int64, error)
}

// SubcategoryRepository 子类目仓储接口
type SubcategoryRepository interface {
	FindAll(ctx context.Context) ([]model.Subcategory, error)
	GetByKey(ctx context.Context, categoryID int64, name string) (*model.Subcategory, error)
	// Upsert 不存在则创建，存在则刷新 url
	Upsert(ctx context.Context, subcategory *model.Subcategory) (CreateResult, error)
	BulkCreate(ctx context.Context, subcategories []model.Subcategory, batchSize int) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountDuplicateKeys(ctx context.Context) (int64, error)
}

// ==================== Sector ====================

type sectorRepo struct {
	db *gorm.DB
}

// NewSectorRepository 创建行业仓储
func NewSectorRepository(db *gorm.DB) SectorRepository {
	return &sectorRepo{db: db}
}

func (r *sectorRepo) FindAll(ctx context.Context) ([]model.Sector, error) {
	var sectors []model.Sector
	err := r.db.WithContext(ctx).
		Select("id", "name").
		Find(&sectors).Error
	return sectors, err
}

func (r *sectorRepo) GetByName(ctx context.Context, name string) (*model.Sector, error) {
	var sector model.Sector
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&sector).Error
	if err != nil {
		return nil, err
	}
	return &sector, nil
}

func (r *sectorRepo) CreateIfAbsent(ctx context.Context, sector *model.Sector) (CreateResult, error) {
	return createIfAbsent(ctx, r.db, sector, []string{"name"}, func(ctx context.Context) (int64, error) {
		existing, err := r.GetByName(ctx, sector.Name)
		if err != nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

func (r *sectorRepo) BulkCreate(ctx context.Context, sectors []model.Sector, batchSize int) (int64, error) {
	return bulkCreate(ctx, r.db, sectors, batchSize)
}

func (r *sectorRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Sector{}).Count(&n).Error
	return n, err
}

func (r *sectorRepo) CountDuplicateKeys(ctx context.Context) (int64, error) {
	return countDuplicateKeys(ctx, r.db, &model.Sector{}, "name")
}

// ==================== Category ====================

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建类目仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) FindAll(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Select("id", "sector_id", "name").
		Find(&categories).Error
	return categories, err
}

func (r *categoryRepo) GetByKey(ctx context.Context, sectorID int64, name string) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).
		Where("sector_id = ? AND name = ?", sectorID, name).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) CreateIfAbsent(ctx context.Context, category *model.Category) (CreateResult, error) {
	return createIfAbsent(ctx, r.db, category, []string{"sector_id", "name"}, func(ctx context.Context) (int64, error) {
		existing, err := r.GetByKey(ctx, category.SectorID, category.Name)
		if err != nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

func (r *categoryRepo) BulkCreate(ctx context.Context, categories []model.Category, batchSize int) (int64, error) {
	return bulkCreate(ctx, r.db, categories, batchSize)
}

func (r *categoryRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Category{}).Count(&n).Error
	return n, err
}

func (r *categoryRepo) CountDuplicateKeys(ctx context.Context) (int64, error) {
	return countDuplicateKeys(ctx, r.db, &model.Category{}, "sector_id", "name")
}

// ==================== Subcategory ====================

type subcategoryRepo struct {
	db *gorm.DB
}

// NewSubcategoryRepository 创建子类目仓储
func NewSubcategoryRepository(db *gorm.DB) SubcategoryRepository {
	return &subcategoryRepo{db: db}
}

func (r *subcategoryRepo) FindAll(ctx context.Context) ([]model.Subcategory, error) {
	var subcategories []model.Subcategory
	err := r.db.WithContext(ctx).
		Select("id", "category_id", "name").
		Find(&subcategories).Error
	return subcategories, err
}

func (r *subcategoryRepo) GetByKey(ctx context.Context, categoryID int64, name string) (*model.Subcategory, error) {
	var subcategory model.Subcategory
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND name = ?", categoryID, name).
		First(&subcategory).Error
	if err != nil {
		return nil, err
	}
	return &subcategory, nil
}

func (r *subcategoryRepo) Upsert(ctx context.Context, subcategory *model.Subcategory) (CreateResult, error) {
	result, err := createIfAbsent(ctx, r.db, subcategory, []string{"category_id", "name"}, func(ctx context.Context) (int64, error) {
		existing, err := r.GetByKey(ctx, subcategory.CategoryID, subcategory.Name)
		if err != nil {
			return 0, err
		}
		return existing.ID, nil
	})
	if err != nil || result.Outcome == OutcomeCreated {
		return result, err
	}

	err = r.db.WithContext(ctx).
		Model(&model.Subcategory{}).
		Where("id = ?", result.ID).
		Update("url", subcategory.URL).Error
	return result, err
}

func (r *subcategoryRepo) BulkCreate(ctx context.Context, subcategories []model.Subcategory, batchSize int) (int64, error) {
	return bulkCreate(ctx, r.db, subcategories, batchSize)
}

func (r *subcategoryRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Subcategory{}).Count(&n).Error
	return n, err
}

func (r *subcategoryRepo) CountDuplicateKeys(ctx context.Context) (int64, error) {
	return countDuplicateKeys(ctx, r.db, &model.Subcategory{}, "category_id", "name")
}
