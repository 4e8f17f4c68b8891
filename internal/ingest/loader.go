package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/model"
	"catalog_ingest_v1/internal/repository"
)

// EntityCounts 各表行数
type EntityCounts struct {
	Sectors       int64 `json:"sectors"`
	Categories    int64 `json:"categories"`
	Subcategories int64 `json:"subcategories"`
	Suppliers     int64 `json:"suppliers"`
	Products      int64 `json:"products"`
}

// Loader 导入流程对数据库的全部写入与加载
type Loader struct {
	repo            *repository.Catalog
	keys            KeyBuilder
	entityBatchSize int
	logger          *zap.Logger
}

var _ KeySource = (*Loader)(nil)

// NewLoader 创建写入器
func NewLoader(repo *repository.Catalog, keys KeyBuilder, entityBatchSize int, logger *zap.Logger) *Loader {
	if entityBatchSize <= 0 {
		entityBatchSize = 1000
	}
	return &Loader{
		repo:            repo,
		keys:            keys,
		entityBatchSize: entityBatchSize,
		logger:          logger,
	}
}

// ==================== 加载 ====================

// LoadKeys 从数据库加载某类实体的 key → id 映射，键格式与 KeyBuilder 一致
func (l *Loader) LoadKeys(ctx context.Context, entity EntityType) (map[string]int64, error) {
	switch entity {
	case EntitySector:
		rows, err := l.repo.Sectors.FindAll(ctx)
		if err != nil {
			return nil, storeError("load sectors", err)
		}
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[SectorKey(r.Name)] = r.ID
		}
		return m, nil

	case EntityCategory:
		rows, err := l.repo.Categories.FindAll(ctx)
		if err != nil {
			return nil, storeError("load categories", err)
		}
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[CategoryKey(r.SectorID, r.Name)] = r.ID
		}
		return m, nil

	case EntitySubcategory:
		rows, err := l.repo.Subcategories.FindAll(ctx)
		if err != nil {
			return nil, storeError("load subcategories", err)
		}
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[SubcategoryKey(r.CategoryID, r.Name)] = r.ID
		}
		return m, nil

	case EntitySupplier:
		rows, err := l.repo.Suppliers.FindAll(ctx)
		if err != nil {
			return nil, storeError("load suppliers", err)
		}
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[r.IdentityKey] = r.ID
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown entity type %d", entity)
	}
}

// ==================== 单行创建（流式） ====================

func (l *Loader) EnsureSector(ctx context.Context, name string) (repository.CreateResult, error) {
	res, err := l.repo.Sectors.CreateIfAbsent(ctx, &model.Sector{Name: name})
	return res, storeError("create sector", err)
}

func (l *Loader) EnsureCategory(ctx context.Context, sectorID int64, name string) (repository.CreateResult, error) {
	res, err := l.repo.Categories.CreateIfAbsent(ctx, &model.Category{SectorID: sectorID, Name: name})
	return res, storeError("create category", err)
}

func (l *Loader) UpsertSubcategory(ctx context.Context, categoryID int64, name, url string) (repository.CreateResult, error) {
	res, err := l.repo.Subcategories.Upsert(ctx, &model.Subcategory{CategoryID: categoryID, Name: name, URL: url})
	return res, storeError("upsert subcategory", err)
}

func (l *Loader) UpsertSupplier(ctx context.Context, s feed.SupplierFields) (repository.CreateResult, error) {
	row := l.SupplierRow(s)
	res, err := l.repo.Suppliers.Upsert(ctx, &row)
	return res, storeError("upsert supplier", err)
}

// InsertProduct 单行插入
func (l *Loader) InsertProduct(ctx context.Context, p *model.Product) error {
	return storeError("insert product", l.repo.Products.Create(ctx, p))
}

// ==================== 批量创建 ====================

func (l *Loader) BulkCreateSectors(ctx context.Context, rows []model.Sector) (int64, error) {
	n, err := l.repo.Sectors.BulkCreate(ctx, rows, l.entityBatchSize)
	return n, storeError("bulk create sectors", err)
}

func (l *Loader) BulkCreateCategories(ctx context.Context, rows []model.Category) (int64, error) {
	n, err := l.repo.Categories.BulkCreate(ctx, rows, l.entityBatchSize)
	return n, storeError("bulk create categories", err)
}

func (l *Loader) BulkCreateSubcategories(ctx context.Context, rows []model.Subcategory) (int64, error) {
	n, err := l.repo.Subcategories.BulkCreate(ctx, rows, l.entityBatchSize)
	return n, storeError("bulk create subcategories", err)
}

func (l *Loader) BulkCreateSuppliers(ctx context.Context, rows []model.Supplier) (int64, error) {
	n, err := l.repo.Suppliers.BulkCreate(ctx, rows, l.entityBatchSize)
	return n, storeError("bulk create suppliers", err)
}

// InsertProducts 一个多行 INSERT，返回实际写入行数
func (l *Loader) InsertProducts(ctx context.Context, rows []model.Product) (int64, error) {
	n, err := l.repo.Products.BulkInsert(ctx, rows)
	return n, storeError("insert products", err)
}

// ==================== 辅助 ====================

// SupplierRow 由数据源字段构造供应商行
func (l *Loader) SupplierRow(s feed.SupplierFields) model.Supplier {
	return model.Supplier{
		IdentityKey: l.keys.SupplierKey(s),
		Name:        s.Name,
		Location:    s.Location,
		TaxID:       s.TaxID,
		Mobile:      EffectiveMobile(s),
		Email:       s.Email,
		Website:     s.Website,
	}
}

// Counts 各表行数
func (l *Loader) Counts(ctx context.Context) (EntityCounts, error) {
	var c EntityCounts
	var err error

	if c.Sectors, err = l.repo.Sectors.Count(ctx); err != nil {
		return c, storeError("count sectors", err)
	}
	if c.Categories, err = l.repo.Categories.Count(ctx); err != nil {
		return c, storeError("count categories", err)
	}
	if c.Subcategories, err = l.repo.Subcategories.Count(ctx); err != nil {
		return c, storeError("count subcategories", err)
	}
	if c.Suppliers, err = l.repo.Suppliers.Count(ctx); err != nil {
		return c, storeError("count suppliers", err)
	}
	if c.Products, err = l.repo.Products.Count(ctx); err != nil {
		return c, storeError("count products", err)
	}
	return c, nil
}

// productRow 由记录与解析结果构造商品行
func productRow(rec feed.Record, res Resolution) model.Product {
	return model.Product{
		Name:             rec.Product.Name,
		ImageURL:         rec.Product.ImageURL,
		Price:            rec.Product.Price,
		PriceUnit:        rec.Product.PriceUnit,
		Brand:            rec.Product.Brand,
		ProductDetailURL: rec.Product.ProductDetailURL,
		Specifications:   rec.Product.Specifications,
		SubcategoryID:    res.SubcategoryID,
		SupplierID:       res.SupplierID,
	}
}
