package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/model"
)

// Bulk 先分析后批量：一次只读扫描收集缺失的层级与供应商，
// 按层级批量创建并重载缓存，最后只查缓存解析商品并分块写入
// 任一批量步骤失败即中止运行
type Bulk struct {
	runDeps
	productBatchSize int
	verifyReload     bool

	records []feed.Record
	created CreatedCounts
}

var _ Strategy = (*Bulk)(nil)

func newBulk(d runDeps, productBatchSize int, verifyReload bool) *Bulk {
	return &Bulk{
		runDeps:          d,
		productBatchSize: productBatchSize,
		verifyReload:     verifyReload,
	}
}

func (b *Bulk) Name() string {
	return StrategyBulk
}

// 名称元组：新建的上级节点在重载前没有 ID，先按名称收集
type categoryName struct {
	sector, category string
}

type subcategoryName struct {
	sector, category, subcategory string
}

// missingSet 扫描结果，保持首次出现的顺序
type missingSet struct {
	sectors       []string
	categories    []categoryName
	subcategories []subcategoryName
	subURLs       map[subcategoryName]string
	suppliers     []model.Supplier

	seenSector      map[string]struct{}
	seenCategory    map[categoryName]struct{}
	seenSupplierKey map[string]struct{}
}

func newMissingSet() *missingSet {
	return &missingSet{
		subURLs:         make(map[subcategoryName]string),
		seenSector:      make(map[string]struct{}),
		seenCategory:    make(map[categoryName]struct{}),
		seenSupplierKey: make(map[string]struct{}),
	}
}

func (b *Bulk) Run(ctx context.Context) error {
	steps := []struct {
		phase string
		fn    func(ctx context.Context) error
	}{
		{"load_existing", b.loadExisting},
		{"scan", b.scan},
	}
	for _, step := range steps {
		b.progress.SetPhase(step.phase)
		if err := step.fn(ctx); err != nil {
			return phaseError(b.progress, step.phase, err)
		}
	}

	missing := b.collectMissing()
	b.logger.Info("scan finished",
		zap.Int("records", len(b.records)),
		zap.Int("new_sectors", len(missing.sectors)),
		zap.Int("category_candidates", len(missing.categories)),
		zap.Int("subcategory_candidates", len(missing.subcategories)),
		zap.Int("new_suppliers", len(missing.suppliers)))

	creates := []struct {
		phase  string
		entity EntityType
		create func(ctx context.Context) (int64, error)
		count  *int64
	}{
		{"bulk_create_sectors", EntitySector, func(ctx context.Context) (int64, error) {
			return b.loader.BulkCreateSectors(ctx, b.sectorRows(missing))
		}, &b.created.Sectors},
		{"bulk_create_categories", EntityCategory, func(ctx context.Context) (int64, error) {
			return b.loader.BulkCreateCategories(ctx, b.categoryRows(missing))
		}, &b.created.Categories},
		{"bulk_create_subcategories", EntitySubcategory, func(ctx context.Context) (int64, error) {
			return b.loader.BulkCreateSubcategories(ctx, b.subcategoryRows(missing))
		}, &b.created.Subcategories},
		{"bulk_create_suppliers", EntitySupplier, func(ctx context.Context) (int64, error) {
			return b.loader.BulkCreateSuppliers(ctx, missing.suppliers)
		}, &b.created.Suppliers},
	}
	for _, step := range creates {
		b.progress.SetPhase(step.phase)
		n, err := step.create(ctx)
		if err != nil {
			return phaseError(b.progress, step.phase, err)
		}
		*step.count = n
		b.progress.SetCreated(b.created)

		reload := "reload_" + step.entity.String() + "_cache"
		b.progress.SetPhase(reload)
		if err := b.reload(ctx, step.entity); err != nil {
			return phaseError(b.progress, reload, err)
		}
		b.logger.Info("level created",
			zap.String("entity", step.entity.String()),
			zap.Int64("created", n),
			zap.Int("cached", b.cache.Len(step.entity)))
	}

	b.progress.SetPhase("resolve_products")
	rows := b.resolveAll(ctx)

	b.progress.SetPhase("insert_products")
	if err := b.insertAll(ctx, rows); err != nil {
		return phaseError(b.progress, "insert_products", err)
	}
	return nil
}

// ==================== 分析 ====================

func (b *Bulk) loadExisting(ctx context.Context) error {
	if err := loadAllExisting(ctx, b.cache, b.loader); err != nil {
		return err
	}
	b.logger.Info("existing keys loaded", zap.Any("cache", b.cache.Sizes()))
	return nil
}

// scan 只读扫描全部文件，记录保留在内存中供后续解析
func (b *Bulk) scan(ctx context.Context) error {
	return b.walker.Walk(ctx, func(ctx context.Context, f feed.File, records []feed.Record) error {
		b.records = append(b.records, records...)
		b.progress.AddTotal(len(records))
		return nil
	})
}

// collectMissing 找出缓存中不存在的行业与供应商，以及全部类目/子类目名称元组
// 类目与子类目的上级 ID 要等上级层级创建并重载后才能确定，届时再过滤
func (b *Bulk) collectMissing() *missingSet {
	m := newMissingSet()
	for _, rec := range b.records {
		if Validate(rec) != nil || rec.Sector == "" || rec.Category == "" || rec.Subcategory == "" {
			continue
		}

		if _, seen := m.seenSector[rec.Sector]; !seen {
			m.seenSector[rec.Sector] = struct{}{}
			if _, ok := b.cache.Get(EntitySector, SectorKey(rec.Sector)); !ok {
				m.sectors = append(m.sectors, rec.Sector)
			}
		}

		cat := categoryName{rec.Sector, rec.Category}
		if _, seen := m.seenCategory[cat]; !seen {
			m.seenCategory[cat] = struct{}{}
			m.categories = append(m.categories, cat)
		}

		sub := subcategoryName{rec.Sector, rec.Category, rec.Subcategory}
		if _, seen := m.subURLs[sub]; !seen {
			m.subURLs[sub] = rec.SubcategoryURL
			m.subcategories = append(m.subcategories, sub)
		}

		key := b.keys.SupplierKey(rec.Supplier)
		if _, seen := m.seenSupplierKey[key]; !seen {
			m.seenSupplierKey[key] = struct{}{}
			if _, ok := b.cache.Get(EntitySupplier, key); !ok {
				m.suppliers = append(m.suppliers, b.loader.SupplierRow(rec.Supplier))
			}
		}
	}
	return m
}

func (b *Bulk) sectorRows(m *missingSet) []model.Sector {
	rows := make([]model.Sector, 0, len(m.sectors))
	for _, name := range m.sectors {
		rows = append(rows, model.Sector{Name: name})
	}
	return rows
}

// categoryRows 在行业缓存重载后执行，把名称元组翻译为 (sectorId, name)
func (b *Bulk) categoryRows(m *missingSet) []model.Category {
	var rows []model.Category
	for _, c := range m.categories {
		sectorID, ok := b.cache.Get(EntitySector, SectorKey(c.sector))
		if !ok {
			continue
		}
		if _, exists := b.cache.Get(EntityCategory, CategoryKey(sectorID, c.category)); exists {
			continue
		}
		rows = append(rows, model.Category{SectorID: sectorID, Name: c.category})
	}
	return rows
}

func (b *Bulk) subcategoryRows(m *missingSet) []model.Subcategory {
	var rows []model.Subcategory
	for _, s := range m.subcategories {
		categoryID, ok := b.categoryID(s.sector, s.category)
		if !ok {
			continue
		}
		if _, exists := b.cache.Get(EntitySubcategory, SubcategoryKey(categoryID, s.subcategory)); exists {
			continue
		}
		rows = append(rows, model.Subcategory{CategoryID: categoryID, Name: s.subcategory, URL: m.subURLs[s]})
	}
	return rows
}

func (b *Bulk) categoryID(sector, category string) (int64, bool) {
	sectorID, ok := b.cache.Get(EntitySector, SectorKey(sector))
	if !ok {
		return 0, false
	}
	return b.cache.Get(EntityCategory, CategoryKey(sectorID, category))
}

// reload 以数据库为准重建缓存；开启校验时逐个比对全部实体的缓存与数据库映射
func (b *Bulk) reload(ctx context.Context, entity EntityType) error {
	b.cache.Invalidate(entity)
	if err := b.cache.Reload(ctx, entity, b.loader); err != nil {
		return err
	}
	if !b.verifyReload {
		return nil
	}
	return VerifyCacheAgreement(ctx, b.cache, b.loader)
}

// ==================== 写入商品 ====================

// resolveAll 只查缓存解析全部记录，无法解析的记录计入跳过，原文无效的记录计入失败
func (b *Bulk) resolveAll(ctx context.Context) []model.Product {
	resolver := NewResolver(b.cache, b.keys, nil)

	rows := make([]model.Product, 0, len(b.records))
	for _, rec := range b.records {
		res, err := resolver.Resolve(ctx, rec)
		if err != nil {
			reason, ok := skipReasonOf(err)
			if !ok {
				b.progress.Errored(1)
				b.logger.Error("record failed", append(recordFields(rec), zap.Error(err))...)
				continue
			}
			b.progress.Skipped(reason, 1)
			b.logger.Warn("record skipped", append(recordFields(rec),
				zap.String("reason", reason.String()), zap.Error(err))...)
			continue
		}
		rows = append(rows, productRow(rec, res))
	}
	b.records = nil

	b.logger.Info("products resolved", zap.Int("rows", len(rows)))
	return rows
}

// insertAll 按 productBatchSize 分块，每块一个多行 INSERT，各块独立提交
func (b *Bulk) insertAll(ctx context.Context, rows []model.Product) error {
	chunk := 0
	batcher := NewBatcher(b.productBatchSize, func(ctx context.Context, rows []model.Product) error {
		chunk++
		n, err := b.loader.InsertProducts(ctx, rows)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", chunk, err)
		}
		b.progress.Inserted(n)
		if rejected := int64(len(rows)) - n; rejected > 0 {
			b.progress.Skipped(SkipRejected, rejected)
			b.logger.Warn("rows rejected by store", zap.Int("chunk", chunk), zap.Int64("rows", rejected))
		}
		return nil
	})

	for _, row := range rows {
		if err := batcher.Add(ctx, row); err != nil {
			return err
		}
	}
	return batcher.Flush(ctx)
}
