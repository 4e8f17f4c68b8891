package ingest

import (
	"context"
	"fmt"

	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/repository"
)

// Creator 缓存未命中时立即创建实体（流式策略）
type Creator interface {
	EnsureSector(ctx context.Context, name string) (repository.CreateResult, error)
	EnsureCategory(ctx context.Context, sectorID int64, name string) (repository.CreateResult, error)
	UpsertSubcategory(ctx context.Context, categoryID int64, name, url string) (repository.CreateResult, error)
	UpsertSupplier(ctx context.Context, s feed.SupplierFields) (repository.CreateResult, error)
}

// Resolution 一条记录解析出的外键
type Resolution struct {
	SubcategoryID int64
	SupplierID    int64
}

// CreatedCounts 本次运行新建的实体数
type CreatedCounts struct {
	Sectors       int64 `json:"sectors"`
	Categories    int64 `json:"categories"`
	Subcategories int64 `json:"subcategories"`
	Suppliers     int64 `json:"suppliers"`
}

// Resolver 按 行业 → 类目 → 子类目 → 供应商 的顺序把记录解析为外键 ID
// creator 为 nil 时只查缓存，未命中即 ErrUnresolvableRelation（批量策略）
type Resolver struct {
	cache   *Cache
	keys    KeyBuilder
	creator Creator

	// 本次运行已写入的子类目 url / 供应商联系信息，值相同时不重复写
	subcategoryURLs  map[string]string
	supplierContacts map[string]string

	created CreatedCounts
}

// NewResolver 创建解析器
func NewResolver(cache *Cache, keys KeyBuilder, creator Creator) *Resolver {
	return &Resolver{
		cache:            cache,
		keys:             keys,
		creator:          creator,
		subcategoryURLs:  make(map[string]string),
		supplierContacts: make(map[string]string),
	}
}

// Created 本次运行新建的实体数
func (r *Resolver) Created() CreatedCounts {
	return r.created
}

// Validate 校验必填字段
func Validate(rec feed.Record) error {
	if rec.Err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, rec.Err)
	}
	if rec.Product.Name == "" {
		return fmt.Errorf("%w: product name", ErrMissingRequiredField)
	}
	if !rec.HasSupplier || rec.Supplier.Name == "" {
		return fmt.Errorf("%w: supplier name", ErrMissingRequiredField)
	}
	return nil
}

// Resolve 解析一条记录
func (r *Resolver) Resolve(ctx context.Context, rec feed.Record) (Resolution, error) {
	if err := Validate(rec); err != nil {
		return Resolution{}, err
	}
	if rec.Sector == "" || rec.Category == "" || rec.Subcategory == "" {
		return Resolution{}, fmt.Errorf("%w: empty hierarchy name", ErrUnresolvableRelation)
	}

	sectorID, err := r.sector(ctx, rec.Sector)
	if err != nil {
		return Resolution{}, err
	}
	categoryID, err := r.category(ctx, sectorID, rec.Category)
	if err != nil {
		return Resolution{}, err
	}
	subcategoryID, err := r.subcategory(ctx, categoryID, rec.Subcategory, rec.SubcategoryURL)
	if err != nil {
		return Resolution{}, err
	}
	supplierID, err := r.supplier(ctx, rec.Supplier)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{SubcategoryID: subcategoryID, SupplierID: supplierID}, nil
}

func (r *Resolver) sector(ctx context.Context, name string) (int64, error) {
	key := SectorKey(name)
	if id, ok := r.cache.Get(EntitySector, key); ok {
		return id, nil
	}
	if r.creator == nil {
		return 0, fmt.Errorf("%w: sector %q", ErrUnresolvableRelation, name)
	}

	res, err := r.creator.EnsureSector(ctx, name)
	if err != nil {
		return 0, createFailed("sector", name, err)
	}
	r.adopt(EntitySector, key, res, &r.created.Sectors)
	return res.ID, nil
}

func (r *Resolver) category(ctx context.Context, sectorID int64, name string) (int64, error) {
	key := CategoryKey(sectorID, name)
	if id, ok := r.cache.Get(EntityCategory, key); ok {
		return id, nil
	}
	if r.creator == nil {
		return 0, fmt.Errorf("%w: category %q", ErrUnresolvableRelation, key)
	}

	res, err := r.creator.EnsureCategory(ctx, sectorID, name)
	if err != nil {
		return 0, createFailed("category", name, err)
	}
	r.adopt(EntityCategory, key, res, &r.created.Categories)
	return res.ID, nil
}

// subcategory 流式策略下，即使缓存命中，url 与本次运行最后写入值不同时也会 upsert 一次
func (r *Resolver) subcategory(ctx context.Context, categoryID int64, name, url string) (int64, error) {
	key := SubcategoryKey(categoryID, name)
	id, cached := r.cache.Get(EntitySubcategory, key)

	if r.creator == nil {
		if !cached {
			return 0, fmt.Errorf("%w: subcategory %q", ErrUnresolvableRelation, key)
		}
		return id, nil
	}

	if last, written := r.subcategoryURLs[key]; cached && written && last == url {
		return id, nil
	}

	res, err := r.creator.UpsertSubcategory(ctx, categoryID, name, url)
	if err != nil {
		return 0, createFailed("subcategory", name, err)
	}
	r.adopt(EntitySubcategory, key, res, &r.created.Subcategories)
	r.subcategoryURLs[key] = url
	return res.ID, nil
}

// supplier 同 subcategory，联系信息变化时刷新
func (r *Resolver) supplier(ctx context.Context, s feed.SupplierFields) (int64, error) {
	key := r.keys.SupplierKey(s)
	id, cached := r.cache.Get(EntitySupplier, key)

	if r.creator == nil {
		if !cached {
			return 0, fmt.Errorf("%w: supplier %q", ErrUnresolvableRelation, s.Name)
		}
		return id, nil
	}

	contacts := composite(s.Location, composite(s.Email, s.Website))
	if last, written := r.supplierContacts[key]; cached && written && last == contacts {
		return id, nil
	}

	res, err := r.creator.UpsertSupplier(ctx, s)
	if err != nil {
		return 0, createFailed("supplier", s.Name, err)
	}
	r.adopt(EntitySupplier, key, res, &r.created.Suppliers)
	r.supplierContacts[key] = contacts
	return res.ID, nil
}

// createFailed 数据库拒绝单行创建时记录按无法解析跳过；连接类错误原样返回以中止运行
func createFailed(kind, name string, err error) error {
	if isFatal(err) {
		return err
	}
	return fmt.Errorf("%w: %s %q: %w", ErrUnresolvableRelation, kind, name, err)
}

func (r *Resolver) adopt(entity EntityType, key string, res repository.CreateResult, created *int64) {
	r.cache.Put(entity, key, res.ID)
	if res.Outcome == repository.OutcomeCreated {
		*created++
	}
}
