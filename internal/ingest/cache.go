package ingest

import (
	"context"
	"sync"
)

// EntityType 缓存中的实体类型
type EntityType int

const (
	EntitySector EntityType = iota
	EntityCategory
	EntitySubcategory
	EntitySupplier
)

// EntityTypes 按层级依赖顺序排列
var EntityTypes = []EntityType{EntitySector, EntityCategory, EntitySubcategory, EntitySupplier}

func (e EntityType) String() string {
	switch e {
	case EntitySector:
		return "sector"
	case EntityCategory:
		return "category"
	case EntitySubcategory:
		return "subcategory"
	case EntitySupplier:
		return "supplier"
	default:
		return "unknown"
	}
}

// KeySource 从数据库加载某类实体的 key → id 映射
type KeySource interface {
	LoadKeys(ctx context.Context, entity EntityType) (map[string]int64, error)
}

// Cache 单次运行内的 key → id 缓存，不淘汰
// 解析是单线程的，加锁只是为了让状态接口能并发读取大小
type Cache struct {
	mu      sync.RWMutex
	entries map[EntityType]map[string]int64
}

// NewCache 创建空缓存
func NewCache() *Cache {
	c := &Cache{entries: make(map[EntityType]map[string]int64, len(EntityTypes))}
	for _, e := range EntityTypes {
		c.entries[e] = make(map[string]int64)
	}
	return c
}

// Get 查询 key 对应的 id
func (c *Cache) Get(entity EntityType, key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[entity][key]
	return id, ok
}

// Put 写入一条映射
func (c *Cache) Put(entity EntityType, key string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entity][key] = id
}

// Preload 批量写入映射，已有 key 被覆盖
func (c *Cache) Preload(entity EntityType, m map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dst := c.entries[entity]
	for k, id := range m {
		dst[k] = id
	}
}

// Invalidate 清空某类实体
func (c *Cache) Invalidate(entity EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entity] = make(map[string]int64)
}

// Reload 以数据库为准重建某类实体的缓存
// 加载失败时保留原缓存内容
func (c *Cache) Reload(ctx context.Context, entity EntityType, src KeySource) error {
	m, err := src.LoadKeys(ctx, entity)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entity] = m
	return nil
}

// Len 某类实体的缓存条目数
func (c *Cache) Len(entity EntityType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[entity])
}

// Sizes 全部实体类型的条目数
func (c *Cache) Sizes() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sizes := make(map[string]int, len(c.entries))
	for e, m := range c.entries {
		sizes[e.String()] = len(m)
	}
	return sizes
}

// Snapshot 某类实体映射的拷贝
func (c *Cache) Snapshot(entity EntityType) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]int64, len(c.entries[entity]))
	for k, id := range c.entries[entity] {
		m[k] = id
	}
	return m
}
