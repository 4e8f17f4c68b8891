package ingest

import (
	"context"
	"fmt"
	"strings"

	"catalog_ingest_v1/internal/repository"
)

// IntegrityReport 数据完整性检查结果
type IntegrityReport struct {
	Counts        EntityCounts           `json:"counts"`
	Orphans       repository.OrphanStats `json:"orphans"`
	DuplicateKeys map[string]int64       `json:"duplicate_keys"`
}

// OK 没有悬空外键也没有重复业务键
func (r *IntegrityReport) OK() bool {
	if r.Orphans.Total() > 0 {
		return false
	}
	for _, n := range r.DuplicateKeys {
		if n > 0 {
			return false
		}
	}
	return true
}

// Verify 统计行数、悬空外键与重复业务键
func Verify(ctx context.Context, repo *repository.Catalog) (*IntegrityReport, error) {
	loader := &Loader{repo: repo}
	counts, err := loader.Counts(ctx)
	if err != nil {
		return nil, err
	}

	orphans, err := repo.Products.CountOrphans(ctx)
	if err != nil {
		return nil, storeError("count orphans", err)
	}

	report := &IntegrityReport{
		Counts:        counts,
		Orphans:       orphans,
		DuplicateKeys: make(map[string]int64, 4),
	}

	checks := []struct {
		entity EntityType
		count  func(context.Context) (int64, error)
	}{
		{EntitySector, repo.Sectors.CountDuplicateKeys},
		{EntityCategory, repo.Categories.CountDuplicateKeys},
		{EntitySubcategory, repo.Subcategories.CountDuplicateKeys},
		{EntitySupplier, repo.Suppliers.CountDuplicateKeys},
	}
	for _, c := range checks {
		n, err := c.count(ctx)
		if err != nil {
			return nil, storeError("count duplicate "+c.entity.String()+" keys", err)
		}
		report.DuplicateKeys[c.entity.String()] = n
	}
	return report, nil
}

// VerifyCacheAgreement 比对缓存与数据库中的 key → id 映射，不一致时返回描述差异的错误
func VerifyCacheAgreement(ctx context.Context, cache *Cache, src KeySource) error {
	var diffs []string
	for _, entity := range EntityTypes {
		stored, err := src.LoadKeys(ctx, entity)
		if err != nil {
			return err
		}
		cached := cache.Snapshot(entity)

		missing, stale := 0, 0
		for k, id := range stored {
			if got, ok := cached[k]; !ok {
				missing++
			} else if got != id {
				stale++
			}
		}
		extra := 0
		for k := range cached {
			if _, ok := stored[k]; !ok {
				extra++
			}
		}
		if missing+stale+extra > 0 {
			diffs = append(diffs, fmt.Sprintf("%s: missing=%d stale=%d extra=%d", entity, missing, stale, extra))
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("cache disagrees with store: %s", strings.Join(diffs, "; "))
	}
	return nil
}
