package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_ingest_v1/internal/model"
)

// ==================== 测试辅助 ====================

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	// :memory: 每个连接都是独立的库，固定为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.CatalogModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func seedHierarchy(t *testing.T, c *Catalog) (sectorID, categoryID, subcategoryID int64) {
	ctx := context.Background()

	s, err := c.Sectors.CreateIfAbsent(ctx, &model.Sector{Name: "Industrial Machinery"})
	require.NoError(t, err)
	cat, err := c.Categories.CreateIfAbsent(ctx, &model.Category{SectorID: s.ID, Name: "Pumps"})
	require.NoError(t, err)
	sub, err := c.Subcategories.Upsert(ctx, &model.Subcategory{CategoryID: cat.ID, Name: "Centrifugal Pumps", URL: "/pumps/centrifugal"})
	require.NoError(t, err)
	return s.ID, cat.ID, sub.ID
}

// ==================== Sector / Category ====================

func TestSectorRepo_CreateIfAbsent(t *testing.T) {
	repo := NewSectorRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	first, err := repo.CreateIfAbsent(ctx, &model.Sector{Name: "Electronics"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Outcome)
	assert.NotZero(t, first.ID)

	second, err := repo.CreateIfAbsent(ctx, &model.Sector{Name: "Electronics"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, second.Outcome)
	assert.Equal(t, first.ID, second.ID)

	// 名称按字节比较
	lower, err := repo.CreateIfAbsent(ctx, &model.Sector{Name: "electronics"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, lower.Outcome)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCategoryRepo_SameNameUnderDifferentSectors(t *testing.T) {
	db := setupCatalogTestDB(t)
	sectors := NewSectorRepository(db)
	categories := NewCategoryRepository(db)
	ctx := context.Background()

	a, err := sectors.CreateIfAbsent(ctx, &model.Sector{Name: "Agriculture"})
	require.NoError(t, err)
	b, err := sectors.CreateIfAbsent(ctx, &model.Sector{Name: "Construction"})
	require.NoError(t, err)

	ca, err := categories.CreateIfAbsent(ctx, &model.Category{SectorID: a.ID, Name: "Tools"})
	require.NoError(t, err)
	cb, err := categories.CreateIfAbsent(ctx, &model.Category{SectorID: b.ID, Name: "Tools"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, cb.Outcome)
	assert.NotEqual(t, ca.ID, cb.ID)

	found, err := categories.GetByKey(ctx, b.ID, "Tools")
	require.NoError(t, err)
	assert.Equal(t, cb.ID, found.ID)

	dups, err := categories.CountDuplicateKeys(ctx)
	require.NoError(t, err)
	assert.Zero(t, dups)
}

func TestSectorRepo_BulkCreateSkipsExisting(t *testing.T) {
	repo := NewSectorRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, &model.Sector{Name: "Chemicals"})
	require.NoError(t, err)

	affected, err := repo.BulkCreate(ctx, []model.Sector{
		{Name: "Chemicals"},
		{Name: "Textiles"},
		{Name: "Packaging"},
	}, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// ==================== Subcategory ====================

func TestSubcategoryRepo_UpsertRefreshesURL(t *testing.T) {
	c := NewCatalog(setupCatalogTestDB(t))
	ctx := context.Background()
	_, categoryID, subID := seedHierarchy(t, c)

	again, err := c.Subcategories.Upsert(ctx, &model.Subcategory{
		CategoryID: categoryID,
		Name:       "Centrifugal Pumps",
		URL:        "/pumps/centrifugal-v2",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, again.Outcome)
	assert.Equal(t, subID, again.ID)

	found, err := c.Subcategories.GetByKey(ctx, categoryID, "Centrifugal Pumps")
	require.NoError(t, err)
	assert.Equal(t, "/pumps/centrifugal-v2", found.URL)
}

// ==================== Supplier ====================

func TestSupplierRepo_UpsertRefreshesContacts(t *testing.T) {
	repo := NewSupplierRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	created, err := repo.Upsert(ctx, &model.Supplier{
		IdentityKey: "0::9876543210",
		Name:        "Shree Traders",
		Location:    "Pune",
		Mobile:      "9876543210",
		Email:       "old@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, created.Outcome)

	updated, err := repo.Upsert(ctx, &model.Supplier{
		IdentityKey: "0::9876543210",
		Name:        "Shree Traders",
		Location:    "Mumbai",
		Mobile:      "9876543210",
		Email:       "new@example.com",
		Website:     "https://shree.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, updated.Outcome)
	assert.Equal(t, created.ID, updated.ID)

	found, err := repo.GetByIdentity(ctx, "0::9876543210")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", found.Location)
	assert.Equal(t, "new@example.com", found.Email)
	assert.Equal(t, "https://shree.example.com", found.Website)
	assert.Equal(t, "", found.TaxID)
}

func TestSupplierRepo_CreateIfAbsentKeepsFirstSeenContacts(t *testing.T) {
	repo := NewSupplierRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, &model.Supplier{IdentityKey: "k", Name: "A", Location: "Delhi", Mobile: "1"})
	require.NoError(t, err)
	res, err := repo.CreateIfAbsent(ctx, &model.Supplier{IdentityKey: "k", Name: "A", Location: "Noida", Mobile: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)

	found, err := repo.GetByIdentity(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "Delhi", found.Location)
}

// ==================== Product ====================

func TestProductRepo_BulkInsertKeepsDuplicates(t *testing.T) {
	db := setupCatalogTestDB(t)
	c := NewCatalog(db)
	ctx := context.Background()
	_, _, subID := seedHierarchy(t, c)

	sup, err := c.Suppliers.CreateIfAbsent(ctx, &model.Supplier{IdentityKey: "s1", Name: "S1", Mobile: "1"})
	require.NoError(t, err)

	rows := func() []model.Product {
		return []model.Product{
			{Name: "Pump A", Price: "₹ 12,000", SubcategoryID: subID, SupplierID: sup.ID,
				Specifications: datatypes.JSONMap{"Power": "2 HP", "Phase": 3}},
			{Name: "Pump B", Price: "₹ 15,500", SubcategoryID: subID, SupplierID: sup.ID},
		}
	}

	n, err := c.Products.BulkInsert(ctx, rows())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// 商品没有业务唯一键，第二次写入会产生重复行
	n, err = c.Products.BulkInsert(ctx, rows())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	total, err := c.Products.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	var list []model.Product
	require.NoError(t, db.Where("subcategory_id = ?", subID).Order("id ASC").Find(&list).Error)
	require.Len(t, list, 4)
	assert.Equal(t, "2 HP", list[0].Specifications["Power"])
}

func TestProductRepo_CountOrphans(t *testing.T) {
	c := NewCatalog(setupCatalogTestDB(t))
	ctx := context.Background()
	_, _, subID := seedHierarchy(t, c)

	sup, err := c.Suppliers.CreateIfAbsent(ctx, &model.Supplier{IdentityKey: "s1", Name: "S1", Mobile: "1"})
	require.NoError(t, err)

	require.NoError(t, c.Products.Create(ctx, &model.Product{Name: "ok", SubcategoryID: subID, SupplierID: sup.ID}))
	require.NoError(t, c.Products.Create(ctx, &model.Product{Name: "bad-sub", SubcategoryID: 9999, SupplierID: sup.ID}))
	require.NoError(t, c.Products.Create(ctx, &model.Product{Name: "bad-sup", SubcategoryID: subID, SupplierID: 8888}))

	stats, err := c.Products.CountOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.MissingSubcategory)
	assert.EqualValues(t, 1, stats.MissingSupplier)
	assert.EqualValues(t, 2, stats.Total())
}

// ==================== ImportRun ====================

func TestImportRunRepo_Lifecycle(t *testing.T) {
	repo := NewImportRunRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	run := &model.ImportRun{
		RunID:     "6f1c8a5e-1d7e-4c1b-9d35-2b1f0c9e7a11",
		Strategy:  "bulk",
		Status:    model.ImportRunRunning,
		StartedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, run))
	assert.NotZero(t, run.ID)

	finished := time.Now()
	run.Status = model.ImportRunCompleted
	run.Inserted = 42
	run.FinishedAt = &finished
	require.NoError(t, repo.Update(ctx, run))

	found, err := repo.GetByRunID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportRunCompleted, found.Status)
	assert.EqualValues(t, 42, found.Inserted)
	require.NotNil(t, found.FinishedAt)

	recent, err := repo.ListRecent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
