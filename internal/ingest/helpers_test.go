package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/model"
	"catalog_ingest_v1/internal/repository"
)

// ==================== 测试数据库 ====================

func setupIngestTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.CatalogModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// failOnCreate 让指定表的 INSERT 返回 err；match 为 nil 时对该表全部生效
func failOnCreate(t *testing.T, db *gorm.DB, table string, err error, match func(tx *gorm.DB) bool) {
	name := fmt.Sprintf("test:fail_%s", table)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		if match == nil || match(tx) {
			_ = tx.AddError(err)
		}
	}))
}

// ==================== 内存数据源 ====================

type memFile struct {
	name string
	data []byte
}

type memSource struct {
	order []string
	files map[string][]memFile
}

func newMemSource() *memSource {
	return &memSource{files: make(map[string][]memFile)}
}

func (s *memSource) add(batch, name string, data []byte) *memSource {
	if _, ok := s.files[batch]; !ok {
		s.order = append(s.order, batch)
	}
	s.files[batch] = append(s.files[batch], memFile{name: name, data: data})
	return s
}

func (s *memSource) Batches(context.Context) ([]feed.Batch, error) {
	var batches []feed.Batch
	for _, name := range s.order {
		b := feed.Batch{Name: name}
		for _, f := range s.files[name] {
			b.Files = append(b.Files, feed.File{Batch: name, Name: f.name, Location: name + "/" + f.name})
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (s *memSource) Read(_ context.Context, f feed.File) ([]byte, error) {
	for _, mf := range s.files[f.Batch] {
		if mf.name == f.Name {
			return mf.data, nil
		}
	}
	return nil, fmt.Errorf("no such file %s", f.Location)
}

// ==================== 数据构造 ====================

func entry(sector, category, subcategory, url string, products ...feed.Product) feed.Entry {
	return feed.Entry{
		Sector:      feed.Text(sector),
		Category:    feed.Text(category),
		Subcategory: feed.SubcategoryRef{Name: feed.Text(subcategory), URL: feed.Text(url)},
		Products:    products,
	}
}

func product(name, supplier, mobile string) feed.Product {
	return feed.Product{
		Name:           feed.Text(name),
		Price:          "₹ 1,000",
		PriceUnit:      "Piece",
		Specifications: map[string]interface{}{"Material": "Steel"},
		Supplier: &feed.Supplier{
			Name:     feed.Text(supplier),
			Location: "Pune",
			TaxID:    feed.Text("TAX-" + supplier),
			Mobile:   feed.Text(mobile),
			Email:    feed.Text(supplier + "@example.com"),
		},
	}
}

func doc(t *testing.T, entries ...feed.Entry) []byte {
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	return data
}

func newTestPipeline(db *gorm.DB, src feed.Source, opts Options) *Pipeline {
	if opts.Format == "" {
		opts.Format = feed.FormatGrouped
	}
	return NewPipeline(repository.NewCatalog(db), src, nil, nil, opts, zap.NewNop())
}

func countRows(t *testing.T, db *gorm.DB) EntityCounts {
	loader := NewLoader(repository.NewCatalog(db), NewKeyBuilder(SupplierKeyTaxMobile), 0, zap.NewNop())
	counts, err := loader.Counts(context.Background())
	require.NoError(t, err)
	return counts
}

var strategies = []string{StrategyStreaming, StrategyBulk}
