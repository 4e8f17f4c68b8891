//go:build integration

package ingest

import (
	"context"
	"database/sql/driver"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"catalog_ingest_v1/internal/config"
	"catalog_ingest_v1/internal/model"
	"catalog_ingest_v1/internal/repository"
	"catalog_ingest_v1/pkg/database"
)

// setupPostgres 启动一个临时 Postgres 容器（需要 Docker）
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "catalog",
				"POSTGRES_USER":     "catalog",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("启动测试容器失败: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:        "postgres",
		Host:          host,
		Port:          port.Int(),
		User:          "catalog",
		Password:      "test_password",
		Name:          "catalog",
		SSLMode:       "disable",
		MaxOpenConns:  5,
		MaxIdleConns:  2,
		SlowThreshold: time.Second,
		AutoMigrate:   true,
	}
	db, err := database.InitDB(cfg, zap.NewNop(), model.CatalogModels()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestIntegration_BothStrategiesOnPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	src := newMemSource()
	for g := 1; g <= 2; g++ {
		batch := "Group-" + strconv.Itoa(g)
		src.add(batch, "aajjo-products-1.json", doc(t,
			entry("Industrial Machinery", "Pumps", "Centrifugal Pumps", "/pumps/cp",
				product("CP-"+batch, "Acme", "9000000001"),
				product("CP2-"+batch, "Bolt", "9000000002"),
			),
			entry("Electronics", "Pumps", "Centrifugal Pumps", "/e/pumps/cp",
				product("E-"+batch, "Acme", "9000000001"),
			),
		))
	}

	bulk, err := newTestPipeline(db, src, Options{Strategy: StrategyBulk, ProductBatchSize: 2, VerifyReload: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, EntityCounts{Sectors: 2, Categories: 2, Subcategories: 2, Suppliers: 2, Products: 6}, bulk.Counts)

	stream, err := newTestPipeline(db, src, Options{Strategy: StrategyStreaming}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, CreatedCounts{}, stream.Progress.Created)
	assert.Equal(t, int64(12), stream.Counts.Products)

	report, err := Verify(ctx, repository.NewCatalog(db))
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
}

func TestIntegration_ConcurrentCreateAdoptsExisting(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	catalog := repository.NewCatalog(db)

	// 两个解析器各自持有空缓存，模拟并发写入者
	loader := NewLoader(catalog, NewKeyBuilder(SupplierKeyTaxMobile), 0, zap.NewNop())
	r1 := NewResolver(NewCache(), NewKeyBuilder(SupplierKeyTaxMobile), loader)
	r2 := NewResolver(NewCache(), NewKeyBuilder(SupplierKeyTaxMobile), loader)

	rec := scenarioRecord()
	res1, err := r1.Resolve(ctx, rec)
	require.NoError(t, err)
	res2, err := r2.Resolve(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, res1, res2)
	assert.Equal(t, CreatedCounts{Sectors: 1, Categories: 1, Subcategories: 1, Suppliers: 1}, r1.Created())
	assert.Equal(t, CreatedCounts{}, r2.Created())
}

func TestIntegration_UnavailableStoreIsClassified(t *testing.T) {
	db := setupPostgres(t)
	failOnCreate(t, db, "sectors", driver.ErrBadConn, nil)

	_, err := newTestPipeline(db, scenarioASource(t), Options{Strategy: StrategyBulk}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}
