package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"catalog_ingest_v1/internal/config"
	"catalog_ingest_v1/internal/controller"
	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/ingest"
	"catalog_ingest_v1/internal/model"
	"catalog_ingest_v1/internal/repository"
	"catalog_ingest_v1/internal/router"
	"catalog_ingest_v1/internal/task"
	"catalog_ingest_v1/pkg/database"
	"catalog_ingest_v1/pkg/lock"
	"catalog_ingest_v1/pkg/logger"
)

const serviceName = "catalog-ingest"

// app 子命令共享的依赖
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
	stdout  io.Writer

	db    *gorm.DB
	redis *redis.Client
}

func newRootCommand(stdout io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout}

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Load supplier product feeds into the catalog database",
		Long: `
Reads batch-grouped product feed documents and loads sectors, categories,
subcategories, suppliers and products into the catalog database.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default ./config.yaml if present)")
	root.AddCommand(
		newRunCommand(a),
		newScheduleCommand(a),
		newVerifyCommand(a),
		newMigrateCommand(a),
	)
	return root, a
}

// ==================== 初始化 ====================

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	zl, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg, a.logger = cfg, zl
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// openDB 连接数据库；migrate 为 true 时强制建表
func (a *app) openDB(migrate bool) (*gorm.DB, error) {
	dbCfg := a.cfg.Database
	if migrate {
		dbCfg.AutoMigrate = true
	}
	db, err := database.InitDB(&dbCfg, a.logger, model.CatalogModels()...)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// newRegistry 进程内指标注册表
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newLocker Redis 未配置时不加锁
func (a *app) newLocker() lock.Locker {
	if a.cfg.Redis.Addr == "" {
		return lock.NoopLocker{}
	}
	a.redis = lock.NewRedisClient(&a.cfg.Redis)
	return lock.NewRedisLocker(a.redis, a.cfg.Redis.LockKey, a.cfg.Redis.LockTTL, a.logger.Named("lock"))
}

// newPipeline 组装数据源、锁、指标与导入流程
func (a *app) newPipeline(ctx context.Context, db *gorm.DB, reg prometheus.Registerer, opts ingest.Options) (*ingest.Pipeline, error) {
	source, err := feed.NewSource(ctx, &a.cfg.Feed, a.logger.Named("feed"))
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(
		repository.NewCatalog(db),
		source,
		a.newLocker(),
		ingest.NewMetrics(reg),
		opts,
		a.logger.Named("ingest"),
	), nil
}

// ==================== 状态服务 ====================

// startStatusServer 配置了地址时启动状态服务，否则返回 nil
func (a *app) startStatusServer(db *gorm.DB, pipeline *ingest.Pipeline, tm *task.TaskManager, reg prometheus.Gatherer) (*http.Server, error) {
	if a.cfg.Status.Addr == "" {
		return nil, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	var trigger controller.Trigger
	if tm != nil {
		trigger = tm
	}
	r := router.SetupRouter(&router.Controllers{
		Ingest: controller.NewIngestController(pipeline, trigger, repository.NewImportRunRepository(db)),
		Health: controller.NewHealthController(sqlDB),
	}, router.Options{
		Gatherer:        reg,
		TriggerCooldown: a.cfg.Status.TriggerCooldown,
		Logger:          a.logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              a.cfg.Status.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 异步启动服务
	go func() {
		a.logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server failed", zap.Error(err))
		}
	}()
	return srv, nil
}

func (a *app) shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("status server forced to close", zap.Error(err))
	}
}

// printJSON 结果输出到标准输出，便于脚本处理
func (a *app) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}
