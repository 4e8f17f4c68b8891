package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/controller"
	"catalog_ingest_v1/internal/middleware"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Ingest *controller.IngestController
	Health *controller.HealthController
}

// Options 路由配置
type Options struct {
	Gatherer        prometheus.Gatherer // 为 nil 时使用默认注册表
	TriggerCooldown time.Duration
	Logger          *zap.Logger
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(ctls *Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(middleware.AccessLog(opts.Logger))
	}
	InitRoutes(r, ctls, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls *Controllers, opts Options) {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// 1. 运维接口
	r.GET("/healthz", ctls.Health.Healthz)
	r.GET("/status", ctls.Ingest.GetStatus)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 2. API 路由组
	api := r.Group("/api")
	{
		runs := api.Group("/runs")
		{
			// GET /api/runs
			runs.GET("", ctls.Ingest.ListRuns)
			// GET /api/runs/:run_id
			runs.GET("/:run_id", ctls.Ingest.GetRun)
			// POST /api/runs 手动触发，带冷却
			runs.POST("",
				middleware.TriggerCooldown(middleware.NewCooldown(), "ingest", opts.TriggerCooldown),
				ctls.Ingest.TriggerRun,
			)
		}
	}
}
