package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"catalog_ingest_v1/internal/ingest"
	"catalog_ingest_v1/internal/repository"
	"catalog_ingest_v1/internal/task"
)

// StatusProvider 提供运行中的进度快照，*ingest.Pipeline 实现该接口
type StatusProvider interface {
	Status() ingest.Status
}

// Trigger 手动触发导入，*task.TaskManager 实现该接口
type Trigger interface {
	TriggerIngest() error
	Status() map[string]task.TaskStatus
}

// IngestController 导入状态查询与手动触发
type IngestController struct {
	pipeline StatusProvider
	tasks    Trigger
	runs     repository.ImportRunRepository
}

// NewIngestController 创建控制器；tasks 为 nil 时不支持手动触发
func NewIngestController(pipeline StatusProvider, tasks Trigger, runs repository.ImportRunRepository) *IngestController {
	return &IngestController{pipeline: pipeline, tasks: tasks, runs: runs}
}

// ==================== Handler 实现 ====================

// GetStatus 当前进度快照
// GET /status
func (c *IngestController) GetStatus(ctx *gin.Context) {
	data := gin.H{"pipeline": c.pipeline.Status()}
	if c.tasks != nil {
		data["tasks"] = c.tasks.Status()
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    data,
	})
}

// ListRuns 最近的导入记录
// GET /api/runs?limit=10
func (c *IngestController) ListRuns(ctx *gin.Context) {
	limit := 10
	if s := ctx.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "limit 必须是 1-100 之间的数字"})
			return
		}
		limit = n
	}

	runs, err := c.runs.ListRecent(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    gin.H{"list": runs, "total": len(runs)},
	})
}

// GetRun 单次导入记录
// GET /api/runs/:run_id
func (c *IngestController) GetRun(ctx *gin.Context) {
	run, err := c.runs.GetByRunID(ctx.Request.Context(), ctx.Param("run_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "导入记录不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": run})
}

// TriggerRun 后台触发一次导入
// POST /api/runs
func (c *IngestController) TriggerRun(ctx *gin.Context) {
	if c.tasks == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"code": 404, "message": task.ErrTaskDisabled.Error()})
		return
	}

	if err := c.tasks.TriggerIngest(); err != nil {
		switch {
		case errors.Is(err, task.ErrTaskBusy):
			ctx.JSON(http.StatusConflict, gin.H{"code": 409, "message": "已有导入正在执行"})
		case errors.Is(err, task.ErrTaskDisabled):
			ctx.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"code":    202,
		"message": "导入已触发",
	})
}

// ==================== 健康检查 ====================

// Pinger 数据库连通性检查
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthController 健康检查
type HealthController struct {
	db Pinger
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

// Healthz 数据库可用时返回 200
// GET /healthz
func (c *HealthController) Healthz(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "message": "数据库不可用: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "ok"})
}
