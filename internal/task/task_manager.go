package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"catalog_ingest_v1/internal/ingest"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理定时任务
// 目前只有目录导入一项，HTTP 状态接口通过它手动触发
type TaskManager struct {
	ingestTask *IngestTask
	logger     *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	IngestEnabled bool
	IngestCron    string
	IngestTimeout time.Duration
}

// DefaultConfig 默认配置：每日 3 点全量导入
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		IngestEnabled: true,
		IngestCron:    "0 0 3 * * *",
		IngestTimeout: 4 * time.Hour,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(runner Runner, cfg *TaskManagerConfig, logger *zap.Logger) (*TaskManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{logger: logger.Named("task")}

	if cfg.IngestEnabled && runner != nil {
		t, err := NewIngestTask(runner, cfg.IngestCron, cfg.IngestTimeout, tm.logger)
		if err != nil {
			return nil, err
		}
		tm.ingestTask = t
	}

	return tm, nil
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	if tm.ingestTask != nil {
		tm.ingestTask.Start()
	}
	tm.logger.Info("scheduled tasks started")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.ingestTask != nil {
		tm.ingestTask.Stop()
	}
	tm.logger.Info("scheduled tasks stopped")
}

// ==================== 手动触发接口 ====================

// TriggerIngest 后台触发一次导入
func (tm *TaskManager) TriggerIngest() error {
	if tm.ingestTask == nil {
		return ErrTaskDisabled
	}
	return tm.ingestTask.RunAsync()
}

// RunIngest 同步执行一次导入
func (tm *TaskManager) RunIngest(ctx context.Context) (*ingest.Summary, error) {
	if tm.ingestTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.ingestTask.RunNow(ctx)
}

// ==================== 状态查询 ====================

// TaskStatus 任务状态
type TaskStatus struct {
	Enabled bool       `json:"enabled"`
	Running bool       `json:"running"`
	Next    *time.Time `json:"next,omitempty"`
	LastRun *RunRecord `json:"last_run,omitempty"`
}

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]TaskStatus {
	st := TaskStatus{}
	if t := tm.ingestTask; t != nil {
		st.Enabled = true
		st.Running = t.Running()
		st.LastRun = t.LastRun()
		if next := t.Next(); !next.IsZero() {
			st.Next = &next
		}
	}
	return map[string]TaskStatus{"ingest": st}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
	ErrTaskBusy     TaskError = "task is already running"
)
