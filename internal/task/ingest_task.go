package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/ingest"
)

// Runner 执行一次导入，*ingest.Pipeline 实现该接口
type Runner interface {
	Run(ctx context.Context) (*ingest.Summary, error)
}

// IngestTask 定时导入任务
// 同一时刻只允许一次运行，定时触发与手动触发共用同一个运行标记
type IngestTask struct {
	runner  Runner
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	entryID cron.EntryID
	logger  *zap.Logger

	running atomic.Bool
	lastRun atomic.Pointer[RunRecord]
}

// RunRecord 最近一次触发的结果
type RunRecord struct {
	Trigger    string          `json:"trigger"` // cron | manual
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Summary    *ingest.Summary `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// NewIngestTask 创建任务；spec 为带秒的 cron 表达式
func NewIngestTask(runner Runner, spec string, timeout time.Duration, logger *zap.Logger) (*IngestTask, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	t := &IngestTask{
		runner:  runner,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
	}

	id, err := t.cron.AddFunc(spec, func() { t.runScheduled() })
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	t.entryID = id
	return t, nil
}

// Start 启动定时器
func (t *IngestTask) Start() {
	t.cron.Start()
	t.logger.Info("ingest task started", zap.String("cron", t.spec), zap.Time("next", t.Next()))
}

// Stop 停止定时器，等待正在执行的任务结束
func (t *IngestTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Info("ingest task stopped")
}

// Next 下一次触发时间，未启动时为零值
func (t *IngestTask) Next() time.Time {
	return t.cron.Entry(t.entryID).Next
}

// Running 是否有导入正在执行
func (t *IngestTask) Running() bool {
	return t.running.Load()
}

// LastRun 最近一次触发的结果，没有时为 nil
func (t *IngestTask) LastRun() *RunRecord {
	return t.lastRun.Load()
}

func (t *IngestTask) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if _, err := t.run(ctx, "cron"); errors.Is(err, ErrTaskBusy) {
		t.logger.Warn("previous ingest still running, skip this tick")
	}
}

// RunNow 立即执行一次导入并等待结束
func (t *IngestTask) RunNow(ctx context.Context) (*ingest.Summary, error) {
	return t.run(ctx, "manual")
}

// RunAsync 在后台执行一次导入，已有运行时返回 ErrTaskBusy
func (t *IngestTask) RunAsync() error {
	if t.running.Load() {
		return ErrTaskBusy
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		_, _ = t.run(ctx, "manual")
	}()
	return nil
}

func (t *IngestTask) run(ctx context.Context, trigger string) (*ingest.Summary, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrTaskBusy
	}
	defer t.running.Store(false)

	rec := &RunRecord{Trigger: trigger, StartedAt: time.Now()}
	summary, err := t.runner.Run(ctx)
	rec.FinishedAt = time.Now()
	rec.Summary = summary
	if err != nil {
		rec.Error = err.Error()
	}
	t.lastRun.Store(rec)

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.Duration("elapsed", rec.FinishedAt.Sub(rec.StartedAt)),
	}
	if err != nil {
		t.logger.Error("ingest run failed", append(fields, zap.Error(err))...)
		return summary, err
	}
	t.logger.Info("ingest run completed", append(fields, zap.String("run_id", summary.RunID))...)
	return summary, nil
}
