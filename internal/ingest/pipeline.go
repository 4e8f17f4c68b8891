package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/config"
	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/model"
	"catalog_ingest_v1/internal/repository"
	"catalog_ingest_v1/pkg/lock"
)

// Options 单次运行的参数
type Options struct {
	Strategy         string
	Format           feed.Format
	SupplierKey      SupplierKeyMode
	ProductBatchSize int
	EntityBatchSize  int
	LogInterval      int
	VerifyReload     bool
}

// OptionsFromConfig 由配置构造运行参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Strategy:         cfg.Ingest.Strategy,
		Format:           feed.Format(cfg.Feed.Format),
		SupplierKey:      SupplierKeyMode(cfg.Ingest.SupplierKey),
		ProductBatchSize: cfg.Ingest.ProductBatchSize,
		EntityBatchSize:  cfg.Ingest.EntityBatchSize,
		LogInterval:      cfg.Ingest.LogInterval,
		VerifyReload:     cfg.Ingest.VerifyReload,
	}
}

// Summary 一次运行的结果
type Summary struct {
	RunID    string       `json:"run_id"`
	Strategy string       `json:"strategy"`
	Status   string       `json:"status"`
	Progress Snapshot     `json:"progress"`
	Counts   EntityCounts `json:"counts"`
	Error    string       `json:"error,omitempty"`
}

// Status 状态接口返回的内容
type Status struct {
	Running bool           `json:"running"`
	Current *Snapshot      `json:"current,omitempty"`
	Last    *Summary       `json:"last,omitempty"`
	Cache   map[string]int `json:"cache,omitempty"`
}

// Pipeline 导入入口：加锁、记录审计、执行策略、核对行数、输出汇总
type Pipeline struct {
	repo    *repository.Catalog
	source  feed.Source
	locker  lock.Locker
	metrics *Metrics
	opts    Options
	logger  *zap.Logger

	mu       sync.RWMutex
	progress *Progress
	cache    *Cache
	last     *Summary
}

// NewPipeline 创建导入流程；locker 为 nil 时不加锁，metrics 可为 nil
func NewPipeline(repo *repository.Catalog, source feed.Source, locker lock.Locker,
	metrics *Metrics, opts Options, logger *zap.Logger) *Pipeline {

	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyBulk
	}
	if opts.ProductBatchSize <= 0 {
		opts.ProductBatchSize = 2000
	}
	return &Pipeline{
		repo:    repo,
		source:  source,
		locker:  locker,
		metrics: metrics,
		opts:    opts,
		logger:  logger,
	}
}

// Run 执行一次导入
// 返回的错误为致命错误：ErrStoreUnavailable、ErrMalformedFeed、*PhaseError 或 lock.ErrLocked
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if p.opts.Strategy != StrategyStreaming && p.opts.Strategy != StrategyBulk {
		return nil, fmt.Errorf("unknown strategy %q", p.opts.Strategy)
	}

	lease, err := p.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("release lock failed", zap.Error(err))
		}
	}()

	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("strategy", p.opts.Strategy))

	run := &model.ImportRun{
		RunID:     runID,
		Strategy:  p.opts.Strategy,
		Status:    model.ImportRunRunning,
		StartedAt: time.Now(),
	}
	if err := p.repo.Runs.Create(ctx, run); err != nil {
		return nil, storeError("create import run", err)
	}

	progress := NewProgress(runID, p.opts.Strategy, p.opts.LogInterval, p.metrics, logger)
	cache := NewCache()
	p.mu.Lock()
	p.progress, p.cache = progress, cache
	p.mu.Unlock()

	keys := NewKeyBuilder(p.opts.SupplierKey)
	loader := NewLoader(p.repo, keys, p.opts.EntityBatchSize, logger)
	deps := runDeps{
		walker:   feed.NewWalker(p.source, p.opts.Format, progress, logger),
		loader:   loader,
		cache:    cache,
		keys:     keys,
		progress: progress,
		logger:   logger,
	}

	strategy := p.strategy(deps)

	logger.Info("ingest started",
		zap.String("supplier_key", string(keys.Mode())),
		zap.Int("product_batch_size", p.opts.ProductBatchSize))
	runErr := strategy.Run(ctx)

	// 即使运行被取消也要完成收尾
	finishCtx := context.WithoutCancel(ctx)
	counts, countErr := loader.Counts(finishCtx)
	if countErr != nil {
		logger.Warn("count rows failed", zap.Error(countErr))
	}

	status := string(model.ImportRunCompleted)
	if runErr != nil {
		status = string(model.ImportRunFailed)
	}
	snap := progress.Finish(status)

	summary := &Summary{
		RunID:    runID,
		Strategy: p.opts.Strategy,
		Status:   status,
		Progress: snap,
		Counts:   counts,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	p.saveRun(finishCtx, run, summary, logger)
	p.logSummary(logger, summary, runErr)

	p.mu.Lock()
	p.progress = nil
	p.last = summary
	p.mu.Unlock()

	return summary, runErr
}

func (p *Pipeline) strategy(d runDeps) Strategy {
	if p.opts.Strategy == StrategyStreaming {
		return newStreaming(d)
	}
	return newBulk(d, p.opts.ProductBatchSize, p.opts.VerifyReload)
}

// saveRun 写回审计记录，失败只记日志
func (p *Pipeline) saveRun(ctx context.Context, run *model.ImportRun, s *Summary, logger *zap.Logger) {
	snap := s.Progress
	finished := time.Now()

	run.Status = model.ImportRunStatus(s.Status)
	run.TotalRecords = snap.Total
	run.Inserted = snap.Inserted
	run.SkippedMissingField = snap.SkippedMissingField
	run.SkippedUnresolvable = snap.SkippedUnresolvable
	run.SkippedRejected = snap.SkippedRejected
	run.Errored = snap.Errored
	run.SectorsCreated = snap.Created.Sectors
	run.CategoriesCreated = snap.Created.Categories
	run.SubcategoriesCreated = snap.Created.Subcategories
	run.SuppliersCreated = snap.Created.Suppliers
	run.BatchesDone = snap.BatchesDone
	run.FilesDone = snap.FilesDone
	run.ErrorMsg = truncate(s.Error, 1024)
	run.FinishedAt = &finished

	if err := p.repo.Runs.Update(ctx, run); err != nil {
		logger.Warn("save import run failed", zap.Error(err))
	}
}

func (p *Pipeline) logSummary(logger *zap.Logger, s *Summary, runErr error) {
	snap := s.Progress
	fields := []zap.Field{
		zap.String("status", s.Status),
		zap.Int64("total", snap.Total),
		zap.Int64("inserted", snap.Inserted),
		zap.Int64("skipped_missing_field", snap.SkippedMissingField),
		zap.Int64("skipped_unresolvable", snap.SkippedUnresolvable),
		zap.Int64("skipped_rejected", snap.SkippedRejected),
		zap.Int64("errored", snap.Errored),
		zap.Int("batches_done", snap.BatchesDone),
		zap.Int("files_done", snap.FilesDone),
		zap.Float64("elapsed_sec", snap.ElapsedSec),
		zap.Float64("rate_per_sec", snap.RatePerSec),
		zap.Any("created", snap.Created),
		zap.Any("rows", s.Counts),
	}

	if runErr != nil {
		var pe *PhaseError
		if errors.As(runErr, &pe) {
			fields = append(fields,
				zap.String("failed_phase", pe.Phase),
				zap.Int64("committed", pe.Committed),
				zap.Int64("pending", pe.Pending))
		}
		logger.Error("ingest failed", append(fields, zap.Error(runErr))...)
		return
	}

	if !snap.Balanced() {
		logger.Error("tally mismatch: inserted + skipped + errored != total", fields...)
		return
	}
	logger.Info("ingest finished", fields...)
}

// Status 当前或最近一次运行的状态
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{Last: p.last}
	if p.progress != nil {
		snap := p.progress.Snapshot()
		st.Running = true
		st.Current = &snap
	}
	if p.cache != nil {
		st.Cache = p.cache.Sizes()
	}
	return st
}

// Cache 最近一次运行使用的缓存，没有运行过时为 nil
func (p *Pipeline) Cache() *Cache {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
