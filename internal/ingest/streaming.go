package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalog_ingest_v1/internal/feed"
)

// Strategy 一种导入策略
type Strategy interface {
	Name() string
	Run(ctx context.Context) error
}

const (
	StrategyStreaming = "streaming"
	StrategyBulk      = "bulk"
)

// runDeps 两种策略共用的依赖，每次运行新建
type runDeps struct {
	walker   *feed.Walker
	loader   *Loader
	cache    *Cache
	keys     KeyBuilder
	progress *Progress
	logger   *zap.Logger
}

// loadAllExisting 并行加载四类实体的现有键
func loadAllExisting(ctx context.Context, cache *Cache, src KeySource) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, entity := range EntityTypes {
		entity := entity
		g.Go(func() error {
			return cache.Reload(gctx, entity, src)
		})
	}
	return g.Wait()
}

// recordFields 单条记录的定位字段，用于日志
func recordFields(rec feed.Record) []zap.Field {
	return []zap.Field{
		zap.String("batch", rec.Batch),
		zap.String("file", rec.File),
		zap.Int("index", rec.Index),
		zap.String("sector", rec.Sector),
		zap.String("category", rec.Category),
		zap.String("subcategory", rec.Subcategory),
		zap.String("product", rec.Product.Name),
		zap.String("supplier", rec.Supplier.Name),
	}
}

// ==================== 流式 Upsert ====================

// Streaming 逐条解析、缺失即创建、逐条写入商品
// 单条记录失败只计数不中止，数据库不可用时中止
type Streaming struct {
	runDeps
	resolver *Resolver
}

var _ Strategy = (*Streaming)(nil)

func newStreaming(d runDeps) *Streaming {
	return &Streaming{
		runDeps:  d,
		resolver: NewResolver(d.cache, d.keys, d.loader),
	}
}

func (s *Streaming) Name() string {
	return StrategyStreaming
}

func (s *Streaming) Run(ctx context.Context) error {
	s.progress.SetPhase("load_existing")
	if err := loadAllExisting(ctx, s.cache, s.loader); err != nil {
		return s.fatal("load_existing", err)
	}
	s.logger.Info("existing keys loaded", zap.Any("cache", s.cache.Sizes()))

	s.progress.SetPhase("stream")
	err := s.walker.Walk(ctx, func(ctx context.Context, f feed.File, records []feed.Record) error {
		s.progress.AddTotal(len(records))
		defer func() { s.progress.SetCreated(s.resolver.Created()) }()

		for _, rec := range records {
			if err := s.process(ctx, rec); err != nil {
				return s.fatal("stream", err)
			}
		}
		return nil
	})
	if err != nil {
		var pe *PhaseError
		if errors.As(err, &pe) {
			return pe
		}
		return s.fatal("stream", err)
	}
	return nil
}

// process 处理一条记录；只有需要中止运行的错误才返回
func (s *Streaming) process(ctx context.Context, rec feed.Record) error {
	res, err := s.resolver.Resolve(ctx, rec)
	if err != nil {
		return s.recordFailure(rec, err)
	}

	row := productRow(rec, res)
	if err := s.loader.InsertProduct(ctx, &row); err != nil {
		return s.recordFailure(rec, err)
	}
	s.progress.Inserted(1)
	return nil
}

func (s *Streaming) recordFailure(rec feed.Record, err error) error {
	if isFatal(err) {
		return err
	}
	if reason, ok := skipReasonOf(err); ok {
		s.progress.Skipped(reason, 1)
		s.logger.Warn("record skipped", append(recordFields(rec),
			zap.String("reason", reason.String()), zap.Error(err))...)
		return nil
	}
	s.progress.Errored(1)
	s.logger.Error("record failed", append(recordFields(rec), zap.Error(err))...)
	return nil
}

func (s *Streaming) fatal(phase string, err error) error {
	return phaseError(s.progress, phase, err)
}

// phaseError Pending 为已知总数中尚未处理的记录数
func phaseError(p *Progress, phase string, err error) *PhaseError {
	snap := p.Snapshot()
	return &PhaseError{
		Phase:     phase,
		Committed: snap.Inserted,
		Pending:   snap.Total - snap.Processed,
		Err:       err,
	}
}
