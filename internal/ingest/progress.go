package ingest

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog_ingest_v1/internal/feed"
)

// Snapshot 某一时刻的进度，供日志、审计记录与状态接口使用
type Snapshot struct {
	RunID        string `json:"run_id"`
	Strategy     string `json:"strategy"`
	Phase        string `json:"phase"`
	Running      bool   `json:"running"`
	CurrentBatch string `json:"current_batch,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	ElapsedSec float64   `json:"elapsed_sec"`
	RatePerSec float64   `json:"rate_per_sec"`
	ETASec     float64   `json:"eta_sec,omitempty"`

	Total               int64 `json:"total"`
	Processed           int64 `json:"processed"`
	Inserted            int64 `json:"inserted"`
	SkippedMissingField int64 `json:"skipped_missing_field"`
	SkippedUnresolvable int64 `json:"skipped_unresolvable"`
	SkippedRejected     int64 `json:"skipped_rejected"`
	Errored             int64 `json:"errored"`

	BatchesDone int `json:"batches_done"`
	FilesDone   int `json:"files_done"`

	Created CreatedCounts `json:"created"`
}

// Skipped 跳过总数
func (s Snapshot) Skipped() int64 {
	return s.SkippedMissingField + s.SkippedUnresolvable + s.SkippedRejected
}

// Balanced inserted + skipped + errored == total
func (s Snapshot) Balanced() bool {
	return s.Inserted+s.Skipped()+s.Errored == s.Total
}

// Progress 进度统计与吞吐日志，实现 feed.BatchObserver
// 由写入线程更新，状态接口并发读取
type Progress struct {
	mu sync.Mutex

	snap     Snapshot
	interval int64
	nextLog  int64

	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

var _ feed.BatchObserver = (*Progress)(nil)

// NewProgress 创建进度统计，logInterval 为每隔多少条记录输出一次吞吐日志
func NewProgress(runID, strategy string, logInterval int, metrics *Metrics, logger *zap.Logger) *Progress {
	if logInterval <= 0 {
		logInterval = 1000
	}
	p := &Progress{
		interval: int64(logInterval),
		nextLog:  int64(logInterval),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	p.snap = Snapshot{
		RunID:     runID,
		Strategy:  strategy,
		Running:   true,
		StartedAt: p.now(),
	}
	if metrics != nil {
		metrics.Running.Set(1)
	}
	return p
}

// SetPhase 记录当前阶段
func (p *Progress) SetPhase(phase string) {
	p.mu.Lock()
	p.snap.Phase = phase
	p.mu.Unlock()
	p.logger.Info("phase", zap.String("phase", phase))
}

// AddTotal 增加已知的记录总数（流式策略每解析一个文件累加一次）
func (p *Progress) AddTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Total += int64(n)
}

// Inserted 记录成功写入的商品数
func (p *Progress) Inserted(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.snap.Inserted += n
	p.advance(n)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Records.WithLabelValues("inserted").Add(float64(n))
	}
}

// Skipped 记录被跳过的商品数
func (p *Progress) Skipped(reason SkipReason, n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	switch reason {
	case SkipMissingField:
		p.snap.SkippedMissingField += n
	case SkipUnresolvable:
		p.snap.SkippedUnresolvable += n
	case SkipRejected:
		p.snap.SkippedRejected += n
	}
	p.advance(n)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Records.WithLabelValues("skipped_" + reason.String()).Add(float64(n))
	}
}

// Errored 记录原文无效或写入失败的商品数
func (p *Progress) Errored(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.snap.Errored += n
	p.advance(n)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Records.WithLabelValues("errored").Add(float64(n))
	}
}

// SetCreated 记录新建实体数
func (p *Progress) SetCreated(c CreatedCounts) {
	p.mu.Lock()
	prev := p.snap.Created
	p.snap.Created = c
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.EntitiesCreated.WithLabelValues("sector").Add(float64(c.Sectors - prev.Sectors))
		p.metrics.EntitiesCreated.WithLabelValues("category").Add(float64(c.Categories - prev.Categories))
		p.metrics.EntitiesCreated.WithLabelValues("subcategory").Add(float64(c.Subcategories - prev.Subcategories))
		p.metrics.EntitiesCreated.WithLabelValues("supplier").Add(float64(c.Suppliers - prev.Suppliers))
	}
}

// advance 调用方持有锁
func (p *Progress) advance(n int64) {
	p.snap.Processed += n
	if p.snap.Processed < p.nextLog {
		return
	}
	for p.nextLog <= p.snap.Processed {
		p.nextLog += p.interval
	}

	s := p.fill(p.snap)
	fields := []zap.Field{
		zap.Int64("processed", s.Processed),
		zap.Int64("inserted", s.Inserted),
		zap.Float64("rate_per_sec", s.RatePerSec),
		zap.Duration("elapsed", time.Duration(s.ElapsedSec*float64(time.Second)).Round(time.Second)),
	}
	if s.Total > 0 {
		fields = append(fields,
			zap.Int64("total", s.Total),
			zap.Duration("eta", time.Duration(s.ETASec*float64(time.Second)).Round(time.Second)))
	}
	p.logger.Info("progress", fields...)
}

// fill 计算耗时、速率与预计剩余时间
func (p *Progress) fill(s Snapshot) Snapshot {
	elapsed := p.now().Sub(s.StartedAt).Seconds()
	s.ElapsedSec = elapsed
	if elapsed > 0 {
		s.RatePerSec = float64(s.Processed) / elapsed
	}
	if s.Total > s.Processed && s.RatePerSec > 0 {
		s.ETASec = float64(s.Total-s.Processed) / s.RatePerSec
	} else {
		s.ETASec = 0
	}
	return s
}

// ==================== feed.BatchObserver ====================

func (p *Progress) BatchStarted(b feed.Batch) {
	p.mu.Lock()
	p.snap.CurrentBatch = b.Name
	p.mu.Unlock()
}

func (p *Progress) FileDone(f feed.File, records int) {
	p.mu.Lock()
	p.snap.FilesDone++
	s := p.fill(p.snap)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Files.Inc()
	}
	p.logger.Info("file done",
		zap.String("batch", f.Batch),
		zap.String("file", f.Name),
		zap.Int("records", records),
		zap.Int("files_done", s.FilesDone),
		zap.Int64("processed", s.Processed),
		zap.Float64("rate_per_sec", s.RatePerSec))
}

func (p *Progress) BatchFinished(b feed.Batch) {
	p.mu.Lock()
	p.snap.BatchesDone++
	p.snap.CurrentBatch = ""
	done := p.snap.BatchesDone
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Batches.Inc()
	}
	p.logger.Info("batch finished",
		zap.String("batch", b.Name),
		zap.Int("files", len(b.Files)),
		zap.Int("batches_done", done))
}

// ==================== 结束与读取 ====================

// Finish 标记运行结束
func (p *Progress) Finish(status string) Snapshot {
	p.mu.Lock()
	p.snap.Running = false
	p.snap.Phase = status
	s := p.fill(p.snap)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Running.Set(0)
		p.metrics.Runs.WithLabelValues(s.Strategy, status).Inc()
		p.metrics.RunDuration.WithLabelValues(s.Strategy).Observe(s.ElapsedSec)
	}
	return s
}

// Snapshot 当前进度
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fill(p.snap)
}
