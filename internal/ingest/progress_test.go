package ingest

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"catalog_ingest_v1/internal/feed"
)

func TestProgress_Tallies(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewProgress("run-1", StrategyBulk, 1000, metrics, zap.NewNop())

	p.AddTotal(10)
	p.Inserted(6)
	p.Skipped(SkipMissingField, 1)
	p.Skipped(SkipUnresolvable, 1)
	p.Skipped(SkipRejected, 1)
	p.Errored(1)
	p.Inserted(0)

	s := p.Snapshot()
	assert.Equal(t, int64(10), s.Processed)
	assert.Equal(t, int64(3), s.Skipped())
	assert.True(t, s.Balanced())
	assert.True(t, s.Running)

	assert.Equal(t, float64(6), testutil.ToFloat64(metrics.Records.WithLabelValues("inserted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Records.WithLabelValues("skipped_missing_field")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Running))

	final := p.Finish("completed")
	assert.False(t, final.Running)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Running))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues(StrategyBulk, "completed")))
}

func TestProgress_RateAndETA(t *testing.T) {
	p := NewProgress("run-1", StrategyStreaming, 1000, nil, zap.NewNop())
	start := p.snap.StartedAt
	p.now = func() time.Time { return start.Add(10 * time.Second) }

	p.AddTotal(300)
	p.Inserted(100)

	s := p.Snapshot()
	assert.InDelta(t, 10.0, s.RatePerSec, 0.001)
	assert.InDelta(t, 20.0, s.ETASec, 0.001)
	assert.False(t, s.Balanced())
}

func TestProgress_LogsEveryInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewProgress("run-1", StrategyStreaming, 5, nil, zap.New(core))

	for i := 0; i < 12; i++ {
		p.Inserted(1)
	}
	assert.Equal(t, 2, logs.FilterMessage("progress").Len())

	// 一次跨过多个间隔只输出一条
	p.Skipped(SkipUnresolvable, 20)
	assert.Equal(t, 3, logs.FilterMessage("progress").Len())
}

func TestProgress_BatchObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewProgress("run-1", StrategyBulk, 1000, metrics, zap.NewNop())

	b := feed.Batch{Name: "Group-1", Files: []feed.File{{Name: "a.json"}, {Name: "b.json"}}}
	p.BatchStarted(b)
	assert.Equal(t, "Group-1", p.Snapshot().CurrentBatch)

	p.FileDone(b.Files[0], 3)
	p.FileDone(b.Files[1], 4)
	p.BatchFinished(b)

	s := p.Snapshot()
	assert.Equal(t, 2, s.FilesDone)
	assert.Equal(t, 1, s.BatchesDone)
	assert.Empty(t, s.CurrentBatch)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Files))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Batches))
}

func TestProgress_SetCreatedAddsDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewProgress("run-1", StrategyStreaming, 1000, metrics, zap.NewNop())

	p.SetCreated(CreatedCounts{Sectors: 1, Suppliers: 2})
	p.SetCreated(CreatedCounts{Sectors: 1, Suppliers: 5})

	require.Equal(t, CreatedCounts{Sectors: 1, Suppliers: 5}, p.Snapshot().Created)
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.EntitiesCreated.WithLabelValues("supplier")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EntitiesCreated.WithLabelValues("sector")))
}
