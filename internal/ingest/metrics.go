package ingest

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "catalog_ingest"

// Metrics 导入流程的 Prometheus 指标
type Metrics struct {
	Records         *prometheus.CounterVec
	Files           prometheus.Counter
	Batches         prometheus.Counter
	EntitiesCreated *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	Running         prometheus.Gauge
}

// NewMetrics 创建并注册指标；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Product records processed, by outcome.",
		}, []string{"outcome"}),
		Files: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_total",
			Help:      "Feed files fully processed.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_total",
			Help:      "Feed batches fully processed.",
		}),
		EntitiesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "entities_created_total",
			Help:      "Hierarchy and supplier rows created, by entity.",
		}, []string{"entity"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Pipeline runs, by strategy and final status.",
		}, []string{"strategy", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"strategy"}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "running",
			Help:      "1 while a pipeline run is in progress.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Records, m.Files, m.Batches, m.EntitiesCreated, m.Runs, m.RunDuration, m.Running)
	}
	return m
}
