package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics regroupe les métriques Prometheus du pipeline et du scheduler.
// Un *Metrics nil est accepté partout (tests).
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	NewItems         prometheus.Counter
	DroppedItems     *prometheus.CounterVec
	ScheduledJobs    prometheus.Gauge
	JobFires         *prometheus.CounterVec
	TriggeredTasks   *prometheus.CounterVec
	Workers          prometheus.Gauge
}

// NewMetrics enregistre les métriques sur reg (prometheus.NewRegistry() en test).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "animeloader_pipeline_runs_total",
			Help: "Feed ingestion runs by outcome",
		}, []string{"outcome"}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "animeloader_pipeline_run_duration_seconds",
			Help:    "Time spent in one feed ingestion run",
			Buckets: prometheus.DefBuckets,
		}),
		NewItems: f.NewCounter(prometheus.CounterOpts{
			Name: "animeloader_pipeline_new_items_total",
			Help: "Items persisted by the ingestion pipeline",
		}),
		DroppedItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "animeloader_pipeline_dropped_items_total",
			Help: "Feed entries excluded from persistence by reason",
		}, []string{"reason"}),
		ScheduledJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "animeloader_scheduler_jobs",
			Help: "Polling jobs currently registered",
		}),
		JobFires: f.NewCounterVec(prometheus.CounterOpts{
			Name: "animeloader_scheduler_fires_total",
			Help: "Scheduled job fires by outcome",
		}, []string{"outcome"}),
		TriggeredTasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "animeloader_trigger_tasks_total",
			Help: "Download trigger attempts by outcome",
		}, []string{"outcome"}),
		Workers: f.NewGauge(prometheus.GaugeOpts{
			Name: "animeloader_download_workers",
			Help: "Download workers currently running",
		}),
	}
}

func (m *Metrics) runFinished(outcome string, seconds float64, newItems int) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
	m.PipelineDuration.Observe(seconds)
	m.NewItems.Add(float64(newItems))
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedItems.WithLabelValues(reason).Inc()
}

func (m *Metrics) jobsChanged(n int) {
	if m == nil {
		return
	}
	m.ScheduledJobs.Set(float64(n))
}

func (m *Metrics) fired(outcome string) {
	if m == nil {
		return
	}
	m.JobFires.WithLabelValues(outcome).Inc()
}

func (m *Metrics) triggered(outcome string) {
	if m == nil {
		return
	}
	m.TriggeredTasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) workersChanged(n int) {
	if m == nil {
		return
	}
	m.Workers.Set(float64(n))
}
