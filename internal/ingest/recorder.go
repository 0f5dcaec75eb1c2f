package ingest

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observation describes one finished step.
type Observation struct {
	RunID    string
	Plan     string
	Table    string
	Source   string
	Read     int
	Inserted int
	Skipped  int
	Filtered int
	Duration time.Duration
	Err      error
}

// Recorder receives one observation per executed step, including the step
// that failed.
type Recorder interface {
	Observe(ctx context.Context, obs Observation)
}

type noopRecorder struct{}

func (noopRecorder) Observe(context.Context, Observation) {}

// MultiRecorder fans observations out to every non-nil recorder.
func MultiRecorder(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) Observe(ctx context.Context, obs Observation) {
	for _, r := range m {
		r.Observe(ctx, obs)
	}
}

// Metric names exported by PrometheusRecorder.
const (
	metricInserted = "sessionflow_ingest_rows_inserted_total"
	metricSkipped  = "sessionflow_ingest_rows_skipped_total"
	metricDuration = "sessionflow_ingest_step_duration_seconds"
	metricFailures = "sessionflow_ingest_step_failures_total"
)

// PrometheusRecorder keeps per-table ingestion counters on its own registry
// so the CLI can dump them to a node-exporter textfile after a run.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	inserted *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a recorder registered on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricInserted,
			Help: "Rows inserted by ingestion, per table.",
		}, []string{"table"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricSkipped,
			Help: "Rows skipped as duplicates by ingestion, per table.",
		}, []string{"table"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricFailures,
			Help: "Ingestion steps that returned an error, per table.",
		}, []string{"table"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricDuration,
			Help:    "Wall time of one ingestion step.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"table"}),
	}
	r.registry.MustRegister(r.inserted, r.skipped, r.failures, r.duration)
	return r
}

// Registry exposes the registry the metrics live on.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe implements Recorder.
func (r *PrometheusRecorder) Observe(_ context.Context, obs Observation) {
	r.inserted.WithLabelValues(obs.Table).Add(float64(obs.Inserted))
	r.skipped.WithLabelValues(obs.Table).Add(float64(obs.Skipped))
	r.duration.WithLabelValues(obs.Table).Observe(obs.Duration.Seconds())
	if obs.Err != nil {
		r.failures.WithLabelValues(obs.Table).Inc()
	}
}

// WriteTextfile writes the current metrics in the text exposition format,
// atomically replacing path.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
