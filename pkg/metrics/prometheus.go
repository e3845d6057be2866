package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	rowsTotal   *prometheus.CounterVec
	labelRows   *prometheus.GaugeVec
	liveTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the recorder's collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftyedge_backtest_runs_total",
				Help: "Batch runs by final status",
			},
			[]string{"status"},
		),
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftyedge_rows_total",
				Help: "Rows processed per pipeline stage",
			},
			[]string{"stage"},
		),
		labelRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "niftyedge_label_rows",
				Help: "Rows per label in the latest run",
			},
			[]string{"table", "label"},
		),
		liveTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftyedge_live_classifications_total",
				Help: "Live classifications by status",
			},
			[]string{"status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftyedge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "niftyedge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordRows(stage string, n int) {
	r.rowsTotal.WithLabelValues(stage).Add(float64(n))
}

// RecordLabel sets the row count of one table key.
func (r *Recorder) RecordLabel(table, label string, n int) {
	r.labelRows.WithLabelValues(table, label).Set(float64(n))
}

func (r *Recorder) RecordLiveClassification(status string) {
	r.liveTotal.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
