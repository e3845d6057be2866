package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EdgeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "niftyedge",
			Subsystem: "edge",
			Name:      "latency_seconds",
			Help:      "Latency of edge endpoints",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"endpoint"},
	)

	EdgeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "niftyedge",
			Subsystem: "edge",
			Name:      "errors_total",
			Help:      "Errors by edge endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EdgeLatency, EdgeErrors)
	})
}

// Observe records one call of endpoint. An empty code means success.
func Observe(endpoint string, start time.Time, code string) {
	EdgeLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if code != "" {
		EdgeErrors.WithLabelValues(endpoint, code).Inc()
	}
}
