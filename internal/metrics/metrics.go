package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgallion1/imglocal/internal/fetch"
)

// Metrics holds the Prometheus collectors for one run.
type Metrics struct {
	registry *prometheus.Registry

	ImagesTotal     *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	FetchBytesTotal prometheus.Counter
	FetchDuration   prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ImagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglocal_images_total",
			Help: "Image references processed, by outcome.",
		}, []string{"status"}), // localized, fetch_failed, write_failed
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglocal_fetch_attempts_total",
			Help: "HTTP GET attempts, by result.",
		}, []string{"result", "code"}),
		FetchBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglocal_fetch_bytes_total",
			Help: "Bytes downloaded by successful attempts.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imglocal_fetch_duration_seconds",
			Help:    "Duration of individual fetch attempts.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	reg.MustRegister(m.ImagesTotal, m.AttemptsTotal, m.FetchBytesTotal, m.FetchDuration)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAttempt records one fetch attempt. It matches fetch.Options.OnAttempt.
func (m *Metrics) ObserveAttempt(a fetch.Attempt) {
	result := "success"
	if a.Err != nil {
		result = "failure"
	}
	code := "none"
	if a.StatusCode > 0 {
		code = strconv.Itoa(a.StatusCode)
	}
	m.AttemptsTotal.WithLabelValues(result, code).Inc()
	m.FetchDuration.Observe(a.Duration.Seconds())
	if a.Err == nil {
		m.FetchBytesTotal.Add(float64(a.Bytes))
	}
}

// IncImages counts one processed reference with the given status.
func (m *Metrics) IncImages(status string) {
	m.ImagesTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
