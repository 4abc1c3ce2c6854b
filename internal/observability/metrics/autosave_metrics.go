package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	AutosaveOutcomeSaved = "saved"
	AutosaveOutcomeError = "error"
)

// AutosaveMetrics tracks debounced claim saves issued by the client.
type AutosaveMetrics struct {
	saves    *prometheus.CounterVec
	pending  prometheus.Gauge
	duration prometheus.Histogram
}

var (
	autosaveMetricsOnce sync.Once
	autosaveMetrics     *AutosaveMetrics
)

// Autosave returns the singleton autosave metrics registry.
func Autosave() *AutosaveMetrics {
	return AutosaveWithConfig(Config{})
}

// AutosaveWithConfig registers the singleton with cfg on first use. Later
// calls return it unchanged.
func AutosaveWithConfig(cfg Config) *AutosaveMetrics {
	autosaveMetricsOnce.Do(func() {
		autosaveMetrics = NewAutosaveMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return autosaveMetrics
}

// ResetAutosaveMetricsForTest resets the autosave metrics singleton for tests.
func ResetAutosaveMetricsForTest() {
	autosaveMetricsOnce = sync.Once{}
	autosaveMetrics = nil
}

func NewAutosaveMetrics(registerer prometheus.Registerer, cfg Config) *AutosaveMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rfacto_autosave_saves_total",
		Help:        "Claim autosave requests by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rfacto_autosave_pending",
		Help:        "Claims with a scheduled save not yet sent.",
		ConstLabels: constLabels,
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "rfacto_autosave_duration_seconds",
		Help:        "Latency of claim autosave requests.",
		Buckets:     autosaveBuckets(cfg.AutosaveTimeout),
		ConstLabels: constLabels,
	})

	registerer.MustRegister(saves, pending, duration)
	return &AutosaveMetrics{saves: saves, pending: pending, duration: duration}
}

// autosaveBuckets spreads eight buckets from 50ms up to the request timeout.
func autosaveBuckets(timeout time.Duration) []float64 {
	const minBucket = 0.05
	if timeout.Seconds() <= minBucket {
		return prometheus.DefBuckets
	}
	return prometheus.ExponentialBucketsRange(minBucket, timeout.Seconds(), 8)
}

func (m *AutosaveMetrics) ObserveSave(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *AutosaveMetrics) SetPending(count int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(count))
}
