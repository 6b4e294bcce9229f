// Package metrics provides Prometheus metrics for the factor pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the pipeline.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	scoreBuckets   []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Pipeline flow
	messagesReceived  prometheus.Counter
	messagesValidated prometheus.Counter
	messagesRejected  prometheus.Counter
	messagesEnriched  prometheus.Counter

	// Scoring outcome
	signals           *prometheus.CounterVec
	computationErrors *prometheus.CounterVec
	factorScore       prometheus.Histogram
	processingLatency prometheus.Histogram

	// Stream adapter
	streamRecords *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "factor",
		subsystem:      "pipeline",
		latencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		scoreBuckets:   []float64{-0.5, 0, 0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.5, 1, 2},
		constLabels:    prometheus.Labels{},
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.messagesReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "messages_received_total",
		Help:        "Total number of raw messages handed to the pipeline",
		ConstLabels: m.constLabels,
	})

	m.messagesValidated = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "messages_validated_total",
		Help:        "Total number of messages that passed schema validation",
		ConstLabels: m.constLabels,
	})

	m.messagesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "messages_rejected_total",
		Help:        "Total number of messages rejected as invalid format",
		ConstLabels: m.constLabels,
	})

	m.messagesEnriched = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "messages_enriched_total",
		Help:        "Total number of messages enriched with a factor score and signal",
		ConstLabels: m.constLabels,
	})

	m.signals = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "signals_total",
			Help:        "Total number of emitted factor signals by label",
			ConstLabels: m.constLabels,
		},
		[]string{"signal"},
	)

	m.computationErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "computation_errors_total",
			Help:        "Total number of factor computations that failed, by reason",
			ConstLabels: m.constLabels,
		},
		[]string{"reason"},
	)

	m.factorScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "factor_score",
		Help:        "Distribution of computed factor scores",
		Buckets:     m.scoreBuckets,
		ConstLabels: m.constLabels,
	})

	m.processingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "processing_latency_milliseconds",
		Help:        "Histogram of end-to-end message processing latency in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	})

	m.streamRecords = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "stream_records_total",
			Help:        "Total number of JSON lines handled by the stream adapter, by outcome",
			ConstLabels: m.constLabels,
		},
		[]string{"outcome"},
	)
}

// Manager methods.

func (m *Manager) RecordMessageReceived()  { m.messagesReceived.Inc() }
func (m *Manager) RecordMessageValidated() { m.messagesValidated.Inc() }
func (m *Manager) RecordMessageRejected()  { m.messagesRejected.Inc() }
func (m *Manager) RecordMessageEnriched()  { m.messagesEnriched.Inc() }

func (m *Manager) RecordSignal(signal string) {
	m.signals.WithLabelValues(signal).Inc()
}

func (m *Manager) RecordComputationError(reason string) {
	m.computationErrors.WithLabelValues(reason).Inc()
}

func (m *Manager) RecordFactorScore(score float64) {
	m.factorScore.Observe(score)
}

func (m *Manager) RecordProcessingLatency(latencyMs float64) {
	m.processingLatency.Observe(latencyMs)
}

func (m *Manager) RecordStreamRecord(outcome string) {
	m.streamRecords.WithLabelValues(outcome).Inc()
}

// Package-level recorders on the global manager.

// RecordMessageReceived increments the received counter.
func RecordMessageReceived() { globalManager.RecordMessageReceived() }

// RecordMessageValidated increments the validated counter.
func RecordMessageValidated() { globalManager.RecordMessageValidated() }

// RecordMessageRejected increments the rejected counter.
func RecordMessageRejected() { globalManager.RecordMessageRejected() }

// RecordMessageEnriched increments the enriched counter.
func RecordMessageEnriched() { globalManager.RecordMessageEnriched() }

// RecordSignal counts one emitted signal label.
func RecordSignal(signal string) { globalManager.RecordSignal(signal) }

// RecordComputationError counts one failed computation.
func RecordComputationError(reason string) { globalManager.RecordComputationError(reason) }

// RecordFactorScore observes a computed score.
func RecordFactorScore(score float64) { globalManager.RecordFactorScore(score) }

// RecordProcessingLatency records processing latency in milliseconds.
func RecordProcessingLatency(latencyMs float64) { globalManager.RecordProcessingLatency(latencyMs) }

// RecordStreamRecord counts one stream line by outcome.
func RecordStreamRecord(outcome string) { globalManager.RecordStreamRecord(outcome) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current state of the registry in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return writeTextfile(customRegistry, path)
}

func writeTextfile(g prometheus.Gatherer, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrWriteFailed)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
