package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

// FaxMetrics records ingestion, review, watcher and gateway breaker activity.
type FaxMetrics struct {
	service string

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	reviewTotal    *prometheus.CounterVec
	scanTotal      *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	scanFiles      *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	breakerState   *prometheus.GaugeVec
}

func NewFaxMetrics(registerer prometheus.Registerer, service string) *FaxMetrics {
	constLabels := prometheus.Labels{"service": service}
	m := &FaxMetrics{
		service: service,
		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "faxes_total",
				Help:      "Total ingestion attempts by source and outcome.",
			},
			[]string{"service", "source", "outcome"},
		),
		ingestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Ingestion duration in seconds, extraction and classification included.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"service", "outcome"},
		),
		reviewTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "review",
				Name:      "actions_total",
				Help:      "Total review actions by action and outcome.",
			},
			[]string{"service", "action", "outcome"},
		),
		scanTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "scans_total",
				Help:      "Total watch folder scans by outcome.",
			},
			[]string{"service", "outcome"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "watcher",
				Name:        "scan_duration_seconds",
				Help:        "Watch folder scan duration in seconds.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
		),
		scanFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "files_total",
				Help:      "Files seen by the watcher by result.",
			},
			[]string{"service", "result"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "review",
				Name:        "queue_depth",
				Help:        "Faxes awaiting human review.",
				ConstLabels: constLabels,
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}

	registerer.MustRegister(
		m.ingestTotal,
		m.ingestDuration,
		m.reviewTotal,
		m.scanTotal,
		m.scanDuration,
		m.scanFiles,
		m.queueDepth,
		m.breakerState,
	)
	return m
}

func (m *FaxMetrics) ObserveIngest(source, outcome string, duration time.Duration) {
	m.ingestTotal.WithLabelValues(m.service, source, outcome).Inc()
	m.ingestDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *FaxMetrics) ObserveReview(action, outcome string) {
	m.reviewTotal.WithLabelValues(m.service, action, outcome).Inc()
}

func (m *FaxMetrics) ObserveScan(outcome string, duration time.Duration, report domain.ScanReport) {
	m.scanTotal.WithLabelValues(m.service, outcome).Inc()
	m.scanDuration.Observe(duration.Seconds())
	m.scanFiles.WithLabelValues(m.service, "ingested").Add(float64(report.Ingested))
	m.scanFiles.WithLabelValues(m.service, "skipped").Add(float64(report.Skipped))
	m.scanFiles.WithLabelValues(m.service, "failed").Add(float64(report.Failed))
}

func (m *FaxMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveBreakerState matches resilience.StateListener.
func (m *FaxMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
}
