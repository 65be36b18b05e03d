package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Sequencer metrics
	IdentifiersIssued prometheus.Counter
	SequenceResets    prometheus.Counter
	SequenceErrors    *prometheus.CounterVec

	// Export metrics
	ExportsTotal   *prometheus.CounterVec
	ExportLatency  *prometheus.HistogramVec
	ExportPages    prometheus.Histogram
	DraftsActive   prometheus.Gauge
	EmailsSent     *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	EventsFailed   prometheus.Counter
	EventsSent     prometheus.Counter
	EventQueueSize prometheus.Gauge

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	ErrorTotal      *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		IdentifiersIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "identifiers_issued_total",
			Help:      "Total number of patient identifiers issued",
		}),
		SequenceResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "resets_total",
			Help:      "Number of times the daily counter restarted at 1",
		}),
		SequenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "errors_total",
			Help:      "Sequencer store failures",
		}, []string{"backend"}),

		ExportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Report exports by format and status",
		}, []string{"format", "status"}),
		ExportLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Time spent rendering an export",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"format"}),
		ExportPages: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "pdf_pages",
			Help:      "Pages per exported PDF",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}),
		DraftsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drafts",
			Name:      "active",
			Help:      "Drafts currently held in memory",
		}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "sent_total",
			Help:      "Report emails by status",
		}, []string{"status"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the queue was full",
		}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "Events that exhausted their retries",
		}),
		EventsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published to the broker",
		}),
		EventQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "queue_size",
			Help:      "Events waiting to be published",
		}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		ErrorTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "path", "type"}),
	}
}

// NewNop builds metrics on a private registry; handy in tests and the CLI.
func NewNop() *Metrics {
	return NewMetrics("labreport", prometheus.NewRegistry())
}
