// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	StatusSuccess  = "success"
	StatusReplay   = "replay"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
	StatusError    = "error"
)

// Recorder receives ledger and rate lookup measurements.
type Recorder interface {
	ObserveOperation(operation, status string, elapsed time.Duration)
	IncConflictRetry(operation string)
	ObserveRateQuote(status string)
}

// Prometheus records into collectors registered on a caller-supplied registry.
type Prometheus struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	rateLookups *prometheus.CounterVec
}

// NewPrometheus registers the ledger collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Total number of ledger operations by outcome",
			},
			[]string{"operation", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
			},
			[]string{"operation"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_conflict_retries_total",
				Help: "Optimistic concurrency conflicts that triggered a retry",
			},
			[]string{"operation"},
		),
		rateLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_quotes_total",
				Help: "Exchange rate lookups by outcome",
			},
			[]string{"status"},
		),
	}
}

func (p *Prometheus) ObserveOperation(operation, status string, elapsed time.Duration) {
	p.operations.WithLabelValues(operation, status).Inc()
	p.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (p *Prometheus) IncConflictRetry(operation string) {
	p.retries.WithLabelValues(operation).Inc()
}

func (p *Prometheus) ObserveRateQuote(status string) {
	p.rateLookups.WithLabelValues(status).Inc()
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveOperation(string, string, time.Duration) {}
func (Noop) IncConflictRetry(string)                        {}
func (Noop) ObserveRateQuote(string)                        {}
