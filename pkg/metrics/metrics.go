// Package metrics provides Prometheus instrumentation for store
// operations. A nil *Collector records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction results.
const (
	ResultApplied  = "applied"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// Collector holds the store's Prometheus metrics.
type Collector struct {
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration prometheus.Histogram
	ObjectsLoaded       prometheus.Counter
	CacheRequests       *prometheus.CounterVec
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consonant",
				Name:      "transactions_total",
				Help:      "Transactions processed, by result",
			},
			[]string{"result"},
		),
		TransactionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "consonant",
				Name:      "transaction_duration_seconds",
				Help:      "Time to prepare, validate and apply a transaction",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ObjectsLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "consonant",
				Name:      "objects_loaded_total",
				Help:      "Objects decoded from repository trees",
			},
		),
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consonant",
				Name:      "cache_requests_total",
				Help:      "Cache lookups, by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// RecordTransaction counts one transaction and observes its duration.
func (c *Collector) RecordTransaction(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.TransactionsTotal.WithLabelValues(result).Inc()
	c.TransactionDuration.Observe(d.Seconds())
}

// RecordObjectsLoaded counts objects decoded from trees.
func (c *Collector) RecordObjectsLoaded(n int) {
	if c == nil || n == 0 {
		return
	}
	c.ObjectsLoaded.Add(float64(n))
}

// RecordCache counts a cache lookup. kind is "object" or "raw".
func (c *Collector) RecordCache(kind string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheRequests.WithLabelValues(kind, result).Inc()
}

// WriteTextfile writes every metric in g to path in the Prometheus text
// exposition format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
