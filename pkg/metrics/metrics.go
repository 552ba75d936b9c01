// Package metrics exports ledger counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
)

// Collector counts payment submissions and workbook mutations. It satisfies
// ledger.Observer.
type Collector struct {
	registry     *prometheus.Registry
	transactions *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	durations    *prometheus.HistogramVec
}

// New registers the ledger collectors, plus the Go runtime and process
// collectors, on a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Payment submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Workbook mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_mutation_duration_seconds",
			Help:    "Time spent in a workbook mutation, including locking and the file swap.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"operation"}),
	}
	c.registry.MustRegister(
		c.transactions,
		c.mutations,
		c.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveMutation implements ledger.Observer.
func (c *Collector) ObserveMutation(op ledger.Operation, outcome string, elapsed time.Duration) {
	c.mutations.WithLabelValues(string(op), outcome).Inc()
	c.durations.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// ObserveTransaction implements ledger.Observer.
func (c *Collector) ObserveTransaction(kind ledger.Operation, outcome string) {
	c.transactions.WithLabelValues(string(kind), outcome).Inc()
}

// Registry exposes the underlying registry, e.g. for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
