// Package metrics counts ingest outcomes with Prometheus collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/ports"
)

const namespace = "obsindexer"

// Collector holds the ingest counters on a private registry.
type Collector struct {
	registry *prometheus.Registry
	records  *prometheus.CounterVec
	failures *prometheus.CounterVec
	batches  prometheus.Counter
}

var _ ports.OutcomeRecorder = (*Collector)(nil)

// NewCollector registers the counters.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Observation records processed, by action taken.",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Files that could not be ingested, by error kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Ingest batches completed.",
		}),
	}
	c.registry.MustRegister(c.records, c.failures, c.batches)
	return c
}

// Record counts one reconciled or skipped record.
func (c *Collector) Record(action domain.Action) {
	c.records.WithLabelValues(action.String()).Inc()
}

// Failed counts one failed file.
func (c *Collector) Failed(kind string) {
	c.failures.WithLabelValues(kind).Inc()
}

// BatchDone counts a completed batch.
func (c *Collector) BatchDone() {
	c.batches.Inc()
}

// Registry exposes the registry for scraping or tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile dumps the counters in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
