package storage

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "podscheduler_persister_"

// InstrumentedPersister records the count, outcome and latency of every operation on the underlying Persister.
type InstrumentedPersister struct {
	underlying Persister
	backend    string
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewInstrumentedPersister registers its metrics with reg; pass prometheus.DefaultRegisterer in production.
func NewInstrumentedPersister(underlying Persister, backend string, reg prometheus.Registerer) *InstrumentedPersister {
	factory := promauto.With(reg)
	return &InstrumentedPersister{
		underlying: underlying,
		backend:    backend,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "operations_total",
				Help: "Number of persister operations, by backend, operation and result",
			},
			[]string{"backend", "operation", "result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "operation_duration_seconds",
				Help:    "Latency of persister operations",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"backend", "operation"},
		),
	}
}

func (p *InstrumentedPersister) Get(path string) ([]byte, error) {
	start := time.Now()
	value, err := p.underlying.Get(path)
	p.observe("get", start, err)
	return value, err
}

func (p *InstrumentedPersister) Set(path string, value []byte) error {
	start := time.Now()
	err := p.underlying.Set(path, value)
	p.observe("set", start, err)
	return err
}

func (p *InstrumentedPersister) Delete(path string) error {
	start := time.Now()
	err := p.underlying.Delete(path)
	p.observe("delete", start, err)
	return err
}

func (p *InstrumentedPersister) GetChildren(path string) ([]string, error) {
	start := time.Now()
	children, err := p.underlying.GetChildren(path)
	p.observe("get_children", start, err)
	return children, err
}

func (p *InstrumentedPersister) RecursiveDelete(path string) error {
	start := time.Now()
	err := p.underlying.RecursiveDelete(path)
	p.observe("recursive_delete", start, err)
	return err
}

func (p *InstrumentedPersister) observe(operation string, start time.Time, err error) {
	p.latency.WithLabelValues(p.backend, operation).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = strings.ToLower(ReasonOf(err).String())
	}
	p.operations.WithLabelValues(p.backend, operation, result).Inc()
}
