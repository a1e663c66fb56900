// Package metrics exposes per-operation counters and latency histograms.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warehouse-ops/internal/core"
)

const namespace = "warehouse"

// OutcomeOK labels successful operations; failures are labelled with their error code.
const OutcomeOK = "ok"

// Recorder records engine operation outcomes on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dropped  prometheus.Counter
}

// New builds a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped because the buffer was full.",
		}),
	}
	r.registry.MustRegister(
		r.ops, r.duration, r.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records one finished operation. err is mapped to its error code.
func (r *Recorder) Observe(op string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, Outcome(err)).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// AuditDropped counts one dropped audit entry.
func (r *Recorder) AuditDropped() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Outcome is the label value for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(core.CodeOf(err))
}
