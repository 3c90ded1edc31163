// Package metrics exposes Prometheus metrics for the directlink service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "directlink"

// Resolve outcomes, used as the "outcome" label value.
const (
	OutcomeOK            = "ok"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeUnavailable   = "unavailable"
	OutcomeNoDirectLink  = "no_direct_link"
	OutcomeDelegateError = "delegate_error"
	OutcomeCanceled      = "canceled"
)

// Recorder records service metrics on its own registry. A nil *Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	resolveTotal     *prometheus.CounterVec
	resolveDuration  *prometheus.HistogramVec
	backendAvailable *prometheus.GaugeVec
}

// New creates a Recorder with a fresh registry that also carries the
// standard Go runtime and process collectors.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(registry)

	return &Recorder{
		registry: registry,
		resolveTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Total number of share URL resolutions by outcome",
		}, []string{"outcome"}),
		resolveDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving share URLs, including the backend call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		backendAvailable: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_available",
			Help:      "1 if a resolution backend was detected at startup, labelled by strategy",
		}, []string{"strategy"}),
	}
}

// ObserveResolve records one resolution.
func (r *Recorder) ObserveResolve(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.resolveTotal.WithLabelValues(outcome).Inc()
	r.resolveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetBackend records the outcome of backend detection. An empty strategy
// means no backend is available.
func (r *Recorder) SetBackend(strategy string) {
	if r == nil {
		return
	}
	if strategy == "" {
		r.backendAvailable.WithLabelValues("none").Set(0)
		return
	}
	r.backendAvailable.WithLabelValues(strategy).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
