// Package metrics counts admission outcomes at the IPC boundary.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records admission outcomes. The server depends on this
// interface so tests run against Noop.
type Metrics interface {
	IncAdmitted(kind string)
	IncRejected(kind string, reason string)
	IncRateLimited()
	IncEnvelopeRejected()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncAdmitted(string)         {}
func (Noop) IncRejected(string, string) {}
func (Noop) IncRateLimited()            {}
func (Noop) IncEnvelopeRejected()       {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	admitted         *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	rateLimited      prometheus.Counter
	envelopeRejected prometheus.Counter
	once             sync.Once
}

// NewProm creates and registers Prometheus-backed admission counters
// under the given namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_admitted_total",
			Help:      "Messages admitted by payload kind",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Messages rejected by payload kind and reason",
		}, []string{"kind", "reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rate_limited_total",
			Help:      "Messages refused by the admission rate limiter",
		}),
		envelopeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_rejected_total",
			Help:      "Envelopes rejected by schema or size validation",
		}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.admitted, p.rejected, p.rateLimited, p.envelopeRejected)
	})
}

func (p *Prom) IncAdmitted(kind string) {
	p.admitted.WithLabelValues(kind).Inc()
}

func (p *Prom) IncRejected(kind, reason string) {
	p.rejected.WithLabelValues(kind, reason).Inc()
}

func (p *Prom) IncRateLimited() {
	p.rateLimited.Inc()
}

func (p *Prom) IncEnvelopeRejected() {
	p.envelopeRejected.Inc()
}

// Handler returns the scrape endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
