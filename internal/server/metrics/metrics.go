// Package metrics owns the Prometheus registry exposed at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notifier holds the reminder poller metrics.
type Notifier struct {
	Cycles        prometheus.Counter
	SkippedCycles prometheus.Counter
	Sent          prometheus.Counter
	Failed        prometheus.Counter
	CycleDuration prometheus.Histogram
}

// HTTP holds request metrics labelled by route pattern, not raw path.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// Vault counts document operations by audit action.
type Vault struct {
	Operations        *prometheus.CounterVec
	IntegrityFailures prometheus.Counter
}

type Registry struct {
	reg      *prometheus.Registry
	Notifier *Notifier
	HTTP     *HTTP
	Vault    *Vault
}

// New creates a registry with the Go and process collectors plus the
// CareConnect metrics. Each call yields an independent registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		Notifier: &Notifier{
			Cycles: f.NewCounter(prometheus.CounterOpts{
				Name: "careconnect_notifier_cycles_total",
				Help: "Completed and attempted reminder poll cycles",
			}),
			SkippedCycles: f.NewCounter(prometheus.CounterOpts{
				Name: "careconnect_notifier_skipped_cycles_total",
				Help: "Poll cycles skipped because another cycle was running",
			}),
			Sent: f.NewCounter(prometheus.CounterOpts{
				Name: "careconnect_reminders_sent_total",
				Help: "Reminder notifications delivered",
			}),
			Failed: f.NewCounter(prometheus.CounterOpts{
				Name: "careconnect_reminders_failed_total",
				Help: "Reminder notifications that failed and stay pending",
			}),
			CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "careconnect_notifier_cycle_duration_seconds",
				Help:    "Duration of one reminder poll cycle",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			}),
		},
		HTTP: &HTTP{
			Requests: f.NewCounterVec(prometheus.CounterOpts{
				Name: "careconnect_http_requests_total",
				Help: "HTTP requests by method, route and status",
			}, []string{"method", "route", "status"}),
			Duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "careconnect_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "route"}),
		},
		Vault: &Vault{
			Operations: f.NewCounterVec(prometheus.CounterOpts{
				Name: "careconnect_vault_operations_total",
				Help: "Vault document operations by action",
			}, []string{"action"}),
			IntegrityFailures: f.NewCounter(prometheus.CounterOpts{
				Name: "careconnect_vault_integrity_failures_total",
				Help: "Document reads rejected by authentication tag verification",
			}),
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
