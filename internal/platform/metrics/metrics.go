// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salonbridge"

// Metrics owns a private registry so tests can build as many as they like.
// Its methods satisfy the Recorder interfaces of auth, webhook and tasks.
type Metrics struct {
	registry *prometheus.Registry

	authDecisions        *prometheus.CounterVec
	webhookVerifications *prometheus.CounterVec
	tasks                *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Request authentication outcomes.",
		}, []string{"outcome"}),
		webhookVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_verifications_total",
			Help:      "Webhook signature verification outcomes.",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Background task outcomes.",
		}, []string{"task", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authDecisions,
		m.webhookVerifications,
		m.tasks,
	)
	return m
}

func (m *Metrics) ObserveAuth(outcome string) {
	m.authDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWebhook(outcome string) {
	m.webhookVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTask(name, outcome string) {
	m.tasks.WithLabelValues(name, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
