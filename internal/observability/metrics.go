package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/sla"
)

// Metrics exposes HTTP and dashboard metrics to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	errors         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	ticketsByTier  *prometheus.GaugeVec
	ticketsOverdue prometheus.Gauge
	unreadNotices  prometheus.Gauge
	auditDecisions *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saf_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"method", "path", "status"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saf_http_errors_total",
			Help: "HTTP error responses by domain error code.",
		}, []string{"method", "path", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saf_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ticketsByTier: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "saf_tickets_by_tier",
			Help: "Open tickets by aging tier.",
		}, []string{"tier"}),
		ticketsOverdue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "saf_tickets_overdue",
			Help: "Open tickets past their due date.",
		}),
		unreadNotices: factory.NewGauge(prometheus.GaugeOpts{
			Name: "saf_notifications_unread",
			Help: "Unread coordinator notifications.",
		}),
		auditDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saf_audit_decisions_total",
			Help: "Coordinator decisions on audit records.",
		}, []string{"action_type", "decision"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// SetTicketTiers publishes open ticket counts per tier.
func (m *Metrics) SetTicketTiers(counts map[sla.Tier]int) {
	if m == nil {
		return
	}
	for _, tier := range []sla.Tier{sla.TierNormal, sla.TierAttention, sla.TierCritical} {
		m.ticketsByTier.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
}

// SetOverdue publishes the overdue ticket count.
func (m *Metrics) SetOverdue(n int) {
	if m == nil {
		return
	}
	m.ticketsOverdue.Set(float64(n))
}

// SetUnreadNotifications publishes the unread notification count.
func (m *Metrics) SetUnreadNotifications(n int) {
	if m == nil {
		return
	}
	m.unreadNotices.Set(float64(n))
}

// Register counts audit decisions published on dispatcher.
func (m *Metrics) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventAuditDecided, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.AuditDecidedPayload)
		if !ok {
			return nil
		}
		decision := "rejected"
		if payload.Approved {
			decision = "approved"
		}
		m.auditDecisions.WithLabelValues(string(payload.Record.ActionType), decision).Inc()
		return nil
	})
}
