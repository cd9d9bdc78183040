// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"bbqmaster/cmd/internal/auth"
	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/rsvp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bbq"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	shareCodeAttempts  prometheus.Counter
	shareCodeConflicts prometheus.Counter
	shareCodeExhausted prometheus.Counter
	eventsCreated      prometheus.Counter
	rsvpSaves          *prometheus.CounterVec
	authChanges        *prometheus.CounterVec
	liveConnections    prometheus.GaugeFunc
}

// New registers all collectors. liveConns may be nil.
func New(liveConns func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		shareCodeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share_code",
			Name:      "attempts_total",
			Help:      "Share code insert attempts.",
		}),
		shareCodeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share_code",
			Name:      "collisions_total",
			Help:      "Share code inserts rejected by the unique constraint.",
		}),
		shareCodeExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share_code",
			Name:      "exhausted_total",
			Help:      "Event creations that ran out of share code attempts.",
		}),
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "created_total",
			Help:      "Events persisted.",
		}),
		rsvpSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "saves_total",
			Help:      "RSVP saves by status and outcome.",
		}, []string{"status", "outcome"}),
		authChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_changes_total",
			Help:      "Sign-ins and sign-outs.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.shareCodeAttempts, m.shareCodeConflicts, m.shareCodeExhausted, m.eventsCreated, m.rsvpSaves, m.authChanges)

	if liveConns != nil {
		m.liveConnections = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "connections",
			Help:      "Open live feed websocket connections.",
		}, func() float64 { return float64(liveConns()) })
		reg.MustRegister(m.liveConnections)
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveShareCodeAttempt is an event.Allocator observer.
func (m *Metrics) ObserveShareCodeAttempt(_ int, err error) {
	m.shareCodeAttempts.Inc()
	switch {
	case err == nil:
		m.eventsCreated.Inc()
	case event.IsShareCodeCollision(err):
		m.shareCodeConflicts.Inc()
	}
}

// ObserveEventCreateError counts terminal creation failures worth tracking.
func (m *Metrics) ObserveEventCreateError(err error) {
	if errors.Is(err, event.ErrShareCodeExhausted) {
		m.shareCodeExhausted.Inc()
	}
}

// ObserveRsvpSave is an rsvp.Synchronizer observer.
func (m *Metrics) ObserveRsvpSave(status rsvp.Status, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, rsvp.ErrInvalidInput):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	label := string(status)
	if label == "" || !status.Valid() {
		label = "none"
	}
	m.rsvpSaves.WithLabelValues(label, outcome).Inc()
}

// ObserveAuthChange is an auth.Broker subscriber.
func (m *Metrics) ObserveAuthChange(c auth.Change) {
	m.authChanges.WithLabelValues(string(c.Kind)).Inc()
}
