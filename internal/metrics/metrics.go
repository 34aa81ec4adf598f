package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionSource reports live session state for the sampled gauges.
type SessionSource interface {
	SessionsByTransport() map[string]int
	MaxQueueDepth() int
}

// GroupSource reports broadcast group state for the sampled gauges.
type GroupSource interface {
	GroupCount() int
}

// Metrics owns every exported series. Counters are bumped at the call
// sites; gauges are sampled from the sources on Update. Increment methods
// are safe on a nil receiver, so components can treat metrics as optional.
type Metrics struct {
	registerer prometheus.Registerer

	sessions SessionSource
	groups   GroupSource

	sessionsConnected  *prometheus.GaugeVec
	groupsActive       prometheus.Gauge
	queueDepthMax      prometheus.Gauge
	connectionsTotal   *prometheus.CounterVec
	authFailuresTotal  *prometheus.CounterVec
	commandsTotal      *prometheus.CounterVec
	envelopesPublished prometheus.Counter
	envelopesDelivered prometheus.Counter
	evictionsTotal     prometheus.Counter
}

func New(opts ...MetricsOpt) *Metrics {
	m := &Metrics{
		registerer: prometheus.DefaultRegisterer,
		sessionsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mudlink_sessions_connected",
			Help: "Connected sessions by transport.",
		}, []string{"transport"}),
		groupsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mudlink_groups_active",
			Help: "Broadcast groups with at least one member.",
		}),
		queueDepthMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mudlink_outbound_queue_max",
			Help: "Deepest outbound queue across live sessions.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mudlink_connections_total",
			Help: "Authenticated connections accepted, by transport.",
		}, []string{"transport"}),
		authFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mudlink_auth_failures_total",
			Help: "Connections rejected during authentication, by kind.",
		}, []string{"kind"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mudlink_commands_total",
			Help: "Commands dispatched, by outcome.",
		}, []string{"outcome"}),
		envelopesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_envelopes_published_total",
			Help: "Envelopes published into the group fan-out.",
		}),
		envelopesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_envelopes_delivered_total",
			Help: "Envelopes enqueued to session outbound queues.",
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_evictions_total",
			Help: "Sessions closed for not draining their outbound queue.",
		}),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.registerer.MustRegister(
		m.sessionsConnected,
		m.groupsActive,
		m.queueDepthMax,
		m.connectionsTotal,
		m.authFailuresTotal,
		m.commandsTotal,
		m.envelopesPublished,
		m.envelopesDelivered,
		m.evictionsTotal,
	)

	return m
}

// SetSessionSource wires the session gauges. Sources attach after
// construction because the session layer is built with the recorder.
func (m *Metrics) SetSessionSource(src SessionSource) {
	m.sessions = src
}

// SetGroupSource wires the group gauges.
func (m *Metrics) SetGroupSource(src GroupSource) {
	m.groups = src
}

func (m *Metrics) ConnectionOpened(transport string) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(transport).Inc()
}

func (m *Metrics) AuthFailure(kind string) {
	if m == nil {
		return
	}
	m.authFailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) CommandProcessed(outcome string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EnvelopePublished() {
	if m == nil {
		return
	}
	m.envelopesPublished.Inc()
}

func (m *Metrics) EnvelopeDelivered() {
	if m == nil {
		return
	}
	m.envelopesDelivered.Inc()
}

func (m *Metrics) SlowConsumerEvicted() {
	if m == nil {
		return
	}
	m.evictionsTotal.Inc()
}

// Update samples the gauges from the attached sources.
func (m *Metrics) Update() {
	if m.sessions != nil {
		m.sessionsConnected.Reset()
		for transport, n := range m.sessions.SessionsByTransport() {
			m.sessionsConnected.WithLabelValues(transport).Set(float64(n))
		}
		m.queueDepthMax.Set(float64(m.sessions.MaxQueueDepth()))
	}
	if m.groups != nil {
		m.groupsActive.Set(float64(m.groups.GroupCount()))
	}
}

// Tick refreshes the gauges on the shared driver cadence, so the series
// stay current even when nothing scrapes.
func (m *Metrics) Tick(ctx context.Context) error {
	m.Update()
	return nil
}

// Handler serves the scrape endpoint with fresh gauge samples.
func (m *Metrics) Handler() http.Handler {
	var inner http.Handler
	if g, ok := m.registerer.(prometheus.Gatherer); ok {
		inner = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	} else {
		inner = promhttp.Handler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
