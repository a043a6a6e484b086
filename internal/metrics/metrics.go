// Package metrics exposes prometheus instrumentation for the sync engine.
// All methods are nil-safe so that library code can be used without metrics
// wired up (tests, embedding).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "planning_poker"

// Metrics holds the collectors for sessions, clients and transports.
type Metrics struct {
	activeSessions   prometheus.Gauge
	connectedClients prometheus.Gauge
	openChannels     prometheus.Gauge
	messagesIn       prometheus.Counter
	messagesOut      prometheus.Counter
	actionErrors     prometheus.Counter
	droppedMessages  prometheus.Counter
}

// New registers the collectors on reg and returns the handle used by the
// session store and the long-poll dispatcher.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of resident sessions, including empty ones inside their TTL window.",
		}),
		connectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Number of connected clients across all sessions.",
		}),
		openChannels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_longpoll_channels",
			Help:      "Number of open long-poll virtual channels.",
		}),
		messagesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total client messages received over any transport.",
		}),
		messagesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total server messages pushed to clients.",
		}),
		actionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Total protocol and domain errors reported back to clients.",
		}),
		droppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Total outbound messages dropped due to slow or closed transports.",
		}),
	}
}

// SessionOpened records a session being created.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

// SessionClosed records a session being deleted.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// ClientConnected records a new client joining a session.
func (m *Metrics) ClientConnected() {
	if m != nil {
		m.connectedClients.Inc()
	}
}

// ClientDisconnected records a client leaving a session.
func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.connectedClients.Dec()
	}
}

// ChannelOpened records a long-poll channel being created.
func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.openChannels.Inc()
	}
}

// ChannelClosed records a long-poll channel being torn down.
func (m *Metrics) ChannelClosed() {
	if m != nil {
		m.openChannels.Dec()
	}
}

// MessageReceived records one inbound client message.
func (m *Metrics) MessageReceived() {
	if m != nil {
		m.messagesIn.Inc()
	}
}

// MessageSent records one outbound server message.
func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesOut.Inc()
	}
}

// ActionError records an error reported back to a client.
func (m *Metrics) ActionError() {
	if m != nil {
		m.actionErrors.Inc()
	}
}

// MessageDropped records an outbound message lost to a dead transport.
func (m *Metrics) MessageDropped() {
	if m != nil {
		m.droppedMessages.Inc()
	}
}
