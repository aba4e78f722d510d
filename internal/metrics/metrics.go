// Package metrics provides Prometheus metrics for the session hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "aicohost"

// Metrics holds all Prometheus collectors for the hub.
type Metrics struct {
	Registry *prometheus.Registry

	activeConnections  prometheus.Gauge
	envelopesRouted    *prometheus.CounterVec
	envelopesDropped   *prometheus.CounterVec
	aiResponseDuration prometheus.Histogram
	audioBurstsFlushed prometheus.Counter
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{Registry: reg}

	m.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Number of live WebSocket connections.",
	})
	m.envelopesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelopes_routed_total",
		Help:      "Envelopes dispatched through the routing table, by type.",
	}, []string{"type"})
	m.envelopesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelopes_dropped_total",
		Help:      "Inbound envelopes dropped, by reason.",
	}, []string{"reason"})
	m.aiResponseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ai_response_duration_seconds",
		Help:      "Wall-clock duration of the AI response sequence.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	m.audioBurstsFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_bursts_flushed_total",
		Help:      "Audio bursts handed off for transcription.",
	})

	reg.MustRegister(
		m.activeConnections,
		m.envelopesRouted,
		m.envelopesDropped,
		m.aiResponseDuration,
		m.audioBurstsFlushed,
	)
	return m
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened() { m.activeConnections.Inc() }

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed() { m.activeConnections.Dec() }

// EnvelopeRouted counts a dispatched envelope.
func (m *Metrics) EnvelopeRouted(msgType string) {
	m.envelopesRouted.WithLabelValues(msgType).Inc()
}

// EnvelopeDropped counts a dropped inbound envelope.
func (m *Metrics) EnvelopeDropped(reason string) {
	m.envelopesDropped.WithLabelValues(reason).Inc()
}

// ObserveAIResponse records one AI response sequence duration.
func (m *Metrics) ObserveAIResponse(seconds float64) {
	m.aiResponseDuration.Observe(seconds)
}

// AudioBurstFlushed counts one transcription handoff.
func (m *Metrics) AudioBurstFlushed() { m.audioBurstsFlushed.Inc() }

// Drop reasons.
const (
	ReasonMalformed     = "malformed"
	ReasonUnknownType   = "unknown_type"
	ReasonRoleMismatch  = "role_mismatch"
	ReasonNotJoined     = "not_joined"
	ReasonSlowRecipient = "slow_recipient"
)
