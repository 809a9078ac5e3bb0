package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	hubMetricsOnce sync.Once
	hubRegistry    *HubMetrics

	factoryMetricsOnce sync.Once
	factoryRegistry    *FactoryMetrics
)

// HubMetrics tracks packet execution on the hub.
type HubMetrics struct {
	packets  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	releases *prometheus.CounterVec
}

// Hub returns the lazily-initialised hub metrics registry.
func Hub() *HubMetrics {
	hubMetricsOnce.Do(func() {
		hubRegistry = &HubMetrics{
			packets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crosshub",
				Subsystem: "hub",
				Name:      "packets_total",
				Help:      "Inbound request packets segmented by kind, outcome and error code.",
			}, []string{"kind", "outcome", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "crosshub",
				Subsystem: "hub",
				Name:      "packet_duration_seconds",
				Help:      "Latency distribution of packet execution.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			releases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crosshub",
				Subsystem: "hub",
				Name:      "escrow_releases_total",
				Help:      "Escrow releases paid out while executing packets.",
			}, []string{"token", "chain_uid"}),
		}
		prometheus.MustRegister(hubRegistry.packets, hubRegistry.latency, hubRegistry.releases)
	})
	return hubRegistry
}

// ObservePacket records the outcome of one packet execution. code is empty
// on success.
func (m *HubMetrics) ObservePacket(kind string, success bool, code string, duration time.Duration) {
	if m == nil {
		return
	}
	kind = label(kind)
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.packets.WithLabelValues(kind, outcome, strings.TrimSpace(code)).Inc()
	m.latency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRelease counts an escrow payout.
func (m *HubMetrics) RecordRelease(token, chain string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(label(token), label(chain)).Inc()
}

// FactoryMetrics tracks request intake and relaying on a factory.
type FactoryMetrics struct {
	requests     *prometheus.CounterVec
	relays       *prometheus.CounterVec
	relayLatency prometheus.Histogram
	outboxDepth  prometheus.Gauge
}

// Factory returns the lazily-initialised factory metrics registry.
func Factory() *FactoryMetrics {
	factoryMetricsOnce.Do(func() {
		factoryRegistry = &FactoryMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crosshub",
				Subsystem: "factory",
				Name:      "requests_total",
				Help:      "Cross-chain requests segmented by kind, outcome and rejection code.",
			}, []string{"kind", "outcome", "code"}),
			relays: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crosshub",
				Subsystem: "factory",
				Name:      "relays_total",
				Help:      "Packet deliveries segmented by result (acked, rejected, timeout, error).",
			}, []string{"result"}),
			relayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "crosshub",
				Subsystem: "factory",
				Name:      "relay_duration_seconds",
				Help:      "Time from dispatch to the hub's answer.",
				Buckets:   prometheus.DefBuckets,
			}),
			outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crosshub",
				Subsystem: "factory",
				Name:      "outbox_depth",
				Help:      "Packets waiting in the outbox at the last relay pass.",
			}),
		}
		prometheus.MustRegister(
			factoryRegistry.requests,
			factoryRegistry.relays,
			factoryRegistry.relayLatency,
			factoryRegistry.outboxDepth,
		)
	})
	return factoryRegistry
}

// ObserveRequest records an accepted (code empty) or rejected request.
func (m *FactoryMetrics) ObserveRequest(kind, code string) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if code != "" {
		outcome = "rejected"
	}
	m.requests.WithLabelValues(label(kind), outcome, code).Inc()
}

// ObserveRelay records one delivery attempt.
func (m *FactoryMetrics) ObserveRelay(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(label(result)).Inc()
	m.relayLatency.Observe(duration.Seconds())
}

// SetOutboxDepth publishes the current outbox size.
func (m *FactoryMetrics) SetOutboxDepth(n int) {
	if m == nil {
		return
	}
	m.outboxDepth.Set(float64(n))
}

func label(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
