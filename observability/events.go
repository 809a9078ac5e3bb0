package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"crosshub/core/events"
)

// EventMetrics counts emitted domain events by type. It satisfies
// events.Emitter so daemons can fan events out to it.
type EventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking structured events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crosshub",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of domain events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(label(evt.EventType())).Inc()
}
