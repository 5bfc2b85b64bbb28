package metrics

import (
	"errors"

	"github.com/klokku/consolecal/internal/event_bus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Collector turns calendar change notifications and session sweeps into Prometheus metrics.
type Collector struct {
	mutations     *prometheus.CounterVec
	upserted      prometheus.Counter
	removed       prometheus.Counter
	events        prometheus.Gauge
	sessionsSwept prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	return &Collector{
		mutations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consolecal_calendar_mutations_total",
			Help: "Committed calendar mutations by operation and deletion scope",
		}, []string{"operation", "scope"})),
		upserted: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consolecal_calendar_events_upserted_total",
			Help: "Events created or replaced by calendar mutations",
		})),
		removed: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consolecal_calendar_events_removed_total",
			Help: "Events removed by calendar mutations",
		})),
		events: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consolecal_calendar_events",
			Help: "Number of events in the store after the last mutation",
		})),
		sessionsSwept: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consolecal_sessions_swept_total",
			Help: "Idle sessions removed by the sweep job",
		})),
	}
}

// register adds c to reg. A collector registered before, e.g. by an earlier Collector on the
// default registry, is reused.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		log.Errorf("can't register metric: %v", err)
	}
	return c
}

// Subscribe records every calendar change published on bus.
func (c *Collector) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.CalendarEventsChangedType,
		func(e event_bus.EventT[event_bus.CalendarEventsChanged]) error {
			c.ObserveChange(e.Data)
			return nil
		})
}

func (c *Collector) ObserveChange(change event_bus.CalendarEventsChanged) {
	c.mutations.WithLabelValues(change.Operation, change.Scope).Inc()
	c.upserted.Add(float64(len(change.Upserted)))
	c.removed.Add(float64(len(change.Removed)))
	c.events.Set(float64(change.StoreSize))
}

// SetEventCount sets the event gauge outside of a mutation, e.g. after startup seeding.
func (c *Collector) SetEventCount(n int) {
	c.events.Set(float64(n))
}

func (c *Collector) ObserveSweep(swept int) {
	c.sessionsSwept.Add(float64(swept))
}
