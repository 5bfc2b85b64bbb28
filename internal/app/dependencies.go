package app

import (
	"github.com/klokku/consolecal/internal/config"
	"github.com/klokku/consolecal/internal/event_bus"
	"github.com/klokku/consolecal/internal/metrics"
	"github.com/klokku/consolecal/internal/utils"
	"github.com/klokku/consolecal/pkg/calendar"
	"github.com/klokku/consolecal/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Metrics  *metrics.Collector

	CalendarStore       calendar.Store
	CalendarService     *calendar.Service
	CalendarInteraction *calendar.Interaction
	CalendarHandler     *calendar.Handler

	SessionRepository session.Repository
	SessionService    *session.Service
	SessionHandler    *session.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(store calendar.Store, sessions session.Repository, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.Metrics = metrics.NewCollector(prometheus.DefaultRegisterer)
	deps.Metrics.Subscribe(deps.EventBus)

	horizon := calendar.Horizon{
		MaxOccurrences: cfg.Calendar.Horizon.MaxOccurrences,
		Days:           cfg.Calendar.Horizon.Days,
	}
	deps.CalendarStore = store
	deps.CalendarService = calendar.NewService(deps.CalendarStore, deps.EventBus, horizon)
	deps.CalendarInteraction = calendar.NewInteraction(deps.CalendarService)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarService, deps.CalendarInteraction, deps.Clock)

	deps.SessionRepository = sessions
	deps.SessionService = session.NewService(deps.SessionRepository, deps.CalendarService, deps.Clock, cfg.Session.TTL)
	deps.SessionService.Subscribe(deps.EventBus)
	deps.SessionHandler = session.NewHandler(deps.SessionService)

	return deps
}
