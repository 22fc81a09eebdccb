package goal

import (
	"github.com/saulo-duarte/chronos-goals/internal/events"
	googlecalendar "github.com/saulo-duarte/chronos-goals/internal/google_calendar"
)

type GoalContainer struct {
	Repo       Repository
	Propagator *Propagator
	Service    Service
	Handler    *Handler
}

func NewGoalContainer(repo Repository, bus *events.Bus, calendar googlecalendar.CalendarManager, atomic bool) *GoalContainer {
	propagator := NewPropagator(repo, bus, atomic)
	service := NewService(repo, propagator, bus, calendar)
	handler := NewHandler(service, bus)

	return &GoalContainer{
		Repo:       repo,
		Propagator: propagator,
		Service:    service,
		Handler:    handler,
	}
}
