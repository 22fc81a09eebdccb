package googlecalendar

import (
	"context"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/config"
)

// CalendarManager mirrors goals into the user's primary calendar. It decides
// between create, update and delete.
type CalendarManager interface {
	SyncGoal(ctx context.Context, userID uuid.UUID, g *CalendarGoal) (eventID string, err error)
	RemoveGoal(ctx context.Context, userID uuid.UUID, eventID string) error
}

type calendarManager struct {
	calendarService CalendarService
}

func NewCalendarManager(calendarService CalendarService) CalendarManager {
	return &calendarManager{
		calendarService: calendarService,
	}
}

func (m *calendarManager) SyncGoal(ctx context.Context, userID uuid.UUID, g *CalendarGoal) (string, error) {
	log := config.WithContext(ctx)

	hasDate := g.Date != nil && !g.Date.IsZero()
	hasEventID := g.GoogleCalendarEventID != nil && *g.GoogleCalendarEventID != ""

	if hasEventID && !hasDate {
		log.Infof("Goal %s no longer has a date, deleting calendar event", g.ID)
		if err := m.calendarService.DeleteEventFromCalendar(ctx, userID, *g.GoogleCalendarEventID); err != nil {
			log.WithError(err).Warnf("Failed to delete calendar event for goal %s", g.ID)
		}
		return "", nil
	}

	if !hasDate {
		return "", nil
	}

	if hasEventID {
		err := m.calendarService.UpdateEventInCalendar(ctx, userID, g)
		if err == nil {
			return *g.GoogleCalendarEventID, nil
		}
		if !isGone(err) {
			log.WithError(err).Warnf("Failed to update calendar event for goal %s", g.ID)
			return *g.GoogleCalendarEventID, err
		}
		log.Infof("Calendar event for goal %s was removed on Google, recreating it", g.ID)
	}

	eventID, err := m.calendarService.AddEventToCalendar(ctx, userID, g)
	if err != nil {
		log.WithError(err).Warnf("Failed to create calendar event for goal %s", g.ID)
		return "", err
	}

	if eventID == "" {
		log.Warnf("Calendar service returned empty event ID for goal %s", g.ID)
		return "", nil
	}

	log.Infof("Created calendar event %s for goal %s", eventID, g.ID)
	return eventID, nil
}

func (m *calendarManager) RemoveGoal(ctx context.Context, userID uuid.UUID, eventID string) error {
	if eventID == "" {
		return nil
	}

	log := config.WithContext(ctx)

	if err := m.calendarService.DeleteEventFromCalendar(ctx, userID, eventID); err != nil {
		log.WithError(err).Warnf("Failed to delete calendar event %s", eventID)
		return err
	}

	return nil
}
