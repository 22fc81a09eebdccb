package googlecalendar

import (
	"github.com/saulo-duarte/chronos-goals/internal/user"
	"golang.org/x/oauth2"
)

type GoogleCalendarContainer struct {
	CalendarService CalendarService
	CalendarManager CalendarManager
}

func NewGoogleCalendarContainer(userRepo user.UserRepository, oauthConfig *oauth2.Config) *GoogleCalendarContainer {
	calendarService := NewCalendarService(userRepo, oauthConfig)

	return &GoogleCalendarContainer{
		CalendarService: calendarService,
		CalendarManager: NewCalendarManager(calendarService),
	}
}
