package googlecalendar

import (
	"time"

	"github.com/google/uuid"
)

// CalendarGoal is the slice of a goal that is mirrored as an all-day event.
type CalendarGoal struct {
	ID                    uuid.UUID
	Title                 string
	Type                  string
	Category              string
	Minutes               *int
	Date                  *time.Time
	GoogleCalendarEventID *string
}
