package goal

import (
	"time"

	"github.com/google/uuid"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"gorm.io/gorm"
)

type Goal struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title                 string         `gorm:"type:text;not null" json:"title"`
	Type                  GoalType       `gorm:"type:varchar(16);not null;index" json:"type"`
	Category              Category       `gorm:"type:varchar(16);not null" json:"category"`
	StartDate             util.LocalDate `gorm:"type:date;not null;index" json:"start_date"`
	Minutes               *int           `json:"minutes,omitempty"`
	Completed             bool           `gorm:"not null;default:false" json:"completed"`
	ParentID              *uuid.UUID     `gorm:"type:uuid;index" json:"parent_id"`
	Version               int            `gorm:"not null;default:1" json:"version"`
	GoogleCalendarEventID string         `gorm:"column:google_calendar_event_id" json:"-"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Version == 0 {
		g.Version = 1
	}
	return nil
}

func (g *Goal) HasParent() bool {
	return g.ParentID != nil && *g.ParentID != uuid.Nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title           *string
	Type            *GoalType
	Category        *Category
	StartDate       *util.LocalDate
	Minutes         *int
	ClearMinutes    bool
	Completed       *bool
	ParentID        *uuid.UUID
	ClearParent     bool
	CalendarEventID *string

	// ExpectedVersion rejects the write with ErrVersionConflict when the stored version differs.
	ExpectedVersion *int
}

func (p Patch) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Type != nil {
		cols["type"] = *p.Type
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.StartDate != nil {
		cols["start_date"] = *p.StartDate
	}
	if p.ClearMinutes {
		cols["minutes"] = nil
	} else if p.Minutes != nil {
		cols["minutes"] = *p.Minutes
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	if p.ClearParent {
		cols["parent_id"] = nil
	} else if p.ParentID != nil {
		cols["parent_id"] = *p.ParentID
	}
	if p.CalendarEventID != nil {
		cols["google_calendar_event_id"] = *p.CalendarEventID
	}
	return cols
}

func (p Patch) apply(g *Goal) {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Type != nil {
		g.Type = *p.Type
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.StartDate != nil {
		g.StartDate = *p.StartDate
	}
	if p.ClearMinutes {
		g.Minutes = nil
	} else if p.Minutes != nil {
		m := *p.Minutes
		g.Minutes = &m
	}
	if p.Completed != nil {
		g.Completed = *p.Completed
	}
	if p.ClearParent {
		g.ParentID = nil
	} else if p.ParentID != nil {
		id := *p.ParentID
		g.ParentID = &id
	}
	if p.CalendarEventID != nil {
		g.GoogleCalendarEventID = *p.CalendarEventID
	}
}

func CompletionPatch(completed bool) Patch {
	return Patch{Completed: &completed}
}
