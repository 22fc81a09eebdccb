package goal

import (
	"github.com/google/uuid"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
)

type SubGoalDTO struct {
	Title   string `json:"title" validate:"required,max=200"`
	Minutes *int   `json:"minutes" validate:"omitempty,gte=1"`
}

type CreateGoalDTO struct {
	Title     string         `json:"title" validate:"required,max=200"`
	Type      GoalType       `json:"type" validate:"required,oneof=quarterly monthly weekly daily"`
	Category  Category       `json:"category" validate:"required,oneof=professional personal"`
	StartDate util.LocalDate `json:"start_date"`
	Minutes   *int           `json:"minutes" validate:"omitempty,gte=1"`
	ParentID  *uuid.UUID     `json:"parent_id"`
	SubGoals  []SubGoalDTO   `json:"sub_goals" validate:"omitempty,max=31,dive"`
}

// UpdateGoalDTO leaves absent fields untouched. parent_id "" detaches the goal
// and minutes 0 clears the planned duration.
type UpdateGoalDTO struct {
	Title     *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Type      *GoalType       `json:"type" validate:"omitempty,oneof=quarterly monthly weekly daily"`
	Category  *Category       `json:"category" validate:"omitempty,oneof=professional personal"`
	StartDate *util.LocalDate `json:"start_date"`
	Minutes   *int            `json:"minutes" validate:"omitempty,gte=0"`
	Completed *bool           `json:"completed"`
	ParentID  *string         `json:"parent_id"`
	Version   *int            `json:"version" validate:"omitempty,gte=1"`
}

type ChildStateDTO struct {
	ID        uuid.UUID `json:"id"`
	Completed bool      `json:"completed"`
}

// ToggleGoalDTO carries the caller's last known state. Omitting children lets the
// server look them up.
type ToggleGoalDTO struct {
	Completed bool            `json:"completed"`
	Children  []ChildStateDTO `json:"children"`
}

func (d ToggleGoalDTO) childGoals(parentID uuid.UUID) []*Goal {
	if d.Children == nil {
		return nil
	}
	out := make([]*Goal, 0, len(d.Children))
	for _, c := range d.Children {
		pid := parentID
		out = append(out, &Goal{ID: c.ID, Completed: c.Completed, ParentID: &pid})
	}
	return out
}

type ToggleChildDTO struct {
	Completed bool `json:"completed"`
}

type GoalWithChildrenResponse struct {
	*Goal
	Children []*Goal `json:"children"`
}

type TodayResponse struct {
	Date         util.LocalDate `json:"date"`
	Professional []*Goal        `json:"professional"`
	Personal     []*Goal        `json:"personal"`
}

type WeeklyProgressResponse struct {
	WeekStart  util.LocalDate `json:"week_start"`
	WeekEnd    util.LocalDate `json:"week_end"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Percentage int            `json:"percentage"`
	Goals      []*Goal        `json:"goals"`
}

type ToastResponse struct {
	Success     bool    `json:"success"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Result      *Result `json:"result,omitempty"`
}
