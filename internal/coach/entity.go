package coach

import "github.com/saulo-duarte/chronos-goals/internal/goal"

type Suggestion struct {
	Title   string `json:"title"`
	Minutes *int   `json:"minutes,omitempty"`
}

type SuggestionRequest struct {
	Count int `json:"count" validate:"omitempty,min=1,max=10"`
}

type SuggestionResponse struct {
	GoalID      string        `json:"goal_id"`
	Type        goal.GoalType `json:"type"`
	Suggestions []Suggestion  `json:"suggestions"`
}
