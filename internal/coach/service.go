package coach

import (
	"context"
	"errors"

	"github.com/saulo-duarte/chronos-goals/internal/goal"
)

var (
	ErrNoFinerLevel = errors.New("daily goals have no finer level")
	ErrUnavailable  = errors.New("suggestion provider is not configured")
)

type Service interface {
	SuggestSubGoals(ctx context.Context, parent *goal.GoalWithChildrenResponse, count int) ([]Suggestion, error)
}

type service struct {
	provider Provider
}

// NewService accepts a nil provider; every call then fails with ErrUnavailable.
func NewService(provider Provider) Service {
	return &service{provider: provider}
}

func (s *service) SuggestSubGoals(ctx context.Context, parent *goal.GoalWithChildrenResponse, count int) ([]Suggestion, error) {
	childType, ok := parent.Type.ChildType()
	if !ok {
		return nil, ErrNoFinerLevel
	}
	if s.provider == nil {
		return nil, ErrUnavailable
	}

	existing := make([]string, 0, len(parent.Children))
	for _, c := range parent.Children {
		existing = append(existing, c.Title)
	}

	suggestions, err := s.provider.SendPrompt(ctx, systemPrompt, BuildUserPrompt(parent.Goal, childType, existing, count))
	if err != nil {
		return nil, err
	}
	if n := clampCount(count); len(suggestions) > n {
		suggestions = suggestions[:n]
	}
	if childType != goal.TypeDaily {
		for i := range suggestions {
			suggestions[i].Minutes = nil
		}
	}
	return suggestions, nil
}
