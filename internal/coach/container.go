package coach

import (
	"context"

	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/goal"
)

type CoachContainer struct {
	Service Service
	Handler *Handler
}

func NewCoachContainer(ctx context.Context, model string, goals goal.Service) *CoachContainer {
	provider, err := NewGeminiProvider(ctx, model)
	if err != nil {
		config.Logger().WithError(err).Warn("Gemini provider unavailable, suggestions disabled")
	}
	service := NewService(provider)

	return &CoachContainer{
		Service: service,
		Handler: NewHandler(service, goals),
	}
}
