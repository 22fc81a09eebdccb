package coach

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/goal"
)

type Handler struct {
	service Service
	goals   goal.Service
}

func NewHandler(s Service, goals goal.Service) *Handler {
	return &Handler{service: s, goals: goals}
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var req SuggestionRequest
	if r.ContentLength != 0 {
		if err := config.DecodeAndValidate(w, r, &req); err != nil {
			return
		}
	}

	parent, err := h.goals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, goal.ErrUnauthorized):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, goal.ErrInvalidID):
			http.Error(w, "invalid id", http.StatusBadRequest)
		case errors.Is(err, goal.ErrNotFound):
			http.Error(w, "goal not found", http.StatusNotFound)
		default:
			log.WithError(err).Error("Failed to load goal for suggestions")
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	suggestions, err := h.service.SuggestSubGoals(r.Context(), parent, req.Count)
	switch {
	case errors.Is(err, ErrNoFinerLevel):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, ErrUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		log.WithError(err).Error("Failed to generate sub-goal suggestions")
		http.Error(w, "failed to generate suggestions", http.StatusBadGateway)
		return
	}

	childType, _ := parent.Type.ChildType()
	config.JSON(w, http.StatusOK, SuggestionResponse{
		GoalID:      parent.ID.String(),
		Type:        childType,
		Suggestions: suggestions,
	})
}
