package goal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
)

const sseHeartbeat = 25 * time.Second

type Handler struct {
	service Service
	bus     *events.Bus
	now     func() time.Time
}

func NewHandler(service Service, bus *events.Bus) *Handler {
	return &Handler{service: service, bus: bus, now: time.Now}
}

func (h *Handler) today() util.LocalDate {
	return util.DateOf(h.now())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrMissingStartDate), errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrParentMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidHierarchy):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	http.Error(w, msg, status)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var dto CreateGoalDTO
	if err := config.DecodeAndValidate(w, r, &dto); err != nil {
		log.WithError(err).Warn("Invalid create goal body")
		return
	}

	resp, err := h.service.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	goals, err := h.service.List(r.Context(), ListQuery{
		Type:     q.Get("type"),
		Category: q.Get("category"),
		ParentID: q.Get("parent_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, goals)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var dto UpdateGoalDTO
	if err := config.DecodeAndValidate(w, r, &dto); err != nil {
		log.WithError(err).Warn("Invalid update goal body")
		return
	}

	g, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, g)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CandidateParents(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.CandidateParents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, goals)
}

func (h *Handler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	var dto ToggleGoalDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.ToggleCompletion(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.toastError(w, err, "An error occurred while updating the goal")
		return
	}

	toast := ToastResponse{Success: true, Result: res}
	if dto.Completed {
		toast.Title = "Goal not completed"
		toast.Description = "The goal and its sub-goals were marked as not completed"
	} else {
		toast.Title = "Goal completed"
		toast.Description = "The goal and its sub-goals were marked as completed"
	}
	config.JSON(w, http.StatusOK, toast)
}

func (h *Handler) ToggleChildCompletion(w http.ResponseWriter, r *http.Request) {
	var dto ToggleChildDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.ToggleChildCompletion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "childId"), dto)
	if err != nil {
		h.toastError(w, err, "An error occurred while updating the sub-goal")
		return
	}

	toast := ToastResponse{Success: true, Result: res}
	if dto.Completed {
		toast.Title = "Sub-goal not completed"
		toast.Description = "The sub-goal was marked as not completed"
	} else {
		toast.Title = "Sub-goal completed"
		toast.Description = "The sub-goal was marked as completed"
	}
	config.JSON(w, http.StatusOK, toast)
}

func (h *Handler) toastError(w http.ResponseWriter, err error, description string) {
	status := statusFor(err)
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		writeError(w, err)
		return
	}
	config.JSON(w, status, ToastResponse{
		Success:     false,
		Title:       "Error",
		Description: description,
	})
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Today(r.Context(), h.today())
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) WeeklyProgress(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.WeeklyProgress(r.Context(), h.today())
	if err != nil {
		writeError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

// Events streams the caller's invalidations as server-sent events until the
// client goes away.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	claims, err := auth.GetUserClaimsFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok || h.bus == nil {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}

	ch, unsubscribe := h.bus.Subscribe(0)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("Goal event stream opened")
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("Goal event stream closed")
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case inv, ok := <-ch:
			if !ok {
				return
			}
			if inv.UserID != userID {
				continue
			}
			payload, err := json.Marshal(inv)
			if err != nil {
				log.WithError(err).Error("Failed to encode invalidation")
				continue
			}
			fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
