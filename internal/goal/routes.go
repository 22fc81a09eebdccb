package goal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/today", h.Today)
	r.Get("/progress/weekly", h.WeeklyProgress)
	r.Get("/events", h.Events)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/parents", h.CandidateParents)
		r.Post("/toggle", h.ToggleCompletion)
		r.Post("/children/{childId}/toggle", h.ToggleChildCompletion)
	})

	return r
}
