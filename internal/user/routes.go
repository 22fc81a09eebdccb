package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/me", h.GetUser)
	return r
}

// AuthRoutes are public: they issue and clear the session cookies.
func AuthRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.GoogleLogin)
	r.Post("/refresh", h.RefreshToken)
	r.Post("/logout", auth.NewHandler(h.cookieDomain).Logout)
	return r
}
