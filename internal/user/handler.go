package user

import (
	"errors"
	"net/http"

	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/config"
)

type Handler struct {
	service      UserService
	cookieDomain string
}

func NewHandler(service UserService, cookieDomain string) *Handler {
	return &Handler{service: service, cookieDomain: cookieDomain}
}

type loginRequest struct {
	Code string `json:"code" validate:"required"`
}

type sessionResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var req loginRequest
	if err := config.DecodeAndValidate(w, r, &req); err != nil {
		log.WithError(err).Warn("Invalid login body")
		return
	}

	session, err := h.service.GoogleLogin(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCode):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrGoogleExchange):
			http.Error(w, "google authentication failed", http.StatusUnauthorized)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	auth.SetSessionCookies(w, h.cookieDomain, session.AccessToken, session.RefreshToken)
	config.JSON(w, http.StatusOK, sessionResponse{User: session.User, AccessToken: session.AccessToken})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := h.service.RefreshToken(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookies(w, h.cookieDomain, session.AccessToken, session.RefreshToken)
	config.JSON(w, http.StatusOK, sessionResponse{User: session.User, AccessToken: session.AccessToken})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	config.JSON(w, http.StatusOK, u)
}
