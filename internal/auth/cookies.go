package auth

import (
	"net/http"
	"time"

	"github.com/saulo-duarte/chronos-goals/internal/config"
)

const (
	AccessCookieName  = "jwt"
	RefreshCookieName = "refresh_token"
)

type Handler struct {
	cookieDomain string
}

func NewHandler(cookieDomain string) *Handler {
	return &Handler{cookieDomain: cookieDomain}
}

func SetSessionCookies(w http.ResponseWriter, domain, accessToken, refreshToken string) {
	http.SetCookie(w, sessionCookie(AccessCookieName, accessToken, domain, AccessTokenTTL))
	if refreshToken != "" {
		http.SetCookie(w, sessionCookie(RefreshCookieName, refreshToken, domain, RefreshTokenTTL))
	}
}

func sessionCookie(name, value, domain string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if value == "" {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, sessionCookie(AccessCookieName, "", h.cookieDomain, 0))
	http.SetCookie(w, sessionCookie(RefreshCookieName, "", h.cookieDomain, 0))

	config.JSON(w, http.StatusOK, map[string]string{
		"message": "logout successful",
	})
}
