package handler

import (
	"net/http"

	"github.com/google/uuid"
)

const oauthStateCookieName = "oauth_state"

// handleAuthLogin starts the one-time Google authorization flow for the
// archive account.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !s.devMode,
	})

	http.Redirect(w, r, s.authService.GenerateAuthURL(state), http.StatusFound)
}

// handleAuthCallback exchanges the authorization code and stores the archive
// account's refresh token.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		s.renderError(w, http.StatusBadRequest, "Authorization state mismatch. Start over from /auth/login.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.renderError(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	token, err := s.authService.ExchangeCode(r.Context(), code)
	if err != nil {
		s.logger.Error("code exchange failed", "err", err)
		s.renderError(w, http.StatusInternalServerError, "Could not exchange the authorization code.")
		return
	}

	if err := s.authService.SaveToken(r.Context(), token); err != nil {
		s.logger.Error("saving refresh token failed", "err", err)
		s.renderError(w, http.StatusInternalServerError, "Google did not return a refresh token. Revoke access and try again.")
		return
	}

	s.logger.Info("archive account authorized")
	http.Redirect(w, r, "/", http.StatusFound)
}
