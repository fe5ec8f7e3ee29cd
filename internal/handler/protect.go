package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "session_token"

// handleProtectForm shows the access code form.
func (s *Server) handleProtectForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "protect.gohtml", map[string]any{})
}

// handleProtectSubmit checks the shared access code and issues a session
// cookie on success.
func (s *Server) handleProtectSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	code := r.PostFormValue("code")
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.protectionCode)) != 1 {
		s.logger.Warn("rejected protection code", "remote", r.RemoteAddr)
		s.render(w, http.StatusUnauthorized, "protect.gohtml", map[string]any{
			"Error": "Wrong code.",
		})
		return
	}

	token, err := s.issueSessionToken()
	if err != nil {
		s.logger.Error("failed to sign session token", "err", err)
		s.renderError(w, http.StatusInternalServerError, "Could not create a session.")
		return
	}

	http.SetCookie(w, s.sessionCookie(token, s.sessionTTL))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) issueSessionToken() (string, error) {
	claims := jwt.MapClaims{
		"sub": "listener",
		"exp": time.Now().Add(s.sessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *Server) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !s.devMode,
	}
}

// verifySession checks the session cookie and returns its subject.
func (s *Server) verifySession(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", fmt.Errorf("no session cookie")
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if sub, ok := claims["sub"].(string); ok {
			return sub, nil
		}
	}
	return "", fmt.Errorf("invalid token claims")
}

// requireSession redirects unauthenticated requests to the protection gate.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.verifySession(r); err != nil {
			http.Redirect(w, r, "/protect", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
