package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"tunedrive/internal/index"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHome renders the playlist listing from the in-memory index.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	root, err := s.index.ResolveRoot(r.Context())
	if err != nil {
		s.logger.Error("root resolution failed", "err", err)
		s.renderError(w, http.StatusServiceUnavailable, "The archive is not available yet.")
		return
	}

	folders, err := s.index.ListFolders(root)
	if err != nil {
		if errors.Is(err, index.ErrNotReady) {
			s.renderError(w, http.StatusServiceUnavailable, "The archive is still loading.")
			return
		}
		s.logger.Error("listing folders failed", "err", err)
		s.renderError(w, http.StatusInternalServerError, "Could not list playlists.")
		return
	}

	s.render(w, http.StatusOK, "home.gohtml", map[string]any{"Folders": folders})
}

// handleHealth reports liveness. It never touches the index so a wedged
// initialization does not fail the process health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady reports whether the index finished initializing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	state := s.index.State()
	if !s.index.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "initializing",
			"state":  state.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"state":  state.String(),
	})
}
