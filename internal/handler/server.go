// Package handler serves the web UI: the playlist listing, the download form
// and the protection gate.
package handler

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tunedrive/internal/adapter"
	"tunedrive/internal/auth"
	"tunedrive/internal/fetcher"
	"tunedrive/internal/index"
	"tunedrive/internal/session"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

// Server holds the wired dependencies for all HTTP handlers.
type Server struct {
	index       *index.PlaylistIndex
	provider    adapter.StorageProvider
	fetch       fetcher.Fetcher
	guard       session.Guard
	authService *auth.Service

	protectionCode string
	jwtSecret      string
	sessionTTL     time.Duration
	workDir        string
	devMode        bool

	templates *template.Template
	logger    *log.Logger
}

// Options carries the scalar settings the handlers need.
type Options struct {
	ProtectionCode string
	JWTSecret      string
	SessionTTL     time.Duration
	WorkDir        string
	DevMode        bool
}

// NewServer creates a Server. The templates are parsed once at startup.
func NewServer(idx *index.PlaylistIndex, provider adapter.StorageProvider, fetch fetcher.Fetcher, guard session.Guard, authService *auth.Service, opts Options, logger *log.Logger) *Server {
	return &Server{
		index:          idx,
		provider:       provider,
		fetch:          fetch,
		guard:          guard,
		authService:    authService,
		protectionCode: opts.ProtectionCode,
		jwtSecret:      opts.JWTSecret,
		sessionTTL:     opts.SessionTTL,
		workDir:        opts.WorkDir,
		devMode:        opts.DevMode,
		templates:      template.Must(template.ParseFS(templatesFS, "templates/*.gohtml")),
		logger:         logger.With("component", "handler"),
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Get("/protect", s.handleProtectForm)
	r.Post("/protect", s.handleProtectSubmit)

	r.Get("/auth/login", s.handleAuthLogin)
	r.Get("/auth/callback", s.handleAuthCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", s.handleHome)
		r.Get("/download", s.handleDownloadForm)
		r.Post("/download", s.handleDownloadSubmit)
	})

	return r
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "err", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, "error.gohtml", map[string]any{"Message": message})
}
