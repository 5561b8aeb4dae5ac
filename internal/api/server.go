package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docbridge/internal/config"
	"github.com/dgallion1/docbridge/internal/host"
	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docbridge.
type Server struct {
	router chi.Router
	inv    *tools.Invoker
	loop   *host.Loop
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. loop may be nil, in
// which case /health does not report host loop state.
func NewServer(inv *tools.Invoker, loop *host.Loop, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		inv:  inv,
		loop: loop,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/tools", s.handleListTools)
		r.Post("/api/tools/{name}", s.handleInvoke)

		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents", s.handleUpload)

		r.Get("/api/stats/dispatch", s.handleDispatchStats)
		r.Get("/api/operations", s.handleListOperations)
		r.Get("/api/operations/{opID}", s.handleGetOperation)

		r.Get("/api/ws", s.handleWebSocket)
		r.Handle("/mcp", NewMCPHandler(s.inv, s.log))
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.loop != nil && !s.loop.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "host unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
