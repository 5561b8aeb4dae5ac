package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleDispatchStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"stats": s.inv.Stats()}
	if s.loop != nil {
		out["host"] = s.loop.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListOperations returns recent dispatched operations, newest first.
func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": s.inv.Operations().Recent(limit)})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op := s.inv.Operations().Get(chi.URLParam(r, "opID"))
	if op == nil {
		jsonError(w, "operation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, op.Snapshot())
}
