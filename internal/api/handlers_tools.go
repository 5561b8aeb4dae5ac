package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/go-chi/chi/v5"
)

// maxArgsBytes bounds the JSON body of a tool call.
const maxArgsBytes = 1 << 20

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.inv.Registry().List()})
}

// handleInvoke runs one tool. The body is a JSON object of arguments; an
// empty body means no arguments.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, maxArgsBytes)

	args := tools.Args{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeResponse(w, tools.ErrorResponse(errs.Wrap(errs.KindInvalidArgument, err, "invalid arguments")))
		return
	}

	writeResponse(w, s.inv.Invoke(r.Context(), name, args))
}

func writeResponse(w http.ResponseWriter, resp tools.Response) {
	code := http.StatusOK
	if resp.Error != nil {
		code = statusFor(resp.Error.Kind)
	}
	writeJSON(w, code, resp)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindBusy:
		return http.StatusTooManyRequests
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindHostUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindOrphanedLocator, errs.KindHeadingNotFound, errs.KindIndexOutOfRange,
		errs.KindPageNotFound, errs.KindDocumentNotFound, errs.KindUnknownTool:
		return http.StatusNotFound
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
