package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsRequest is one tool call on a WebSocket session.
type wsRequest struct {
	ID   string     `json:"id"`
	Tool string     `json:"tool"`
	Args tools.Args `json:"args"`
}

// wsResponse echoes the request id next to the usual result or error.
type wsResponse struct {
	ID string `json:"id"`
	tools.Response
}

// handleWebSocket serves a session of tool calls over one connection. Calls
// on a session run one after another; they still go through the gate like
// any other call.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("request_id", middleware.GetReqID(r.Context()))
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxArgsBytes)
	log.Info("websocket session opened", "remote", r.RemoteAddr)

	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read", "error", err)
			}
			break
		}

		var req wsRequest
		var resp tools.Response
		if err := json.Unmarshal(buf, &req); err != nil {
			resp = tools.ErrorResponse(errs.Wrap(errs.KindInvalidArgument, err, "invalid message"))
		} else {
			resp = s.inv.Invoke(r.Context(), req.Tool, req.Args)
		}
		if err := conn.WriteJSON(wsResponse{ID: req.ID, Response: resp}); err != nil {
			log.Warn("websocket write", "error", err)
			break
		}
	}
	log.Info("websocket session closed")
}
