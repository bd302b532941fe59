package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nugget/marcus/internal/report"
	"github.com/nugget/marcus/internal/session"
)

// WSRequest is a client frame on the chat websocket. Type is "message"
// (the default) or "report".
type WSRequest struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// WSResponse is a server frame: "reply", "report", or "error".
type WSResponse struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Report  *report.Report `json:"report,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// handleWebsocket runs a chat session over a websocket. Frames are
// handled one at a time, so a session's turns stay serialized.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := s.logger.With("session_id", h.ID())
	log.Info("websocket connected")

	for {
		var req WSRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("websocket closed")
			} else {
				log.Debug("websocket read failed", "error", err)
			}
			return
		}

		resp := s.handleFrame(r, h, req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleFrame(r *http.Request, h *session.Host, req WSRequest) WSResponse {
	switch req.Type {
	case "", "message":
		reply, err := h.Send(r.Context(), req.Message)
		if errors.Is(err, session.ErrEmptyMessage) {
			return WSResponse{Type: "error", Error: "message is required"}
		}
		if err != nil {
			return WSResponse{Type: "error", Error: err.Error()}
		}
		return WSResponse{Type: "reply", Content: reply}

	case "report":
		rep, err := h.GenerateReport(r.Context())
		if err != nil {
			return WSResponse{Type: "error", Error: err.Error()}
		}
		return WSResponse{Type: "report", Report: rep}

	default:
		return WSResponse{Type: "error", Error: "unknown frame type " + req.Type}
	}
}
