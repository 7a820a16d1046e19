package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/mockmate/interviewd/internal/interview"
)

// wsReadTimeout bounds how long the handler waits for the client's turn
// request after the upgrade.
const wsReadTimeout = 30 * time.Second

// StreamHandler serves interview turns over WebSocket, forwarding model
// chunks as they arrive instead of waiting for the full reply.
type StreamHandler struct {
	svc           *interview.Service
	allowedOrigin string
	isDev         bool
}

// NewStreamHandler creates a WebSocket streaming handler.
func NewStreamHandler(svc *interview.Service, allowedOrigin string, isDev bool) *StreamHandler {
	return &StreamHandler{
		svc:           svc,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsFrame is one outbound WebSocket message. type is "chunk" while the model
// reply streams, then "result" with the same fields as the HTTP response, or
// "error".
type wsFrame struct {
	Type           string        `json:"type"`
	Text           string        `json:"text,omitempty"`
	Error          string        `json:"error,omitempty"`
	Response       string        `json:"response,omitempty"`
	History        []historyTurn `json:"history,omitempty"`
	InterviewStage string        `json:"interviewStage,omitempty"`
	FollowUpCount  int           `json:"followUpCount"`
}

// ServeHTTP implements http.Handler for GET /ws/interview. The client sends
// one turn request after the upgrade; the handler streams the reply and
// closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "turn complete"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readCtx, readCancel := context.WithTimeout(ctx, wsReadTimeout)
	_, message, err := ws.Read(readCtx)
	readCancel()
	if err != nil {
		slog.Debug("WebSocket read failed before turn request", "error", err)
		return
	}

	var req turnRequest
	if err := json.Unmarshal(message, &req); err != nil {
		h.writeFrame(ws, wsFrame{Type: "error", Error: "invalid request body"})
		return
	}
	turn, ok := req.validate()
	if !ok {
		h.writeFrame(ws, wsFrame{Type: "error", Error: msgMissingField})
		return
	}

	slog.Info("Streaming interview turn", "session_id", turn.SessionID, "job_title", turn.JobTitle)

	res, err := h.svc.HandleTurnStream(ctx, turn, func(chunk string) {
		h.writeFrame(ws, wsFrame{Type: "chunk", Text: chunk})
	})
	if err != nil {
		switch {
		case errors.Is(err, interview.ErrUnknownStage):
			h.writeFrame(ws, wsFrame{Type: "error", Error: msgUnknownStage})
		default:
			slog.Error("Streaming interview turn failed", "session_id", turn.SessionID, "error", err)
			h.writeFrame(ws, wsFrame{Type: "error", Error: msgUpstreamFailure})
		}
		return
	}

	out := toTurnResponse(res)
	h.writeFrame(ws, wsFrame{
		Type:           "result",
		Response:       out.Response,
		History:        out.History,
		InterviewStage: string(out.InterviewStage),
		FollowUpCount:  out.FollowUpCount,
	})
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *StreamHandler) writeFrame(ws *websocket.Conn, frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("failed to marshal websocket frame", "error", err)
		return
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
