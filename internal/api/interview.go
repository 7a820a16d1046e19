package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mockmate/interviewd/internal/domain"
	"github.com/mockmate/interviewd/internal/interview"
)

// maxRequestBodySize caps inbound turn request bodies (1MB).
const maxRequestBodySize = 1 << 20

const (
	msgMissingField    = "Missing sessionId, jobTitle, or userResponse."
	msgUpstreamFailure = "Failed to get response from AI interviewer."
	msgUnknownStage    = "Unknown interview stage."
)

// InterviewHandler serves interview turn requests.
type InterviewHandler struct {
	svc *interview.Service
}

// NewInterviewHandler creates an interview handler.
func NewInterviewHandler(svc *interview.Service) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

// turnRequest is the wire shape of one turn. Pointers distinguish absent
// fields from empty strings: an empty userResponse is a present-but-blank
// answer, a missing one is a client error.
type turnRequest struct {
	SessionID    *string `json:"sessionId"`
	JobTitle     *string `json:"jobTitle"`
	UserResponse *string `json:"userResponse"`
}

// turnResponse is the wire shape of a completed turn.
type turnResponse struct {
	Response       string        `json:"response"`
	History        []historyTurn `json:"history"`
	InterviewStage domain.Stage  `json:"interviewStage"`
	FollowUpCount  int           `json:"followUpCount"`
}

type historyTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (req *turnRequest) validate() (interview.TurnRequest, bool) {
	if req.SessionID == nil || *req.SessionID == "" ||
		req.JobTitle == nil || *req.JobTitle == "" ||
		req.UserResponse == nil {
		return interview.TurnRequest{}, false
	}
	return interview.TurnRequest{
		SessionID:    *req.SessionID,
		JobTitle:     *req.JobTitle,
		UserResponse: *req.UserResponse,
	}, true
}

func toTurnResponse(res interview.TurnResult) turnResponse {
	history := make([]historyTurn, 0, len(res.History))
	for _, t := range res.History {
		history = append(history, historyTurn{Role: string(t.Role), Text: t.Text})
	}
	return turnResponse{
		Response:       res.Response,
		History:        history,
		InterviewStage: res.Stage,
		FollowUpCount:  res.FollowUpCount,
	}
}

// HandleTurn handles POST /interview requests.
func (h *InterviewHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, ok := req.validate()
	if !ok {
		Error(w, http.StatusBadRequest, msgMissingField)
		return
	}

	res, err := h.svc.HandleTurn(r.Context(), turn)
	if err != nil {
		writeTurnError(w, turn.SessionID, err)
		return
	}

	JSON(w, http.StatusOK, toTurnResponse(res))
}

func writeTurnError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, interview.ErrMissingField):
		Error(w, http.StatusBadRequest, msgMissingField)
	case errors.Is(err, interview.ErrUnknownStage):
		Error(w, http.StatusInternalServerError, msgUnknownStage)
	default:
		slog.Error("interview turn failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, msgUpstreamFailure)
	}
}

// RegisterRoutes registers the interview routes.
func (h *InterviewHandler) RegisterRoutes(r chi.Router) {
	r.Post("/interview", h.HandleTurn)
}
