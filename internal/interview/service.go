package interview

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mockmate/interviewd/internal/domain"
	"github.com/mockmate/interviewd/internal/store"
)

// SentinelStart is the reserved user input that kicks off a session without
// carrying any answer content. It is never appended to history or counted as
// a collected answer.
const SentinelStart = "start interview"

// ErrMissingField signals an incomplete turn request. No session state is
// touched and no model call is made.
var ErrMissingField = errors.New("interview: missing sessionId, jobTitle, or userResponse")

// TurnRequest is one inbound interview turn.
type TurnRequest struct {
	SessionID    string
	JobTitle     string
	UserResponse string
}

// TurnResult is the outcome reported back to the client: the model's reply,
// the full turn history, and the current stage/counter for display logic.
type TurnResult struct {
	Response      string
	History       []domain.Turn
	Stage         domain.Stage
	FollowUpCount int
}

// Service orchestrates interview turns: session lookup and per-session
// serialization through the repository, engine invocation, state mutation,
// and transcript logging.
type Service struct {
	repo       store.Repository
	gen        Generator
	transcript TranscriptLogger
	logger     *slog.Logger
}

// NewService creates an interview service. transcript may be nil to disable
// transcript logging.
func NewService(repo store.Repository, gen Generator, transcript TranscriptLogger, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("interview: repository must not be nil")
	}
	if gen == nil {
		return nil, errors.New("interview: generator must not be nil")
	}
	if transcript == nil {
		transcript = NopTranscriptLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		gen:        gen,
		transcript: transcript,
		logger:     logger,
	}, nil
}

// HandleTurn processes one interview turn and persists the outcome. On any
// failure the stored session is left unchanged so the client can safely
// retry the same request.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	return s.handleTurn(ctx, req, nil)
}

// HandleTurnStream is HandleTurn with the model reply produced through the
// streaming gateway; sink observes each text chunk as it arrives. State is
// still committed only once the full reply has been drained.
func (s *Service) HandleTurnStream(ctx context.Context, req TurnRequest, sink func(string)) (TurnResult, error) {
	return s.handleTurn(ctx, req, sink)
}

func (s *Service) handleTurn(ctx context.Context, req TurnRequest, sink func(string)) (TurnResult, error) {
	if req.SessionID == "" || req.JobTitle == "" {
		return TurnResult{}, ErrMissingField
	}

	var result TurnResult
	err := s.repo.WithSession(ctx, req.SessionID, func(sess *domain.Session) error {
		stageAtCall := sess.Stage

		// Stage the turn on a working copy so a gateway failure leaves the
		// stored session byte-identical and the turn retryable.
		work := sess.Clone()
		if req.UserResponse != "" && req.UserResponse != SentinelStart {
			work.AppendTurn(domain.RoleUser, req.UserResponse)
			if stageAtCall.CollectsAnswers() {
				work.CollectedAnswers = append(work.CollectedAnswers, req.UserResponse)
			}
		}

		var (
			delta TurnDelta
			err   error
		)
		if sink != nil {
			delta, err = AdvanceTurnStream(ctx, s.gen, work, req.JobTitle, sink)
		} else {
			delta, err = AdvanceTurn(ctx, s.gen, work, req.JobTitle)
		}
		if err != nil {
			return err
		}

		if delta.ModelText != "" {
			work.AppendTurn(domain.RoleModel, delta.ModelText)
		}
		sess.History = work.History
		sess.CollectedAnswers = work.CollectedAnswers
		sess.Stage = delta.Stage
		sess.FollowUpCount = delta.FollowUpCount

		result = TurnResult{
			Response:      delta.ModelText,
			History:       sess.Clone().History,
			Stage:         sess.Stage,
			FollowUpCount: sess.FollowUpCount,
		}

		s.logTurn(req, stageAtCall, delta)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownStage) {
			s.logger.Warn("turn rejected: unknown interview stage", "session_id", req.SessionID)
		} else if !errors.Is(err, ErrMissingField) {
			s.logger.Error("interview turn failed", "session_id", req.SessionID, "error", err)
		}
		return TurnResult{}, err
	}
	return result, nil
}

func (s *Service) logTurn(req TurnRequest, stageAtCall domain.Stage, delta TurnDelta) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if req.UserResponse != "" && req.UserResponse != SentinelStart {
		s.transcript.Log(TranscriptEvent{
			Timestamp:     now,
			SessionID:     req.SessionID,
			JobTitle:      req.JobTitle,
			Role:          string(domain.RoleUser),
			Stage:         string(stageAtCall),
			FollowUpCount: delta.FollowUpCount,
			Text:          req.UserResponse,
		})
	}
	if delta.ModelText != "" {
		s.transcript.Log(TranscriptEvent{
			Timestamp:     now,
			SessionID:     req.SessionID,
			JobTitle:      req.JobTitle,
			Role:          string(domain.RoleModel),
			Stage:         string(delta.Stage),
			FollowUpCount: delta.FollowUpCount,
			Text:          delta.ModelText,
		})
	}
}

// Close releases service resources.
func (s *Service) Close() {
	if err := s.transcript.Close(); err != nil {
		s.logger.Warn("failed to close transcript logger", "error", err)
	}
}
