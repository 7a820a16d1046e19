package interview

import (
	"context"
	"errors"

	"github.com/mockmate/interviewd/internal/domain"
)

// ErrUnknownStage signals that a session's persisted stage is not in the
// stage table. The turn is rejected without a model call; the session itself
// is left intact so the caller can decide whether to reset it.
var ErrUnknownStage = errors.New("interview: unknown interview stage")

// Generator is the model gateway consumed by the turn engine.
type Generator interface {
	// GenerateContent blocks until the complete reply text is available.
	// maxOutputTokens <= 0 means unlimited.
	GenerateContent(ctx context.Context, instruction string, history []domain.Turn, maxOutputTokens int) (string, error)

	// StreamContent produces the same reply via the streaming endpoint,
	// invoking onChunk for each non-empty text chunk in arrival order, and
	// returns the drained full text.
	StreamContent(ctx context.Context, instruction string, history []domain.Turn, onChunk func(string)) (string, error)
}

// TurnDelta is the outcome of one engine turn. The caller applies it to the
// session: append ModelText as a model turn when non-empty, then persist
// Stage and FollowUpCount.
type TurnDelta struct {
	ModelText     string
	Stage         domain.Stage
	FollowUpCount int
}

// AdvanceTurn runs one turn of the state machine against the session
// snapshot and returns the resulting delta. The session is never mutated
// here; on any error the returned delta carries the unchanged stage and
// counter so a retry of the same turn is safe.
func AdvanceTurn(ctx context.Context, gen Generator, sess *domain.Session, jobTitle string) (TurnDelta, error) {
	return advance(sess, jobTitle, func(instruction string, history []domain.Turn, maxOutputTokens int) (string, error) {
		return gen.GenerateContent(ctx, instruction, history, maxOutputTokens)
	})
}

// AdvanceTurnStream is AdvanceTurn with the model reply produced through the
// streaming gateway variant; onChunk observes each text chunk before the
// drained reply is folded into the delta.
func AdvanceTurnStream(ctx context.Context, gen Generator, sess *domain.Session, jobTitle string, onChunk func(string)) (TurnDelta, error) {
	return advance(sess, jobTitle, func(instruction string, history []domain.Turn, _ int) (string, error) {
		return gen.StreamContent(ctx, instruction, history, onChunk)
	})
}

func advance(sess *domain.Session, jobTitle string, call func(string, []domain.Turn, int) (string, error)) (TurnDelta, error) {
	unchanged := TurnDelta{Stage: sess.Stage, FollowUpCount: sess.FollowUpCount}

	def, ok := StageFor(sess.Stage)
	if !ok {
		return unchanged, ErrUnknownStage
	}

	// The follow-up cap was already reached: transition silently, with no
	// model call and no text for the caller to append.
	if sess.Stage == domain.StageAskingFollowUps && sess.FollowUpCount >= def.FollowUpCap {
		return TurnDelta{Stage: def.Next, FollowUpCount: sess.FollowUpCount}, nil
	}

	// The opening question is independent of anything said before, so the
	// initial stage always calls the model with empty history.
	history := sess.History
	if sess.Stage == domain.StageInitial {
		history = nil
	}

	text, err := call(def.Instruction(jobTitle, sess.CollectedAnswers), history, def.MaxOutputTokens)
	if err != nil {
		return unchanged, err
	}

	delta := TurnDelta{ModelText: text, Stage: sess.Stage, FollowUpCount: sess.FollowUpCount}
	if def.Next != "" {
		delta.Stage = def.Next
	}

	switch sess.Stage {
	case domain.StageInitial, domain.StageFirstCoreQuestion:
		delta.FollowUpCount = 0
	case domain.StageAskingFollowUps:
		delta.FollowUpCount = sess.FollowUpCount + 1
		if delta.FollowUpCount >= def.FollowUpCap {
			delta.Stage = def.Next
		} else {
			delta.Stage = sess.Stage
		}
	}

	return delta, nil
}
