// Package domain contains core domain types for the interview service.
package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn authored by the candidate.
	RoleUser Role = "user"
	// RoleModel marks a turn authored by the language model.
	RoleModel Role = "model"
)

// Turn is a single authored message in chronological order.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Stage names a phase of the interview state machine.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageFirstCoreQuestion  Stage = "awaiting_first_core_question"
	StageAskingFollowUps    Stage = "asking_follow_ups"
	StagePreFeedback        Stage = "pre_feedback"
	StageGeneratingFeedback Stage = "generating_feedback"
	StageComplete           Stage = "interview_complete"
)

// CollectsAnswers reports whether user input submitted during this stage
// counts toward the final evaluation. Inputs during the opening prompt and
// the feedback/closing phases carry no answer content.
func (s Stage) CollectsAnswers() bool {
	switch s {
	case StageInitial, StagePreFeedback, StageGeneratingFeedback, StageComplete:
		return false
	}
	return true
}

// Session holds the complete mutable state for one interview conversation,
// keyed by an opaque identifier supplied by the caller. History is
// append-only; it is never reordered or truncated.
type Session struct {
	ID               string
	History          []Turn
	Stage            Stage
	FollowUpCount    int
	CollectedAnswers []string
}

// NewSession returns a fresh session positioned at the opening stage.
func NewSession(id string) *Session {
	return &Session{
		ID:    id,
		Stage: StageInitial,
	}
}

// AppendTurn records one turn at the end of the history.
func (s *Session) AppendTurn(role Role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})
}

// Clone returns a deep copy so callers can inspect session state without
// holding the store's per-session lock.
func (s *Session) Clone() *Session {
	cp := &Session{
		ID:            s.ID,
		Stage:         s.Stage,
		FollowUpCount: s.FollowUpCount,
	}
	if len(s.History) > 0 {
		cp.History = append(make([]Turn, 0, len(s.History)), s.History...)
	}
	if len(s.CollectedAnswers) > 0 {
		cp.CollectedAnswers = append(make([]string, 0, len(s.CollectedAnswers)), s.CollectedAnswers...)
	}
	return cp
}
