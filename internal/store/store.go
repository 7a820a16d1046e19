// Package store provides session state repositories.
package store

import (
	"context"

	"github.com/mockmate/interviewd/internal/domain"
)

// Repository defines the interface for session state keyed by session ID.
//
// WithSession is the only mutation path: it atomically gets or creates the
// session for id and runs fn while holding that session's lock, so no two
// turns for the same session ever execute concurrently. Turns for distinct
// sessions are fully independent.
type Repository interface {
	// WithSession runs fn against the session for id, creating the session
	// at the opening stage if it does not exist yet. fn's error is returned
	// unchanged; the session record itself is kept either way (fn is
	// responsible for not applying partial mutations on failure).
	WithSession(ctx context.Context, id string, fn func(*domain.Session) error) error

	// Get returns a deep copy of the session for id, if present.
	Get(ctx context.Context, id string) (*domain.Session, bool)

	// Len reports the number of live sessions.
	Len() int
}
