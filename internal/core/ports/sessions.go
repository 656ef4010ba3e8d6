package ports

import (
	"context"
	"errors"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
)

// ErrSessionNotFound is returned by Get for identities that were never
// created. GetOrCreate never returns it.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore owns session records keyed by (app, user, session) identity.
// Stores hand out deep copies; mutations go back through AppendTurn and
// SaveState. Operations on the same identity are serialized internally;
// operations on distinct identities may proceed concurrently.
type SessionStore interface {
	// GetOrCreate returns a copy of the session for key, creating it with an
	// empty transcript and state bag on first reference. Idempotent.
	GetOrCreate(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// Get returns a copy of an existing session or ErrSessionNotFound.
	Get(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// AppendTurn appends one turn to the session transcript.
	AppendTurn(ctx context.Context, key domain.SessionKey, turn domain.Turn) error

	// SaveState merges the bag into the session's stored state, overwriting
	// on key collision.
	SaveState(ctx context.Context, key domain.SessionKey, bag *domain.StateBag) error

	// Close releases backing resources.
	Close() error
}
