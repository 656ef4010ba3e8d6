// Package memory is the in-memory session store, the default backing store
// for single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Store keeps canonical session records in a map guarded by a RWMutex.
// Reads hand out deep copies so the canonical record is only mutated
// through store operations, which serializes mutations per identity.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*domain.Session
}

var _ ports.SessionStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[domain.SessionKey]*domain.Session)}
}

func (s *Store) GetOrCreate(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = domain.NewSession(key)
		s.sessions[key] = sess
	}
	return sess.Clone(), nil
}

func (s *Store) Get(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) AppendTurn(ctx context.Context, key domain.SessionKey, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return ports.ErrSessionNotFound
	}
	sess.Append(turn)
	return nil
}

func (s *Store) SaveState(ctx context.Context, key domain.SessionKey, bag *domain.StateBag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return ports.ErrSessionNotFound
	}
	sess.State.Merge(bag)
	return nil
}

func (s *Store) Close() error {
	return nil
}
