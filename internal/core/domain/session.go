// Package domain provides the canonical types shared across the pipeline:
// sessions, turns, state bags, generation requests, and the error taxonomy.
package domain

import (
	"fmt"
	"time"
)

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Turn is one appended transcript record. Turns are never mutated after
// being appended; a session transcript only grows.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Stage     string    `json:"stage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionKey is the identity of a session: (application, user, session).
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String renders the key in app/user/session form, suitable for lock maps
// and storage keys.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.SessionID)
}

// Session is the conversational context for one (app, user, session)
// identity: an append-only transcript plus the state bag shared by the
// stages of an invocation. The session store owns sessions; callers get
// copies and write back through the store.
type Session struct {
	Key       SessionKey `json:"key"`
	Turns     []Turn     `json:"turns"`
	State     *StateBag  `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewSession creates an empty session for the given identity.
func NewSession(key SessionKey) *Session {
	return &Session{
		Key:       key,
		State:     NewStateBag(),
		CreatedAt: time.Now(),
	}
}

// Append adds a turn to the transcript.
func (s *Session) Append(t Turn) {
	s.Turns = append(s.Turns, t)
}

// Clone returns a deep copy of the session. Stores hand out clones so the
// canonical record is only ever mutated through store operations.
func (s *Session) Clone() *Session {
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return &Session{
		Key:       s.Key,
		Turns:     turns,
		State:     s.State.Clone(),
		CreatedAt: s.CreatedAt,
	}
}

// Conversation renders the transcript as role-tagged messages for the
// generation backend.
func (s *Session) Conversation() []Message {
	msgs := make([]Message, 0, len(s.Turns))
	for _, t := range s.Turns {
		msgs = append(msgs, Message{Role: t.Role, Text: t.Text})
	}
	return msgs
}
