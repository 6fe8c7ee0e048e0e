// Package session manages conversation sessions. Each session is an ordered
// sequence of turns keyed by an opaque session id; the gateway appends the
// caller's turn, runs the dialogue engine over the full history, and appends
// the reply. Storage is in-memory with process lifetime only.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// ErrNotFound is returned when a session key is unknown.
var ErrNotFound = errors.New("session not found")

// Completer produces the next assistant turn for an ordered turn history.
// The gateway treats it as an external collaborator; implementations live
// in pkg/engine.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error)
}

// Session is one conversation. All mutation goes through the session mutex
// so that racing requests on the same key apply their turns in the order
// they acquire it, with no interleaving.
type Session struct {
	// Key is the opaque session id, caller- or server-generated.
	Key string

	mu    sync.Mutex
	turns []chat.Turn
}

// Turns returns a copy of the session's ordered turn history.
func (s *Session) Turns() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Append adds a turn to the end of the history.
func (s *Session) Append(turn chat.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// Exchange appends the user turn, invokes the completer with the full
// ordered history, and appends the reply on success. The session mutex is
// held for the whole exchange: concurrent exchanges on the same session
// serialize, so no turn is lost and history order matches acquisition
// order. Exchanges on different sessions proceed independently.
//
// On completer failure the user turn stays in the history and no reply is
// appended; a canceled caller surfaces as the completer's error and the
// discarded reply is never written.
func (s *Session) Exchange(ctx context.Context, userTurn chat.Turn, c Completer) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, userTurn)

	reply, err := c.Complete(ctx, s.turns)
	if err != nil {
		return chat.Turn{}, err
	}
	// Replies always land as assistant turns regardless of what the
	// engine reports.
	reply.Role = chat.RoleAssistant

	s.turns = append(s.turns, reply)
	return reply, nil
}

// Store defines the interface for session management.
type Store interface {
	// GetOrCreate returns the session for key, creating an empty one if
	// absent. Never fails.
	GetOrCreate(key string) *Session

	// Get retrieves a session by key. Returns ErrNotFound if absent.
	Get(key string) (*Session, error)

	// Append adds a turn to the session's history, creating the session
	// if absent.
	Append(key string, turn chat.Turn)

	// Delete removes a session. Returns ErrNotFound if absent.
	Delete(key string) error

	// List returns all live sessions.
	List() []*Session
}
