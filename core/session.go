package core

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore implementations when the
// requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is a conversational container tracking live key/value state plus
// the ordered event log that produced it. It is safe for concurrent access.
//
// Contract:
//   - State only changes through ApplyStateDelta / SetState (shallow overwrite)
//   - GetEvents and GetStateSnapshot return copies
//   - Clone performs copies of maps/slices for safe divergence.
type Session struct {
	ID      string         `json:"id"`
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// GetStateSnapshot returns a shallow copy of the current state.
func (s *Session) GetStateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.State)
}

// SetState sets a key/value pair in session state updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta overwrites each key of delta in State. Keys not in delta
// are left untouched; nil values are stored, not removed.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now().UTC()
}

// AddEvent appends an event to the log and applies its state delta.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	maps.Copy(s.State, ev.Actions.StateDelta)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns the events suitable as model context:
// user, assistant and tool content, excluding partial fragments.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}
		switch ev.Content.Role {
		case RoleUser, RoleAssistant, RoleTool:
			res = append(res, ev)
		}
	}
	return res
}

// Clone returns a copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		AppName: s.AppName,
		UserID:  s.UserID,
		State:   maps.Clone(s.State),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	if clone.State == nil {
		clone.State = map[string]any{}
	}
	copy(clone.Events, s.Events)
	return clone
}

// CreateSessionRequest describes a new session.
type CreateSessionRequest struct {
	ID      string // generated when empty
	AppName string
	UserID  string
}

// SessionStore persists sessions and their event logs. AppendEvent stores
// the event and applies its state delta to the live state as one step so
// the live state always equals the replay of the stored log.
type SessionStore interface {
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	AppendEvent(ctx context.Context, sessionID string, ev Event) error
}
