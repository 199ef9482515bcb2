package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shanjing/adk-lab/core"
)

// InMemoryStore is a volatile SessionStore storing sessions in a process
// local map. It is safe for concurrent access. Returned sessions are clones,
// so callers cannot mutate stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create stores a new empty session. An empty req.ID gets a generated one;
// an existing ID is rejected.
func (s *InMemoryStore) Create(ctx context.Context, req core.CreateSessionRequest) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	sess := core.NewSession(id)
	sess.AppName = req.AppName
	sess.UserID = req.UserID
	s.sessions[id] = sess
	return sess.Clone(), nil
}

// Get returns a clone of the stored session.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// AppendEvent appends ev to the session log and applies its delta.
func (s *InMemoryStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	sess.AddEvent(ev)
	return nil
}

var _ core.SessionStore = (*InMemoryStore)(nil)
