package testutil

import (
	"github.com/shanjing/adk-lab/core"
)

// SessionBuilder helps construct sessions for tests. Events are added the
// way a store appends them, so their deltas shape the resulting state.
//
//	sess := NewSessionBuilder("sess-1").User("alice").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id     string
	app    string
	user   string
	events []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// App sets the application name.
func (b *SessionBuilder) App(name string) *SessionBuilder { b.app = name; return b }

// User sets the owning user.
func (b *SessionBuilder) User(id string) *SessionBuilder { b.user = id; return b }

// Event appends a single event.
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the session with every event applied in order.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.AppName = b.app
	s.UserID = b.user
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}
