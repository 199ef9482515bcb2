// Package session houses concrete implementations of core.SessionStore.
// InMemoryStore keeps sessions in process; the sqlite sub-package persists
// the ordered event log and derives live state by replaying it.
//
// Both stores apply an appended event's state delta in the same step that
// stores the event, so a session's State always equals the replay of its
// Events.
package session
