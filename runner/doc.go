// Package runner drives one agent run end to end.
//
// A run creates (or resumes) a session, records the caller's initial state
// as the first event delta, appends the user message, and then executes the
// root agent. Every event the agent emits is persisted through the
// core.SessionStore before the agent continues, so the stored log is the
// single source of truth for session state.
//
// In debug mode the runner logs the state before and after the run and
// replays the stored log to confirm it reproduces the live state.
package runner
