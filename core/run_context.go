package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/shanjing/adk-lab/logging"
)

// RunContext carries execution state & helpers for one agent run. It
// aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, UserID, Agent info)
//   - The user input that started the run
//   - The emit hook that persists events
//   - A working Session snapshot and the staged StateDelta
//
// State written via SetState is staged until an emitted event carries it;
// EmitEvent then folds the delta into the working snapshot.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	UserID           string
	Agent            AgentInfo
	UserContent      Content
	Session          *Session
	StateDelta       map[string]any

	emit func(Event) error

	*loggerAdapter
}

// RunContextOptions configures NewRunContext.
type RunContextOptions struct {
	SessionID string
	RunID     string
	UserID    string
	Agent     AgentInfo
	Session   *Session
	// Emit persists an event. It is called synchronously; the run does not
	// continue until it returns.
	Emit   func(Event) error
	Logger logging.Logger
}

// NewRunContext constructs a RunContext with an empty staged delta.
func NewRunContext(ctx context.Context, userContent Content, optFns ...func(o *RunContextOptions)) *RunContext {
	opts := RunContextOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RunID == "" {
		opts.RunID = NewID()
	}
	if opts.Session == nil {
		opts.Session = NewSession(opts.SessionID)
	}
	return &RunContext{
		Context:       ctx,
		SessionID:     opts.SessionID,
		RunID:         opts.RunID,
		UserID:        opts.UserID,
		Agent:         opts.Agent,
		UserContent:   userContent,
		Session:       opts.Session,
		StateDelta:    map[string]any{},
		emit:          opts.Emit,
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}
	if rc.Session != nil {
		return rc.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a state mutation.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// State returns the session snapshot overlaid with the staged delta.
func (rc *RunContext) State() map[string]any {
	state := map[string]any{}
	if rc.Session != nil {
		state = rc.Session.GetStateSnapshot()
	}
	maps.Copy(state, rc.StateDelta)
	return state
}

// EmitEvent persists ev through the emit hook, then folds ev into the
// working session snapshot and drops the matching staged keys.
func (rc *RunContext) EmitEvent(ev Event) error {
	if err := rc.Context.Err(); err != nil {
		return err
	}
	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}
	if rc.emit != nil {
		if err := rc.emit(ev); err != nil {
			return fmt.Errorf("emit event %s: %w", ev.ID, err)
		}
	}
	if rc.Session != nil {
		rc.Session.AddEvent(ev)
	}
	for k := range ev.Actions.StateDelta {
		delete(rc.StateDelta, k)
	}
	return nil
}

// GetSessionHistory returns the conversation history of the working snapshot.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}
	return rc.Session.GetConversationHistory()
}

// Child returns a RunContext for a sub-agent invoked during this run. It
// shares the session, identifiers and emit hook; staged state is separate.
func (rc *RunContext) Child(agent AgentInfo, userContent Content) *RunContext {
	return &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		UserID:        rc.UserID,
		Agent:         agent,
		UserContent:   userContent,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		emit:          rc.emit,
		loggerAdapter: newLoggerAdapter(rc.Logger()),
	}
}
