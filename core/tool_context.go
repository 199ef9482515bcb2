package core

import (
	"context"
	"fmt"

	"github.com/shanjing/adk-lab/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by an agent. It accumulates EventActions (state deltas and escalation)
// without mutating the session until the function response event is emitted.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// UserID returns the user the run acts for.
func (tc *ToolContext) UserID() string { return tc.runCtx.UserID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// GetState retrieves the state associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// State returns the full state visible to the tool, including deltas
// staged earlier in the run.
func (tc *ToolContext) State() map[string]any { return tc.runCtx.State() }

// SetState records a state mutation both on the run context (for immediate
// visibility) and in the local delta for emission.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that the function response ends the turn.
func (tc *ToolContext) SkipSummarization() {
	b := true
	tc.eventActions.SkipSummarization = &b
}

// Escalate marks the function response as escalating: an enclosing
// SequentialAgent stops after the calling agent finishes.
func (tc *ToolContext) Escalate() {
	b := true
	tc.eventActions.Escalate = &b
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}

// ApplyActions merges accumulated EventActions into ev.
func (tc *ToolContext) ApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range tc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}
	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}
	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate
	}
}

// Child returns a RunContext for an agent invoked by this tool. Events it
// emits land in the same session as the calling agent's events.
func (tc *ToolContext) Child(agent AgentInfo, userContent Content) *RunContext {
	return tc.runCtx.Child(agent, userContent)
}
