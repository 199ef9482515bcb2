package core

import (
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side effects attached to an Event. All fields are
// optional so absence can be distinguished from zero values. StateDelta is
// applied to the session state when the event is appended to a SessionStore.
type EventActions struct {
	SkipSummarization *bool          `json:"skip_summarization,omitempty"`
	StateDelta        map[string]any `json:"state_delta,omitempty"`
	// Escalate asks the enclosing pipeline to stop after this event.
	Escalate          *bool          `json:"escalate,omitempty"`
}

// Event is the unit appended to a session log. After emission it must be
// treated as immutable. It captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Side effects (Actions, most importantly StateDelta)
//   - Error metadata
//
// Content may be nil for state-only or error-only events.
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Partial      *bool        `json:"partial,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by author bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, RoleUser)
	e.Content = &Content{Role: RoleUser, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewStateEvent creates a content-less event whose only effect is delta.
// The delta map is copied.
func NewStateEvent(invocationID, author string, delta map[string]any) Event {
	e := NewEvent(invocationID, author)
	if len(delta) > 0 {
		e.Actions.StateDelta = maps.Clone(delta)
	}
	return e
}

// NewFunctionCallEvent represents an agent requesting execution of one or more tools.
func NewFunctionCallEvent(invocationID, author string, calls ...FunctionCall) Event {
	e := NewEvent(invocationID, author)
	parts := make([]Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: fc})
	}
	e.Content = &Content{Role: RoleAssistant, Parts: parts}
	return e
}

// NewFunctionResponseEvent records the result (or error) of a tool invocation.
// If err is non-nil its message is copied into the response Error field.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewID generates a new UUID-based identifier for events, runs and sessions.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// HasStateDelta reports whether the event carries a non-empty state delta.
func (e Event) HasStateDelta() bool { return len(e.Actions.StateDelta) > 0 }

// StateDeltaKeys returns the delta keys in sorted order.
func (e Event) StateDeltaKeys() []string {
	keys := make([]string, 0, len(e.Actions.StateDelta))
	for k := range e.Actions.StateDelta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetFunctionCalls returns the FunctionCall parts in order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts in order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text concatenates all text parts of the event content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// IsFinalResponse reports whether the event closes an assistant turn: no
// pending tool calls or responses and not a partial fragment.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// LogAttrs returns slog-style key/value pairs summarising the event.
func (e Event) LogAttrs() []any {
	attrs := []any{"event_id", e.ID, "author", e.Author}
	if e.Content != nil {
		attrs = append(attrs, "role", e.Content.Role)
	}
	if calls := e.GetFunctionCalls(); len(calls) > 0 {
		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.Name
		}
		attrs = append(attrs, "function_calls", names)
	}
	if e.HasStateDelta() {
		attrs = append(attrs, "state_delta_keys", e.StateDeltaKeys())
	}
	if e.ErrorMessage != nil {
		attrs = append(attrs, "error", *e.ErrorMessage)
	}
	return attrs
}
