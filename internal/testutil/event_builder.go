package testutil

import (
	"github.com/shanjing/adk-lab/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("planner").StateDelta("city", "tokyo").Build()
type EventBuilder struct {
	author        string
	invocationID  string
	id            string
	role          string
	textParts     []string
	funcCalls     []core.FunctionCall
	funcResponses []core.FunctionResponse
	partial       *bool
	actions       core.EventActions
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

// Author sets the author name for the event.
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID.
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the generated event ID.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Partial marks the event as a fragment.
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// UserText appends a user text part.
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = core.RoleUser
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant text part.
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = core.RoleAssistant
	b.textParts = append(b.textParts, t)
	return b
}

// FunctionCall adds a function call part.
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.funcCalls = append(b.funcCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FunctionResponse adds a function response part.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.role = core.RoleTool
	b.funcResponses = append(b.funcResponses, fr)
	return b
}

// StateDelta sets one key of the event's state delta.
func (b *EventBuilder) StateDelta(key string, value any) *EventBuilder {
	if b.actions.StateDelta == nil {
		b.actions.StateDelta = map[string]any{}
	}
	b.actions.StateDelta[key] = value
	return b
}

// SkipSummarization sets the SkipSummarization action flag.
func (b *EventBuilder) SkipSummarization() *EventBuilder {
	t := true
	b.actions.SkipSummarization = &t
	return b
}

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Partial = b.partial
	ev.Actions = b.actions

	parts := make([]core.Part, 0, len(b.textParts)+len(b.funcCalls)+len(b.funcResponses))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, fc := range b.funcCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	for _, fr := range b.funcResponses {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = core.RoleAssistant
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}
	return ev
}
