package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("s1")

	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("State not applied: %+v", s.State)
	}

	s.ApplyStateDelta(map[string]any{"a": nil})
	v, ok := s.GetState("a")
	assert.True(t, ok, "nil delta value keeps the key present")
	assert.Nil(t, v)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetState("c", 2)
	_, exists := s.GetState("c")
	assert.False(t, exists, "original should not have clone's new key")
}

func TestSession_AddEventAppliesDeltaAndCopiesOnRead(t *testing.T) {
	s := NewSession("s2")
	s.AddEvent(NewUserMessageEvent("inv", "hi"))
	s.AddEvent(NewStateEvent("inv", "planner", map[string]any{"city": "tokyo"}))

	assert.Equal(t, map[string]any{"city": "tokyo"}, s.GetStateSnapshot())

	all := s.GetEvents()
	require.Len(t, all, 2)
	orig := all[0].Author
	all[0].Author = "changed"
	assert.Equal(t, orig, s.GetEvents()[0].Author, "events slice should be copied on read")

	history := s.GetConversationHistory()
	require.Len(t, history, 1, "state-only events are not conversation")
	assert.Equal(t, RoleUser, history[0].Content.Role)
}

func TestRunContext_EmitEventFoldsDelta(t *testing.T) {
	var persisted []Event
	rc := NewRunContext(context.Background(), Content{Role: RoleUser}, func(o *RunContextOptions) {
		o.SessionID = "s1"
		o.Emit = func(ev Event) error {
			persisted = append(persisted, ev)
			return nil
		}
	})

	rc.SetState("weather", "sunny")
	rc.SetState("draft", true)
	v, ok := rc.GetState("weather")
	require.True(t, ok)
	assert.Equal(t, "sunny", v)

	ev := NewStateEvent("", "planner", map[string]any{"weather": "sunny"})
	require.NoError(t, rc.EmitEvent(ev))

	require.Len(t, persisted, 1)
	assert.Equal(t, rc.RunID, persisted[0].InvocationID)
	assert.Equal(t, map[string]any{"draft": true}, rc.StateDelta)
	assert.Equal(t, map[string]any{"weather": "sunny", "draft": true}, rc.State())
}

func TestRunContext_EmitEventHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := NewRunContext(ctx, Content{})
	assert.ErrorIs(t, rc.EmitEvent(NewEvent("", "a")), context.Canceled)
}

func TestToolContext_ApplyActions(t *testing.T) {
	rc := NewRunContext(context.Background(), Content{}, func(o *RunContextOptions) { o.SessionID = "s1" })
	tc := NewToolContext(rc, "call-1")
	require.NoError(t, tc.Validate())

	tc.SetState("policy", map[string]any{"allowed": true})
	tc.SkipSummarization()

	ev := NewFunctionResponseEvent("", "guard", "call-1", "check_travel_policy", "ok", nil)
	tc.ApplyActions(&ev)

	assert.Equal(t, map[string]any{"policy": map[string]any{"allowed": true}}, ev.Actions.StateDelta)
	require.NotNil(t, ev.Actions.SkipSummarization)
	v, ok := rc.GetState("policy")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"allowed": true}, v)

	assert.Error(t, NewToolContext(rc, "").Validate())
}

func TestNormalizeResourceAndOutcome(t *testing.T) {
	assert.Equal(t, "paris", NormalizeResource("  Paris "))
	assert.Equal(t, "são paulo", NormalizeResource("São Paulo"))
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "already_exists", AlreadyExists.String())
	assert.Equal(t, "unknown", RecordOutcome(0).String())
}

func TestRunContext_ChildSharesSessionAndEmit(t *testing.T) {
	var emitted []Event
	parent := NewRunContext(context.Background(), Content{}, func(o *RunContextOptions) {
		o.SessionID = "s1"
		o.UserID = "alice"
		o.Emit = func(ev Event) error { emitted = append(emitted, ev); return nil }
	})
	parent.SetState("staged", true)

	child := parent.Child(AgentInfo{Name: "travel_planner", Type: "model"}, Content{Role: RoleUser, Parts: []Part{TextPart{Text: "book"}}})
	assert.Equal(t, parent.RunID, child.RunID)
	assert.Equal(t, "alice", child.UserID)
	assert.Empty(t, child.StateDelta)

	require.NoError(t, child.EmitEvent(NewStateEvent("", "travel_planner", map[string]any{"flight": "ok"})))
	require.Len(t, emitted, 1)
	assert.Equal(t, parent.RunID, emitted[0].InvocationID)

	v, ok := parent.GetState("flight")
	assert.True(t, ok)
	assert.Equal(t, "ok", v)
	_, ok = parent.GetState("staged")
	assert.True(t, ok)
}
