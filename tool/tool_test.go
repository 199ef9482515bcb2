package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	rc := core.NewRunContext(context.Background(), core.Content{}, func(o *core.RunContextOptions) {
		o.SessionID = "s1"
		o.UserID = "alice"
	})
	return core.NewToolContext(rc, "fc-1")
}

var citySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"city": map[string]any{"type": "string"}},
	"required":   []string{"city"},
}

func TestFunctionTool_Success(t *testing.T) {
	tl := NewFunctionTool("search_hotels", "Find a hotel.", citySchema, func(tc *core.ToolContext, args map[string]any) (any, error) {
		tc.SetState("hotel", args["city"])
		return map[string]any{"city": args["city"], "hotel": "Grand ADK Hotel"}, nil
	})
	tc := newToolContext(t)

	out, err := tl.Call(tc, map[string]any{"city": "Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Tokyo", "hotel": "Grand ADK Hotel"}, out)
	assert.Equal(t, map[string]any{"hotel": "Tokyo"}, tc.Actions().StateDelta)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	called := false
	tl := NewFunctionTool("search_hotels", "", citySchema, func(*core.ToolContext, map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := tl.Call(newToolContext(t), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	tl := NewFunctionTool("search_hotels", "", citySchema, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, boom
	})
	_, err := tl.Call(newToolContext(t), map[string]any{"city": "Tokyo"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("search_hotels", "sold out", "SOLD_OUT")
	tl := NewFunctionTool("search_hotels", "", citySchema, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, custom
	})
	_, err := tl.Call(newToolContext(t), map[string]any{"city": "Tokyo"})
	assert.Same(t, custom, err)
	assert.Equal(t, "tool error [SOLD_OUT] in search_hotels: sold out", err.Error())
}

type flightArgs struct {
	City string `json:"city" description:"Destination city"`
	Days int    `json:"days,omitempty"`
}

func TestTypedTool(t *testing.T) {
	tl := NewTypedTool("search_flights", "Find flights.", func(tc *core.ToolContext, a flightArgs) (any, error) {
		return map[string]any{"to": a.City, "days": a.Days}, nil
	})
	assert.Equal(t, []string{"city"}, tl.Parameters()["required"])

	out, err := tl.Call(newToolContext(t), map[string]any{"city": "Tokyo", "days": 5.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"to": "Tokyo", "days": 5}, out)

	_, err = tl.Call(newToolContext(t), map[string]any{"days": 5.0})
	assert.Error(t, err)
}

func TestDefinitionsSortedByName(t *testing.T) {
	tools := map[string]Tool{
		"search_hotels": NewFunctionTool("search_hotels", "hotels", citySchema, nil),
		"read_state":    NewStateReaderTool(),
	}
	defs := Definitions(tools)
	require.Len(t, defs, 2)
	assert.Equal(t, "read_state", defs[0].Function.Name)
	assert.Equal(t, "search_hotels", defs[1].Function.Name)
	assert.Equal(t, "function", defs[1].Type)
	assert.Equal(t, citySchema, defs[1].Function.Parameters)
}

func TestStateReaderTool(t *testing.T) {
	tc := newToolContext(t)
	tc.SetState("weather", []string{"Sunny"})
	tc.SetState("city", "tokyo")
	reader := NewStateReaderTool()

	out, err := reader.Call(tc, map[string]any{"operation": "get_state", "key": "city"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "city", "exists": true, "value": "tokyo"}, out)

	out, err = reader.Call(tc, map[string]any{"operation": "get_state", "key": "hotel"})
	require.NoError(t, err)
	assert.Equal(t, false, out.(map[string]any)["exists"])

	out, err = reader.Call(tc, map[string]any{"operation": "list_keys"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keys": []string{"city", "weather"}}, out)

	_, err = reader.Call(tc, map[string]any{"operation": "set_state"})
	assert.Error(t, err)
}
