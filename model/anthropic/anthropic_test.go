package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const messageWithToolUse = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Checking policy."},
    {"type": "tool_use", "id": "toolu_1", "name": "check_travel_policy", "input": {"city": "Tokyo"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 20, "output_tokens": 5}
}`

func TestGenerate_ToolUse(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageWithToolUse)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})
	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "You are a travel planner.",
		Contents: []core.Content{
			{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: "Plan Tokyo"}}},
			{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "toolu_0", Name: "get_5_day_weather", Arguments: `{"city":"Tokyo"}`}}}},
			{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "toolu_0", Name: "get_5_day_weather", Response: map[string]any{"city": "Tokyo"}}}}},
		},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:        "check_travel_policy",
			Description: "Checks the one-trip-per-city policy.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
				"required":   []string{"city"},
			},
		}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, "Checking policy.", resp.Text())
	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"city":"Tokyo"}`, calls[0].Arguments)
	assert.Equal(t, 25, resp.Usage.TotalTokens)

	req := gjson.ParseBytes(body)
	assert.Equal(t, "You are a travel planner.", req.Get("system.0.text").String())
	assert.Equal(t, "assistant", req.Get("messages.1.role").String())
	assert.Equal(t, "tool_use", req.Get("messages.1.content.0.type").String())
	assert.Equal(t, "user", req.Get("messages.2.role").String())
	assert.Equal(t, "tool_result", req.Get("messages.2.content.0.type").String())
	assert.Equal(t, "toolu_0", req.Get("messages.2.content.0.tool_use_id").String())
	assert.Equal(t, "city", req.Get("tools.0.input_schema.required.0").String())
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", 3, "b"}))
	assert.Nil(t, requiredFields(nil))
}
