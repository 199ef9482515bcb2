package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shanjing/adk-lab/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one function. Parameters is a JSON Schema
// object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the complete output of one Generate call. Content holds text
// parts and, when the model wants tools run, FunctionCall parts.
type Response struct {
	ID           string       `json:"id"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// ToolCalls returns the function calls requested by the response.
func (r Response) ToolCalls() []core.FunctionCall {
	var calls []core.FunctionCall
	for _, p := range r.Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// Text concatenates the text parts of the response.
func (r Response) Text() string { return r.Content.Text() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the interface agents use to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Info() Info
}

// EncodeToolResult renders a function response payload as the text handed
// back to a provider. Strings pass through; other values become JSON.
func EncodeToolResult(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]string{"error": fr.Error})
		return string(b)
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(b)
}

// ErrScriptExhausted is returned by MockModel when no scripted response is
// left and no fallback is configured.
var ErrScriptExhausted = errors.New("mock model: script exhausted")

// MockModel replays scripted responses in order and records every request.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []Response
	requests  []Request
	echoAfter bool
}

// NewMockModel constructs a MockModel with tool support enabled. Once the
// script runs out, it answers with an echo of the last user text.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		echoAfter: true,
	}
}

// Strict makes Generate fail with ErrScriptExhausted instead of echoing.
func (m *MockModel) Strict() *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoAfter = false
	return m
}

// Reply queues a plain text response.
func (m *MockModel) Reply(text string) *MockModel {
	return m.Queue(Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
}

// CallTools queues a response requesting the given function calls.
func (m *MockModel) CallTools(calls ...core.FunctionCall) *MockModel {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return m.Queue(Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: "tool_calls",
	})
}

// Queue appends a response to the script.
func (m *MockModel) Queue(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
	return m
}

// Requests returns the requests seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		if resp.ID == "" {
			resp.ID = core.NewID()
		}
		return resp, nil
	}
	if !m.echoAfter {
		return Response{}, ErrScriptExhausted
	}

	var input string
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role == core.RoleUser {
			input = req.Contents[i].Text()
			break
		}
	}
	return Response{
		ID:           core.NewID(),
		Content:      core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: "Mock response to: " + input}}},
		FinishReason: "stop",
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
