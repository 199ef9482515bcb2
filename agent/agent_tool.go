package agent

import (
	"fmt"

	"github.com/shanjing/adk-lab/core"
)

// AgentTool exposes an agent as a tool. The wrapped agent runs against the
// caller's session with the "request" argument as its user input; its final
// answer text is the tool result.
type AgentTool struct {
	agent core.Agent
}

// NewAgentTool wraps agent as a tool named after it.
func NewAgentTool(agent core.Agent) *AgentTool { return &AgentTool{agent: agent} }

// Name implements tool.Tool.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description implements tool.Tool.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters implements tool.Tool.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "The task for the agent, in plain language.",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the wrapped agent and returns its final answer.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	child := toolCtx.Child(
		core.AgentInfo{Name: t.agent.Name(), Type: "tool"},
		core.Content{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: request}}},
	)

	mark := len(child.Session.GetEvents())
	if err := t.agent.Run(child); err != nil {
		return nil, fmt.Errorf("run %s: %w", t.agent.Name(), err)
	}
	return FinalText(child.Session.GetEvents()[mark:], t.agent.Name()), nil
}

// FinalText returns the text of the last final response authored by author.
func FinalText(events []core.Event, author string) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Author == author && ev.Content != nil && ev.IsFinalResponse() {
			if text := ev.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}
