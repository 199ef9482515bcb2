package tool

import (
	"fmt"
	"sort"

	"github.com/shanjing/adk-lab/core"
)

// StateReaderTool lets a model inspect the session state built so far
// (for example the forecast or policy verdict written by earlier tools).
// It never writes state.
type StateReaderTool struct{}

// NewStateReaderTool creates the read_state tool.
func NewStateReaderTool() *StateReaderTool { return &StateReaderTool{} }

// Name returns the tool identifier.
func (t *StateReaderTool) Name() string { return "read_state" }

// Description returns the tool description.
func (t *StateReaderTool) Description() string {
	return "Reads the current session state. Operation get_state returns one key; list_keys returns every key."
}

// Parameters returns the JSON schema for tool parameters.
func (t *StateReaderTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"get_state", "list_keys"},
				"description": "What to read",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements Tool.
func (t *StateReaderTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, _ := args["operation"].(string)
	switch operation {
	case "get_state":
		key, ok := args["key"].(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("key parameter is required for get_state")
		}
		value, exists := toolCtx.GetState(key)
		return map[string]any{"key": key, "exists": exists, "value": value}, nil
	case "list_keys":
		state := toolCtx.State()
		keys := make([]string, 0, len(state))
		for k := range state {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return map[string]any{"keys": keys}, nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}
