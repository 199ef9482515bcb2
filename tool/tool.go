// Package tool implements function calling for agents: a Tool contract,
// schema-validated FunctionTool adapters, and conversion to the model's
// tool definitions.
package tool

import (
	"fmt"
	"sort"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/util"
	"github.com/shanjing/adk-lab/model"
)

// Tool is a capability an agent exposes to its model.
//
// Call receives arguments already decoded from the model's JSON. State
// changes must go through toolCtx.SetState so they are carried by the
// function response event.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeExecution   = "EXECUTION_ERROR"
	CodeUnknownTool = "UNKNOWN_TOOL"
	CodeBadArgs     = "INVALID_ARGUMENTS"
	// CodePolicyUnavailable marks a gate that could not be evaluated. The
	// gated action must be treated as refused.
	CodePolicyUnavailable = "POLICY_UNAVAILABLE"
	// CodeNotRun marks a requested call skipped because the run aborted.
	CodeNotRun = "NOT_RUN"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the error the tool function failed with, if any.
func (e *ToolError) Unwrap() error { return e.cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// WrapError builds a ToolError with code that unwraps to err.
func WrapError(tool, code string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: err.Error(), Code: code, cause: err}
}

// Definitions converts tools to model tool definitions sorted by name.
func Definitions(tools map[string]Tool) []model.ToolDefinition {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
