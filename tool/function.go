package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/util"
)

// FunctionTool exposes a Go function as a Tool. Arguments are validated
// against the declared schema before fn runs; failures come back as
// *ToolError with CodeValidation or CodeExecution, while a *ToolError
// returned by fn is forwarded unchanged.
//
// A FunctionTool holds no mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
//	weather := NewFunctionTool(
//	  "get_5_day_weather",
//	  "Returns a five day forecast for a city.",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"city": map[string]any{"type": "string"}},
//	    "required":   []string{"city"},
//	  },
//	  forecastFn,
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewTypedTool derives the schema from Args and decodes validated arguments
// into it before calling fn.
//
//	type cityArgs struct {
//	  City string `json:"city" description:"Destination city"`
//	}
//	flights := NewTypedTool("search_flights", "Find flights to a city.",
//	  func(tc *core.ToolContext, a cityArgs) (any, error) { ... })
func NewTypedTool[Args any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args Args) (any, error),
) *FunctionTool {
	var zero Args
	return NewFunctionTool(name, description, util.CreateSchema(zero), func(tc *core.ToolContext, raw map[string]any) (any, error) {
		var args Args
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeBadArgs, cause: err}
		}
		if err := json.Unmarshal(b, &args); err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeBadArgs, cause: err}
		}
		return fn(tc, args)
	})
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args then invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()
	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			cause:   err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)
			return nil, toolErr
		}
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution, cause: err}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
