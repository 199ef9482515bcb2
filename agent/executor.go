package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/tool"
)

// callResult is the outcome of one function call: the response event to
// emit and the tool error, if the call failed.
type callResult struct {
	event core.Event
	err   error
}

// executeCall runs one function call against registry. It never panics: a
// panicking tool is reported as a failed call. The response event carries
// any state the tool staged through its ToolContext.
func executeCall(rc *core.RunContext, author string, registry map[string]tool.Tool, fc core.FunctionCall) callResult {
	toolCtx := core.NewToolContext(rc, fc.ID)
	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(fc.Name, r)
				rc.LogError("agent.function.panic", "agent", author, "function", fc.Name, "recover", r)
			}
		}()
		result, err = callTool(registry, toolCtx, fc)
	}()

	rc.LogInfo(
		"agent.function.executed",
		"agent", author,
		"function", fc.Name,
		"function_call_id", fc.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(rc.RunID, author, fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&ev)
	return callResult{event: ev, err: err}
}

func callTool(registry map[string]tool.Tool, toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := registry[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, "tool not found", tool.CodeUnknownTool)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, tool.WrapError(fc.Name, tool.CodeBadArgs, fmt.Errorf("decode arguments: %w", err))
		}
	}

	result, err := impl.Call(toolCtx, args)
	if err != nil {
		var toolErr *tool.ToolError
		if errors.As(err, &toolErr) {
			return nil, err
		}
		return nil, tool.WrapError(fc.Name, tool.CodeExecution, err)
	}
	return result, nil
}

type panicErr struct {
	tool  string
	val   any
	stack []byte
}

func panicError(name string, r any) error { return &panicErr{tool: name, val: r, stack: debug.Stack()} }

func (p *panicErr) Error() string { return fmt.Sprintf("tool %s panicked: %v", p.tool, p.val) }
