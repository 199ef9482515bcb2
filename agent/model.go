package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/model"
	"github.com/shanjing/adk-lab/tool"
)

// ErrMaxModelCalls is returned when a run needs more model calls than the
// agent allows.
var ErrMaxModelCalls = errors.New("model call limit reached")

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction Instruction
	Description string
	Tools       []tool.Tool
	// MaxModelCalls bounds the model calls of one run, tool round trips
	// included.
	MaxModelCalls int
	// MaxHistoryMessages bounds the prior conversation replayed to the
	// model. The current turn is always sent in full.
	MaxHistoryMessages int
	// OutputKey, when set, stores the final answer text in session state.
	OutputKey string
}

// ModelAgent drives a model through the tool-calling loop:
//
//  1. send instruction, history and the current turn to the model
//  2. emit the model's reply as an event
//  3. if the reply requests tools, run each in order, emit one function
//     response event per call, and go back to 1
//
// A tool failing because storage is unavailable aborts the run; any other
// tool error is handed back to the model as the call's result.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	maxModelCalls      int
	maxHistoryMessages int
	outputKey          string
}

// NewModelAgent creates a model-backed agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		MaxModelCalls:      10,
		MaxHistoryMessages: 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
		maxModelCalls:      opts.MaxModelCalls,
		maxHistoryMessages: opts.MaxHistoryMessages,
		outputKey:          opts.OutputKey,
	}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}
	for _, t := range opts.Tools {
		a.tools[t.Name()] = t
	}
	return a
}

// Model returns the backing model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Tools returns the registered tools keyed by name.
func (a *ModelAgent) Tools() map[string]tool.Tool { return a.tools }

// OutputKey returns the state key receiving the final answer, if any.
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// Run implements core.Agent.
func (a *ModelAgent) Run(rc *core.RunContext) error {
	instructions, err := a.instruction.Render(rc)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	contents := a.history(rc)
	if len(rc.UserContent.Parts) > 0 {
		user := rc.UserContent
		if user.Role == "" {
			user.Role = core.RoleUser
		}
		contents = append(contents, user)
	}
	defs := tool.Definitions(a.tools)

	for calls := 0; ; calls++ {
		if err := rc.Err(); err != nil {
			return err
		}
		if a.maxModelCalls > 0 && calls >= a.maxModelCalls {
			return a.failLimit(rc)
		}

		start := time.Now()
		resp, err := a.llm.Generate(rc.Context, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        defs,
		})
		if err != nil {
			rc.LogError("agent.model.error", "agent", a.Name(), "model", a.llm.Info().Name, "error", err.Error())
			return fmt.Errorf("agent %s: generate: %w", a.Name(), err)
		}
		rc.LogDebug(
			"agent.model.response",
			"agent", a.Name(),
			"model", a.llm.Info().Name,
			"finish_reason", resp.FinishReason,
			"tool_calls", len(resp.ToolCalls()),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		content := withCallIDs(resp.Content)
		ev := core.NewEvent(rc.RunID, a.Name())
		ev.Content = &content

		fnCalls := ev.GetFunctionCalls()
		if len(fnCalls) == 0 {
			a.finalize(rc, &ev)
			return rc.EmitEvent(ev)
		}
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		contents = append(contents, content)

		done := false
		for i, fc := range fnCalls {
			res := executeCall(rc, a.Name(), a.tools, fc)
			if err := rc.EmitEvent(res.event); err != nil {
				return err
			}
			if res.err != nil && errors.Is(res.err, core.ErrStorageUnavailable) {
				rc.LogError("agent.function.abort", "agent", a.Name(), "function", fc.Name, "error", res.err.Error())
				a.skipCalls(rc, fnCalls[i+1:])
				return fmt.Errorf("agent %s: %w", a.Name(), res.err)
			}
			contents = append(contents, *res.event.Content)
			if skip := res.event.Actions.SkipSummarization; skip != nil && *skip {
				done = true
			}
		}
		if done {
			return nil
		}
	}
}

// finalize attaches the output key and any state staged outside tools.
func (a *ModelAgent) finalize(rc *core.RunContext, ev *core.Event) {
	if a.outputKey != "" {
		rc.SetState(a.outputKey, ev.Text())
	}
	if len(rc.StateDelta) > 0 {
		ev.Actions.StateDelta = make(map[string]any, len(rc.StateDelta))
		for k, v := range rc.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}
}

// skipCalls answers calls that will not run so every call in the log has
// a response.
func (a *ModelAgent) skipCalls(rc *core.RunContext, calls []core.FunctionCall) {
	for _, fc := range calls {
		err := tool.NewToolError(fc.Name, "not run: an earlier call in the same turn failed", tool.CodeNotRun)
		ev := core.NewFunctionResponseEvent(rc.RunID, a.Name(), fc.ID, fc.Name, nil, err)
		if emitErr := rc.EmitEvent(ev); emitErr != nil {
			rc.LogError("agent.function.skip_failed", "agent", a.Name(), "function", fc.Name, "error", emitErr.Error())
			return
		}
	}
}

func (a *ModelAgent) failLimit(rc *core.RunContext) error {
	msg := fmt.Sprintf("agent %s exceeded %d model calls", a.Name(), a.maxModelCalls)
	code := "MAX_MODEL_CALLS"
	ev := core.NewEvent(rc.RunID, a.Name())
	ev.ErrorCode = &code
	ev.ErrorMessage = &msg
	if err := rc.EmitEvent(ev); err != nil {
		return err
	}
	return fmt.Errorf("agent %s: %w", a.Name(), ErrMaxModelCalls)
}

// history returns the contents of earlier runs addressed to or produced by
// this agent, newest MaxHistoryMessages kept.
func (a *ModelAgent) history(rc *core.RunContext) []core.Content {
	var out []core.Content
	for _, ev := range rc.GetSessionHistory() {
		if ev.InvocationID == rc.RunID {
			continue
		}
		if ev.Author != a.Name() && ev.Author != core.RoleUser {
			continue
		}
		out = append(out, *ev.Content)
	}
	if a.maxHistoryMessages > 0 && len(out) > a.maxHistoryMessages {
		out = out[len(out)-a.maxHistoryMessages:]
	}
	// A tool result is meaningless without the call that produced it.
	for len(out) > 0 && out[0].Role == core.RoleTool {
		out = out[1:]
	}
	return out
}

// withCallIDs returns content with an ID on every function call so the
// response events can be correlated.
func withCallIDs(c core.Content) core.Content {
	if c.Role == "" {
		c.Role = core.RoleAssistant
	}
	parts := make([]core.Part, len(c.Parts))
	for i, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = core.NewID()
			p = fc
		}
		parts[i] = p
	}
	c.Parts = parts
	return c
}
