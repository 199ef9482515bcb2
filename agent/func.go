package agent

import "github.com/shanjing/adk-lab/core"

// FuncAgent runs a plain function as an agent step.
type FuncAgent struct {
	BaseAgent
	fn func(rc *core.RunContext) error
}

// NewFuncAgent wraps fn. The function emits its own events.
func NewFuncAgent(name, description string, fn func(rc *core.RunContext) error) *FuncAgent {
	a := &FuncAgent{BaseAgent: NewBaseAgent(name), fn: fn}
	if description != "" {
		a.SetDescription(description)
	}
	return a
}

// Run implements core.Agent.
func (a *FuncAgent) Run(rc *core.RunContext) error { return a.fn(rc) }
