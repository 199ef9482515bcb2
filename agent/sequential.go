package agent

import (
	"fmt"

	"github.com/shanjing/adk-lab/core"
)

// SequentialAgent runs child agents one after another over the same
// session. A child that emits an escalating event ends the sequence early
// without error; a child error stops it with that error.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a sequential coordinator.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{BaseAgent: NewBaseAgent(name), children: children}
}

// Children returns the child agents in execution order.
func (s *SequentialAgent) Children() []core.Agent { return s.children }

// Run implements core.Agent.
func (s *SequentialAgent) Run(rc *core.RunContext) error {
	for _, child := range s.children {
		if err := rc.Err(); err != nil {
			return err
		}
		mark := len(rc.Session.GetEvents())
		childCtx := rc.Child(core.AgentInfo{Name: child.Name(), Type: "step"}, rc.UserContent)
		if err := child.Run(childCtx); err != nil {
			return fmt.Errorf("sequential agent %s: step %s: %w", s.Name(), child.Name(), err)
		}
		if escalated(rc.Session.GetEvents()[mark:]) {
			rc.LogInfo("agent.sequence.halted", "agent", s.Name(), "step", child.Name())
			return nil
		}
	}
	return nil
}

func escalated(evs []core.Event) bool {
	for _, ev := range evs {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			return true
		}
	}
	return false
}
