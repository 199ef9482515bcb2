package agent

import "fmt"

// BaseAgent holds the identity shared by every agent. Embed it and supply a
// Run method to satisfy core.Agent.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{name: name, description: fmt.Sprintf("Agent %s", name)}
}

// Name returns the agent name used as event author.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent is for.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
