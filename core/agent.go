package core

// Agent is a unit of work driven by a RunContext. Implementations emit their
// progress through RunContext.EmitEvent and return when their turn is done.
//
// Implementations must respect context cancellation and must not mutate
// session state except through emitted event deltas.
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "pipeline").
type AgentInfo struct{ Name, Type string }
