// Package core provides the foundational domain types and contracts shared by
// the rest of adk-lab:
//
//   - Events (immutable records carrying content and an optional state delta)
//   - Sessions (live key/value state plus the ordered event log behind it)
//   - RunContext / ToolContext (scoped execution state for agents and tools)
//   - VisitLedger (the durable do-once gate consulted by policy tools)
//
// Concrete storage lives in the session and ledger packages; orchestration
// lives in agent and runner. This package only defines small interfaces so
// backends can be swapped without touching callers.
package core
