// Package agent contains the agent implementations used by the runner:
//
//   - ModelAgent drives a model through the tool-calling loop
//   - SequentialAgent runs child agents in order over one session
//   - FuncAgent adapts a plain function into an agent step
//   - AgentTool exposes an agent as a tool of another agent
//
// Agents communicate only through emitted events. A step that writes state
// attaches it as the event's state delta; later steps read it from the
// session the delta was folded into.
package agent
