// Package replay rebuilds aggregated session state from an ordered event
// log. It is the inspection and recovery path: the live session state held
// by a SessionStore is authoritative, and Verify cross-checks it against
// the replay of the log that produced it.
//
// Records are resolved once, where they enter the program: Decode and
// ReadJSONL for raw JSON logs, FromEvent for in-process events. Reconstruct
// itself never inspects raw shapes.
package replay
