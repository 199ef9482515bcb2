// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the structured logging methods (Debug, Info,
// Warn, Error with slog-style key/value pairs) that runners, agents, tools
// and stores use. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a *slog.Logger
//   - AppLogger with component/session context and domain helpers
//     (tool calls, model calls, pre/post-flight state snapshots)
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text", Output: os.Stderr})
//	r := runner.New(agent, func(o *runner.Options) { o.Logger = logger })
package logging
