// Package model defines the provider-agnostic contract used by agents to
// drive a language model: a normalized Request (instructions, conversation
// contents, tool definitions) and a single Response per call.
//
// Providers live in sub-packages (openai, anthropic). MockModel replays a
// scripted sequence of responses for tests and offline runs.
package model
