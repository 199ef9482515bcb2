package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// JSONLines renders each value as one JSON line. Strings are taken verbatim
// so tests can mix hand-written malformed records with structured ones.
func JSONLines(t testing.TB, values ...any) string {
	t.Helper()
	var sb strings.Builder
	for _, v := range values {
		if s, ok := v.(string); ok {
			sb.WriteString(s)
		} else {
			b, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal record: %v", err)
			}
			sb.Write(b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DirectDelta returns a record carrying delta at the top level.
func DirectDelta(delta map[string]any) map[string]any {
	return map[string]any{"state_delta": delta}
}

// PayloadDelta returns a record carrying delta under payload.
func PayloadDelta(delta map[string]any) map[string]any {
	return map[string]any{"payload": map[string]any{"state_delta": delta}}
}
