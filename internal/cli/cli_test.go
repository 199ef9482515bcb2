package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ADK_DATA_DIR", dir)
	t.Setenv("ADK_MODEL_PROVIDER", "mock")
	t.Setenv("USER_ID", "alice")
	t.Setenv("ADK_LOG_LEVEL", "error")
	return dir
}

func TestReplay_Stdin(t *testing.T) {
	log := testutil.JSONLines(t,
		testutil.DirectDelta(map[string]any{"city": "Tokyo"}),
		"{not json",
		testutil.PayloadDelta(map[string]any{"city": "Kyoto", "nights": 3}),
	)

	out, errOut, err := execute(t, log, "replay", "-")
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, map[string]any{"city": "Kyoto", "nights": float64(3)}, state)
	assert.Contains(t, errOut, "records=3 applied=2 malformed=1")
}

func TestReplay_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(testutil.JSONLines(t, testutil.DirectDelta(map[string]any{"k": "v"}))), 0o600))

	out, _, err := execute(t, "", "replay", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, out)

	_, _, err = execute(t, "", "replay", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestVisits_RecordCheckList(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "", "visits", "check", "Tokyo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"allowed":true,"reason":"Policy Check Passed."}`, out)

	out, _, err = execute(t, "", "visits", "record", "Tokyo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"recorded":true,"reason":"Trip recorded."}`, out)

	out, _, err = execute(t, "", "visits", "record", " tokyo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"recorded":false,"reason":"Trip already recorded."}`, out)

	out, _, err = execute(t, "", "visits", "check", "Tokyo")
	require.NoError(t, err)
	assert.Contains(t, out, `"allowed": false`)

	out, _, err = execute(t, "", "visits", "list")
	require.NoError(t, err)
	var visits []core.Visit
	require.NoError(t, json.Unmarshal([]byte(out), &visits))
	require.Len(t, visits, 1)
	assert.Equal(t, "tokyo", visits[0].ResourceID)
	assert.Equal(t, "alice", visits[0].SubjectID)

	out, _, err = execute(t, "", "visits", "list", "--user", "bob")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestPlan_ThenSessionReplay(t *testing.T) {
	isolate(t)

	out, errOut, err := execute(t, "", "plan", "Lisbon")
	require.NoError(t, err)
	assert.Contains(t, out, `"approved": true`)
	sessionID := sessionFrom(errOut)
	require.NotEmpty(t, sessionID)

	out, _, err = execute(t, "", "session", "replay", sessionID)
	require.NoError(t, err)
	assert.Contains(t, out, `"hotel"`)
	assert.Contains(t, out, `"visit_recorded"`)

	out, _, err = execute(t, "", "plan", "lisbon")
	require.NoError(t, err)
	assert.Contains(t, out, `"approved": false`)
}

func TestSessionExport_FeedsReplay(t *testing.T) {
	isolate(t)

	_, errOut, err := execute(t, "", "plan", "Kyoto")
	require.NoError(t, err)
	sessionID := sessionFrom(errOut)
	require.NotEmpty(t, sessionID)

	exported, errOut, err := execute(t, "", "session", "export", sessionID)
	require.NoError(t, err)
	assert.Contains(t, errOut, "events=")

	replayed, _, err := execute(t, exported, "replay", "-")
	require.NoError(t, err)
	stored, _, err := execute(t, "", "session", "replay", sessionID)
	require.NoError(t, err)
	assert.JSONEq(t, stored, replayed)

	_, _, err = execute(t, "", "session", "export", "missing")
	require.Error(t, err)
}

func TestRun_MockModelEchoes(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "", "run", "--state", "tier=gold", "--state", `budget={"max":900}`, "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello there\n", out)
}

func TestParseState(t *testing.T) {
	state, err := parseState([]string{"n=3", "name=alice", `tags=["a"]`, "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(3), "name": "alice", "tags": []any{"a"}, "empty": ""}, state)

	_, err = parseState([]string{"novalue"})
	require.Error(t, err)

	state, err = parseState(nil)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func sessionFrom(errOut string) string {
	for _, line := range strings.Split(errOut, "\n") {
		if id, ok := strings.CutPrefix(line, "session "); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}
