package runner

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shanjing/adk-lab/agent"
	"github.com/shanjing/adk-lab/core"
	ledgersqlite "github.com/shanjing/adk-lab/ledger/sqlite"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/replay"
	"github.com/shanjing/adk-lab/session"
	sessionsqlite "github.com/shanjing/adk-lab/session/sqlite"
	"github.com/shanjing/adk-lab/travel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAgent() core.Agent {
	return agent.NewFuncAgent("echo", "", func(rc *core.RunContext) error {
		ev := core.NewMessageEvent(rc.RunID, "echo", "you said: "+rc.UserContent.Text())
		ev.Actions.StateDelta = map[string]any{"last_input": rc.UserContent.Text()}
		return rc.EmitEvent(ev)
	})
}

func TestRunner_RecordsInitialStateAsFirstEvent(t *testing.T) {
	store := session.NewInMemoryStore()
	r := New(echoAgent(), func(o *Options) { o.SessionStore = store })

	res, err := r.Run(context.Background(), "alice", "hello", map[string]any{"tier": "gold"})
	require.NoError(t, err)

	assert.Equal(t, "you said: hello", res.FinalText)
	assert.Equal(t, map[string]any{"tier": "gold", "last_input": "hello"}, res.State)
	assert.Equal(t, 3, res.Events)

	sess, err := store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	evs := sess.GetEvents()
	require.Len(t, evs, 3)
	assert.Equal(t, map[string]any{"tier": "gold"}, evs[0].Actions.StateDelta)
	assert.Nil(t, evs[0].Content)
	assert.Equal(t, "hello", evs[1].Text())
	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, "noname_app", sess.AppName)
	for _, ev := range evs {
		assert.Equal(t, res.RunID, ev.InvocationID)
	}
}

func TestRunner_NoInitialState(t *testing.T) {
	res, err := New(echoAgent()).Run(context.Background(), "alice", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Events)
}

func TestRunner_Continue(t *testing.T) {
	r := New(echoAgent())
	first, err := r.Run(context.Background(), "alice", "one", map[string]any{"seed": 1})
	require.NoError(t, err)

	second, err := r.Continue(context.Background(), first.SessionID, "two")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, "you said: two", second.FinalText)
	assert.Equal(t, map[string]any{"seed": 1, "last_input": "two"}, second.State)

	_, err = r.Continue(context.Background(), "missing", "x")
	require.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRunner_AgentErrorStillReturnsResult(t *testing.T) {
	boom := errors.New("boom")
	failing := agent.NewFuncAgent("failing", "", func(rc *core.RunContext) error {
		if err := rc.EmitEvent(core.NewStateEvent(rc.RunID, "failing", map[string]any{"step": 1})); err != nil {
			return err
		}
		return boom
	})

	res, err := New(failing).Run(context.Background(), "alice", "x", nil)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, map[string]any{"step": 1}, res.State)
	assert.Empty(t, res.FinalText)
}

func TestRunner_DebugLogsAndVerifies(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	r := New(echoAgent(), func(o *Options) {
		o.Logger = logger
		o.Debug = true
	})

	res, err := r.Run(context.Background(), "alice", "hello", map[string]any{"tier": "gold"})
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)

	out := buf.String()
	assert.Contains(t, out, "PRE-FLIGHT STATE")
	assert.Contains(t, out, "POST-FLIGHT STATE")
	assert.Contains(t, out, "state_delta_keys")
}

func TestRunner_GuardOverSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	visits, err := ledgersqlite.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = visits.Close() })
	sessions, err := sessionsqlite.Open(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	guard := travel.NewGuard(travel.NewPolicy(visits))
	r := New(guard, func(o *Options) {
		o.AppName = "travel_agent"
		o.SessionStore = sessions
		o.Debug = true
	})

	seed := map[string]any{travel.StateUserID: "alice", travel.StateTargetCity: "Tokyo"}
	res, err := r.Run(ctx, "alice", "Plan my trip to Tokyo", seed)
	require.NoError(t, err)
	assert.Contains(t, res.FinalText, "Trip to Tokyo approved")
	assert.Empty(t, res.Mismatches)

	it := travel.ItineraryFromState(res.State)
	assert.True(t, it.Approved)
	assert.True(t, it.Recorded)

	evs, err := sessions.Events(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.State, replay.ReconstructEvents(evs))

	again, err := r.Run(ctx, "alice", "Plan my trip to Tokyo", seed)
	require.NoError(t, err)
	assert.Contains(t, again.FinalText, "Policy Violation")
	assert.False(t, travel.ItineraryFromState(again.State).Approved)
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan string, 1)
	blocking := agent.NewFuncAgent("blocking", "", func(rc *core.RunContext) error {
		started <- rc.RunID
		<-rc.Done()
		return rc.Err()
	})
	r := New(blocking)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), "alice", "x", nil)
		errCh <- err
	}()

	require.NoError(t, r.Cancel(<-started))
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Error(t, r.Cancel("unknown"))
}
