package adklab

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/shanjing/adk-lab/config"
	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/ledger"
	"github.com/shanjing/adk-lab/model"
	anthropicmodel "github.com/shanjing/adk-lab/model/anthropic"
	openaimodel "github.com/shanjing/adk-lab/model/openai"
	"github.com/shanjing/adk-lab/replay"
	"github.com/shanjing/adk-lab/session"
	"github.com/shanjing/adk-lab/travel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		AppName:       "travel_agent",
		UserID:        "alice",
		DataDir:       t.TempDir(),
		ModelProvider: config.ProviderMock,
		Model:         "mock",
		MaxModelCalls: 10,
		Debug:         true,
	}
}

func TestLab_PlanPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	lab, err := New(func(o *Options) { o.Config = cfg })
	require.NoError(t, err)

	res, it, err := lab.Plan(ctx, "alice", "Tokyo")
	require.NoError(t, err)
	assert.True(t, it.Approved)
	assert.Empty(t, res.Mismatches)
	require.NoError(t, lab.Close())

	reopened, err := New(func(o *Options) { o.Config = cfg })
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	_, again, err := reopened.Plan(ctx, "alice", "tokyo")
	require.NoError(t, err)
	assert.False(t, again.Approved)

	replayed, err := reopened.ReplaySession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, replayed.Mismatches)
	assert.Equal(t, res.State, replayed.State)
	assert.Equal(t, replayed.Events, replayed.Stats.Records)
	assert.Zero(t, replayed.Stats.Malformed)

	var buf bytes.Buffer
	n, err := reopened.ExportSession(ctx, res.SessionID, &buf)
	require.NoError(t, err)
	assert.Equal(t, replayed.Events, n)
	records, err := replay.ReadJSONL(&buf)
	require.NoError(t, err)
	assert.Equal(t, replayed.State, replay.Reconstruct(records))
}

func TestLab_RunWithScriptedModel(t *testing.T) {
	llm := model.NewMockModel("scripted").
		CallTools(core.FunctionCall{ID: "p", Name: "check_travel_policy", Arguments: `{"target_city":"Paris"}`}).
		Reply("Welcome alice, Paris is approved.")

	lab, err := New(func(o *Options) {
		o.Config = testConfig(t)
		o.Ledger = ledger.NewInMemory()
		o.SessionStore = session.NewInMemoryStore()
		o.Model = llm
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = lab.Close() })

	res, err := lab.Run(context.Background(), "alice", "alice wants Paris", nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome alice, Paris is approved.", res.FinalText)
	assert.Equal(t, true, res.State[travel.StatePolicy].(map[string]any)["allowed"])
}

func TestLab_ReplayUnknownSession(t *testing.T) {
	lab, err := New(func(o *Options) {
		o.Config = testConfig(t)
		o.Ledger = ledger.NewInMemory()
		o.SessionStore = session.NewInMemoryStore()
	})
	require.NoError(t, err)

	_, err = lab.ReplaySession(context.Background(), "nope")
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = lab.ExportSession(context.Background(), "nope", io.Discard)
	require.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.Config{ModelProvider: config.ProviderMock, Model: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &model.MockModel{}, m)

	m, err = NewModel(config.Config{ModelProvider: config.ProviderOpenAI, Model: "gpt-4o-mini", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &openaimodel.Model{}, m)

	m, err = NewModel(config.Config{ModelProvider: config.ProviderAnthropic, AnthropicAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &anthropicmodel.Model{}, m)

	_, err = NewModel(config.Config{ModelProvider: "gemini"})
	require.Error(t, err)
}
