package agent

import (
	"errors"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_Static(t *testing.T) {
	rc, _ := newTestRunContext(t, "")
	in := NewInstructionFromText("You are a travel planner.")

	assert.True(t, in.IsStatic())
	out, err := in.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, "You are a travel planner.", out)
}

func TestInstruction_RendersState(t *testing.T) {
	rc, _ := newTestRunContext(t, "")
	rc.Session.SetState("city", "Tokyo")
	rc.SetState("budget", 900)

	out, err := NewInstructionFromText("Plan {{.city}} within {{.budget}}.").Render(rc)
	require.NoError(t, err)
	assert.Equal(t, "Plan Tokyo within 900.", out)
}

func TestInstruction_Provider(t *testing.T) {
	rc, _ := newTestRunContext(t, "")
	in := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		return "Act for {{.user}}.", nil
	})
	rc.SetState("user", "alice")

	assert.False(t, in.IsStatic())
	out, err := in.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, "Act for alice.", out)
}

func TestInstruction_ProviderError(t *testing.T) {
	rc, _ := newTestRunContext(t, "")
	boom := errors.New("boom")
	_, err := NewInstructionFromFunc(func(*core.RunContext) (string, error) { return "", boom }).Render(rc)
	require.ErrorIs(t, err, boom)
}

type cityProvider struct{ city string }

func (p cityProvider) Instruction(*core.RunContext) (string, error) {
	return "Plan a trip to " + p.city + " for {{.user}}.", nil
}

func TestInstruction_ResolveLeavesPlaceholders(t *testing.T) {
	rc, _ := newTestRunContext(t, "")
	rc.SetState("user", "alice")
	in := NewInstructionFromProvider(cityProvider{city: "Tokyo"})

	raw, err := in.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip to Tokyo for {{.user}}.", raw)

	out, err := in.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip to Tokyo for alice.", out)
}
