package travel

import (
	"context"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/ledger"
	"github.com/shanjing/adk-lab/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGuard_PlanOncePerCity(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewPolicy(ledger.NewInMemory()))

	it, err := g.Plan(ctx, "alice", "Tokyo")
	require.NoError(t, err)
	assert.True(t, it.Approved)
	assert.True(t, it.Recorded)
	assert.Equal(t, "alice", it.UserID)
	assert.Equal(t, "Tokyo", it.City)
	assert.Equal(t, "Grand ADK Hotel", it.Hotel["hotel"])
	assert.Equal(t, "$450", it.Flight["price"])
	assert.Equal(t, "Tokyo", it.Weather["city"])

	again, err := g.Plan(ctx, "alice", "tokyo")
	require.NoError(t, err)
	assert.False(t, again.Approved)
	assert.Contains(t, again.Reason, "already visited tokyo")
	assert.Nil(t, again.Flight)
	assert.False(t, again.Recorded)

	other, err := g.Plan(ctx, "bob", "Tokyo")
	require.NoError(t, err)
	assert.True(t, other.Approved)
}

func TestGuard_RunEmitsOneEventPerStep(t *testing.T) {
	g := NewGuard(NewPolicy(ledger.NewInMemory()))
	rc, emitted := newRunContext(t, "alice", "Tokyo")

	require.NoError(t, g.Run(rc))

	var keys [][]string
	for _, ev := range *emitted {
		assert.Equal(t, GuardName, ev.Author)
		keys = append(keys, ev.StateDeltaKeys())
	}
	assert.Equal(t, [][]string{{StatePolicy}, {StateWeather}, {StateFlight}, {StateHotel}, {StateVisitRecorded}}, keys)

	last := (*emitted)[len(*emitted)-1]
	assert.Contains(t, last.Text(), "Trip to Tokyo approved")
	assert.True(t, last.IsFinalResponse())

	assert.Empty(t, replay.Verify(rc.Session.GetStateSnapshot(), replay.FromEvents(rc.Session.GetEvents())))
}

func TestGuard_RefusalEscalates(t *testing.T) {
	l := ledger.NewInMemory()
	_, err := l.Record(context.Background(), "alice", "tokyo")
	require.NoError(t, err)

	rc, emitted := newRunContext(t, "alice", "Tokyo")
	require.NoError(t, NewGuard(NewPolicy(l)).Run(rc))

	require.Len(t, *emitted, 1)
	ev := (*emitted)[0]
	require.NotNil(t, ev.Actions.Escalate)
	assert.True(t, *ev.Actions.Escalate)
	assert.Contains(t, ev.Text(), "Policy Violation")
	_, booked := rc.Session.GetState(StateFlight)
	assert.False(t, booked)
}

func TestGuard_FailsClosedWhenLedgerDown(t *testing.T) {
	l := new(MockLedger)
	l.On("HasRecord", mock.Anything, "alice", "Tokyo").Return(false, core.ErrStorageUnavailable)

	rc, emitted := newRunContext(t, "alice", "Tokyo")
	err := NewGuard(NewPolicy(l)).Run(rc)

	require.ErrorIs(t, err, core.ErrStorageUnavailable)
	require.Len(t, *emitted, 1)
	require.NotNil(t, (*emitted)[0].ErrorCode)
	assert.Equal(t, "POLICY_UNAVAILABLE", *(*emitted)[0].ErrorCode)
	l.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	_, booked := rc.Session.GetState(StateHotel)
	assert.False(t, booked)
}

func TestGuard_RecordFailureAbortsAfterBooking(t *testing.T) {
	l := new(MockLedger)
	l.On("HasRecord", mock.Anything, "alice", "Oslo").Return(false, nil)
	l.On("Record", mock.Anything, "alice", "Oslo").Return(core.RecordOutcome(0), core.ErrStorageUnavailable)

	_, err := NewGuard(NewPolicy(l)).Plan(context.Background(), "alice", "Oslo")
	require.ErrorIs(t, err, core.ErrStorageUnavailable)
	l.AssertExpectations(t)
}

func TestGuard_TargetFromState(t *testing.T) {
	l := ledger.NewInMemory()
	rc, _ := newRunContext(t, "default_user", "please plan something")
	rc.Session.AddEvent(core.NewStateEvent("seed", core.RoleUser, map[string]any{StateUserID: "carol", StateTargetCity: "Lima"}))

	require.NoError(t, NewGuard(NewPolicy(l)).Run(rc))

	ok, err := l.HasRecord(context.Background(), "carol", "lima")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_MissingCity(t *testing.T) {
	rc, emitted := newRunContext(t, "alice", "   ")
	require.ErrorIs(t, NewGuard(NewPolicy(ledger.NewInMemory())).Run(rc), ErrMissingCity)
	assert.Empty(t, *emitted)
}

func TestItineraryFromState_DecodedJSON(t *testing.T) {
	it := ItineraryFromState(map[string]any{
		StateUserID:        "alice",
		StateTargetCity:    "Tokyo",
		StatePolicy:        map[string]any{"allowed": true, "reason": "Policy Check Passed."},
		StateHotel:         map[string]any{"hotel": "Grand ADK Hotel"},
		StateVisitRecorded: map[string]any{"recorded": true},
		StateWeather:       "not a map",
	})
	assert.True(t, it.Approved)
	assert.True(t, it.Recorded)
	assert.Nil(t, it.Weather)
	assert.Equal(t, "Grand ADK Hotel", it.Hotel["hotel"])
}
