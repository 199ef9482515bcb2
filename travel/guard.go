package travel

import (
	"context"
	"fmt"
	"strings"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/tool"
)

// GuardName is the author of every event the guard emits.
const GuardName = "supervisor_guard"

// Itinerary summarizes a guarded booking as read back from session state.
type Itinerary struct {
	UserID   string         `json:"user_id"`
	City     string         `json:"city"`
	Approved bool           `json:"approved"`
	Reason   string         `json:"reason"`
	Weather  map[string]any `json:"weather,omitempty"`
	Flight   map[string]any `json:"flight,omitempty"`
	Hotel    map[string]any `json:"hotel,omitempty"`
	Recorded bool           `json:"recorded"`
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	Logger logging.Logger
}

// Guard is the deterministic supervisor: it runs policy check, weather,
// flights, hotels and visit recording in that order, each step emitting
// one event whose state delta holds the step's result.
//
// The guard fails closed. If the ledger cannot be read, no booking step
// runs and Run returns an error wrapping core.ErrStorageUnavailable. A
// refused trip emits an escalating message event and ends the run.
type Guard struct {
	policy *Policy
	logger logging.Logger
}

// NewGuard creates the guard over policy.
func NewGuard(policy *Policy, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Guard{policy: policy, logger: opts.Logger}
}

// Name implements core.Agent.
func (g *Guard) Name() string { return GuardName }

// Description implements core.Agent.
func (g *Guard) Description() string {
	return "Checks the travel policy, then books weather, flight and hotel and records the trip."
}

// Run implements core.Agent. The traveler comes from state key "user_id"
// (else the run's user) and the city from "target_city" (else the user
// message text).
func (g *Guard) Run(rc *core.RunContext) error {
	userID, city := g.target(rc)
	if city == "" {
		return fmt.Errorf("%s: %w", GuardName, ErrMissingCity)
	}

	verdict, err := g.policy.Check(rc.Context, userID, city)
	if err != nil {
		code := tool.CodePolicyUnavailable
		msg := err.Error()
		ev := core.NewEvent(rc.RunID, GuardName)
		ev.ErrorCode = &code
		ev.ErrorMessage = &msg
		if emitErr := rc.EmitEvent(ev); emitErr != nil {
			g.logger.Error("guard.emit.failed", "error", emitErr.Error())
		}
		return fmt.Errorf("%s: %w", GuardName, err)
	}

	policyEv := core.NewStateEvent(rc.RunID, GuardName, map[string]any{StatePolicy: verdict.toMap()})
	if !verdict.Allowed {
		policyEv.Content = &core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: verdict.Reason}}}
		stop := true
		policyEv.Actions.Escalate = &stop
		g.logger.Info("guard.refused", "user_id", userID, "city", city)
		return rc.EmitEvent(policyEv)
	}
	if err := rc.EmitEvent(policyEv); err != nil {
		return err
	}

	steps := []struct {
		key   string
		value map[string]any
	}{
		{StateWeather, Forecast(city)},
		{StateFlight, FlightQuote(city)},
		{StateHotel, HotelQuote(city)},
	}
	for _, step := range steps {
		if err := rc.EmitEvent(core.NewStateEvent(rc.RunID, GuardName, map[string]any{step.key: step.value})); err != nil {
			return err
		}
	}

	recorded, err := g.policy.Record(rc.Context, userID, city)
	if err != nil {
		return fmt.Errorf("%s: %w", GuardName, err)
	}
	final := core.NewMessageEvent(rc.RunID, GuardName, summary(city, recorded))
	final.Actions.StateDelta = map[string]any{StateVisitRecorded: recorded.toMap()}
	g.logger.Info("guard.booked", "user_id", userID, "city", city, "recorded", recorded.Recorded)
	return rc.EmitEvent(final)
}

// Plan runs the guard for userID and city over a throwaway session and
// returns the resulting itinerary.
func (g *Guard) Plan(ctx context.Context, userID, city string) (*Itinerary, error) {
	sess := core.NewSession(core.NewID())
	rc := core.NewRunContext(ctx,
		core.Content{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: city}}},
		func(o *core.RunContextOptions) {
			o.SessionID = sess.ID
			o.UserID = userID
			o.Session = sess
			o.Agent = core.AgentInfo{Name: GuardName, Type: "guard"}
			o.Logger = g.logger
		},
	)
	sess.AddEvent(core.NewStateEvent(rc.RunID, core.RoleUser, map[string]any{StateUserID: userID, StateTargetCity: city}))
	if err := g.Run(rc); err != nil {
		return nil, err
	}
	return ItineraryFromState(sess.GetStateSnapshot()), nil
}

func (g *Guard) target(rc *core.RunContext) (string, string) {
	userID := rc.UserID
	if v, ok := rc.GetState(StateUserID); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			userID = strings.TrimSpace(s)
		}
	}
	city := strings.TrimSpace(rc.UserContent.Text())
	if v, ok := rc.GetState(StateTargetCity); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			city = strings.TrimSpace(s)
		}
	}
	return userID, city
}

func summary(city string, r RecordResult) string {
	f, h := FlightQuote(city), HotelQuote(city)
	return fmt.Sprintf(
		"Trip to %s approved. Flight %s (%s). Hotel %s at %s per night. Forecast: %s. %s",
		city, f["price"], f["status"], h["hotel"], h["price"],
		strings.Join(Forecast(city)["forecast"].([]string), ", "), r.Reason,
	)
}

// ItineraryFromState reads the booking written by the guard or the travel
// planner. It accepts values decoded from JSON as well as native ones.
func ItineraryFromState(state map[string]any) *Itinerary {
	it := &Itinerary{
		UserID:  stringValue(state[StateUserID]),
		City:    stringValue(state[StateTargetCity]),
		Weather: mapValue(state[StateWeather]),
		Flight:  mapValue(state[StateFlight]),
		Hotel:   mapValue(state[StateHotel]),
	}
	if p := mapValue(state[StatePolicy]); p != nil {
		it.Approved, _ = p["allowed"].(bool)
		it.Reason = stringValue(p["reason"])
	}
	if r := mapValue(state[StateVisitRecorded]); r != nil {
		it.Recorded, _ = r["recorded"].(bool)
	}
	return it
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
