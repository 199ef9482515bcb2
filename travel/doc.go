// Package travel is the travel-booking domain: mock booking tools, the
// one-trip-per-city policy backed by a core.VisitLedger, a deterministic
// guard pipeline, and the model-driven supervisor that coordinates a
// travel planner sub-agent.
//
// Every tool writes its result into session state under a fixed key so
// the booking can be reconstructed from the event log alone:
//
//	weather         get_5_day_weather
//	flight          search_flights
//	hotel           search_hotels
//	policy          check_travel_policy
//	visit_recorded  record_visit
package travel
