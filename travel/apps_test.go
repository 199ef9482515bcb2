package travel

import (
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingTools_WriteState(t *testing.T) {
	tests := []struct {
		name     string
		call     func(tc *core.ToolContext) (any, error)
		stateKey string
		want     map[string]any
	}{
		{
			name:     "weather",
			call:     func(tc *core.ToolContext) (any, error) { return WeatherTool().Call(tc, map[string]any{"city": "Tokyo"}) },
			stateKey: StateWeather,
			want:     map[string]any{"city": "Tokyo", "forecast": []string{"Sunny", "Cloudy", "Rain", "Sunny", "Windy"}},
		},
		{
			name:     "flights",
			call:     func(tc *core.ToolContext) (any, error) { return FlightsTool().Call(tc, map[string]any{"to_city": "Tokyo"}) },
			stateKey: StateFlight,
			want:     map[string]any{"to": "Tokyo", "price": "$450", "status": "Available"},
		},
		{
			name:     "hotels",
			call:     func(tc *core.ToolContext) (any, error) { return HotelsTool().Call(tc, map[string]any{"city": "Tokyo"}) },
			stateKey: StateHotel,
			want:     map[string]any{"city": "Tokyo", "hotel": "Grand ADK Hotel", "price": "$180"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, _ := newRunContext(t, "alice", "")
			tc := core.NewToolContext(rc, "fc-1")

			got, err := tt.call(tc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, tc.Actions().StateDelta[tt.stateKey])
		})
	}
}

func TestBookingTools_RequireCity(t *testing.T) {
	rc, _ := newRunContext(t, "alice", "")
	_, err := WeatherTool().Call(core.NewToolContext(rc, "fc-1"), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city")
}
