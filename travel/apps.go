package travel

import (
	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/tool"
)

// State keys written by the travel tools.
const (
	StateWeather       = "weather"
	StateFlight        = "flight"
	StateHotel         = "hotel"
	StatePolicy        = "policy"
	StateVisitRecorded = "visit_recorded"
	StateUserID        = "user_id"
	StateTargetCity    = "target_city"
)

// Forecast returns the five day forecast for city.
func Forecast(city string) map[string]any {
	return map[string]any{
		"city":     city,
		"forecast": []string{"Sunny", "Cloudy", "Rain", "Sunny", "Windy"},
	}
}

// FlightQuote returns the available flight to city.
func FlightQuote(toCity string) map[string]any {
	return map[string]any{"to": toCity, "price": "$450", "status": "Available"}
}

// HotelQuote returns the hotel offer in city.
func HotelQuote(city string) map[string]any {
	return map[string]any{"city": city, "hotel": "Grand ADK Hotel", "price": "$180"}
}

type cityArgs struct {
	City string `json:"city" description:"The city to look up."`
}

type flightArgs struct {
	ToCity string `json:"to_city" description:"Destination city of the flight."`
}

// WeatherTool is get_5_day_weather.
func WeatherTool() tool.Tool {
	return tool.NewTypedTool("get_5_day_weather", "Get a 5-day weather forecast for a city.",
		func(tc *core.ToolContext, a cityArgs) (any, error) {
			res := Forecast(a.City)
			tc.SetState(StateWeather, res)
			return res, nil
		})
}

// FlightsTool is search_flights.
func FlightsTool() tool.Tool {
	return tool.NewTypedTool("search_flights", "Search for flights to a city.",
		func(tc *core.ToolContext, a flightArgs) (any, error) {
			res := FlightQuote(a.ToCity)
			tc.SetState(StateFlight, res)
			return res, nil
		})
}

// HotelsTool is search_hotels.
func HotelsTool() tool.Tool {
	return tool.NewTypedTool("search_hotels", "Find hotels in a city.",
		func(tc *core.ToolContext, a cityArgs) (any, error) {
			res := HotelQuote(a.City)
			tc.SetState(StateHotel, res)
			return res, nil
		})
}
