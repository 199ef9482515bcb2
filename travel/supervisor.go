package travel

import (
	"github.com/shanjing/adk-lab/agent"
	"github.com/shanjing/adk-lab/model"
	"github.com/shanjing/adk-lab/tool"
)

// PlannerName is the name of the travel planner sub-agent.
const PlannerName = "travel_planner"

const supervisorInstruction = `You are a strict gatekeeper for travel requests.

1. Extract the user_id and the target_city from the user input.
2. Greet the user by name and make them feel welcome.
3. Call 'check_travel_policy' with only the user_id and target_city.
4. If 'allowed' is true:
   - Tell the user the trip is approved.
   - Immediately call the 'travel_planner' tool and pass it the user_id and target_city.
5. If 'allowed' is false:
   - Stop.
   - Tell the user they have already visited this city and that the policy allows one trip per city.
6. Once the travel_planner has booked the flight and hotel, tell the user the itinerary.
7. If the trip was allowed, also tell the user one fact about the city.

Do not explain what you cannot do. Use the tools provided.`

const plannerInstruction = `You are a travel planning specialist.
Provide a complete itinerary including weather, flights and a hotel.
Use 'read_state' to look up results recorded earlier in the session, such as the policy verdict.
After you have booked both a flight and a hotel, call 'record_visit' with the user_id and target_city to persist the trip.`

// SupervisorOptions configures the model-driven supervisor.
type SupervisorOptions struct {
	MaxModelCalls int
	// PlannerModel drives the travel planner. Defaults to the supervisor's
	// model.
	PlannerModel model.Model
}

// NewPlanner builds the travel planner: a model agent with the booking
// tools, record_visit and read_state.
func NewPlanner(llm model.Model, policy *Policy, maxModelCalls int) *agent.ModelAgent {
	return agent.NewModelAgent(PlannerName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "A specialist in booking flights and hotels and checking the weather."
		o.Instruction = agent.NewInstructionFromText(plannerInstruction)
		o.Tools = []tool.Tool{WeatherTool(), FlightsTool(), HotelsTool(), policy.RecordTool(), tool.NewStateReaderTool()}
		if maxModelCalls > 0 {
			o.MaxModelCalls = maxModelCalls
		}
	})
}

// NewSupervisor builds the model-driven supervisor_guard. It owns the
// policy check and delegates booking to the travel planner, exposed to it
// as a tool.
func NewSupervisor(llm model.Model, policy *Policy, optFns ...func(o *SupervisorOptions)) *agent.ModelAgent {
	opts := SupervisorOptions{PlannerModel: llm}
	for _, fn := range optFns {
		fn(&opts)
	}
	planner := NewPlanner(opts.PlannerModel, policy, opts.MaxModelCalls)

	return agent.NewModelAgent(GuardName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Reviews travel requests against the one trip per city policy."
		o.Instruction = agent.NewInstructionFromText(supervisorInstruction)
		o.Tools = []tool.Tool{policy.CheckTool(), agent.NewAgentTool(planner)}
		if opts.MaxModelCalls > 0 {
			o.MaxModelCalls = opts.MaxModelCalls
		}
	})
}
