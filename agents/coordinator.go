package agents

import (
	"context"
	"encoding/json"
)

var coordinatorTemplate = MustTemplate(coordinatorPrompt,
	"diner_info", "reservation_info",
	DietaryAnalysis, GuestExperience, SpecialRequests, Personalization,
)

// Coordinator merges the four specialist Results into one Briefing.
//
// It has no retry logic of its own; resilience comes from the Caller.
type Coordinator struct {
	template *Template
	caller   Caller
	settings
}

// NewCoordinator creates a coordinator bound to caller.
func NewCoordinator(caller Caller, opts ...Option) *Coordinator {
	return &Coordinator{
		template: coordinatorTemplate,
		caller:   caller,
		settings: buildSettings(coordinatorSystem, opts),
	}
}

// Coordinate makes exactly one Call. Error Results in the bundle are passed
// to the model as they are.
func (c *Coordinator) Coordinate(ctx context.Context, diner, reservation json.RawMessage, bundle Bundle) Briefing {
	values := map[string]string{
		"diner_info":       string(diner),
		"reservation_info": string(reservation),
	}
	for _, name := range Names() {
		r, ok := bundle[name]
		if !ok {
			r = ErrorResult("analysis missing")
		}
		data, err := json.Marshal(r)
		if err != nil {
			return ErrorResult("encode " + name + ": " + err.Error())
		}
		values[name] = string(data)
	}

	prompt, err := c.template.Render(values)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return complete(ctx, c.caller, c.settings, "coordinator", prompt, msgCoordinatorParse)
}
