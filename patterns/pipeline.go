package patterns

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

// Coordinator consolidates a Bundle. *agents.Coordinator satisfies it.
type Coordinator interface {
	Coordinate(ctx context.Context, diner, reservation json.RawMessage, bundle agents.Bundle) agents.Briefing
}

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	Bundle   agents.Bundle
	Briefing agents.Briefing
}

// Partial reports whether any specialist or the coordinator returned an
// error Result.
func (a Analysis) Partial() bool {
	if agents.IsError(a.Briefing) {
		return true
	}
	for _, r := range a.Bundle {
		if agents.IsError(r) {
			return true
		}
	}
	return false
}

// Pipeline runs the specialists, then the coordinator, for one reservation.
//
// The coordinator always runs, even when some specialists failed; their
// error Results are part of its input.
type Pipeline struct {
	fanOut      *FanOut
	coordinator Coordinator
}

// NewPipeline chains fanOut into coordinator.
func NewPipeline(fanOut *FanOut, coordinator Coordinator) (*Pipeline, error) {
	if fanOut == nil {
		return nil, errors.New("fan-out is required")
	}
	if coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	return &Pipeline{fanOut: fanOut, coordinator: coordinator}, nil
}

// Process analyzes one reservation.
func (p *Pipeline) Process(ctx context.Context, diner, reservation json.RawMessage) Analysis {
	bundle := p.fanOut.Run(ctx, diner, reservation)
	return Analysis{
		Bundle:   bundle,
		Briefing: p.coordinator.Coordinate(ctx, diner, reservation, bundle),
	}
}
