package patterns

import (
	"context"
	"testing"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

func TestPipeline_Process(t *testing.T) {
	stubs := stubSpecialists()
	f, _ := NewFanOut(asAnalyzers(stubs))
	coord := &stubCoordinator{result: agents.Briefing{"priority_alerts": []any{}}}

	p, err := NewPipeline(f, coord)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}

	got := p.Process(context.Background(), []byte(`{}`), []byte(`{}`))
	if len(coord.got) != 4 {
		t.Errorf("coordinator saw %d results, want 4", len(coord.got))
	}
	if got.Partial() {
		t.Error("expected a complete analysis")
	}
	if _, ok := got.Briefing["priority_alerts"]; !ok {
		t.Error("briefing not passed through")
	}
}

func TestPipeline_Partial(t *testing.T) {
	tests := []struct {
		name     string
		specErr  bool
		coordErr bool
		want     bool
	}{
		{"clean", false, false, false},
		{"specialist failed", true, false, true},
		{"coordinator failed", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := stubSpecialists()
			if tt.specErr {
				stubs[2].result = agents.ErrorResult("Failed to parse agent output")
			}
			coord := &stubCoordinator{result: agents.Briefing{}}
			if tt.coordErr {
				coord.result = agents.ErrorResult("API error: boom")
			}
			f, _ := NewFanOut(asAnalyzers(stubs))
			p, _ := NewPipeline(f, coord)

			got := p.Process(context.Background(), nil, nil)
			if got.Partial() != tt.want {
				t.Errorf("Partial() = %v, want %v", got.Partial(), tt.want)
			}
			if coord.got == nil {
				t.Error("coordinator must run even when a specialist failed")
			}
		})
	}
}

func TestNewPipeline_Invalid(t *testing.T) {
	f, _ := NewFanOut(asAnalyzers(stubSpecialists()))
	if _, err := NewPipeline(nil, &stubCoordinator{}); err == nil {
		t.Error("expected error for nil fan-out")
	}
	if _, err := NewPipeline(f, nil); err == nil {
		t.Error("expected error for nil coordinator")
	}
}
