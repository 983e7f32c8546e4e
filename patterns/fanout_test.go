package patterns

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

func TestNewFanOut_Invalid(t *testing.T) {
	if _, err := NewFanOut(nil); err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Errorf("expected empty analyzers error, got %v", err)
	}
	dup := []agents.Analyzer{&stubAnalyzer{name: "a"}, &stubAnalyzer{name: "a"}}
	if _, err := NewFanOut(dup); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}

func TestFanOut_AllKeysPresent(t *testing.T) {
	stubs := stubSpecialists()
	f, err := NewFanOut(asAnalyzers(stubs))
	if err != nil {
		t.Fatalf("NewFanOut() error: %v", err)
	}

	bundle := f.Run(context.Background(), nil, nil)
	if len(bundle) != 4 {
		t.Fatalf("expected 4 results, got %d", len(bundle))
	}
	for _, name := range agents.Names() {
		r, ok := bundle[name]
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if r["from"] != name {
			t.Errorf("%s holds result of %v", name, r["from"])
		}
	}
	for _, s := range stubs {
		if s.calls.Load() != 1 {
			t.Errorf("%s called %d times", s.name, s.calls.Load())
		}
	}
}

func TestFanOut_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	stubs := stubSpecialists()
	for _, s := range stubs {
		s.fn = func(context.Context) agents.Result {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return agents.Result{}
		}
	}
	f, _ := NewFanOut(asAnalyzers(stubs))

	start := time.Now()
	f.Run(context.Background(), nil, nil)
	elapsed := time.Since(start)

	if peak.Load() != 4 {
		t.Errorf("peak concurrency = %d, want 4", peak.Load())
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("fan-out took %v, expected parallel execution", elapsed)
	}
}

func TestFanOut_FailureDoesNotShortCircuit(t *testing.T) {
	stubs := stubSpecialists()
	stubs[0].result = agents.ErrorResult("API error: max retry attempts (10) exceeded")
	stubs[3].delay = 20 * time.Millisecond
	f, _ := NewFanOut(asAnalyzers(stubs))

	bundle := f.Run(context.Background(), nil, nil)
	if !agents.IsError(bundle[agents.DietaryAnalysis]) {
		t.Error("expected dietary analysis error to be kept")
	}
	if agents.IsError(bundle[agents.Personalization]) {
		t.Error("slow sibling should still complete")
	}
}

func TestFanOut_RecoversPanic(t *testing.T) {
	stubs := stubSpecialists()
	stubs[1].fn = func(context.Context) agents.Result { panic("boom") }
	f, _ := NewFanOut(asAnalyzers(stubs))

	bundle := f.Run(context.Background(), nil, nil)
	r := bundle[agents.GuestExperience]
	if !agents.IsError(r) || !strings.Contains(r["error"].(string), "boom") {
		t.Errorf("expected recovered panic result, got %v", r)
	}
	if len(bundle) != 4 {
		t.Errorf("expected 4 keys after panic, got %d", len(bundle))
	}
}

func TestFanOut_FillsMissingKeys(t *testing.T) {
	f, _ := NewFanOut([]agents.Analyzer{
		&stubAnalyzer{name: agents.DietaryAnalysis, result: agents.Result{}},
		&stubAnalyzer{name: agents.SpecialRequests},
	})

	bundle := f.Run(context.Background(), nil, nil)
	for _, name := range agents.Names() {
		if _, ok := bundle[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
	if !agents.IsError(bundle[agents.SpecialRequests]) {
		t.Error("nil result should be replaced by an error result")
	}
	if !agents.IsError(bundle[agents.GuestExperience]) {
		t.Error("unconfigured agent should be an error result")
	}
	if agents.IsError(bundle[agents.DietaryAnalysis]) {
		t.Error("configured agent result should be kept")
	}
}

func TestFanOut_CustomRequired(t *testing.T) {
	f, _ := NewFanOut([]agents.Analyzer{&stubAnalyzer{name: "x", result: agents.Result{}}}, WithRequired("x"))
	if bundle := f.Run(context.Background(), nil, nil); len(bundle) != 1 {
		t.Errorf("expected only x, got %v", bundle)
	}
}
