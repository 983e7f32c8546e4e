package patterns

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

// stubAnalyzer returns result, or runs fn when set.
type stubAnalyzer struct {
	name   string
	result agents.Result
	delay  time.Duration
	fn     func(ctx context.Context) agents.Result
	calls  atomic.Int32
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(ctx context.Context, _, _ json.RawMessage) agents.Result {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fn != nil {
		return s.fn(ctx)
	}
	return s.result
}

func stubSpecialists() []*stubAnalyzer {
	var out []*stubAnalyzer
	for _, name := range agents.Names() {
		out = append(out, &stubAnalyzer{name: name, result: agents.Result{"from": name}})
	}
	return out
}

func asAnalyzers(stubs []*stubAnalyzer) []agents.Analyzer {
	out := make([]agents.Analyzer, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

// stubCoordinator records the bundle it receives.
type stubCoordinator struct {
	got    agents.Bundle
	result agents.Briefing
}

func (s *stubCoordinator) Coordinate(_ context.Context, _, _ json.RawMessage, bundle agents.Bundle) agents.Briefing {
	s.got = bundle
	return s.result
}
