// Package patterns provides the concurrency shapes used to analyze one
// reservation.
//
// FanOut runs every specialist concurrently over the same input and joins
// on all of them. Pipeline chains a FanOut into a coordinator.
//
// Performance characteristics:
//   - Time: O(max agent time) - parallel execution
//   - Goroutines: one per analyzer, all joined before Run returns
package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

// FanOut executes several analyzers concurrently and collects a Bundle.
//
// All analyzers receive the same (diner, reservation) snapshot. Each
// goroutine writes only its own slot, so no lock is held while agents run.
// A failing agent never short-circuits the others, and a panicking agent is
// recovered into an error Result.
//
// The returned Bundle always contains every name in Required, filled with
// an error Result if no analyzer produced it.
type FanOut struct {
	analyzers []agents.Analyzer
	required  []string
	logger    *slog.Logger
}

// FanOutOption configures a FanOut.
type FanOutOption func(*FanOut)

// WithRequired sets the names the bundle must contain. Defaults to
// agents.Names().
func WithRequired(names ...string) FanOutOption {
	return func(f *FanOut) {
		f.required = names
	}
}

// WithFanOutLogger sets the logger used for recovered panics.
func WithFanOutLogger(l *slog.Logger) FanOutOption {
	return func(f *FanOut) {
		f.logger = l
	}
}

// NewFanOut creates a fan-out over analyzers.
//
// Parameters:
//   - analyzers: at least one, with distinct names
func NewFanOut(analyzers []agents.Analyzer, opts ...FanOutOption) (*FanOut, error) {
	if len(analyzers) == 0 {
		return nil, errors.New("at least one analyzer is required")
	}
	seen := make(map[string]bool, len(analyzers))
	for _, a := range analyzers {
		if a == nil {
			return nil, errors.New("analyzer cannot be nil")
		}
		if seen[a.Name()] {
			return nil, fmt.Errorf("duplicate analyzer name %q", a.Name())
		}
		seen[a.Name()] = true
	}

	f := &FanOut{
		analyzers: analyzers,
		required:  agents.Names(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run executes all analyzers and waits for every one of them.
func (f *FanOut) Run(ctx context.Context, diner, reservation json.RawMessage) agents.Bundle {
	results := make([]agents.Result, len(f.analyzers))

	var wg sync.WaitGroup
	for i, a := range f.analyzers {
		wg.Add(1)
		go func(i int, a agents.Analyzer) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					f.logger.ErrorContext(ctx, "analyzer panicked",
						"agent", a.Name(), "panic", r, "stack", string(debug.Stack()))
					results[i] = agents.ErrorResult(fmt.Sprintf("agent panic: %v", r))
				}
			}()
			results[i] = a.Analyze(ctx, diner, reservation)
		}(i, a)
	}
	wg.Wait()

	bundle := make(agents.Bundle, len(f.analyzers))
	for i, a := range f.analyzers {
		r := results[i]
		if r == nil {
			r = agents.ErrorResult("agent returned no result")
		}
		bundle[a.Name()] = r
	}
	for _, name := range f.required {
		if _, ok := bundle[name]; !ok {
			bundle[name] = agents.ErrorResult("agent not configured")
		}
	}
	return bundle
}
