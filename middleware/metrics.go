// Package middleware provides the resilience and bookkeeping layers that sit
// between agents and the model service: the metrics registry, the retrying
// caller and the response cache.
package middleware

import (
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

// Registry holds call metrics shared by every agent of a run.
//
// All updates happen under mu; there is no package-level instance. Build
// one per run and hand it to every component that records.
type Registry struct {
	mu sync.RWMutex

	calls     int64
	errors    int64
	retries   int64
	cacheHits int64

	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latencies    []time.Duration

	promptTokens     int64
	completionTokens int64
	totalTokens      int64
}

// Snapshot is a point-in-time copy of a Registry.
type Snapshot struct {
	Calls     int64
	Errors    int64
	Retries   int64
	CacheHits int64

	TotalLatency time.Duration
	MinLatency   time.Duration
	MaxLatency   time.Duration
	Latencies    []time.Duration

	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RecordSuccess records one completed call: latency and token usage are
// applied in a single critical section.
func (r *Registry) RecordSuccess(latency time.Duration, usage llm.Usage, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	r.totalLatency += latency
	if r.calls == 1 || latency < r.minLatency {
		r.minLatency = latency
	}
	if latency > r.maxLatency {
		r.maxLatency = latency
	}
	r.latencies = append(r.latencies, latency)

	r.promptTokens += int64(usage.PromptTokens)
	r.completionTokens += int64(usage.CompletionTokens)
	r.totalTokens += int64(usage.TotalTokens)

	if cached {
		r.cacheHits++
	}
}

// RecordError counts one failed attempt.
func (r *Registry) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

// RecordRetry counts one retry.
func (r *Registry) RecordRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

// Calls returns the number of successful calls.
func (r *Registry) Calls() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls
}

// Snapshot returns a copy of the current metrics.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latencies := make([]time.Duration, len(r.latencies))
	copy(latencies, r.latencies)

	return Snapshot{
		Calls:            r.calls,
		Errors:           r.errors,
		Retries:          r.retries,
		CacheHits:        r.cacheHits,
		TotalLatency:     r.totalLatency,
		MinLatency:       r.minLatency,
		MaxLatency:       r.maxLatency,
		Latencies:        latencies,
		PromptTokens:     r.promptTokens,
		CompletionTokens: r.completionTokens,
		TotalTokens:      r.totalTokens,
	}
}

// AverageLatency returns the mean latency in the snapshot.
func (s Snapshot) AverageLatency() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Calls)
}

// Usage returns the token totals as an llm.Usage.
func (s Snapshot) Usage() llm.Usage {
	return llm.Usage{
		PromptTokens:     int(s.PromptTokens),
		CompletionTokens: int(s.CompletionTokens),
		TotalTokens:      int(s.TotalTokens),
	}
}
