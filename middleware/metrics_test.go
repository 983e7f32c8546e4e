package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

func TestRegistry_BasicCounts(t *testing.T) {
	r := NewRegistry()

	if snap := r.Snapshot(); snap.Calls != 0 || snap.Errors != 0 || snap.AverageLatency() != 0 {
		t.Fatalf("expected empty registry, got %+v", snap)
	}

	r.RecordSuccess(10*time.Millisecond, llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}, false)
	r.RecordSuccess(30*time.Millisecond, llm.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}, false)
	r.RecordSuccess(20*time.Millisecond, llm.Usage{}, true)
	r.RecordError()
	r.RecordRetry()

	snap := r.Snapshot()
	if snap.Calls != 3 {
		t.Errorf("Calls = %d, want 3", snap.Calls)
	}
	if snap.Errors != 1 || snap.Retries != 1 || snap.CacheHits != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if snap.MinLatency != 10*time.Millisecond || snap.MaxLatency != 30*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 10ms/30ms", snap.MinLatency, snap.MaxLatency)
	}
	if got := snap.AverageLatency(); got != 20*time.Millisecond {
		t.Errorf("AverageLatency() = %v, want 20ms", got)
	}
	if u := snap.Usage(); u.PromptTokens != 150 || u.CompletionTokens != 30 || u.TotalTokens != 180 {
		t.Errorf("unexpected usage %+v", u)
	}
	if len(snap.Latencies) != 3 {
		t.Errorf("expected 3 latency samples, got %d", len(snap.Latencies))
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.RecordSuccess(time.Millisecond, llm.Usage{}, false)

	snap := r.Snapshot()
	snap.Latencies[0] = time.Hour
	r.RecordSuccess(time.Millisecond, llm.Usage{}, false)

	if got := r.Snapshot().Latencies[0]; got != time.Millisecond {
		t.Errorf("snapshot mutation leaked into registry: %v", got)
	}
	if snap.Calls != 1 {
		t.Errorf("snapshot changed after later record: %d", snap.Calls)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	const (
		workers = 16
		perWork = 250
	)
	r := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				r.RecordSuccess(time.Millisecond, llm.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3}, false)
				r.RecordRetry()
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Calls != workers*perWork {
		t.Errorf("Calls = %d, want %d", snap.Calls, workers*perWork)
	}
	if snap.Retries != workers*perWork {
		t.Errorf("Retries = %d, want %d", snap.Retries, workers*perWork)
	}
	if snap.TotalTokens != 3*workers*perWork {
		t.Errorf("TotalTokens = %d, want %d", snap.TotalTokens, 3*workers*perWork)
	}
	if snap.TotalLatency != workers*perWork*time.Millisecond {
		t.Errorf("TotalLatency = %v", snap.TotalLatency)
	}
}

func TestRegistry_ZeroLatencyIsMinimum(t *testing.T) {
	r := NewRegistry()
	r.RecordSuccess(0, llm.Usage{}, true)
	r.RecordSuccess(5*time.Millisecond, llm.Usage{}, false)

	snap := r.Snapshot()
	if snap.MinLatency != 0 {
		t.Errorf("MinLatency = %v, want 0", snap.MinLatency)
	}
	if snap.MaxLatency != 5*time.Millisecond {
		t.Errorf("MaxLatency = %v, want 5ms", snap.MaxLatency)
	}
}
