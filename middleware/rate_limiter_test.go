package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
	"github.com/scttfrdmn/agenkit/huddle-go/credentials"
)

func testLimiter(t *testing.T, rate float64, burst int) *RateLimiter {
	t.Helper()
	l, err := NewRateLimiter(rate, burst)
	if err != nil {
		t.Fatalf("NewRateLimiter() error: %v", err)
	}
	return l
}

func TestRateLimiterBurstThenWait(t *testing.T) {
	l := testLimiter(t, 20, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() %d error: %v", i, err)
		}
	}
	if l.Allowed() != 3 {
		t.Errorf("Allowed() = %d, want 3", l.Allowed())
	}
	// The third request waits for a token refilled at 20/s.
	if l.Waited() < 25*time.Millisecond {
		t.Errorf("Waited() = %v, expected the third request to wait", l.Waited())
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	l := testLimiter(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if l.Allowed() != 1 {
		t.Errorf("Allowed() = %d, want 1", l.Allowed())
	}
}

func TestRateLimiterDeadlineTooShort(t *testing.T) {
	l := testLimiter(t, 0.01, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected wait beyond the deadline to fail")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected an immediate failure, waited %v", elapsed)
	}
	if l.Allowed() != 1 {
		t.Errorf("Allowed() = %d, want 1", l.Allowed())
	}
}

func TestNewRateLimiterInvalid(t *testing.T) {
	if _, err := NewRateLimiter(0, 1); err == nil {
		t.Error("expected error for zero rate")
	}
	l, err := NewRateLimiter(2.5, 0)
	if err != nil {
		t.Fatalf("NewRateLimiter() error: %v", err)
	}
	if l.Burst() != 3 {
		t.Errorf("expected burst ceil(2.5) = 3, got %d", l.Burst())
	}
}

func limitedCaller(t *testing.T, limiter *RateLimiter, client *scriptedLLM, registry *Registry) *ResilientCaller {
	t.Helper()
	return NewResilientCaller(testPool(t, "a", "b"), func(credentials.Credential) llm.LLM {
		return client
	}, registry, WithRateLimiter(limiter), WithSleeper((&recordingSleeper{}).Sleep), WithPolicy(RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		Factor:         2,
		MaxDelay:       time.Second,
		AttemptTimeout: 20 * time.Millisecond,
	}))
}

func TestResilientCaller_ThrottleOutlastsAttemptTimeout(t *testing.T) {
	registry := NewRegistry()
	client := &scriptedLLM{name: "a", content: "{}"}
	caller := limitedCaller(t, testLimiter(t, 10, 1), client, registry)

	// The second call waits about 100ms for a token, well past the
	// 20ms attempt timeout.
	for i := 0; i < 2; i++ {
		if _, err := caller.Call(context.Background(), nil); err != nil {
			t.Fatalf("Call() %d error: %v", i, err)
		}
	}

	snap := registry.Snapshot()
	if snap.Calls != 2 || snap.Errors != 0 || snap.Retries != 0 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", client.calls)
	}
}

func TestResilientCaller_ThrottleFailureSpendsNoRetries(t *testing.T) {
	registry := NewRegistry()
	client := &scriptedLLM{name: "a", content: "{}"}
	caller := limitedCaller(t, testLimiter(t, 0.01, 1), client, registry)

	if _, err := caller.Call(context.Background(), nil); err != nil {
		t.Fatalf("first Call() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := caller.Call(ctx, nil)
	if err == nil {
		t.Fatal("expected throttled call to fail")
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("throttling must not exhaust retries: %v", err)
	}

	snap := registry.Snapshot()
	if snap.Calls != 1 || snap.Errors != 0 || snap.Retries != 0 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 model call, got %d", client.calls)
	}
}
