package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
	"github.com/scttfrdmn/agenkit/huddle-go/credentials"
)

// ErrRetriesExhausted is matched by errors.Is on an *ExhaustedError.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// FatalError wraps a non-retryable failure.
type FatalError struct {
	Attempt int
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("non-retryable error on attempt %d: %v", e.Attempt, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ClientFactory builds a model client bound to one credential.
type ClientFactory func(cred credentials.Credential) llm.LLM

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ResilientCaller issues one logical request to the model service, retrying
// retryable failures with exponential backoff and rotating the credential
// pool before every retry.
//
// Example:
//
//	caller := middleware.NewResilientCaller(pool, func(c credentials.Credential) llm.LLM {
//	    return llm.NewOpenAILLM(c.Key, "gpt-4o")
//	}, registry)
//	resp, err := caller.Call(ctx, messages, llm.WithTemperature(0))
type ResilientCaller struct {
	pool     *credentials.Pool
	factory  ClientFactory
	registry *Registry
	policy   RetryPolicy
	limiter  *RateLimiter
	sleep    Sleeper
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]llm.LLM
}

// CallerOption configures a ResilientCaller.
type CallerOption func(*ResilientCaller)

// WithPolicy sets the retry policy.
func WithPolicy(p RetryPolicy) CallerOption {
	return func(c *ResilientCaller) {
		c.policy = p
	}
}

// WithRateLimiter admits every attempt, retries included, through l.
func WithRateLimiter(l *RateLimiter) CallerOption {
	return func(c *ResilientCaller) {
		c.limiter = l
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s Sleeper) CallerOption {
	return func(c *ResilientCaller) {
		c.sleep = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CallerOption {
	return func(c *ResilientCaller) {
		c.logger = l
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) CallerOption {
	return func(c *ResilientCaller) {
		c.now = now
	}
}

// NewResilientCaller creates a caller. registry may be nil, in which case a
// private one is created.
func NewResilientCaller(pool *credentials.Pool, factory ClientFactory, registry *Registry, opts ...CallerOption) *ResilientCaller {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &ResilientCaller{
		pool:     pool,
		factory:  factory,
		registry: registry,
		policy:   DefaultRetryPolicy(),
		sleep:    ContextSleep,
		logger:   slog.Default(),
		now:      time.Now,
		clients:  make(map[string]llm.LLM),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = c.policy.withDefaults()
	return c
}

// Registry returns the registry the caller records into.
func (c *ResilientCaller) Registry() *Registry {
	return c.registry
}

// Policy returns the effective retry policy.
func (c *ResilientCaller) Policy() RetryPolicy {
	return c.policy
}

// client returns the cached client for cred, building it on first use.
func (c *ResilientCaller) client(cred credentials.Credential) llm.LLM {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[cred.Name]; ok {
		return cl
	}
	cl := c.factory(cred)
	c.clients[cred.Name] = cl
	return cl
}

// attempt runs one call, bounded by the policy's AttemptTimeout.
func (c *ResilientCaller) attempt(ctx context.Context, cred credentials.Credential, messages []llm.Message, opts []llm.CallOption) (*llm.Response, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return c.client(cred).Complete(ctx, messages, opts...)
}

// Call performs the request with retries.
func (c *ResilientCaller) Call(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	var lastErr error
	cred := c.pool.Current()

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		// Throttling waits on ctx, not the attempt timeout, and is not a
		// model error.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := c.now()
		resp, err := c.attempt(ctx, cred, messages, opts)
		if err == nil {
			c.registry.RecordSuccess(c.now().Sub(start), resp.Usage, resp.Cached)
			return resp, nil
		}

		c.registry.RecordError()
		lastErr = err

		if c.policy.Classify(err) != Retryable {
			return nil, &FatalError{Attempt: attempt, Err: err}
		}

		// Don't sleep after the last attempt
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		prev := cred
		cred = c.pool.Rotate()
		c.registry.RecordRetry()
		c.logger.LogAttrs(ctx, slog.LevelWarn, "retrying model call",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			slog.Duration("backoff", delay),
			slog.String("from_credential", prev.Name),
			slog.String("to_credential", cred.Name),
			slog.String("error", err.Error()),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}
	}

	return nil, &ExhaustedError{Attempts: c.policy.MaxAttempts, Last: lastErr}
}
