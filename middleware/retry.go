package middleware

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

// Class is the retry classification of an error.
type Class int

const (
	// Fatal errors propagate immediately.
	Fatal Class = iota
	// Retryable errors are retried with backoff and credential rotation.
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Classifier decides whether an error should be retried.
type Classifier func(error) Class

// RetryPolicy configures retry behavior.
//
// The delay before retry n (n = 1 for the first retry) is
//
//	min(BaseDelay * Factor^n, MaxDelay)
//
// and, with Jitter enabled, a uniform random duration in [0, that].
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt).
	// Default: 10
	MaxAttempts int

	// BaseDelay is the backoff base.
	// Default: 1s
	BaseDelay time.Duration

	// Factor is the multiplier for exponential backoff.
	// Default: 2.0
	Factor float64

	// MaxDelay caps a single backoff.
	// Default: 60s
	MaxDelay time.Duration

	// Jitter enables full jitter.
	Jitter bool

	// AttemptTimeout bounds a single attempt. Zero means only the caller's
	// context applies. A timed-out attempt is retryable.
	AttemptTimeout time.Duration

	// Classify determines if an error should trigger a retry.
	// If nil, ClassifyOpenAI is used.
	Classify Classifier

	// Rand returns a float in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultRetryPolicy returns the policy used for model calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    10,
		BaseDelay:      time.Second,
		Factor:         2.0,
		MaxDelay:       60 * time.Second,
		Jitter:         true,
		AttemptTimeout: 2 * time.Minute,
		Classify:       ClassifyOpenAI,
	}
}

// withDefaults fills zero fields.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Factor <= 0 {
		p.Factor = def.Factor
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Classify == nil {
		p.Classify = def.Classify
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Delay returns the backoff before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	p = p.withDefaults()

	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(retry))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d *= p.Rand()
	}
	return time.Duration(d)
}

// ClassifyOpenAI treats rate limiting, server-side failures and transient
// network errors as retryable. Context cancellation is always fatal.
func ClassifyOpenAI(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}

	switch status := llm.StatusCode(err); {
	case status == http.StatusTooManyRequests:
		return Retryable
	case status == http.StatusRequestTimeout:
		return Retryable
	case status >= 500:
		return Retryable
	case status != 0:
		return Fatal
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	return Fatal
}
