package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
	"github.com/scttfrdmn/agenkit/huddle-go/credentials"
)

// scriptedLLM returns errs in order, then succeeds with content.
type scriptedLLM struct {
	mu      sync.Mutex
	name    string
	errs    []error
	content string
	usage   llm.Usage
	calls   int
	keys    *[]string
}

func (s *scriptedLLM) Model() string { return "test-model" }

func (s *scriptedLLM) Complete(ctx context.Context, _ []llm.Message, _ ...llm.CallOption) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil {
		*s.keys = append(*s.keys, s.name)
	}
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.Response{Model: "test-model", Content: s.content, Usage: s.usage}, nil
}

func testPool(t interface{ Fatalf(string, ...any) }, names ...string) *credentials.Pool {
	creds := make([]credentials.Credential, len(names))
	for i, n := range names {
		creds[i] = credentials.Credential{Name: n, Key: "sk-" + n}
	}
	pool, err := credentials.New(creds...)
	if err != nil {
		t.Fatalf("credentials.New() error: %v", err)
	}
	return pool
}

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}
