package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
	"github.com/scttfrdmn/agenkit/huddle-go/cache"
)

// CachingLLM wraps a model client with a response cache.
//
// It sits below the ResilientCaller, so each logical call still goes
// through retry accounting; a hit simply completes without touching the
// service. Cached responses report zero usage and Cached=true.
// Cache backend failures are logged and treated as misses.
type CachingLLM struct {
	next   llm.LLM
	cache  cache.Cache
	logger *slog.Logger
}

var _ llm.LLM = (*CachingLLM)(nil)

// NewCachingLLM wraps next with c. A nil cache returns next unchanged.
func NewCachingLLM(next llm.LLM, c cache.Cache, logger *slog.Logger) llm.LLM {
	if c == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingLLM{next: next, cache: c, logger: logger}
}

// Model returns the wrapped model identifier.
func (c *CachingLLM) Model() string {
	return c.next.Model()
}

// Complete serves from cache or delegates and stores the result.
func (c *CachingLLM) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	key := CacheKey(c.next.Model(), messages, llm.BuildCallOptions(opts...))

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "response cache get failed", "error", err)
	} else if ok {
		var resp llm.Response
		if err := json.Unmarshal(raw, &resp); err == nil {
			resp.Usage = llm.Usage{}
			resp.Cached = true
			return &resp, nil
		}
	}

	resp, err := c.next.Complete(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resp); err == nil {
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.logger.WarnContext(ctx, "response cache set failed", "error", err)
		}
	}
	return resp, nil
}

// CacheKey fingerprints a request: model, sampling options and messages.
func CacheKey(model string, messages []llm.Message, opts *llm.CallOptions) string {
	payload := struct {
		Model       string        `json:"model"`
		Temperature *float64      `json:"temperature,omitempty"`
		Messages    []llm.Message `json:"messages"`
	}{
		Model:    model,
		Messages: messages,
	}
	if opts != nil {
		payload.Temperature = opts.Temperature
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
