// Package llm provides the minimal model-service contract used by huddle.
//
// The interface is intentionally small: one synchronous completion call that
// reports token usage. Retry, credential rotation and caching are layered on
// top by the middleware package, never inside an adapter.
package llm

import (
	"context"
)

// Message roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// Usage contains token usage information for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a completion call.
type Response struct {
	ID           string `json:"id,omitempty"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`

	// Cached is set when the response was served from a cache instead of the
	// service. Usage is zero in that case.
	Cached bool `json:"-"`
}

// LLM is the minimal interface for agent-LLM interaction.
//
// Example:
//
//	client := NewOpenAILLM("sk-...", "gpt-4o")
//	resp, err := client.Complete(ctx, []Message{
//	    NewMessage(RoleSystem, "Return only JSON."),
//	    NewMessage(RoleUser, prompt),
//	}, WithTemperature(0))
type LLM interface {
	// Complete generates a single completion.
	Complete(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)

	// Model returns the model identifier for this LLM instance.
	Model() string
}

// CallOptions holds provider-specific options for LLM calls.
type CallOptions struct {
	Temperature *float64
}

// CallOption is a functional option for configuring LLM calls.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature (typically 0.0-2.0).
func WithTemperature(temperature float64) CallOption {
	return func(opts *CallOptions) {
		opts.Temperature = &temperature
	}
}

// BuildCallOptions creates CallOptions from functional options.
func BuildCallOptions(opts ...CallOption) *CallOptions {
	options := &CallOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
