package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLM is an adapter for OpenAI's GPT models.
//
// Wraps the go-openai SDK. One instance is bound to one API key; the
// middleware layer builds one per credential.
//
// Errors from the SDK are returned wrapped with %w so callers can inspect
// *openai.APIError and *openai.RequestError for the HTTP status.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// OpenAIOption customizes the client configuration.
type OpenAIOption func(*openai.ClientConfig)

// WithBaseURL points the client at a different API root (proxies, tests).
func WithBaseURL(baseURL string) OpenAIOption {
	return func(cfg *openai.ClientConfig) {
		cfg.BaseURL = baseURL
	}
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(cfg *openai.ClientConfig) {
		cfg.HTTPClient = client
	}
}

// NewOpenAILLM creates a new OpenAI LLM adapter.
//
// Parameters:
//   - apiKey: OpenAI API key
//   - model: Model identifier (e.g., "gpt-4o"); empty defaults to gpt-4o
func NewOpenAILLM(apiKey, model string, opts ...OpenAIOption) *OpenAILLM {
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAILLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Model returns the model identifier.
func (o *OpenAILLM) Model() string {
	return o.model
}

// Complete generates a completion from GPT.
func (o *OpenAILLM) Complete(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	options := BuildCallOptions(opts...)

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.convertMessages(messages),
	}

	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		// The SDK drops a zero temperature (omitempty), which the API then
		// treats as 1.0.
		if temp == 0 {
			temp = math.SmallestNonzeroFloat32
		}
		req.Temperature = temp
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// convertMessages converts Messages to OpenAI format. Unknown roles map to
// assistant.
func (o *OpenAILLM) convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			role = RoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}

// StatusCode extracts the HTTP status from an error returned by Complete.
// It returns 0 when the error carries no status.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
