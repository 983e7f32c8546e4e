package agents

import (
	"context"
	"sync"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

// fakeCaller records prompts and answers from reply.
type fakeCaller struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
	systems []string
	temps   []float64
}

func (f *fakeCaller) Call(_ context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	f.mu.Lock()
	prompt := messages[len(messages)-1].Content
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, messages[0].Content)
	if t := llm.BuildCallOptions(opts...).Temperature; t != nil {
		f.temps = append(f.temps, *t)
	}
	f.mu.Unlock()

	content, err := f.reply(prompt)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content}, nil
}

func constReply(content string) func(string) (string, error) {
	return func(string) (string, error) { return content, nil }
}
