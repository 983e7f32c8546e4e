package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestCallOptions tests the functional options pattern.
func TestCallOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []CallOption
		validate func(*testing.T, *CallOptions)
	}{
		{
			name: "WithTemperature",
			opts: []CallOption{WithTemperature(0.7)},
			validate: func(t *testing.T, opts *CallOptions) {
				if opts.Temperature == nil {
					t.Fatal("Temperature should not be nil")
				}
				if *opts.Temperature != 0.7 {
					t.Errorf("Expected temperature 0.7, got %f", *opts.Temperature)
				}
			},
		},
		{
			name: "No options",
			opts: nil,
			validate: func(t *testing.T, opts *CallOptions) {
				if opts.Temperature != nil {
					t.Errorf("Expected nil temperature, got %v", *opts.Temperature)
				}
			},
		},
		{
			name: "Last option wins",
			opts: []CallOption{WithTemperature(0.7), WithTemperature(0)},
			validate: func(t *testing.T, opts *CallOptions) {
				if opts.Temperature == nil || *opts.Temperature != 0 {
					t.Error("Temperature not set correctly")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, BuildCallOptions(tt.opts...))
		})
	}
}

func chatServer(t *testing.T, status int, body any, seen func(r *http.Request, req map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if seen != nil {
			seen(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestOpenAILLM_Complete(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any
	server := chatServer(t, http.StatusOK, map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-2024-08-06",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": `{"ok": true}`},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	}, func(r *http.Request, req map[string]any) {
		gotAuth = r.Header.Get("Authorization")
		gotReq = req
	})
	defer server.Close()

	client := NewOpenAILLM("sk-test", "gpt-4o", WithBaseURL(server.URL+"/v1"))
	resp, err := client.Complete(context.Background(), []Message{
		NewMessage(RoleSystem, "Return JSON."),
		NewMessage(RoleUser, "hello"),
	}, WithTemperature(0))
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if resp.Content != `{"ok": true}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 17 || resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected finish_reason stop, got %s", resp.FinishReason)
	}

	// A zero temperature must still be sent, otherwise the API uses 1.0.
	temp, ok := gotReq["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request: %v", gotReq)
	}
	if temp <= 0 || temp > 1e-6 {
		t.Errorf("expected near-zero temperature, got %v", temp)
	}
	if gotReq["model"] != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %v", gotReq["model"])
	}
}

func TestOpenAILLM_StatusCode(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusServiceUnavailable},
		{"unauthorized", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, map[string]any{
				"error": map[string]any{"message": tt.name, "type": "test_error"},
			}, nil)
			defer server.Close()

			client := NewOpenAILLM("sk-test", "", WithBaseURL(server.URL+"/v1"))
			_, err := client.Complete(context.Background(), []Message{NewMessage(RoleUser, "x")})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("expected status %d, got %d (%v)", tt.status, got, err)
			}
		})
	}
}

func TestOpenAILLM_NoChoices(t *testing.T) {
	server := chatServer(t, http.StatusOK, map[string]any{"id": "x", "choices": []any{}}, nil)
	defer server.Close()

	client := NewOpenAILLM("sk-test", "", WithBaseURL(server.URL+"/v1"))
	if client.Model() != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %s", client.Model())
	}
	if _, err := client.Complete(context.Background(), []Message{NewMessage(RoleUser, "x")}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestStatusCode_PlainError(t *testing.T) {
	if got := StatusCode(context.DeadlineExceeded); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
