package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	"github.com/vitalis-ai/vitalis/internal/resilience"
)

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		var req llm.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "openai/gpt-4o-mini" {
			t.Fatalf("unexpected model: %s", req.Model)
		}

		resp := llm.ChatResponse{
			ID: "chatcmpl-1",
			Choices: []llm.Choice{{
				Message: llm.Message{
					Role:    "assistant",
					Content: "Time to wind down.",
				},
				FinishReason: "stop",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := llm.NewClient(srv.URL, "test-key", 5*time.Second)
	resp, err := client.ChatCompletion(context.Background(), llm.ChatRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []llm.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	msg := resp.FirstMessage()
	if msg.Content != "Time to wind down." {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
}

func TestChatCompletionToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := llm.ChatResponse{
			Choices: []llm.Choice{{
				Message: llm.Message{
					Role: "assistant",
					ToolCalls: []llm.ToolCall{{
						ID:   "call-1",
						Type: "function",
						Function: llm.FunctionCall{
							Name:      "get_health_metrics",
							Arguments: `{"metric":"sleep"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := llm.NewClient(srv.URL, "", 5*time.Second)
	resp, err := client.ChatCompletion(context.Background(), llm.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	calls := resp.FirstMessage().ToolCalls
	if len(calls) != 1 || calls[0].Function.Name != "get_health_metrics" {
		t.Fatalf("unexpected tool calls: %+v", calls)
	}
}

func TestChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := llm.NewClient(srv.URL, "", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), llm.ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := llm.NewClient(srv.URL, "", 5*time.Second)
	client.SetBreaker(resilience.NewBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, _ = client.ChatCompletion(context.Background(), llm.ChatRequest{Model: "m"})
	}

	_, err := client.ChatCompletion(context.Background(), llm.ChatRequest{Model: "m"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if client.BreakerState() != "open" {
		t.Fatalf("expected breaker open, got %s", client.BreakerState())
	}
}
