package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

func TestOpenAIChatComplete(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "grounded answer"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIChat("test-key", "gpt-4o-mini", server.URL)
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	defer svc.Close()

	reply, err := svc.Complete(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "context here"},
		{Role: domain.RoleUser, Content: "question"},
	}, driven.ChatOptions{Temperature: 0.3, MaxTokens: 256})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if reply != "grounded answer" {
		t.Errorf("unexpected reply: %s", reply)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %s", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", captured.Messages)
	}
	if captured.MaxTokens != 256 {
		t.Errorf("unexpected max tokens: %d", captured.MaxTokens)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit", "code": "429"},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIChat("test-key", "", server.URL)
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	defer svc.Close()

	if _, err := svc.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, driven.ChatOptions{}); err == nil {
		t.Fatal("expected API error")
	}
}

func TestOpenAIChatRequiresKey(t *testing.T) {
	if _, err := NewOpenAIChat("", "", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
