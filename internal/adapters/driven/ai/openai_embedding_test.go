package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func embeddingTestServer(t *testing.T, capture *embeddingRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if capture != nil {
			*capture = req
		}

		resp := map[string]any{
			"object": "list",
			"model":  req.Model,
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{0.1, 0.2, 0.3},
			}
		}
		resp["data"] = data
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbeddingBatch(t *testing.T) {
	var captured embeddingRequest
	server := embeddingTestServer(t, &captured)
	defer server.Close()

	svc, err := NewOpenAIEmbedding("test-key", "text-embedding-3-small", server.URL)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}
	defer svc.Close()

	embeddings, err := svc.GenerateEmbeddingsBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if len(embeddings[0]) != 3 || embeddings[0][0] != 0.1 {
		t.Errorf("unexpected embedding: %v", embeddings[0])
	}
	if captured.Model != "text-embedding-3-small" {
		t.Errorf("unexpected model: %s", captured.Model)
	}
}

func TestOpenAIEmbeddingTruncatesLongInput(t *testing.T) {
	var captured embeddingRequest
	server := embeddingTestServer(t, &captured)
	defer server.Close()

	svc, err := NewOpenAIEmbedding("test-key", "", server.URL)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}
	defer svc.Close()

	long := strings.Repeat("x", maxEmbeddingChars+500)
	if _, err := svc.GenerateEmbedding(context.Background(), long); err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(captured.Input) != 1 {
		t.Fatalf("expected 1 input, got %d", len(captured.Input))
	}
	if len(captured.Input[0]) != maxEmbeddingChars {
		t.Errorf("expected input truncated to %d chars, got %d", maxEmbeddingChars, len(captured.Input[0]))
	}
}

func TestOpenAIEmbeddingAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error", "code": "401"},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("test-key", "", server.URL)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}
	defer svc.Close()

	if _, err := svc.GenerateEmbedding(context.Background(), "text"); err == nil {
		t.Fatal("expected API error")
	}
}

func TestOpenAIEmbeddingRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedding("", "", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestOpenAIEmbeddingDimensions(t *testing.T) {
	svc, err := NewOpenAIEmbedding("test-key", "text-embedding-3-large", "http://localhost")
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}
	if svc.Dimensions() != 3072 {
		t.Errorf("expected 3072 dimensions, got %d", svc.Dimensions())
	}
	if svc.Model() != "text-embedding-3-large" {
		t.Errorf("unexpected model: %s", svc.Model())
	}
}
