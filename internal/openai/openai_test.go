package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/osoriodev/coursebot/internal/chat"
)

func TestChatCompletion_Success(t *testing.T) {
	var gotReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hello!"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     42,
				"completion_tokens": 7,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	result, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.InputTokens != 42 {
		t.Errorf("expected 42 input tokens, got %d", result.InputTokens)
	}
	if result.OutputTokens != 7 {
		t.Errorf("expected 7 output tokens, got %d", result.OutputTokens)
	}
	if gotReq["model"] != "test-model" {
		t.Errorf("unexpected model: %v", gotReq["model"])
	}
	if temp, ok := gotReq["temperature"].(float64); !ok || temp != 0.3 {
		t.Errorf("expected temperature 0.3 in request, got %v", gotReq["temperature"])
	}
}

func TestChatCompletion_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryAuth)
}

func TestChatCompletion_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryRateLimit)
}

func TestChatCompletion_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryNetwork)
}

func TestChatCompletion_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryMalformed)
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":0}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryMalformed)
}

func TestChatCompletion_NetworkError(t *testing.T) {
	client := NewClient("test-key", "http://127.0.0.1:1", "test-model", 200*time.Millisecond)
	_, err := client.ChatCompletion(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 0.3)
	assertCategory(t, err, chat.CategoryNetwork)
}

func assertCategory(t *testing.T, err error, want chat.ErrorCategory) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var provider *chat.ProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected *chat.ProviderError, got %T: %v", err, err)
	}
	if provider.Category != want {
		t.Errorf("expected category %q, got %q", want, provider.Category)
	}
}
