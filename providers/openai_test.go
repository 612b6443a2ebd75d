package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const chatCompletionResponse = `{
	"id": "chatcmpl-1",
	"model": "test-model",
	"choices": [
		{"message": {"role": "assistant", "content": "{\"transcription\":\"hello\"}"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 1,
	})
	return client, srv
}

func TestChat_ParsesResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionResponse)
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "transcribe this"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Content != `{"transcription":"hello"}` {
		t.Fatalf("Content = %q", result.Content)
	}
	if result.PromptTokens != 10 || result.CompletionTokens != 5 || result.TotalTokens != 15 {
		t.Fatalf("token counts = %d/%d/%d", result.PromptTokens, result.CompletionTokens, result.TotalTokens)
	}
	if result.RequestID == "" {
		t.Fatal("expected a generated request ID")
	}
}

func TestChat_VisionMessageWireFormat(t *testing.T) {
	var body []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionResponse)
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Model: "test-model",
		Messages: []Message{{
			Role:    "user",
			Content: "transcribe this page",
			Images:  [][]byte{[]byte("fake-jpeg-bytes")},
		}},
		MaxTokens:      4000,
		Temperature:    0.5,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var req struct {
		Model     string  `json:"model"`
		MaxTokens int     `json:"max_tokens"`
		Temp      float64 `json:"temperature"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("request body is not valid JSON: %v\n%s", err, body)
	}

	if req.MaxTokens != 4000 {
		t.Fatalf("max_tokens = %d, want 4000", req.MaxTokens)
	}
	if req.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format.type = %q, want json_object", req.ResponseFormat.Type)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("expected one user message, got %+v", req.Messages)
	}

	parts := req.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %d parts", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "transcribe this page" {
		t.Fatalf("first part should be the text part, got %+v", parts[0])
	}
	if parts[1].Type != "image_url" || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("second part should be a data-URI image, got %+v", parts[1])
	}
}

func TestChat_TextOnlyMessageIsPlainString(t *testing.T) {
	var body []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionResponse)
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "extract entities"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("request body is not valid JSON: %v\n%s", err, body)
	}
	if req.Model != DefaultChatModel {
		t.Fatalf("empty model should fall back to default, got %q", req.Model)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "extract entities" {
		t.Fatalf("unexpected messages: %s", body)
	}
}

func TestChat_ServerErrorSurfaces(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if result == nil || result.Success {
		t.Fatal("result should record the failure")
	}
}

func TestMockClient_CapturesRequests(t *testing.T) {
	mock := NewMockClient()
	mock.ResponseText = `{"ok":true}`

	result, err := mock.Chat(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content != `{"ok":true}` {
		t.Fatalf("Content = %q", result.Content)
	}
	if mock.Requests() != 1 {
		t.Fatalf("Requests() = %d, want 1", mock.Requests())
	}
	if mock.LastRequest().Model != "m" {
		t.Fatalf("LastRequest().Model = %q", mock.LastRequest().Model)
	}
}
