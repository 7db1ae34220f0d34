package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/models"
)

func testClient(serverURL string) *Client {
	return NewClient(nil, config.LLMConfig{
		APIKey:            "test-key",
		Model:             "gpt-4o-mini",
		BaseURL:           serverURL,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func replyWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}
}

func TestComplete_Success(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		replyWith(`{"a":"b"}`)(w, r)
	}))
	defer srv.Close()

	reply, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{
		Prompt:   "analyze this",
		JSONOnly: true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != `{"a":"b"}` {
		t.Errorf("reply = %q", reply)
	}

	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want configured default", captured["model"])
	}
	rf, _ := captured["response_format"].(map[string]any)
	if rf == nil || rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", captured["response_format"])
	}
}

func TestComplete_ImageAttachedAsDataURI(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		replyWith("ok")(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{
		Prompt:    "analyze this",
		ImageData: []byte{0x89, 0x50, 0x4e, 0x47},
		ImageMIME: "image/png",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	messages := captured["messages"].([]any)
	parts := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("got %d content parts, want text + image", len(parts))
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" {
		t.Errorf("part type = %v", img["type"])
	}
	url := img["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q, want base64 data URI", url)
	}
}

func TestComplete_NoImageSingleTextPart(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		replyWith("ok")(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	messages := captured["messages"].([]any)
	parts := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 1 {
		t.Errorf("got %d content parts, want 1", len(parts))
	}
	if _, hasRF := captured["response_format"]; hasRF {
		t.Error("response_format should be omitted when JSONOnly is false")
	}
}

func TestComplete_EmptyReply(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}},
		{"blank content", replyWith("   \n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{Prompt: "x"})
			if !models.IsCode(err, models.ErrCodeLLMEmptyReply) {
				t.Errorf("error code = %s, want %s", models.ErrorCode(err), models.ErrCodeLLMEmptyReply)
			}
		})
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"unauthorized", http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
		{"forbidden", http.StatusForbidden, models.ErrCodeLLMAuthFailure},
		{"rate limited", http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
		{"server error", http.StatusInternalServerError, models.ErrCodeLLMFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"message": "provider says no"}}`))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{Prompt: "x"})
			if !models.IsCode(err, tt.wantCode) {
				t.Errorf("error code = %s, want %s", models.ErrorCode(err), tt.wantCode)
			}
			if !strings.Contains(err.Error(), "provider says no") {
				t.Errorf("provider message lost: %v", err)
			}
		})
	}
}

func TestComplete_ModelOverride(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		replyWith("ok")(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), CompletionRequest{
		Model:  "gpt-4o",
		Prompt: "x",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if captured["model"] != "gpt-4o" {
		t.Errorf("model = %v, want per-request override", captured["model"])
	}
}
