package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clientcomms/internal/prompt"
)

func TestOllamaInvokeRequestsJSONFormat(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"tone\":\"calm\"}"}}`))
	}))
	defer srv.Close()

	raw, err := NewOllama(srv.URL, time.Second).Invoke(context.Background(), prompt.Pair{System: "sys", User: "usr"}, Settings{
		Provider:  OllamaProvider,
		Model:     "llama3",
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if raw != `{"tone":"calm"}` {
		t.Fatalf("unexpected content %q", raw)
	}
	if path != "/api/chat" {
		t.Fatalf("unexpected path %q", path)
	}
	if body["format"] != "json" || body["stream"] != false || body["model"] != "llama3" {
		t.Fatalf("unexpected payload %v", body)
	}
	options, _ := body["options"].(map[string]any)
	if options["num_predict"] != float64(64) {
		t.Fatalf("max tokens not forwarded: %v", options)
	}
}

func TestOllamaInvokeEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":""}}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, time.Second).Invoke(context.Background(), prompt.Pair{}, Settings{Model: "m"})
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}
