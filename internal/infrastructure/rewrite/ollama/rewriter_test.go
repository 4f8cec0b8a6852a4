package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

func TestRewritePromptCarriesTermsAndConstraints(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"\"retro cozy picks under 60 AUD\"\nsecond line ignored"}`))
	}))
	defer server.Close()

	hi := 60.0
	rw := New(server.URL, "gemma")
	line, err := rw.Rewrite(context.Background(), []string{"retro", "cozy"}, "Millennial", domain.Budget{High: &hi})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	if line != "retro cozy picks under 60 AUD" {
		t.Fatalf("expected first line unquoted, got %q", line)
	}
	for _, want := range []string{"retro, cozy", "Millennial", "60 AUD", "Never mention gender"} {
		if !strings.Contains(capturedPrompt, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, capturedPrompt)
		}
	}
}

func TestRewriteDeclinesWithoutTerms(t *testing.T) {
	rw := New("http://unused", "gemma")
	line, err := rw.Rewrite(context.Background(), nil, "", domain.Budget{})
	if err != nil || line != "" {
		t.Fatalf("expected silent decline, got (%q, %v)", line, err)
	}
}

func TestRewriteErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	rw := New(server.URL, "gemma")
	_, err := rw.Rewrite(context.Background(), []string{"retro"}, "", domain.Budget{})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected body in error, got %v", err)
	}
}
