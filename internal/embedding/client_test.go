package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikeSquared-Agency/nova/internal/llm"
)

func vectorServer(t *testing.T, vec []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-embed" {
			t.Errorf("expected model test-embed, got %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": vec, "index": 0}},
		})
	}))
}

func TestEmbed_Success(t *testing.T) {
	server := vectorServer(t, []float32{0.1, 0.2, 0.3})
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-embed", 3)
	vec, err := c.Embed(context.Background(), "Rechnungen schreiben")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestEmbed_WrongDimension(t *testing.T) {
	server := vectorServer(t, []float32{0.1, 0.2})
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-embed", 3)
	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for mismatched dimension")
	}
}

func TestEmbed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-embed", 3)
	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestEmbed_NotConfigured(t *testing.T) {
	c := NewClient("http://unused", "", "test-embed", 3)
	if _, err := c.Embed(context.Background(), "text"); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := NewClient("http://unused", "test-key", "test-embed", 3)
	if _, err := c.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty input")
	}
}
