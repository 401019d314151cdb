package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hmemcore/hmem/internal/models"
)

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	if a != b {
		t.Fatal("expected identical content to hash identically")
	}
	if ContentHash("hello world") == ContentHash("goodbye world") {
		t.Fatal("expected different content to hash differently")
	}
}

func TestJinaClientEmbedParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		var req jinaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := jinaEmbedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.1, 0.2, 0.3}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewJinaClient("test-key", "jina-embeddings-v5-text-small")
	client.httpClient = server.Client()

	origEndpoint := jinaEndpoint
	jinaEndpoint = server.URL
	defer func() { jinaEndpoint = origEndpoint }()

	vec, err := client.Embed("hello", models.TaskQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected a 3-dimensional vector, got %v", vec)
	}
}
