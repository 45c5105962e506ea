package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type staticEmbedder struct {
	vector []float32
	err    error
}

func (e *staticEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.vector, e.err
}

func TestSearchSendsVectorAndParsesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/documents/points/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var reqBody struct {
			Vector      []float32 `json:"vector"`
			Limit       int       `json:"limit"`
			WithPayload bool      `json:"with_payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(reqBody.Vector) != 3 || reqBody.Limit != 7 || !reqBody.WithPayload {
			t.Errorf("unexpected request body: %+v", reqBody)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": [
				{"score": 0.91, "payload": {"doc_id": "doc-1", "title": "Vector Clocks", "text": "ordering events"}},
				{"score": 0.74, "payload": {"doc_id": "doc-2", "title": "Lamport Timestamps", "text": "logical time"}}
			]
		}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "documents", &staticEmbedder{vector: []float32{0.1, 0.2, 0.3}})
	results, err := adapter.Search(context.Background(), "event ordering", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.CanonicalID != "doc-1" || first.Title != "Vector Clocks" || first.Content != "ordering events" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Source != domain.SourceVector {
		t.Fatalf("expected vector source, got %v", first.Source)
	}
	if first.RawScore != 0.91 {
		t.Fatalf("unexpected raw score: %v", first.RawScore)
	}
	if first.Metadata["collection"] != "documents" {
		t.Fatalf("expected collection metadata, got %v", first.Metadata)
	}
}

func TestSearchEmbedderFailureShortCircuits(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	adapter := New(server.URL, "documents", &staticEmbedder{err: errors.New("model not loaded")})
	if _, err := adapter.Search(context.Background(), "query", 5); err == nil {
		t.Fatal("expected embedder error to propagate")
	}
	if called {
		t.Fatal("qdrant must not be contacted when embedding fails")
	}
}

func TestSearchNonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	adapter := New(server.URL, "missing", &staticEmbedder{vector: []float32{0.5}})
	if _, err := adapter.Search(context.Background(), "query", 5); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
