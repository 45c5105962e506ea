package wikipedia

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

const searchFixture = `{
	"query": {
		"search": [
			{"title": "Raft (algorithm)", "snippet": "<span class=\"searchmatch\">Raft</span> is a consensus algorithm", "pageid": 38262919},
			{"title": "Consensus (computer science)", "snippet": "agreement among <span class=\"searchmatch\">distributed</span> processes", "pageid": 2236438}
		]
	}
}`

func TestSearchParsesMediaWikiResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "query" || q.Get("list") != "search" {
			t.Errorf("unexpected query params: %v", q)
		}
		if q.Get("srsearch") != "raft consensus" {
			t.Errorf("unexpected srsearch: %q", q.Get("srsearch"))
		}
		if q.Get("srlimit") != "5" {
			t.Errorf("unexpected srlimit: %q", q.Get("srlimit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	client := New(server.URL, 100)
	results, err := client.Search(context.Background(), "raft consensus", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.Title != "Raft (algorithm)" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Content != "Raft is a consensus algorithm" {
		t.Fatalf("markup not stripped: %q", first.Content)
	}
	if first.Source != domain.SourceEncyclopedic {
		t.Fatalf("expected encyclopedic source, got %v", first.Source)
	}
	// Pages have no cross-backend canonical id; title-based dedup
	// downstream relies on it staying empty.
	if first.CanonicalID != "" {
		t.Fatalf("expected empty canonical id, got %q", first.CanonicalID)
	}
	if first.RawScore != 1.0 {
		t.Fatalf("first hit confidence: got %v, want 1.0", first.RawScore)
	}
	if math.Abs(results[1].RawScore-0.5) > 1e-9 {
		t.Fatalf("second hit confidence: got %v, want 0.5", results[1].RawScore)
	}
	if first.Metadata["page_id"] != "38262919" {
		t.Fatalf("expected page id metadata, got %v", first.Metadata)
	}
}

func TestSearchNonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, 100)
	if _, err := client.Search(context.Background(), "query", 5); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

func TestSearchHonorsContextCancellation(t *testing.T) {
	client := New("http://unreachable.invalid/w/api.php", 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Search(ctx, "query", 5); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`<span class="searchmatch">Go</span> language`, "Go language"},
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"<b><i>x</i></b>", "x"},
	}
	for _, tc := range cases {
		if got := stripMarkup(tc.in); got != tc.want {
			t.Fatalf("stripMarkup(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
