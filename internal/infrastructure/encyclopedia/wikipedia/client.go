package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// Client is the ENCYCLOPEDIC source: MediaWiki search over a public
// wiki. The API returns hits in relevance order without scores, so a
// positional confidence in (0,1] is derived instead. Results carry no
// canonical id on purpose: encyclopedia pages overlap with documents
// from the other backends only by name, which is exactly what the
// aggregator's title-match fallback handles.
type Client struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a client with a polite client-side rate limit; public
// MediaWiki instances throttle aggressive callers.
func New(apiURL string, requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *Client) Source() domain.Source {
	return domain.SourceEncyclopedic
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wikipedia search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("wikipedia search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("wikipedia search status: %s", resp.Status)
	}

	var searchResp struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
				PageID  int    `json:"pageid"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievalResult, 0, len(searchResp.Query.Search))
	for i, hit := range searchResp.Query.Search {
		out = append(out, domain.RetrievalResult{
			Title:    hit.Title,
			Content:  stripMarkup(hit.Snippet),
			Source:   domain.SourceEncyclopedic,
			RawScore: positionalConfidence(i),
			Metadata: map[string]string{
				"page_id": strconv.Itoa(hit.PageID),
			},
		})
	}
	return out, nil
}

// positionalConfidence decays with the hit's position in the
// relevance-ordered response: 1, 0.5, 0.33, ...
func positionalConfidence(position int) float64 {
	return 1.0 / float64(position+1)
}

var markupTags = regexp.MustCompile(`<[^>]+>`)

// stripMarkup drops the search-match highlight spans MediaWiki embeds
// in snippets.
func stripMarkup(snippet string) string {
	return strings.TrimSpace(markupTags.ReplaceAllString(snippet, ""))
}
