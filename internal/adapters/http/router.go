package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
	"github.com/kirillkom/hybrid-retriever/internal/observability/metrics"
)

const serviceName = "retrieval-api"

// Router is the thin request-handler shell around the retrieval core.
// Transport concerns end here; the orchestrator sees only
// domain.RetrievalOptions.
type Router struct {
	retriever ports.Retriever
	metrics   *metrics.RetrievalMetrics
}

func NewRouter(retriever ports.Retriever, m *metrics.RetrievalMetrics) *Router {
	return &Router{
		retriever: retriever,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query              string   `json:"query"`
	Strategy           string   `json:"strategy"`
	Sources            []string `json:"sources"`
	MaxResults         int      `json:"max_results"`
	PerSourceTimeoutMS int      `json:"per_source_timeout_ms"`
}

type retrieveResponse struct {
	Query           string                 `json:"query"`
	Strategy        string                 `json:"strategy"`
	Confidence      float64                `json:"confidence"`
	Results         []domain.FusedResult   `json:"results"`
	SourceLatencyMS map[string]float64     `json:"source_latency_ms"`
	PartialFailures []domain.SourceFailure `json:"partial_failures"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	sources := make([]domain.Source, 0, len(req.Sources))
	for _, name := range req.Sources {
		source, err := domain.ParseSource(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		sources = append(sources, source)
	}

	outcome, err := rt.retriever.Retrieve(r.Context(), req.Query, domain.RetrievalOptions{
		Strategy:         req.Strategy,
		Sources:          sources,
		MaxResults:       req.MaxResults,
		PerSourceTimeout: time.Duration(req.PerSourceTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordOutcome(serviceName, outcome)
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:           outcome.Query,
		Strategy:        outcome.Strategy,
		Confidence:      outcome.Confidence,
		Results:         outcome.Results,
		SourceLatencyMS: outcome.LatencyMillis(),
		PartialFailures: outcome.PartialFailures,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
