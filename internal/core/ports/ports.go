package ports

import (
	"context"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// SourceAdapter is the outbound contract implemented by each backend
// client. The per-source timeout is carried by ctx; an adapter must
// never block past it and must return an error instead of panicking
// into the caller. Retry policy, when any, lives inside the adapter.
type SourceAdapter interface {
	// Source declares which backend this adapter speaks for.
	Source() domain.Source

	// Search returns up to limit results on the backend's native score
	// scale. A backend with nothing relevant returns an empty slice
	// and a nil error.
	Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error)
}

// QueryEmbedder builds the dense query vector consumed by the vector
// search adapter.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// OutcomePublisher emits completed retrieval outcomes for downstream
// consumers (answer synthesis, analytics). Publishing is best-effort;
// failures never affect the retrieval result.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome *domain.Outcome) error
}

// Retriever is the inbound contract exposed to the API layer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.Outcome, error)
}
