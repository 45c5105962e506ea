package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

// RetrieveConfig carries the orchestration defaults and the
// empirically-tuned fusion constants. Zero values are replaced by
// normalize().
type RetrieveConfig struct {
	DefaultStrategy     string
	MaxResults          int
	CandidatesPerSource int
	PerSourceTimeout    time.Duration

	KeywordSaturation float64
	SourceWeights     map[domain.Source]float64
	MultiSourceBoost  float64
	RRFK              int
}

func DefaultRetrieveConfig() RetrieveConfig {
	return RetrieveConfig{
		DefaultStrategy:     StrategyWeightedSum,
		MaxResults:          10,
		CandidatesPerSource: 30,
		PerSourceTimeout:    3 * time.Second,
		KeywordSaturation:   defaultKeywordSaturation,
		MultiSourceBoost:    DefaultMultiSourceBoost,
		RRFK:                DefaultRRFConstant,
	}
}

func (c RetrieveConfig) normalize() RetrieveConfig {
	out := c
	def := DefaultRetrieveConfig()

	if strings.TrimSpace(out.DefaultStrategy) == "" {
		out.DefaultStrategy = def.DefaultStrategy
	}
	if out.MaxResults <= 0 {
		out.MaxResults = def.MaxResults
	}
	if out.CandidatesPerSource <= 0 {
		out.CandidatesPerSource = def.CandidatesPerSource
	}
	if out.PerSourceTimeout <= 0 {
		out.PerSourceTimeout = def.PerSourceTimeout
	}
	if out.KeywordSaturation <= 0 {
		out.KeywordSaturation = def.KeywordSaturation
	}
	if out.MultiSourceBoost < 0 {
		out.MultiSourceBoost = def.MultiSourceBoost
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	return out
}

// RetrieveUseCase fans a query out to every configured backend adapter
// in parallel and drives the normalize/aggregate/fuse pipeline to a
// ranked, deduplicated, confidence-annotated outcome.
type RetrieveUseCase struct {
	adapters  []ports.SourceAdapter
	publisher ports.OutcomePublisher
	cfg       RetrieveConfig
}

// NewRetrieveUseCase wires the configured adapters. publisher may be
// nil; outcome events are then skipped. Adapters are kept in source
// declaration order regardless of wiring order.
func NewRetrieveUseCase(adapters []ports.SourceAdapter, publisher ports.OutcomePublisher, cfg RetrieveConfig) *RetrieveUseCase {
	ordered := make([]ports.SourceAdapter, len(adapters))
	copy(ordered, adapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Source() < ordered[j].Source()
	})
	return &RetrieveUseCase{
		adapters:  ordered,
		publisher: publisher,
		cfg:       cfg.normalize(),
	}
}

type sourceReply struct {
	source  domain.Source
	results []domain.RetrievalResult
	latency time.Duration
	err     error
}

// Retrieve executes one hybrid retrieval request. Bad input (empty
// query, unknown strategy, unconfigured source) fails fast; backend
// failures degrade the result set and are reported in
// Outcome.PartialFailures, never as an error.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is required"))
	}

	strategyName := opts.Strategy
	if strings.TrimSpace(strategyName) == "" {
		strategyName = uc.cfg.DefaultStrategy
	}
	strategy, err := NewFusionStrategy(strategyName, uc.cfg.SourceWeights, uc.cfg.MultiSourceBoost, uc.cfg.RRFK)
	if err != nil {
		return nil, err
	}

	selected, err := uc.selectAdapters(opts.Sources)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = uc.cfg.MaxResults
	}
	timeout := opts.PerSourceTimeout
	if timeout <= 0 {
		timeout = uc.cfg.PerSourceTimeout
	}
	candidates := uc.cfg.CandidatesPerSource
	if candidates < limit {
		candidates = limit
	}

	replies := uc.fanOut(ctx, selected, query, candidates, timeout)

	outcome := &domain.Outcome{
		Query:           query,
		Strategy:        strategy.Name(),
		Results:         []domain.FusedResult{},
		SourceLatency:   make(map[domain.Source]time.Duration, len(selected)),
		PartialFailures: []domain.SourceFailure{},
	}

	normalized := make([]domain.NormalizedResult, 0, candidates*len(selected))
	for _, adapter := range selected {
		reply := replies[adapter.Source()]
		outcome.SourceLatency[reply.source] = reply.latency
		if reply.err != nil {
			outcome.PartialFailures = append(outcome.PartialFailures, domain.NewSourceFailure(reply.source, reply.err))
			continue
		}
		normalized = append(normalized, normalizeResults(reply.results, uc.cfg.KeywordSaturation)...)
	}

	// Every source failed or came back empty: terminal empty outcome,
	// no point running the fusion pipeline on nothing.
	if len(normalized) == 0 {
		slog.Info("retrieval_empty",
			"query", query,
			"strategy", outcome.Strategy,
			"failed_sources", len(outcome.PartialFailures),
		)
		uc.publish(ctx, outcome)
		return outcome, nil
	}

	docs := aggregateResults(normalized)
	outcome.Results = strategy.Fuse(docs, limit)
	outcome.Confidence = estimateConfidence(outcome.Results)

	slog.Info("retrieval_complete",
		"query", query,
		"strategy", outcome.Strategy,
		"sources", len(selected),
		"failed_sources", len(outcome.PartialFailures),
		"candidates", len(normalized),
		"results", len(outcome.Results),
		"confidence", outcome.Confidence,
	)

	uc.publish(ctx, outcome)
	return outcome, nil
}

// fanOut runs one time-boxed search per adapter concurrently. Each
// goroutine owns its result slice; the only shared structure is the
// reply channel, so the fan-out phase needs no locking. Total duration
// is bounded by the slowest responder's own budget, never the sum.
func (uc *RetrieveUseCase) fanOut(
	ctx context.Context,
	selected []ports.SourceAdapter,
	query string,
	candidates int,
	timeout time.Duration,
) map[domain.Source]sourceReply {
	replies := make(chan sourceReply, len(selected))

	for _, adapter := range selected {
		go func(adapter ports.SourceAdapter) {
			searchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			results, err := adapter.Search(searchCtx, query, candidates)
			latency := time.Since(start)

			if err != nil {
				// Cancellation reads the same as a timeout downstream: the
				// budget ended before the source answered.
				kind := domain.ErrSourceUnavailable
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					kind = domain.ErrSourceTimeout
				}
				replies <- sourceReply{
					source:  adapter.Source(),
					latency: latency,
					err:     domain.WrapError(kind, adapter.Source().String()+" search", err),
				}
				return
			}
			replies <- sourceReply{
				source:  adapter.Source(),
				results: results,
				latency: latency,
			}
		}(adapter)
	}

	out := make(map[domain.Source]sourceReply, len(selected))
	for range selected {
		reply := <-replies
		out[reply.source] = reply
	}
	return out
}

// selectAdapters resolves the requested source subset against the
// configured adapters, preserving declaration order. Requesting a
// source with no configured adapter is a caller error.
func (uc *RetrieveUseCase) selectAdapters(requested []domain.Source) ([]ports.SourceAdapter, error) {
	if len(requested) == 0 {
		if len(uc.adapters) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("no sources configured"))
		}
		return uc.adapters, nil
	}

	wanted := make(map[domain.Source]bool, len(requested))
	for _, source := range requested {
		wanted[source] = true
	}

	selected := make([]ports.SourceAdapter, 0, len(requested))
	for _, adapter := range uc.adapters {
		if wanted[adapter.Source()] {
			selected = append(selected, adapter)
			delete(wanted, adapter.Source())
		}
	}
	for source := range wanted {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("source %s is not configured", source))
	}
	return selected, nil
}

func (uc *RetrieveUseCase) publish(ctx context.Context, outcome *domain.Outcome) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishOutcome(ctx, outcome); err != nil {
		slog.Warn("outcome_publish_failed", "query", outcome.Query, "error", err)
	}
}
