package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// Strategy names accepted at the API boundary.
const (
	StrategyWeightedSum = "weighted_sum"
	StrategyRRF         = "rrf"
	StrategyBorda       = "borda"
	StrategyRoundRobin  = "round_robin"
)

// DefaultRRFConstant is the standard RRF smoothing parameter,
// empirically validated across domains.
const DefaultRRFConstant = 60

// DefaultMultiSourceBoost rewards documents corroborated by more than
// one retrieval strategy under weighted-sum fusion.
const DefaultMultiSourceBoost = 0.15

// FusionStrategy combines the per-source normalized scores of each
// aggregated document into one combined score in [0,1] and returns the
// ranked result list, truncated to limit. Implementations are
// deterministic for identical inputs.
type FusionStrategy interface {
	Name() string
	Fuse(docs []domain.AggregatedDocument, limit int) []domain.FusedResult
}

// NewFusionStrategy resolves a strategy name into its implementation.
// Unknown names fail fast with ErrInvalidStrategy so the API boundary
// can reject bad input before any backend is contacted.
func NewFusionStrategy(name string, weights map[domain.Source]float64, boost float64, rrfK int) (FusionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyWeightedSum:
		if boost < 0 {
			boost = DefaultMultiSourceBoost
		}
		return &weightedSumFusion{weights: weights, boost: boost}, nil
	case StrategyRRF:
		if rrfK <= 0 {
			rrfK = DefaultRRFConstant
		}
		return &rrfFusion{k: rrfK}, nil
	case StrategyBorda:
		return &bordaFusion{}, nil
	case StrategyRoundRobin:
		return &roundRobinFusion{}, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidStrategy, "select fusion strategy", fmt.Errorf("unknown strategy %q", name))
	}
}

// weightedSumFusion averages per-source scores weighted by source,
// then boosts documents corroborated by multiple sources: independent
// agreement across retrieval strategies is itself relevance evidence.
type weightedSumFusion struct {
	weights map[domain.Source]float64
	boost   float64
}

func (f *weightedSumFusion) Name() string { return StrategyWeightedSum }

func (f *weightedSumFusion) Fuse(docs []domain.AggregatedDocument, limit int) []domain.FusedResult {
	fused := make([]domain.FusedResult, 0, len(docs))
	for _, doc := range docs {
		var sum, weightTotal float64
		for _, source := range doc.Sources {
			weight := f.weight(source)
			sum += weight * doc.SourceScores[source]
			weightTotal += weight
		}
		combined := 0.0
		if weightTotal > 0 {
			combined = sum / weightTotal
		}
		combined *= 1 + f.boost*float64(len(doc.Sources)-1)
		fused = append(fused, domain.FusedResult{
			AggregatedDocument: doc,
			CombinedScore:      clamp01(combined),
		})
	}
	return sortAndRank(fused, limit)
}

func (f *weightedSumFusion) weight(source domain.Source) float64 {
	if w, ok := f.weights[source]; ok && w > 0 {
		return w
	}
	return 1.0
}

// rrfFusion sums reciprocal per-source ranks, then min-max rescales
// across the request's candidate set so combined scores land in [0,1].
type rrfFusion struct {
	k int
}

func (f *rrfFusion) Name() string { return StrategyRRF }

func (f *rrfFusion) Fuse(docs []domain.AggregatedDocument, limit int) []domain.FusedResult {
	ranks := rankPerSource(docs)

	fused := make([]domain.FusedResult, 0, len(docs))
	for _, doc := range docs {
		var combined float64
		for _, source := range doc.Sources {
			combined += 1.0 / float64(ranks[source][doc.CanonicalID]+f.k)
		}
		fused = append(fused, domain.FusedResult{
			AggregatedDocument: doc,
			CombinedScore:      combined,
		})
	}
	rescaleMinMax(fused)
	return sortAndRank(fused, limit)
}

// bordaFusion awards voting points by rank position: a source with N
// results gives N-rank points to each of its documents.
type bordaFusion struct{}

func (f *bordaFusion) Name() string { return StrategyBorda }

func (f *bordaFusion) Fuse(docs []domain.AggregatedDocument, limit int) []domain.FusedResult {
	ranks := rankPerSource(docs)
	counts := make(map[domain.Source]int, len(ranks))
	for source, perDoc := range ranks {
		counts[source] = len(perDoc)
	}

	fused := make([]domain.FusedResult, 0, len(docs))
	for _, doc := range docs {
		var points float64
		for _, source := range doc.Sources {
			points += float64(counts[source] - ranks[source][doc.CanonicalID])
		}
		fused = append(fused, domain.FusedResult{
			AggregatedDocument: doc,
			CombinedScore:      points,
		})
	}
	rescaleMinMax(fused)
	return sortAndRank(fused, limit)
}

// roundRobinFusion interleaves one document per source in declaration
// order, skipping already-emitted ids. It optimizes for source
// diversity; the combined score reflects emit position, not relevance.
type roundRobinFusion struct{}

func (f *roundRobinFusion) Name() string { return StrategyRoundRobin }

func (f *roundRobinFusion) Fuse(docs []domain.AggregatedDocument, limit int) []domain.FusedResult {
	if limit <= 0 {
		limit = len(docs)
	}

	queues := make(map[domain.Source][]domain.AggregatedDocument, len(domain.AllSources()))
	for _, source := range domain.AllSources() {
		queues[source] = docsRankedBySource(docs, source)
	}

	emitted := make(map[string]bool, limit)
	fused := make([]domain.FusedResult, 0, limit)
	for len(fused) < limit {
		progressed := false
		for _, source := range domain.AllSources() {
			if len(fused) >= limit {
				break
			}
			queue := queues[source]
			for len(queue) > 0 && emitted[queue[0].CanonicalID] {
				queue = queue[1:]
			}
			if len(queue) == 0 {
				queues[source] = queue
				continue
			}
			doc := queue[0]
			queues[source] = queue[1:]
			emitted[doc.CanonicalID] = true
			fused = append(fused, domain.FusedResult{
				AggregatedDocument: doc,
				CombinedScore:      1 - float64(len(fused))/float64(limit),
				Rank:               len(fused) + 1,
			})
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return fused
}

// rankPerSource assigns each document its 1-indexed rank within every
// source that surfaced it, ordered by that source's normalized score
// descending with canonical-id tie-break for determinism.
func rankPerSource(docs []domain.AggregatedDocument) map[domain.Source]map[string]int {
	out := make(map[domain.Source]map[string]int, len(domain.AllSources()))
	for _, source := range domain.AllSources() {
		ranked := docsRankedBySource(docs, source)
		if len(ranked) == 0 {
			continue
		}
		perDoc := make(map[string]int, len(ranked))
		for i, doc := range ranked {
			perDoc[doc.CanonicalID] = i + 1
		}
		out[source] = perDoc
	}
	return out
}

func docsRankedBySource(docs []domain.AggregatedDocument, source domain.Source) []domain.AggregatedDocument {
	ranked := make([]domain.AggregatedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.HasSource(source) {
			ranked = append(ranked, doc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].SourceScores[source], ranked[j].SourceScores[source]
		if a != b {
			return a > b
		}
		return ranked[i].CanonicalID < ranked[j].CanonicalID
	})
	return ranked
}

// rescaleMinMax maps combined scores onto [0,1] across the candidate
// set. When every candidate scores the same, all map to 1.0.
func rescaleMinMax(fused []domain.FusedResult) {
	if len(fused) == 0 {
		return
	}
	lo, hi := fused[0].CombinedScore, fused[0].CombinedScore
	for _, r := range fused[1:] {
		if r.CombinedScore < lo {
			lo = r.CombinedScore
		}
		if r.CombinedScore > hi {
			hi = r.CombinedScore
		}
	}
	for i := range fused {
		if hi == lo {
			fused[i].CombinedScore = 1.0
			continue
		}
		fused[i].CombinedScore = (fused[i].CombinedScore - lo) / (hi - lo)
	}
}

// sortAndRank orders by combined score descending with a deterministic
// tie-break (earliest source in declaration order, then canonical id),
// truncates to limit and assigns final ranks.
func sortAndRank(fused []domain.FusedResult, limit int) []domain.FusedResult {
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].CombinedScore != fused[j].CombinedScore {
			return fused[i].CombinedScore > fused[j].CombinedScore
		}
		if a, b := firstSource(fused[i]), firstSource(fused[j]); a != b {
			return a < b
		}
		return fused[i].CanonicalID < fused[j].CanonicalID
	})
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}

func firstSource(result domain.FusedResult) domain.Source {
	// Sources is never empty after aggregation; guard anyway.
	if len(result.Sources) == 0 {
		return domain.SourceEncyclopedic + 1
	}
	return result.Sources[0]
}
