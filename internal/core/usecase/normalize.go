package usecase

import (
	"math"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// defaultKeywordSaturation is sized for the shipped ts_rank_cd
// backend, whose top hits typically score around 0.08-0.1: it maps
// them into the 0.8-0.95 band. Deployments swapping in a BM25-scale
// backend must raise K accordingly (around 50) via the tuning file.
const defaultKeywordSaturation = 0.1

// normalizeResults maps every raw backend score onto [0,1] using
// source-specific rules. Out-of-range values never propagate.
func normalizeResults(results []domain.RetrievalResult, keywordSaturation float64) []domain.NormalizedResult {
	out := make([]domain.NormalizedResult, 0, len(results))
	for _, result := range results {
		out = append(out, domain.NormalizedResult{
			RetrievalResult: result,
			NormalizedScore: normalizeScore(result.Source, result.RawScore, keywordSaturation),
		})
	}
	return out
}

func normalizeScore(source domain.Source, raw float64, keywordSaturation float64) float64 {
	// Missing or negative raw scores carry no relevance signal.
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}

	switch source {
	case domain.SourceVector:
		// Cosine/dot-product similarity, already near [0,1].
		return clamp01(raw)
	case domain.SourceKeyword:
		// BM25-like scores are unbounded positive; saturate.
		if keywordSaturation <= 0 {
			keywordSaturation = defaultKeywordSaturation
		}
		return clamp01(raw / keywordSaturation)
	default:
		// Graph and encyclopedic backends report confidence-like
		// scores in [0,1] already.
		return clamp01(raw)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
