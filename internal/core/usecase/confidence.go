package usecase

import "github.com/kirillkom/hybrid-retriever/internal/core/domain"

// confidenceTopN is how many leading results are averaged into the
// outcome confidence: a cheap proxy for retrieval success that needs
// no second pass over the backends.
const confidenceTopN = 3

func estimateConfidence(results []domain.FusedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := confidenceTopN
	if len(results) < n {
		n = len(results)
	}
	var sum float64
	for _, result := range results[:n] {
		sum += result.CombinedScore
	}
	return sum / float64(n)
}
