package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type documentGroup struct {
	doc       domain.AggregatedDocument
	bestScore float64
	hasRealID bool
}

// aggregateResults merges normalized results denoting the same logical
// document. Identity is the canonical id when present; absent an id,
// a case-insensitive title match is used as a best-effort heuristic.
// Output order follows first appearance in the input, which keeps the
// whole pipeline deterministic.
func aggregateResults(results []domain.NormalizedResult) []domain.AggregatedDocument {
	groups := make([]*documentGroup, 0, len(results))
	byID := make(map[string]*documentGroup, len(results))
	byTitle := make(map[string]*documentGroup, len(results))

	for _, result := range results {
		titleKey := strings.ToLower(strings.TrimSpace(result.Title))

		var group *documentGroup
		if result.CanonicalID != "" {
			group = byID[result.CanonicalID]
		}
		// Title match is an identity fallback for id-less results only:
		// distinct canonical ids stay distinct even when titles collide.
		// An id-bearing result may still claim a group opened without one.
		if group == nil && titleKey != "" {
			if candidate := byTitle[titleKey]; candidate != nil && (result.CanonicalID == "" || !candidate.hasRealID) {
				group = candidate
			}
		}
		if group == nil {
			group = &documentGroup{
				doc: domain.AggregatedDocument{
					CanonicalID:  fallbackID(result),
					SourceScores: make(map[domain.Source]float64, 2),
				},
				bestScore: -1,
			}
			groups = append(groups, group)
		}

		group.merge(result)

		if result.CanonicalID != "" {
			byID[result.CanonicalID] = group
		}
		if titleKey != "" {
			byTitle[titleKey] = group
		}
	}

	out := make([]domain.AggregatedDocument, 0, len(groups))
	for _, group := range groups {
		group.freeze()
		out = append(out, group.doc)
	}
	return out
}

func (g *documentGroup) merge(result domain.NormalizedResult) {
	// A source surfacing the same document twice keeps its best score;
	// a source absent from the group contributes no entry at all.
	if existing, ok := g.doc.SourceScores[result.Source]; !ok || result.NormalizedScore > existing {
		g.doc.SourceScores[result.Source] = result.NormalizedScore
	}

	// Title comes from the highest-scored contributor.
	if result.NormalizedScore > g.bestScore && result.Title != "" {
		g.doc.Title = result.Title
		g.bestScore = result.NormalizedScore
	}

	// Representative text is the longest contributed snippet.
	if len(result.Content) > len(g.doc.Content) {
		g.doc.Content = result.Content
	}

	// A real canonical id from any contributor replaces the
	// title/content fallback key the group may have opened with.
	if !g.hasRealID && result.CanonicalID != "" {
		g.doc.CanonicalID = result.CanonicalID
		g.hasRealID = true
	}
}

func (g *documentGroup) freeze() {
	g.doc.Sources = make([]domain.Source, 0, len(g.doc.SourceScores))
	for source := range g.doc.SourceScores {
		g.doc.Sources = append(g.doc.Sources, source)
	}
	sort.Slice(g.doc.Sources, func(i, j int) bool {
		return g.doc.Sources[i] < g.doc.Sources[j]
	})
}

// fallbackID derives the identity key for a group opened by an id-less
// result: the lowercased title, or as a last resort the content itself.
func fallbackID(result domain.NormalizedResult) string {
	if result.CanonicalID != "" {
		return result.CanonicalID
	}
	if title := strings.ToLower(strings.TrimSpace(result.Title)); title != "" {
		return title
	}
	return result.Content
}
