package usecase

import (
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

func normalized(id, title, content string, source domain.Source, score float64) domain.NormalizedResult {
	return domain.NormalizedResult{
		RetrievalResult: domain.RetrievalResult{
			CanonicalID: id,
			Title:       title,
			Content:     content,
			Source:      source,
		},
		NormalizedScore: score,
	}
}

func TestAggregateMergesByCanonicalID(t *testing.T) {
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("doc-1", "Go Concurrency", "short", domain.SourceVector, 0.9),
		normalized("doc-1", "Go concurrency patterns", "a much longer snippet of content", domain.SourceKeyword, 0.8),
		normalized("doc-2", "Other", "x", domain.SourceVector, 0.4),
	})

	if len(docs) != 2 {
		t.Fatalf("expected 2 aggregated documents, got %d", len(docs))
	}

	doc := docs[0]
	if doc.CanonicalID != "doc-1" {
		t.Fatalf("expected doc-1 first, got %q", doc.CanonicalID)
	}
	if len(doc.Sources) != 2 || doc.Sources[0] != domain.SourceVector || doc.Sources[1] != domain.SourceKeyword {
		t.Fatalf("expected sources [vector keyword], got %v", doc.Sources)
	}
	if doc.SourceScores[domain.SourceVector] != 0.9 || doc.SourceScores[domain.SourceKeyword] != 0.8 {
		t.Fatalf("unexpected source scores: %v", doc.SourceScores)
	}
	// Title from the highest-scored contributor, content from the longest.
	if doc.Title != "Go Concurrency" {
		t.Fatalf("expected title from vector contributor, got %q", doc.Title)
	}
	if doc.Content != "a much longer snippet of content" {
		t.Fatalf("expected longest content, got %q", doc.Content)
	}
}

func TestAggregateFallsBackToTitleMatch(t *testing.T) {
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("doc-1", "Byzantine Fault Tolerance", "body", domain.SourceVector, 0.7),
		normalized("", "byzantine fault tolerance", "encyclopedia extract", domain.SourceEncyclopedic, 0.5),
	})

	if len(docs) != 1 {
		t.Fatalf("expected title match to merge into one document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.CanonicalID != "doc-1" {
		t.Fatalf("expected real canonical id, got %q", doc.CanonicalID)
	}
	if !doc.HasSource(domain.SourceVector) || !doc.HasSource(domain.SourceEncyclopedic) {
		t.Fatalf("expected both sources present, got %v", doc.Sources)
	}
}

func TestAggregateDistinctIDsSharedTitleStaySeparate(t *testing.T) {
	// Title matching identifies id-less results; two real ids denote two
	// documents no matter how their titles read.
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("doc-1", "Consensus", "vector body", domain.SourceVector, 0.9),
		normalized("doc-2", "Consensus", "keyword body", domain.SourceKeyword, 0.8),
	})

	if len(docs) != 2 {
		t.Fatalf("expected 2 distinct documents, got %d: %+v", len(docs), docs)
	}
	if docs[0].CanonicalID != "doc-1" || docs[1].CanonicalID != "doc-2" {
		t.Fatalf("unexpected ids: %q %q", docs[0].CanonicalID, docs[1].CanonicalID)
	}
	if len(docs[0].Sources) != 1 || len(docs[1].Sources) != 1 {
		t.Fatalf("documents must not share sources: %v %v", docs[0].Sources, docs[1].Sources)
	}
}

func TestAggregateAdoptsRealIDFromLaterContributor(t *testing.T) {
	// Id-less hit arrives first; a later contributor carries the real id.
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("", "Raft Consensus", "extract", domain.SourceEncyclopedic, 0.6),
		normalized("doc-9", "raft consensus", "body", domain.SourceKeyword, 0.4),
	})

	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	if docs[0].CanonicalID != "doc-9" {
		t.Fatalf("expected adopted id doc-9, got %q", docs[0].CanonicalID)
	}
}

func TestAggregateKeepsBestScorePerSource(t *testing.T) {
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("doc-1", "T", "c", domain.SourceVector, 0.4),
		normalized("doc-1", "T", "c", domain.SourceVector, 0.9),
		normalized("doc-1", "T", "c", domain.SourceVector, 0.6),
	})

	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	if got := docs[0].SourceScores[domain.SourceVector]; got != 0.9 {
		t.Fatalf("expected max score per source 0.9, got %v", got)
	}
	if len(docs[0].Sources) != 1 {
		t.Fatalf("same source must appear once, got %v", docs[0].Sources)
	}
}

func TestAggregateDistinctTitlesStaySeparate(t *testing.T) {
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("", "Paxos", "a", domain.SourceEncyclopedic, 0.5),
		normalized("", "Raft", "b", domain.SourceEncyclopedic, 0.5),
	})

	if len(docs) != 2 {
		t.Fatalf("expected distinct titles to stay separate, got %d", len(docs))
	}
	if docs[0].CanonicalID != "paxos" || docs[1].CanonicalID != "raft" {
		t.Fatalf("expected lowercased title fallback ids, got %q %q", docs[0].CanonicalID, docs[1].CanonicalID)
	}
}

func TestAggregatePreservesFirstAppearanceOrder(t *testing.T) {
	docs := aggregateResults([]domain.NormalizedResult{
		normalized("b", "B", "", domain.SourceVector, 0.1),
		normalized("a", "A", "", domain.SourceVector, 0.9),
		normalized("b", "B", "", domain.SourceKeyword, 0.5),
	})

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].CanonicalID != "b" || docs[1].CanonicalID != "a" {
		t.Fatalf("expected first-appearance order [b a], got [%s %s]", docs[0].CanonicalID, docs[1].CanonicalID)
	}
}
