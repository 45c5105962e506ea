package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies a retrieval backend. Declaration order is the
// canonical ordering used for deterministic tie-breaking and for
// round-robin interleaving.
type Source int

const (
	SourceVector Source = iota
	SourceGraph
	SourceKeyword
	SourceEncyclopedic
)

var sourceNames = map[Source]string{
	SourceVector:       "vector",
	SourceGraph:        "graph",
	SourceKeyword:      "keyword",
	SourceEncyclopedic: "encyclopedic",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSource(name string) (Source, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for source, sourceName := range sourceNames {
		if sourceName == needle {
			return source, nil
		}
	}
	return 0, WrapError(ErrInvalidInput, "parse source", fmt.Errorf("unknown source %q", name))
}

// AllSources returns every known source in declaration order.
func AllSources() []Source {
	return []Source{SourceVector, SourceGraph, SourceKeyword, SourceEncyclopedic}
}

// RetrievalResult is one hit as returned by a single backend adapter.
// RawScore is on the backend's native scale.
type RetrievalResult struct {
	CanonicalID string            `json:"canonical_id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Source      Source            `json:"source"`
	RawScore    float64           `json:"raw_score"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NormalizedResult is a RetrievalResult with its score mapped onto [0,1].
type NormalizedResult struct {
	RetrievalResult
	NormalizedScore float64 `json:"normalized_score"`
}

// AggregatedDocument merges every normalized result that denotes the
// same logical document. A source absent from the group has no entry
// in SourceScores. Sources is kept in declaration order.
type AggregatedDocument struct {
	CanonicalID  string             `json:"canonical_id"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	SourceScores map[Source]float64 `json:"source_scores"`
	Sources      []Source           `json:"sources"`
}

// HasSource reports whether the document was surfaced by the given source.
func (d AggregatedDocument) HasSource(source Source) bool {
	_, ok := d.SourceScores[source]
	return ok
}

// FusedResult is an aggregated document with its fused score and final rank.
type FusedResult struct {
	AggregatedDocument
	CombinedScore float64 `json:"combined_score"`
	Rank          int     `json:"rank"`
}

// SourceFailure records one backend that failed or timed out during fan-out.
type SourceFailure struct {
	Source  Source `json:"source"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewSourceFailure classifies err against the retrieval error taxonomy.
func NewSourceFailure(source Source, err error) SourceFailure {
	kind := "unavailable"
	if IsKind(err, ErrSourceTimeout) {
		kind = "timeout"
	}
	return SourceFailure{
		Source:  source,
		Kind:    kind,
		Message: err.Error(),
	}
}

// RetrievalOptions selects the fusion strategy, the participating
// sources and the per-request budgets. Zero values fall back to the
// configured defaults.
type RetrievalOptions struct {
	Strategy         string
	Sources          []Source
	MaxResults       int
	PerSourceTimeout time.Duration
}

// Outcome is the final product of one retrieval request. It is never
// persisted; downstream consumers receive it in-process or as a
// published event.
type Outcome struct {
	Query           string                   `json:"query"`
	Results         []FusedResult            `json:"results"`
	Confidence      float64                  `json:"confidence"`
	Strategy        string                   `json:"strategy"`
	SourceLatency   map[Source]time.Duration `json:"-"`
	PartialFailures []SourceFailure          `json:"partial_failures"`
}

// LatencyMillis exposes per-source latency in milliseconds for
// transport layers and event payloads.
func (o *Outcome) LatencyMillis() map[string]float64 {
	out := make(map[string]float64, len(o.SourceLatency))
	for source, latency := range o.SourceLatency {
		out[source.String()] = float64(latency.Microseconds()) / 1000.0
	}
	return out
}

// FailedSources lists the sources recorded in PartialFailures.
func (o *Outcome) FailedSources() []Source {
	out := make([]Source, 0, len(o.PartialFailures))
	for _, failure := range o.PartialFailures {
		out = append(out, failure.Source)
	}
	return out
}
