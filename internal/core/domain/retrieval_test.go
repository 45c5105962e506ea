package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseSource(t *testing.T) {
	for _, source := range AllSources() {
		parsed, err := ParseSource(source.String())
		if err != nil {
			t.Fatalf("parse %q: %v", source, err)
		}
		if parsed != source {
			t.Fatalf("parse %q: got %v", source, parsed)
		}
	}

	if parsed, err := ParseSource("  VECTOR "); err != nil || parsed != SourceVector {
		t.Fatalf("expected case-insensitive trim parse, got %v, %v", parsed, err)
	}

	if _, err := ParseSource("telepathy"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown source, got %v", err)
	}
}

func TestSourceTextRoundTrip(t *testing.T) {
	for _, source := range AllSources() {
		text, err := source.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", source, err)
		}
		var decoded Source
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if decoded != source {
			t.Fatalf("round trip %v: got %v", source, decoded)
		}
	}
}

func TestNewSourceFailureClassification(t *testing.T) {
	timeoutErr := WrapError(ErrSourceTimeout, "graph search", errors.New("context deadline exceeded"))
	failure := NewSourceFailure(SourceGraph, timeoutErr)
	if failure.Kind != "timeout" {
		t.Fatalf("expected timeout kind, got %q", failure.Kind)
	}

	downErr := WrapError(ErrSourceUnavailable, "keyword search", errors.New("connection refused"))
	failure = NewSourceFailure(SourceKeyword, downErr)
	if failure.Kind != "unavailable" || failure.Source != SourceKeyword {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if failure.Message == "" {
		t.Fatal("expected failure message to carry the wrapped error")
	}
}

func TestWrapErrorMatchesKind(t *testing.T) {
	err := WrapError(ErrInvalidStrategy, "select fusion strategy", fmt.Errorf("unknown strategy %q", "x"))
	if !IsKind(err, ErrInvalidStrategy) {
		t.Fatalf("expected kind match, got %v", err)
	}
	if IsKind(err, ErrSourceTimeout) {
		t.Fatalf("kinds must not cross-match: %v", err)
	}
}

func TestOutcomeLatencyMillis(t *testing.T) {
	outcome := &Outcome{
		SourceLatency: map[Source]time.Duration{
			SourceVector:  1500 * time.Microsecond,
			SourceKeyword: 2 * time.Millisecond,
		},
	}

	millis := outcome.LatencyMillis()
	if millis["vector"] != 1.5 {
		t.Fatalf("vector latency: got %v, want 1.5", millis["vector"])
	}
	if millis["keyword"] != 2.0 {
		t.Fatalf("keyword latency: got %v, want 2.0", millis["keyword"])
	}
}

func TestOutcomeFailedSources(t *testing.T) {
	outcome := &Outcome{
		PartialFailures: []SourceFailure{
			{Source: SourceGraph, Kind: "timeout"},
			{Source: SourceEncyclopedic, Kind: "unavailable"},
		},
	}
	failed := outcome.FailedSources()
	if len(failed) != 2 || failed[0] != SourceGraph || failed[1] != SourceEncyclopedic {
		t.Fatalf("unexpected failed sources: %v", failed)
	}
}
