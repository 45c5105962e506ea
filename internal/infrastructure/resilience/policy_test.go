package resilience

import (
	"testing"
	"time"
)

func TestDefaultConfigFitsSourceBudget(t *testing.T) {
	cfg := DefaultConfig()

	// Worst case inter-attempt waiting across a full retry run must stay
	// well inside the 3s per-source search budget.
	var wait, backoff time.Duration = 0, cfg.RetryInitialBackoff
	for attempt := 1; attempt < cfg.RetryMaxAttempts; attempt++ {
		if backoff > cfg.RetryMaxBackoff {
			backoff = cfg.RetryMaxBackoff
		}
		wait += backoff
		backoff = time.Duration(float64(backoff) * cfg.RetryMultiplier)
	}
	if wait > 500*time.Millisecond {
		t.Fatalf("retry waiting %v eats too much of the per-source budget", wait)
	}

	if !cfg.BreakerEnabled {
		t.Fatal("breaker must be enabled by default")
	}
	if cfg.BreakerHalfOpenMaxCalls != 1 {
		t.Fatalf("expected a single half-open probe, got %d", cfg.BreakerHalfOpenMaxCalls)
	}
}

func TestNormalizeRepairsInvalidValues(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts:    -1,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     10 * time.Millisecond,
		RetryMultiplier:     0.5,
		BreakerFailureRatio: 1.5,
	}.normalize()

	def := DefaultConfig()
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("expected default attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != cfg.RetryInitialBackoff {
		t.Fatalf("max backoff must not undercut initial backoff, got %v < %v",
			cfg.RetryMaxBackoff, cfg.RetryInitialBackoff)
	}
	if cfg.RetryMultiplier != def.RetryMultiplier {
		t.Fatalf("expected default multiplier, got %v", cfg.RetryMultiplier)
	}
	if cfg.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("expected default failure ratio, got %v", cfg.BreakerFailureRatio)
	}
}
