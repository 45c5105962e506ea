package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FusionTuning holds the empirically-tuned fusion constants. They are
// an external input to the retrieval core; this subsystem never
// recalibrates them. Values come from an optional YAML file so they
// can be retuned without a rebuild.
type FusionTuning struct {
	// Weights are the per-source weighted-sum weights, keyed by source
	// name (vector, graph, keyword, encyclopedic). Missing sources
	// default to 1.0.
	Weights map[string]float64 `yaml:"weights"`

	// KeywordSaturation is the keyword saturation constant K: typical
	// top keyword hits should land around 0.8-0.95 after raw/K. The
	// default suits Postgres ts_rank_cd scores (top hits ~0.1); a
	// BM25-scale backend needs K around 50.
	KeywordSaturation float64 `yaml:"keyword_saturation"`

	// MultiSourceBoost is the weighted-sum corroboration factor beta.
	MultiSourceBoost float64 `yaml:"multi_source_boost"`

	// RRFK is the reciprocal-rank-fusion smoothing constant.
	RRFK int `yaml:"rrf_k"`
}

func DefaultFusionTuning() FusionTuning {
	return FusionTuning{
		Weights:           map[string]float64{},
		KeywordSaturation: 0.1,
		MultiSourceBoost:  0.15,
		RRFK:              60,
	}
}

// LoadFusionTuning reads the tuning file at path. An empty path yields
// the defaults; a missing or malformed file is an error so a broken
// deployment fails at startup rather than silently retrieving with
// wrong constants.
func LoadFusionTuning(path string) (FusionTuning, error) {
	tuning := DefaultFusionTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FusionTuning{}, fmt.Errorf("read fusion tuning: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return FusionTuning{}, fmt.Errorf("parse fusion tuning: %w", err)
	}

	if tuning.Weights == nil {
		tuning.Weights = map[string]float64{}
	}
	for name, weight := range tuning.Weights {
		if weight <= 0 {
			return FusionTuning{}, fmt.Errorf("fusion tuning: weight for %q must be positive, got %v", name, weight)
		}
	}
	if tuning.KeywordSaturation <= 0 {
		tuning.KeywordSaturation = DefaultFusionTuning().KeywordSaturation
	}
	if tuning.MultiSourceBoost < 0 {
		tuning.MultiSourceBoost = DefaultFusionTuning().MultiSourceBoost
	}
	if tuning.RRFK <= 0 {
		tuning.RRFK = DefaultFusionTuning().RRFK
	}
	return tuning, nil
}
