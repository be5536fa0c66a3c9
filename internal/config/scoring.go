package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringWeights holds the coefficients for the priority scorer's
// logistic model (spec.md §4: "priority_score = sigmoid(w . features)").
// Weights load from a versioned model file; when absent, DefaultScoringWeights
// applies so the scorer never blocks on missing configuration.
type ScoringWeights struct {
	Version             int     `yaml:"version"`
	Bias                float64 `yaml:"bias"`
	RestockLikelihood   float64 `yaml:"restock_likelihood"`
	AggregatorHits      float64 `yaml:"aggregator_hits"`
	SocialMentions      float64 `yaml:"social_mentions"`
	IsCreatedEvent      float64 `yaml:"is_created_event"`
	IsRestockEvent      float64 `yaml:"is_restock_event"`
	IsPriceDropEvent    float64 `yaml:"is_price_drop_event"`
	MinutesSinceRelease float64 `yaml:"minutes_since_release"`
}

// DefaultScoringWeights is the documented fallback model used when no
// scoring_model_path file is present. Chosen to weight restock/raffle
// signals and aggregator corroboration above a bare status flip.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Version:             0,
		Bias:                -1.5,
		RestockLikelihood:    2.2,
		AggregatorHits:       0.35,
		SocialMentions:       0.05,
		IsCreatedEvent:       1.1,
		IsRestockEvent:       1.6,
		IsPriceDropEvent:     0.8,
		MinutesSinceRelease: -0.02,
	}
}

// LoadScoringWeights reads path (falling back to SCORING_MODEL_PATH, then
// config/scoring.yaml). A missing file is not an error: DefaultScoringWeights
// is returned along with loaded=false.
func LoadScoringWeights(path string) (weights ScoringWeights, loaded bool, err error) {
	path = resolvePath(path, "SCORING_MODEL_PATH", "config/scoring.yaml")

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return DefaultScoringWeights(), false, nil
		}
		return ScoringWeights{}, false, fmt.Errorf("read scoring model %s: %w", path, readErr)
	}

	weights = DefaultScoringWeights()
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return ScoringWeights{}, false, fmt.Errorf("unmarshal scoring model %s: %w", path, err)
	}
	return weights, true, nil
}
