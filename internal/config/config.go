// Package config holds the engine configuration with yaml file overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mnemolabs/mnemo/internal/model"
)

// Reconsolidation configures the lability-window policy.
type Reconsolidation struct {
	// QualifyingTriggers are the retrieval triggers that may open a window.
	QualifyingTriggers []model.RetrievalTrigger `yaml:"qualifying_triggers"`
	// MinIntervalMs is the minimum gap since the last closed window before
	// a new one may open for the same memory.
	MinIntervalMs int64 `yaml:"min_interval_ms"`
	// WindowDurationMs is the auto-close timeout of an open window.
	WindowDurationMs int64 `yaml:"window_duration_ms"`
	// AllowWeakening permits updates that reduce importance or confidence.
	AllowWeakening bool `yaml:"allow_weakening"`
	// DeletionThreshold archives a memory whose confidence drops below it.
	DeletionThreshold float64 `yaml:"deletion_threshold"`
}

// MinInterval returns MinIntervalMs as a duration.
func (r Reconsolidation) MinInterval() time.Duration {
	return time.Duration(r.MinIntervalMs) * time.Millisecond
}

// WindowDuration returns WindowDurationMs as a duration.
func (r Reconsolidation) WindowDuration() time.Duration {
	return time.Duration(r.WindowDurationMs) * time.Millisecond
}

// Qualifies reports whether a trigger may open a lability window.
func (r Reconsolidation) Qualifies(t model.RetrievalTrigger) bool {
	for _, q := range r.QualifyingTriggers {
		if q == t {
			return true
		}
	}
	return false
}

// Retrieval configures the hybrid ranking formula. The weights trade recall,
// precision and recency off against each other; they are deliberately not
// hardcoded in the scorer.
type Retrieval struct {
	TextWeight           float64 `yaml:"text_weight"`
	RecencyWeight        float64 `yaml:"recency_weight"`
	ImportanceWeight     float64 `yaml:"importance_weight"`
	FrequencyWeight      float64 `yaml:"frequency_weight"`
	RecencyHalfLifeHours float64 `yaml:"recency_half_life_hours"`
	DefaultLimit         int     `yaml:"default_limit"`
}

// Budget configures token-budgeted retrieval.
type Budget struct {
	DefaultTokens int    `yaml:"default_tokens"`
	Encoding      string `yaml:"encoding"`
}

// Config is the full engine configuration.
type Config struct {
	DBPath          string          `yaml:"db_path"`
	AgentID         string          `yaml:"agent_id"`
	Reconsolidation Reconsolidation `yaml:"reconsolidation"`
	Retrieval       Retrieval       `yaml:"retrieval"`
	Budget          Budget          `yaml:"budget"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AgentID: "default",
		Reconsolidation: Reconsolidation{
			QualifyingTriggers: []model.RetrievalTrigger{
				model.TriggerExplicitRecall,
				model.TriggerSearch,
			},
			MinIntervalMs:     60_000,
			WindowDurationMs:  300_000,
			AllowWeakening:    false,
			DeletionThreshold: 0.1,
		},
		Retrieval: Retrieval{
			TextWeight:           0.4,
			RecencyWeight:        0.2,
			ImportanceWeight:     0.2,
			FrequencyWeight:      0.2,
			RecencyHalfLifeHours: 7 * 24,
			DefaultLimit:         20,
		},
		Budget: Budget{
			DefaultTokens: 4000,
			Encoding:      "cl100k_base",
		},
	}
}

// Load reads a yaml file over the defaults. A missing path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
