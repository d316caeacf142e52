package config

import (
	"fmt"
	"slices"

	"github.com/kilianp07/printfleet/core/color"
	"github.com/kilianp07/printfleet/core/factory"
	"github.com/kilianp07/printfleet/core/tracker"
	"github.com/kilianp07/printfleet/core/tracker/history"
)

// MatchingConfig tunes colour comparison.
type MatchingConfig struct {
	// SimilarityThreshold is the largest CIEDE2000 distance treated as the
	// same colour, on a 0..1 scale.
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

func (c *MatchingConfig) SetDefaults() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = color.DefaultThreshold
	}
}

func (c MatchingConfig) Validate() error {
	if c.SimilarityThreshold > 1 {
		return fmt.Errorf("matching: similarity_threshold must be within (0, 1]")
	}
	return nil
}

// TrackerConfig configures the dispatch tracker and its history archive.
type TrackerConfig struct {
	MaxHistory int                  `json:"max_history"`
	History    factory.ModuleConfig `json:"history"`
}

func (c *TrackerConfig) SetDefaults() {
	if c.MaxHistory <= 0 {
		c.MaxHistory = tracker.DefaultMaxHistory
	}
}

func (c TrackerConfig) Validate() error {
	if c.History.Type != "" && !slices.Contains(history.Backends(), c.History.Type) {
		return fmt.Errorf("tracker: unknown history backend %q", c.History.Type)
	}
	return nil
}

// Tracker returns the tracker settings.
func (c TrackerConfig) Tracker() tracker.Config {
	return tracker.Config{MaxHistory: c.MaxHistory}
}
