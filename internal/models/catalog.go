package models

// Performance axes shared by the catalog, the recommendation rules and the
// chart multipliers. Axis values are scores in [0.0, 5.0]; rule weights and
// multipliers reuse the same keys.
const (
	AxisSpeed                = "speed"
	AxisReasoning            = "reasoning"
	AxisCoding               = "coding"
	AxisContextLength        = "context_length"
	AxisCostEfficiency       = "cost_efficiency"
	AxisInstructionFollowing = "instruction_following"
	AxisCreativity           = "creativity"
	AxisLongOutput           = "long_output"
)

// PerformanceAxes lists every axis in canonical order.
var PerformanceAxes = []string{
	AxisSpeed,
	AxisReasoning,
	AxisCoding,
	AxisContextLength,
	AxisCostEfficiency,
	AxisInstructionFollowing,
	AxisCreativity,
	AxisLongOutput,
}

// PerformanceVector maps axis names to scores or weights.
type PerformanceVector map[string]float64

// Valid cost tiers, derived from the Copilot premium-request multiplier.
var CostTiers = map[string]bool{
	"free":    true,
	"low":     true,
	"medium":  true,
	"high":    true,
	"premium": true,
}

// PremiumMultiplier mirrors the Copilot billing table: values are numeric
// strings or "Not applicable".
type PremiumMultiplier struct {
	Chat        string `json:"chat"`
	Completions string `json:"completions"`
}

// ModelEntry is one recommendable model in the live catalog.
type ModelEntry struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Provider          string             `json:"provider"`
	Description       string             `json:"description"`
	ContextWindow     int                `json:"context_window"`
	CostTier          string             `json:"cost_tier"`
	PremiumMultiplier *PremiumMultiplier `json:"premium_multiplier,omitempty"`
	ReleaseStatus     string             `json:"release_status,omitempty"`
	Performance       PerformanceVector  `json:"performance"`
	Strengths         []string           `json:"strengths"`
	Cautions          []string           `json:"cautions"`
	BestFor           []string           `json:"best_for"`
	Available         bool               `json:"available"`
}

// ModelCatalog is the single live dataset, replaced only by an atomic
// refresh commit.
type ModelCatalog struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"last_updated"`
	Models      []ModelEntry `json:"models"`
}

// FindModel returns the entry with the given id, or nil.
func (c *ModelCatalog) FindModel(id string) *ModelEntry {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}
