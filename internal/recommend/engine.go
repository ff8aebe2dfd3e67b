// Package recommend implements the weighted multi-axis scoring engine.
// Recommend is pure: it performs no I/O and holds no state, so identical
// inputs always produce identical rankings.
package recommend

import (
	"math"
	"sort"

	"github.com/shimayu0701/copilot-navi/internal/models"
)

const fallbackReason = "A model well suited to this task."

// Recommend scores every model in the catalog against the user's selections
// and returns the top three as ranked results.
func Recommend(
	selections models.Selections,
	catalog *models.ModelCatalog,
	rules *models.RecommendationRules,
	chart *models.SurveyChart,
) []models.RankedResult {
	category := selections.Q1
	subcategory := selections.Q2

	complexity := selections.Q3.Complexity
	if complexity == "" {
		complexity = "moderate"
	}
	contextAmount := selections.Q3.ContextAmount
	if contextAmount == "" {
		contextAmount = "medium"
	}
	priority := selections.Q3.Priority

	// Category overrides replace the base weights wholesale.
	baseWeights := rules.BaseWeights
	if override, ok := rules.CategoryOverrides[category]; ok {
		baseWeights = override
	}

	subMult := rules.SubcategoryMultipliers[subcategory]

	complexityMult, priorityMult, contextMult := thirdQuestionMultipliers(
		chart, complexity, priority, contextAmount)

	// Combine the four multiplier layers; unlisted axes default to 1.0.
	finalWeights := make(models.PerformanceVector, len(baseWeights))
	for axis, w := range baseWeights {
		w *= multiplierFor(subMult, axis)
		w *= multiplierFor(complexityMult, axis)
		w *= multiplierFor(priorityMult, axis)
		w *= multiplierFor(contextMult, axis)
		finalWeights[axis] = w
	}

	// Normalize so weights sum to 1.0. A non-positive sum is a degenerate
	// input; leave the weights as-is rather than divide by zero.
	total := 0.0
	for _, w := range finalWeights {
		total += w
	}
	if total > 0 {
		for axis, w := range finalWeights {
			finalWeights[axis] = w / total
		}
	}

	type scored struct {
		model   models.ModelEntry
		score   float64
		reason  string
		caution string
	}

	scoredModels := make([]scored, 0, len(catalog.Models))
	for _, model := range catalog.Models {
		score := 0.0
		for axis, weight := range finalWeights {
			// Axis scores are on a 5-point scale; normalize to 0-1.
			score += (model.Performance[axis] / 5.0) * weight
		}
		score100 := math.Round(score*1000) / 10

		reason := fallbackReason
		caution := ""
		if tpl, ok := rules.RecommendationTemplates[model.ID]; ok {
			if tpl.StrengthsText != "" {
				reason = tpl.StrengthsText
			}
			caution = tpl.CautionText
		}

		scoredModels = append(scoredModels, scored{
			model:   model,
			score:   score100,
			reason:  reason,
			caution: caution,
		})
	}

	// Stable sort: ties keep catalog order.
	sort.SliceStable(scoredModels, func(i, j int) bool {
		return scoredModels[i].score > scoredModels[j].score
	})

	limit := 3
	if len(scoredModels) < limit {
		limit = len(scoredModels)
	}

	results := make([]models.RankedResult, 0, limit)
	for i := 0; i < limit; i++ {
		results = append(results, models.RankedResult{
			Rank:    i + 1,
			Model:   scoredModels[i].model,
			Score:   scoredModels[i].score,
			Reason:  scoredModels[i].reason,
			Caution: scoredModels[i].caution,
		})
	}

	return results
}

// thirdQuestionMultipliers resolves the complexity, priority and
// context-amount multiplier vectors from the chart's compound question.
// Multiple priority tags compound multiplicatively.
func thirdQuestionMultipliers(
	chart *models.SurveyChart,
	complexity string,
	priority []string,
	contextAmount string,
) (complexityMult, priorityMult, contextMult models.PerformanceVector) {
	priorityMult = models.PerformanceVector{}
	prioritySet := make(map[string]bool, len(priority))
	for _, p := range priority {
		prioritySet[p] = true
	}

	for _, q := range chart.ThirdQuestion() {
		switch q.ID {
		case "complexity":
			for _, opt := range q.Options {
				if opt.ID == complexity {
					complexityMult = opt.Multiplier
				}
			}
		case "priority":
			for _, opt := range q.Options {
				if prioritySet[opt.ID] {
					for axis, v := range opt.Multiplier {
						if existing, ok := priorityMult[axis]; ok {
							priorityMult[axis] = existing * v
						} else {
							priorityMult[axis] = v
						}
					}
				}
			}
		case "context_amount":
			for _, opt := range q.Options {
				if opt.ID == contextAmount {
					contextMult = opt.Multiplier
				}
			}
		}
	}
	return complexityMult, priorityMult, contextMult
}

func multiplierFor(mult models.PerformanceVector, axis string) float64 {
	if mult == nil {
		return 1.0
	}
	if v, ok := mult[axis]; ok {
		return v
	}
	return 1.0
}
