package refresh

import (
	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/models"
)

var knownAxes = func() map[string]bool {
	set := make(map[string]bool, len(models.PerformanceAxes))
	for _, axis := range models.PerformanceAxes {
		set[axis] = true
	}
	return set
}()

// ValidateCatalog decides whether an LLM-produced catalog is safe to swap
// in. Fail-closed: anything malformed keeps the existing data. Offending
// fields are logged so a rejected candidate can be diagnosed. Unknown axis
// names and cost tiers are logged but tolerated; the scoring engine ignores
// axes the rules never weight.
func ValidateCatalog(catalog *models.ModelCatalog, logger *logrus.Logger) bool {
	if catalog == nil || len(catalog.Models) == 0 {
		logger.Warn("Candidate catalog has no models")
		return false
	}

	for _, m := range catalog.Models {
		if m.ID == "" || m.Name == "" || m.Provider == "" {
			logger.WithFields(logrus.Fields{
				"id":       m.ID,
				"name":     m.Name,
				"provider": m.Provider,
			}).Warn("Candidate model missing a required field")
			return false
		}
		if m.Performance == nil {
			logger.WithField("id", m.ID).Warn("Candidate model missing performance scores")
			return false
		}
		for axis, score := range m.Performance {
			if score < 0.0 || score > 5.0 {
				logger.WithFields(logrus.Fields{
					"id":    m.ID,
					"axis":  axis,
					"score": score,
				}).Warn("Candidate model has an out-of-range performance score")
				return false
			}
			if !knownAxes[axis] {
				logger.WithFields(logrus.Fields{
					"id":   m.ID,
					"axis": axis,
				}).Warn("Candidate model scores an unrecognized axis")
			}
		}
		if m.CostTier != "" && !models.CostTiers[m.CostTier] {
			logger.WithFields(logrus.Fields{
				"id":        m.ID,
				"cost_tier": m.CostTier,
			}).Warn("Candidate model has an unrecognized cost tier")
		}
	}

	return true
}
