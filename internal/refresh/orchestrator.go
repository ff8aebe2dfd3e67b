package refresh

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/datastore"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/scraper"
)

// Scraper collects the documentation sources for one attempt.
type Scraper interface {
	ScrapeAll(progress scraper.ProgressFunc) (*scraper.Result, error)
}

// Analyzer is the LLM surface an attempt needs.
type Analyzer interface {
	AnalyzeCatalog(ctx context.Context, scraped *scraper.Result, currentCatalog []byte) (*models.ModelCatalog, error)
	GenerateUpdateSummary(ctx context.Context, oldCatalog, newCatalog *models.ModelCatalog) models.UpdateSummary
}

// AnalyzerFactory builds an Analyzer bound to the caller's API key and
// chosen model. The key lives only for the attempt.
type AnalyzerFactory func(ctx context.Context, apiKey, modelID string) (Analyzer, error)

// Updater drives the refresh pipeline. One instance serves the whole
// process; State gates concurrent attempts.
type Updater struct {
	store       *datastore.Store
	history     models.UpdateHistoryRepository
	scraper     Scraper
	newAnalyzer AnalyzerFactory
	state       *StateTracker
	logger      *logrus.Logger
}

func NewUpdater(
	store *datastore.Store,
	history models.UpdateHistoryRepository,
	s Scraper,
	newAnalyzer AnalyzerFactory,
	logger *logrus.Logger,
) *Updater {
	return &Updater{
		store:       store,
		history:     history,
		scraper:     s,
		newAnalyzer: newAnalyzer,
		state:       NewStateTracker(),
		logger:      logger,
	}
}

// State exposes the shared progress record.
func (u *Updater) State() *StateTracker {
	return u.state
}

// TryStart claims the single refresh slot. Callers launch Execute in a
// goroutine only after a successful claim.
func (u *Updater) TryStart() bool {
	return u.state.TryStart()
}

// Execute runs one refresh attempt end to end. The caller must have claimed
// the slot via TryStart. All outcomes land in the state record; the three
// analysed outcomes (success, partial, failed validation) additionally get
// an audit row. A crash before the analysis stage rolls the catalog back
// and leaves no row.
func (u *Updater) Execute(ctx context.Context, modelID, apiKey string) {
	var oldCatalog *models.ModelCatalog

	defer func() {
		if r := recover(); r != nil {
			u.logger.WithField("panic", r).Error("Data refresh panicked")
			u.rollback(oldCatalog)
			u.state.Fail(fmt.Sprintf("The update failed: %v", r))
		}
	}()

	updateID := uuid.New().String()
	progress := func(pct int, message string) {
		u.state.Advance(pct, message)
		u.logger.WithField("progress", pct).Info(message)
	}

	progress(5, "Backing up the current data...")
	oldCatalog, err := u.store.LoadCatalog()
	if err != nil {
		u.logger.WithError(err).Error("Data refresh failed")
		u.state.Fail(fmt.Sprintf("The update failed: %v", err))
		return
	}

	progress(10, "Fetching the model list from the GitHub documentation...")
	scraped, err := u.scraper.ScrapeAll(progress)
	if err != nil {
		u.logger.WithError(err).Error("Data refresh failed")
		u.rollback(oldCatalog)
		u.state.Fail(fmt.Sprintf("The update failed: %v", err))
		return
	}

	detailOK := 0
	for _, d := range scraped.Details {
		if d.Status == scraper.StatusSuccess {
			detailOK++
		}
	}
	progress(45, fmt.Sprintf("Collection complete: %d models detected, %d/%d sources succeeded",
		len(scraped.Primary.Models), detailOK, len(scraped.Details)))

	progress(50, fmt.Sprintf("Analyzing the data with %s...", modelID))
	analyzer, err := u.newAnalyzer(ctx, apiKey, modelID)
	if err != nil {
		u.logger.WithError(err).Error("Data refresh failed")
		u.rollback(oldCatalog)
		u.state.Fail(fmt.Sprintf("The update failed: %v", err))
		return
	}

	currentJSON, _ := json.Marshal(oldCatalog)
	candidate, analyzeErr := analyzer.AnalyzeCatalog(ctx, scraped, currentJSON)
	progress(80, "Processing the analysis results...")

	var status string
	var summary models.UpdateSummary
	newCatalog := oldCatalog

	switch {
	case analyzeErr != nil || candidate == nil:
		// Analysis failure keeps the existing data and records a partial
		// outcome.
		u.logger.WithError(analyzeErr).Warn("LLM analysis failed, keeping existing data")
		status = models.UpdatePartial
		summary = models.UpdateSummary{
			ModelsAdded:    []string{},
			ModelsRemoved:  []string{},
			ModelsUpdated:  []string{},
			KeyChanges:     []string{"The AI analysis failed, but scraping completed."},
			OverallSummary: "Some data was collected, but the AI analysis failed. The existing data has been kept.",
		}

	default:
		progress(85, "Validating and saving the data...")
		if ValidateCatalog(candidate, u.logger) {
			if err := u.store.SaveCatalog(candidate); err != nil {
				u.logger.WithError(err).Error("Data refresh failed")
				u.rollback(oldCatalog)
				u.state.Fail(fmt.Sprintf("The update failed: %v", err))
				return
			}
			newCatalog = candidate

			progress(90, "Generating the update summary...")
			summary = analyzer.GenerateUpdateSummary(ctx, oldCatalog, candidate)
			status = models.UpdateSuccess
		} else {
			u.logger.Warn("Data validation failed, rolling back")
			status = models.UpdateFailed
			summary = models.UpdateSummary{
				ModelsAdded:    []string{},
				ModelsRemoved:  []string{},
				ModelsUpdated:  []string{},
				KeyChanges:     []string{"The data failed validation."},
				OverallSummary: "The update data was malformed, so the existing data has been kept.",
			}
		}
	}

	record := &models.UpdateHistory{
		ID:          updateID,
		Status:      status,
		Summary:     models.JSONColumn[models.UpdateSummary]{Data: summary},
		OldData:     models.JSONColumn[models.ModelCatalog]{Data: derefCatalog(oldCatalog)},
		NewData:     models.JSONColumn[models.ModelCatalog]{Data: derefCatalog(newCatalog)},
		GeminiModel: modelID,
	}
	if err := u.history.Create(record); err != nil {
		u.logger.WithError(err).Error("Data refresh failed")
		u.rollback(oldCatalog)
		u.state.Fail(fmt.Sprintf("The update failed: %v", err))
		return
	}

	progress(100, "The update is complete!")
	u.state.Complete(updateID)

	u.logger.WithFields(logrus.Fields{
		"update_id": updateID,
		"status":    status,
		"model":     modelID,
	}).Info("Data refresh finished")
}

// rollback best-effort restores the backed-up catalog. A rollback failure
// is logged; the attempt is already failing.
func (u *Updater) rollback(oldCatalog *models.ModelCatalog) {
	if oldCatalog == nil {
		return
	}
	if err := u.store.SaveCatalog(oldCatalog); err != nil {
		u.logger.WithError(err).Error("Rollback failed")
		return
	}
	u.logger.Info("Rolled back to the previous data")
}

func derefCatalog(catalog *models.ModelCatalog) models.ModelCatalog {
	if catalog == nil {
		return models.ModelCatalog{}
	}
	return *catalog
}
