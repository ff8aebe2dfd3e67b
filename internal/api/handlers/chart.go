package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/datastore"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/recommend"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

// ChartHandler serves the survey questions and computes recommendations.
type ChartHandler struct {
	store     *datastore.Store
	diagnosis models.DiagnosisRepository
	logger    *logrus.Logger
}

func NewChartHandler(store *datastore.Store, diagnosis models.DiagnosisRepository, logger *logrus.Logger) *ChartHandler {
	return &ChartHandler{
		store:     store,
		diagnosis: diagnosis,
		logger:    logger,
	}
}

// GetQuestions returns the survey chart document.
func (h *ChartHandler) GetQuestions(c *gin.Context) {
	chart, err := h.store.LoadChart()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load chart")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load the questions", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", chart)
}

// Recommend scores the catalog against the submitted selections and returns
// the top recommendations. The diagnosis is persisted for the history view;
// a failing write never affects the response.
func (h *ChartHandler) Recommend(c *gin.Context) {
	var req models.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid recommend request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	catalog, err := h.store.LoadCatalog()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		utils.ErrorResponse(c, http.StatusInternalServerError, "The recommendation computation failed", err)
		return
	}
	rules, err := h.store.LoadRules()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load recommendation rules")
		utils.ErrorResponse(c, http.StatusInternalServerError, "The recommendation computation failed", err)
		return
	}
	chart, err := h.store.LoadChart()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load chart")
		utils.ErrorResponse(c, http.StatusInternalServerError, "The recommendation computation failed", err)
		return
	}

	results := recommend.Recommend(req.Selections, catalog, rules, chart)
	diagnosisID := uuid.New().String()

	record := &models.DiagnosisHistory{
		ID:         diagnosisID,
		Selections: models.JSONColumn[models.Selections]{Data: req.Selections},
		Result:     models.JSONColumn[models.DiagnosisResult]{Data: models.DiagnosisResult{Recommendations: results}},
	}
	if err := h.diagnosis.Create(record); err != nil {
		h.logger.WithError(err).WithField("diagnosis_id", diagnosisID).Warn("Failed to save diagnosis history")
	}

	utils.SuccessResponse(c, http.StatusOK, "", models.RecommendResponse{
		DiagnosisID:     diagnosisID,
		Recommendations: results,
		Selections:      req.Selections,
	})
}
