package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

// HistoryHandler serves past diagnosis results and their feedback.
type HistoryHandler struct {
	diagnosis models.DiagnosisRepository
	logger    *logrus.Logger
}

func NewHistoryHandler(diagnosis models.DiagnosisRepository, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{diagnosis: diagnosis, logger: logger}
}

type historyItem struct {
	ID         string                 `json:"id"`
	CreatedAt  string                 `json:"created_at"`
	Selections models.Selections      `json:"selections"`
	Result     models.DiagnosisResult `json:"result"`
	Feedback   *int                   `json:"feedback"`
}

type historyPage struct {
	Total int64         `json:"total"`
	Items []historyItem `json:"items"`
}

// List returns a page of diagnosis history, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, total, err := h.diagnosis.List(limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list diagnosis history")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch the history", err)
		return
	}

	page := historyPage{Total: total, Items: make([]historyItem, 0, len(records))}
	for _, record := range records {
		page.Items = append(page.Items, toHistoryItem(record))
	}

	utils.SuccessResponse(c, http.StatusOK, "", page)
}

// Get returns one diagnosis result by id.
func (h *HistoryHandler) Get(c *gin.Context) {
	id := c.Param("id")

	record, err := h.diagnosis.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "The diagnosis result was not found", nil)
			return
		}
		h.logger.WithError(err).WithField("diagnosis_id", id).Error("Failed to fetch diagnosis")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch the diagnosis result", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toHistoryItem(*record))
}

// SubmitFeedback stores a 1-5 rating against a diagnosis.
func (h *HistoryHandler) SubmitFeedback(c *gin.Context) {
	id := c.Param("id")

	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	value, ok := req.Value()
	if !ok || value < 1 || value > 5 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Feedback must be an integer from 1 to 5", nil)
		return
	}

	if err := h.diagnosis.SetFeedback(id, value); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "The diagnosis result was not found", nil)
			return
		}
		h.logger.WithError(err).WithField("diagnosis_id", id).Error("Failed to save feedback")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to save the feedback", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "The feedback has been recorded", gin.H{"feedback": value})
}

func toHistoryItem(record models.DiagnosisHistory) historyItem {
	return historyItem{
		ID:         record.ID,
		CreatedAt:  record.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Selections: record.Selections.Data,
		Result:     record.Result.Data,
		Feedback:   record.Feedback,
	}
}
