package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/config"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/refresh"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

// RefreshHandler exposes the data-refresh pipeline: kickoff, progress,
// configuration and the audit trail.
type RefreshHandler struct {
	updater *refresh.Updater
	history models.UpdateHistoryRepository
	cfg     *config.Config
	logger  *logrus.Logger

	mu          sync.Mutex
	lastUpdated *string
	lastModel   *string
}

func NewRefreshHandler(updater *refresh.Updater, history models.UpdateHistoryRepository, cfg *config.Config, logger *logrus.Logger) *RefreshHandler {
	return &RefreshHandler{
		updater: updater,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// Refresh starts a refresh attempt in the background. The caller's API key
// is handed to the attempt and never stored or echoed.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Body is optional; config supplies the defaults.
		req = models.RefreshRequest{}
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = h.cfg.LLM.Model
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = h.cfg.LLM.APIKey
	}

	if apiKey == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "No Gemini API key is configured. Save an API key in the settings screen.", nil)
		return
	}
	if !strings.HasPrefix(modelID, "gemini-") {
		utils.ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("Invalid model id: %s", modelID), nil)
		return
	}

	if !h.updater.TryStart() {
		utils.ErrorResponse(c, http.StatusConflict, "A data update is already running. Wait for it to finish.", nil)
		return
	}

	go func() {
		h.updater.Execute(context.Background(), modelID, apiKey)

		if h.updater.State().Snapshot().Status == models.RefreshCompleted {
			now := time.Now().UTC().Format(time.RFC3339)
			h.mu.Lock()
			h.lastUpdated = &now
			h.lastModel = &modelID
			h.mu.Unlock()
		}
	}()

	utils.SuccessResponse(c, http.StatusOK, fmt.Sprintf("Started the data update with %s", modelID), gin.H{
		"status":   "started",
		"model_id": modelID,
	})
}

// Status reports the shared refresh record.
func (h *RefreshHandler) Status(c *gin.Context) {
	state := h.updater.State().Snapshot()
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"status":     state.Status,
		"progress":   state.Progress,
		"message":    state.Message,
		"started_at": state.StartedAt,
	})
}

// GetConfig returns the refresh defaults the frontend shows.
func (h *RefreshHandler) GetConfig(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"llm_model":         h.cfg.LLM.Model,
		"organization_name": h.cfg.OrganizationName,
	})
}

// LastUpdated reports when a refresh last completed in this process.
func (h *RefreshHandler) LastUpdated(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"updated_at":   h.lastUpdated,
		"gemini_model": h.lastModel,
	})
}

// History lists recent refresh audit records, newest first.
func (h *RefreshHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 10
	}

	records, err := h.history.ListRecent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list update history")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch the update history", err)
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		items = append(items, gin.H{
			"id":           record.ID,
			"created_at":   record.CreatedAt.UTC().Format(time.RFC3339),
			"status":       record.Status,
			"summary":      record.Summary.Data,
			"gemini_model": record.GeminiModel,
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"items": items})
}
