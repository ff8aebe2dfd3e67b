package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/config"
	"github.com/shimayu0701/copilot-navi/internal/datastore"
	"github.com/shimayu0701/copilot-navi/internal/gemini"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

// GeminiHandler exposes the provider-facing helpers: the selectable model
// list, quota reports and key verification.
type GeminiHandler struct {
	rest    *gemini.RESTClient
	tracker *gemini.RateLimitTracker
	store   *datastore.Store
	cfg     *config.Config
	logger  *logrus.Logger
}

func NewGeminiHandler(rest *gemini.RESTClient, tracker *gemini.RateLimitTracker, store *datastore.Store, cfg *config.Config, logger *logrus.Logger) *GeminiHandler {
	return &GeminiHandler{
		rest:    rest,
		tracker: tracker,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// ListModels returns the selectable analysis models. With an api_key query
// parameter the live provider listing is fetched, filtered and persisted;
// otherwise, or when the fetch fails, the saved document is served.
func (h *GeminiHandler) ListModels(c *gin.Context) {
	if apiKey := c.Query("api_key"); apiKey != "" {
		list, err := h.rest.ListModels(c.Request.Context(), apiKey)
		if err == nil {
			if saveErr := h.store.SaveGeminiModels(list); saveErr != nil {
				h.logger.WithError(saveErr).Warn("Failed to persist model listing")
			}
			utils.SuccessResponse(c, http.StatusOK, "", list)
			return
		}
		h.logger.WithError(err).Warn("Live model listing failed, serving the saved document")
	}

	list, err := h.store.LoadGeminiModels()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load saved model listing")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load the model list", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", list)
}

// RateLimits reports the quota usage for the caller's key, or the
// configured key when none is supplied.
func (h *GeminiHandler) RateLimits(c *gin.Context) {
	apiKey := c.Query("api_key")
	if apiKey == "" {
		apiKey = h.cfg.LLM.APIKey
	}
	if apiKey == "" {
		utils.SuccessResponse(c, http.StatusOK, "", gin.H{
			"rate_limits":  gin.H{},
			"last_checked": nil,
		})
		return
	}

	report := h.tracker.Get(c.Request.Context(), apiKey, c.Query("model_id"))
	utils.SuccessResponse(c, http.StatusOK, "", report)
}

// VerifyKey checks whether an API key is accepted by the provider.
func (h *GeminiHandler) VerifyKey(c *gin.Context) {
	var req models.VerifyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	result := h.rest.VerifyKey(c.Request.Context(), req.APIKey)
	utils.SuccessResponse(c, http.StatusOK, "", result)
}
