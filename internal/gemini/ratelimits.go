package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/cache"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

// Quota statuses derived from usage percentage.
const (
	QuotaAvailable = "available"
	QuotaWarning   = "warning"
	QuotaExhausted = "exhausted"
)

const (
	rateLimitTTL = 60 * time.Second

	// Defaults used when the provider omits the quota headers.
	defaultRPMLimit = 60
	defaultTPMLimit = 4000000
)

// RateLimitTracker probes the provider quota headers with a minimal
// generation request and caches the result for a minute per model.
type RateLimitTracker struct {
	base         string
	httpClient   *http.Client
	cache        *cache.TwoTier
	defaultModel string
	logger       *logrus.Logger
}

func NewRateLimitTracker(c *cache.TwoTier, defaultModel string, logger *logrus.Logger) *RateLimitTracker {
	return &RateLimitTracker{
		base:         RESTBase,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		cache:        c,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// NewRateLimitTrackerForBase builds a tracker against an explicit endpoint.
func NewRateLimitTrackerForBase(base string, httpClient *http.Client, c *cache.TwoTier, defaultModel string, logger *logrus.Logger) *RateLimitTracker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RateLimitTracker{base: base, httpClient: httpClient, cache: c, defaultModel: defaultModel, logger: logger}
}

// CalculateStatus maps a usage percentage onto a quota status.
func CalculateStatus(percentage int) string {
	switch {
	case percentage < 80:
		return QuotaAvailable
	case percentage < 95:
		return QuotaWarning
	default:
		return QuotaExhausted
	}
}

// Get returns the quota report for the key, serving from cache when a probe
// ran within the last minute. The response never carries the key itself,
// only its hash.
func (t *RateLimitTracker) Get(ctx context.Context, apiKey, modelID string) *models.RateLimitsResponse {
	if modelID == "" {
		modelID = t.defaultModel
	}
	cacheKey := fmt.Sprintf("rate_limits:%s", modelID)

	var cached models.RateLimitsResponse
	if hit, err := t.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached
	}

	limits := t.probe(ctx, apiKey, modelID)
	response := &models.RateLimitsResponse{
		RateLimits:  map[string]models.ModelRateLimits{modelID: limits},
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		APIKeyHash:  utils.HashAPIKey(apiKey),
	}

	if err := t.cache.Set(ctx, cacheKey, response, rateLimitTTL); err != nil {
		t.logger.WithError(err).Warn("Failed to cache rate limit report")
	}

	return response
}

// probe issues a one-token generation request and reads the x-ratelimit-*
// response headers. Any failure degrades to a neutral "could not determine"
// entry rather than an error.
func (t *RateLimitTracker) probe(ctx context.Context, apiKey, modelID string) models.ModelRateLimits {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", t.base, modelID, url.QueryEscape(apiKey))

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": "hi"}}, "role": "user"},
		},
		"generationConfig": map[string]int{"maxOutputTokens": 1},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return unavailableEntry()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.WithError(err).WithField("model", modelID).Warn("Failed to probe rate limits")
		return unavailableEntry()
	}
	defer resp.Body.Close()

	rpmLimit := headerInt(resp.Header, "x-ratelimit-limit-requests", defaultRPMLimit)
	rpmRemaining := headerInt(resp.Header, "x-ratelimit-remaining-requests", -1)
	tpmLimit := headerInt(resp.Header, "x-ratelimit-limit-tokens", defaultTPMLimit)
	tpmRemaining := headerInt(resp.Header, "x-ratelimit-remaining-tokens", -1)

	resetAt := time.Now().UTC().Add(time.Minute).Format(time.RFC3339)

	var rpmUsed int
	if rpmRemaining == -1 {
		// No header: count the probe itself as the only request.
		rpmUsed = 1
		rpmRemaining = rpmLimit - rpmUsed
	} else {
		rpmUsed = rpmLimit - rpmRemaining
	}
	rpmPercentage := usagePercentage(rpmUsed, rpmLimit)

	var tpmUsed int
	if tpmRemaining == -1 {
		// No header: assume only the probe's handful of tokens.
		tpmUsed = 10
		tpmRemaining = tpmLimit - tpmUsed
	} else {
		tpmUsed = tpmLimit - tpmRemaining
	}
	tpmPercentage := usagePercentage(tpmUsed, tpmLimit)

	if resp.StatusCode == http.StatusTooManyRequests {
		rpmPercentage = 100
		rpmRemaining = 0
		rpmUsed = rpmLimit
	}

	return models.ModelRateLimits{
		RPM: &models.RateLimitInfo{
			Limit:      rpmLimit,
			Used:       rpmUsed,
			Remaining:  rpmRemaining,
			ResetAt:    &resetAt,
			Percentage: rpmPercentage,
			Status:     CalculateStatus(rpmPercentage),
		},
		TPM: &models.RateLimitInfo{
			Limit:      tpmLimit,
			Used:       tpmUsed,
			Remaining:  tpmRemaining,
			ResetAt:    &resetAt,
			Percentage: tpmPercentage,
			Status:     CalculateStatus(tpmPercentage),
		},
	}
}

func unavailableEntry() models.ModelRateLimits {
	return models.ModelRateLimits{
		RPM: &models.RateLimitInfo{
			Limit:      defaultRPMLimit,
			Used:       0,
			Remaining:  defaultRPMLimit,
			ResetAt:    nil,
			Percentage: 0,
			Status:     QuotaAvailable,
			Note:       "Could not be determined",
		},
	}
}

func headerInt(h http.Header, key string, fallback int) int {
	value := h.Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func usagePercentage(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	pct := used * 100 / limit
	if pct > 100 {
		pct = 100
	}
	return pct
}
