package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/models"
)

// RESTBase is the Gemini public REST endpoint.
const RESTBase = "https://generativelanguage.googleapis.com/v1beta"

// RESTClient covers the endpoints the SDK has no use for here: key
// verification and the raw model listing.
type RESTClient struct {
	base       string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewRESTClient(logger *logrus.Logger) *RESTClient {
	return &RESTClient{
		base:       RESTBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// NewRESTClientForBase builds a client against an explicit endpoint.
func NewRESTClientForBase(base string, httpClient *http.Client, logger *logrus.Logger) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{base: base, httpClient: httpClient, logger: logger}
}

// VerifyKey checks whether the API key is accepted by the provider. Network
// failures and non-200 statuses both report an invalid key with a reason;
// the endpoint never errors.
func (c *RESTClient) VerifyKey(ctx context.Context, apiKey string) models.VerifyKeyResponse {
	endpoint := fmt.Sprintf("%s/models?key=%s&pageSize=1", c.base, url.QueryEscape(apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.VerifyKeyResponse{Valid: false, Error: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.VerifyKeyResponse{Valid: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return models.VerifyKeyResponse{Valid: true}
	}
	return models.VerifyKeyResponse{Valid: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
}

// Keywords identifying special-purpose models excluded from the selectable
// analysis list.
var excludeKeywords = []string{
	"image-generation", "robotics", "vision", "tts", "live",
	"embedding", "computer-use", "deep-research", "customtools",
}

var versionSuffixPattern = regexp.MustCompile(`-\d{3}$`)

type listedModel struct {
	Name            string `json:"name"`
	DisplayName     string `json:"displayName"`
	Description     string `json:"description"`
	Version         string `json:"version"`
	InputTokenLimit int    `json:"inputTokenLimit"`
}

// ListModels fetches the provider's model listing and filters it down to
// the general-purpose text models worth offering for analysis: current
// generations only, no pinned -NNN revisions, no special-purpose variants.
func (c *RESTClient) ListModels(ctx context.Context, apiKey string) (*models.GeminiModelList, error) {
	endpoint := fmt.Sprintf("%s/models?key=%s", c.base, url.QueryEscape(apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model listing returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Models []listedModel `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode model listing: %w", err)
	}

	filtered := make([]models.GeminiModelInfo, 0, len(body.Models))
	for _, m := range body.Models {
		id := strings.TrimPrefix(m.Name, "models/")
		if !selectableModel(id) {
			continue
		}

		isPro := strings.Contains(id, "pro")
		tier := "flash"
		performance := map[string]float64{"quality": 4.5, "speed": 5.0, "cost": 5.0}
		if isPro {
			tier = "pro"
			performance = map[string]float64{"quality": 5.0, "speed": 3.5, "cost": 3.0}
		}

		displayName := m.DisplayName
		if displayName == "" {
			displayName = id
		}
		description := m.Description
		if description == "" {
			description = "Google Gemini model"
		}
		contextLength := m.InputTokenLimit
		if contextLength == 0 {
			contextLength = 1000000
		}

		filtered = append(filtered, models.GeminiModelInfo{
			ID:             id,
			Name:           displayName,
			DisplayName:    displayName,
			Description:    description,
			Version:        m.Version,
			Tier:           tier,
			Performance:    performance,
			ContextLength:  contextLength,
			RecommendedFor: []string{},
			Available:      true,
			Default:        id == "gemini-2.5-pro",
		})
	}

	if len(filtered) == 0 {
		return nil, fmt.Errorf("no selectable models in listing")
	}

	hasDefault := false
	for _, m := range filtered {
		if m.Default {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		filtered[0].Default = true
	}

	now := time.Now().UTC().Format(time.RFC3339)
	return &models.GeminiModelList{
		Version:     now,
		LastUpdated: now,
		Models:      filtered,
	}, nil
}

// selectableModel keeps general-purpose text models from the current
// generations only.
func selectableModel(id string) bool {
	if !strings.Contains(id, "gemini") {
		return false
	}
	versionOK := strings.Contains(id, "2.0") || strings.Contains(id, "2.5") || strings.Contains(id, "gemini-3")
	if !versionOK {
		return false
	}
	if versionSuffixPattern.MatchString(id) {
		return false
	}
	for _, kw := range excludeKeywords {
		if strings.Contains(id, kw) {
			return false
		}
	}
	return true
}
