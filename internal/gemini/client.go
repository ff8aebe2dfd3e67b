// Package gemini talks to the Google Gemini API: the generative analysis
// calls that rebuild the model catalog, and the plain REST surface used for
// key verification, model listing and quota probing.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/scraper"
)

const (
	DefaultModel       = "gemini-2.5-flash-lite"
	defaultTemperature = 0.3
	defaultMaxTokens   = 8192

	summaryTemperature = 0.1
	summaryMaxTokens   = 2048
)

// Client wraps one API key for the generative calls. A new client is built
// per refresh attempt from the caller-supplied key.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *logrus.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the analysis model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature for analysis calls
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) {
		c.temperature = float32(temperature)
	}
}

// WithMaxTokens sets the output token budget for analysis calls
func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		c.maxTokens = int32(maxTokens)
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client for the given API key
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AnalyzeCatalog runs the full refresh analysis over the scraped sources and
// returns the candidate catalog. Any failure, including an unparseable model
// response, is returned as an error; the caller decides what a missing
// candidate means for the attempt.
func (c *Client) AnalyzeCatalog(ctx context.Context, scraped *scraper.Result, currentCatalog []byte) (*models.ModelCatalog, error) {
	prompt := buildAnalysisPrompt(scraped, currentCatalog)

	c.logger.WithFields(logrus.Fields{
		"model":       c.model,
		"prompt_size": len(prompt),
	}).Info("Starting catalog analysis")

	text, err := c.generateJSON(ctx, prompt, c.temperature, c.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("catalog analysis failed: %w", err)
	}

	var catalog models.ModelCatalog
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &catalog); err != nil {
		c.logger.WithError(err).WithField("response_head", truncate(text, 500)).Error("Failed to parse analysis response as JSON")
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	return &catalog, nil
}

// GenerateUpdateSummary describes the difference between two catalog
// versions. It never fails: when the model call or parse goes wrong the
// locally computed diff is returned with generic prose.
func (c *Client) GenerateUpdateSummary(ctx context.Context, oldCatalog, newCatalog *models.ModelCatalog) models.UpdateSummary {
	prompt := buildSummaryPrompt(oldCatalog, newCatalog)

	text, err := c.generateJSON(ctx, prompt, summaryTemperature, summaryMaxTokens)
	if err == nil {
		var summary models.UpdateSummary
		if jsonErr := json.Unmarshal([]byte(stripCodeFence(text)), &summary); jsonErr == nil {
			return summary
		} else {
			err = jsonErr
		}
	}

	c.logger.WithError(err).Error("Failed to generate update summary")
	added, removed := diffCatalogs(oldCatalog, newCatalog)
	return models.UpdateSummary{
		ModelsAdded:    emptyIfNil(added),
		ModelsRemoved:  emptyIfNil(removed),
		ModelsUpdated:  []string{},
		KeyChanges:     []string{"The update completed."},
		OverallSummary: "The model data has been updated.",
	}
}

func (c *Client) generateJSON(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	return extractText(result)
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit even in JSON response mode.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
