package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shimayu0701/copilot-navi/internal/cache"
	"github.com/shimayu0701/copilot-navi/internal/config"
	"github.com/shimayu0701/copilot-navi/internal/datastore"
	"github.com/shimayu0701/copilot-navi/internal/gemini"
	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/refresh"
	"github.com/shimayu0701/copilot-navi/internal/scraper"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeDiagnosisRepo is an in-memory models.DiagnosisRepository.
type fakeDiagnosisRepo struct {
	records   map[string]*models.DiagnosisHistory
	createErr error
}

func newFakeDiagnosisRepo() *fakeDiagnosisRepo {
	return &fakeDiagnosisRepo{records: map[string]*models.DiagnosisHistory{}}
}

func (f *fakeDiagnosisRepo) Create(record *models.DiagnosisHistory) error {
	if f.createErr != nil {
		return f.createErr
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeDiagnosisRepo) GetByID(id string) (*models.DiagnosisHistory, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeDiagnosisRepo) List(limit, offset int) ([]models.DiagnosisHistory, int64, error) {
	var out []models.DiagnosisHistory
	for _, r := range f.records {
		out = append(out, *r)
	}
	if offset >= len(out) {
		return nil, int64(len(f.records)), nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], int64(len(f.records)), nil
}

func (f *fakeDiagnosisRepo) SetFeedback(id string, feedback int) error {
	record, ok := f.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	record.Feedback = &feedback
	return nil
}

type fakeUpdateHistoryRepo struct {
	records []*models.UpdateHistory
}

func (f *fakeUpdateHistoryRepo) Create(record *models.UpdateHistory) error {
	record.CreatedAt = time.Now().UTC()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeUpdateHistoryRepo) GetByID(id string) (*models.UpdateHistory, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUpdateHistoryRepo) ListRecent(limit int) ([]models.UpdateHistory, error) {
	var out []models.UpdateHistory
	for _, r := range f.records {
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func seededStore(t *testing.T) *datastore.Store {
	t.Helper()
	dir := t.TempDir()
	store := datastore.NewStore(dir, testLogger())

	require.NoError(t, store.SaveCatalog(&models.ModelCatalog{
		Version: "2026-08-01T00:00:00Z",
		Models: []models.ModelEntry{
			{ID: "gpt-5", Name: "GPT-5", Provider: "OpenAI",
				Performance: models.PerformanceVector{"speed": 3.5, "reasoning": 4.8, "coding": 4.7}},
			{ID: "claude-sonnet-4.5", Name: "Claude Sonnet 4.5", Provider: "Anthropic",
				Performance: models.PerformanceVector{"speed": 4.0, "reasoning": 4.6, "coding": 4.8}},
			{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "Google",
				Performance: models.PerformanceVector{"speed": 3.6, "reasoning": 4.5, "coding": 4.3}},
			{ID: "claude-haiku-4.5", Name: "Claude Haiku 4.5", Provider: "Anthropic",
				Performance: models.PerformanceVector{"speed": 4.9, "reasoning": 3.6, "coding": 4.0}},
		},
	}))

	chartJSON := `{
	  "questions": [
	    {"id": "category", "type": "single", "options": [{"id": "debugging", "label": "Debugging"}]},
	    {"id": "subcategory", "type": "single", "options": [{"id": "implementation", "label": "Implementation"}]},
	    {"id": "details", "type": "compound", "questions": [
	      {"id": "complexity", "options": [
	        {"id": "simple", "multiplier": {"speed": 1.5}},
	        {"id": "moderate", "multiplier": {}},
	        {"id": "complex", "multiplier": {"reasoning": 1.5}}
	      ]},
	      {"id": "priority", "options": [{"id": "quality", "multiplier": {"coding": 1.3}}]},
	      {"id": "context_amount", "options": [
	        {"id": "small", "multiplier": {}},
	        {"id": "medium", "multiplier": {}},
	        {"id": "large", "multiplier": {}}
	      ]}
	    ]}
	  ]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, datastore.ChartFile), []byte(chartJSON), 0o644))

	rules, err := json.Marshal(models.RecommendationRules{
		BaseWeights: models.PerformanceVector{"speed": 0.3, "reasoning": 0.4, "coding": 0.3},
		RecommendationTemplates: map[string]models.RecommendationTemplate{
			"claude-sonnet-4.5": {StrengthsText: "Excellent code quality.", CautionText: "Smaller context."},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, datastore.RulesFile), rules, 0o644))

	return store
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// ── chart ──

func chartRouter(t *testing.T, repo models.DiagnosisRepository) *gin.Engine {
	handler := NewChartHandler(seededStore(t), repo, testLogger())
	router := gin.New()
	router.GET("/chart/questions", handler.GetQuestions)
	router.POST("/chart/recommend", handler.Recommend)
	return router
}

func TestGetQuestions(t *testing.T) {
	router := chartRouter(t, newFakeDiagnosisRepo())
	w := performRequest(router, http.MethodGet, "/chart/questions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Contains(t, w.Body.String(), `"complexity"`)
}

func TestRecommendReturnsTopThree(t *testing.T) {
	repo := newFakeDiagnosisRepo()
	router := chartRouter(t, repo)

	w := performRequest(router, http.MethodPost, "/chart/recommend", models.RecommendRequest{
		Selections: models.Selections{
			Q1: "debugging",
			Q2: "implementation",
			Q3: models.ThirdSelection{Complexity: "complex", Priority: []string{"quality"}, ContextAmount: "small"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.RecommendResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Recommendations, 3)
	assert.NotEmpty(t, resp.Data.DiagnosisID)
	assert.Equal(t, 1, resp.Data.Recommendations[0].Rank)

	// The diagnosis was persisted under the returned id.
	_, ok := repo.records[resp.Data.DiagnosisID]
	assert.True(t, ok)
}

func TestRecommendInvalidBody(t *testing.T) {
	router := chartRouter(t, newFakeDiagnosisRepo())
	req := httptest.NewRequest(http.MethodPost, "/chart/recommend", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendSurvivesHistoryWriteFailure(t *testing.T) {
	repo := newFakeDiagnosisRepo()
	repo.createErr = errors.New("database down")
	router := chartRouter(t, repo)

	w := performRequest(router, http.MethodPost, "/chart/recommend", models.RecommendRequest{
		Selections: models.Selections{Q1: "debugging"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

// ── history ──

func historyRouter(repo models.DiagnosisRepository) *gin.Engine {
	handler := NewHistoryHandler(repo, testLogger())
	router := gin.New()
	router.GET("/history", handler.List)
	router.GET("/history/:id", handler.Get)
	router.POST("/history/:id/feedback", handler.SubmitFeedback)
	return router
}

func seedDiagnosis(t *testing.T, repo *fakeDiagnosisRepo, id string) {
	t.Helper()
	require.NoError(t, repo.Create(&models.DiagnosisHistory{
		ID:         id,
		Selections: models.JSONColumn[models.Selections]{Data: models.Selections{Q1: "debugging"}},
		Result:     models.JSONColumn[models.DiagnosisResult]{Data: models.DiagnosisResult{}},
	}))
}

func TestHistoryList(t *testing.T) {
	repo := newFakeDiagnosisRepo()
	seedDiagnosis(t, repo, "d-1")
	seedDiagnosis(t, repo, "d-2")

	w := performRequest(historyRouter(repo), http.MethodGet, "/history?limit=10&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data historyPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Total)
	assert.Len(t, resp.Data.Items, 2)
}

func TestHistoryGetNotFound(t *testing.T) {
	w := performRequest(historyRouter(newFakeDiagnosisRepo()), http.MethodGet, "/history/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedbackValidation(t *testing.T) {
	repo := newFakeDiagnosisRepo()
	seedDiagnosis(t, repo, "d-1")
	router := historyRouter(repo)

	// Out of range is rejected.
	six := 6
	w := performRequest(router, http.MethodPost, "/history/d-1/feedback", models.FeedbackRequest{Feedback: &six})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	zero := 0
	w = performRequest(router, http.MethodPost, "/history/d-1/feedback", models.FeedbackRequest{Feedback: &zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing value is rejected.
	w = performRequest(router, http.MethodPost, "/history/d-1/feedback", models.FeedbackRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// In range is stored.
	three := 3
	w = performRequest(router, http.MethodPost, "/history/d-1/feedback", models.FeedbackRequest{Feedback: &three})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.records["d-1"].Feedback)
	assert.Equal(t, 3, *repo.records["d-1"].Feedback)
}

func TestFeedbackAcceptsLegacyRatingField(t *testing.T) {
	repo := newFakeDiagnosisRepo()
	seedDiagnosis(t, repo, "d-1")

	four := 4
	w := performRequest(historyRouter(repo), http.MethodPost, "/history/d-1/feedback", models.FeedbackRequest{Rating: &four})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, *repo.records["d-1"].Feedback)
}

func TestFeedbackUnknownDiagnosis(t *testing.T) {
	three := 3
	w := performRequest(historyRouter(newFakeDiagnosisRepo()), http.MethodPost, "/history/missing/feedback", models.FeedbackRequest{Feedback: &three})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ── refresh ──

type stubScraper struct{}

func (stubScraper) ScrapeAll(progress scraper.ProgressFunc) (*scraper.Result, error) {
	return nil, errors.New("not reachable in tests")
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeCatalog(context.Context, *scraper.Result, []byte) (*models.ModelCatalog, error) {
	return nil, errors.New("not reachable in tests")
}

func (stubAnalyzer) GenerateUpdateSummary(context.Context, *models.ModelCatalog, *models.ModelCatalog) models.UpdateSummary {
	return models.UpdateSummary{}
}

func refreshSetup(t *testing.T, cfg *config.Config) (*gin.Engine, *refresh.Updater) {
	t.Helper()
	store := seededStore(t)
	history := &fakeUpdateHistoryRepo{}
	updater := refresh.NewUpdater(store, history, stubScraper{},
		func(context.Context, string, string) (refresh.Analyzer, error) { return stubAnalyzer{}, nil },
		testLogger())

	handler := NewRefreshHandler(updater, history, cfg, testLogger())
	router := gin.New()
	router.POST("/data/refresh", handler.Refresh)
	router.GET("/data/refresh/status", handler.Status)
	router.GET("/data/config", handler.GetConfig)
	router.GET("/data/last-updated", handler.LastUpdated)
	return router, updater
}

func refreshConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Model = "gemini-2.5-flash-lite"
	cfg.OrganizationName = "Internal Use"
	return cfg
}

func TestRefreshRequiresAPIKey(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodPost, "/data/refresh", models.RefreshRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "API key")
}

func TestRefreshRejectsNonGeminiModel(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodPost, "/data/refresh", models.RefreshRequest{
		ModelID: "gpt-4o", APIKey: "key",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid model id")
}

func TestRefreshConflictWhileRunning(t *testing.T) {
	router, updater := refreshSetup(t, refreshConfig())
	require.True(t, updater.TryStart())

	w := performRequest(router, http.MethodPost, "/data/refresh", models.RefreshRequest{
		ModelID: "gemini-2.5-pro", APIKey: "key",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRefreshStarts(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodPost, "/data/refresh", models.RefreshRequest{
		ModelID: "gemini-2.5-pro", APIKey: "key",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"started"`)
	assert.Contains(t, w.Body.String(), "gemini-2.5-pro")
	// The caller's key must never be echoed.
	assert.NotContains(t, w.Body.String(), `"key"`)
}

func TestRefreshStatusIdle(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodGet, "/data/refresh/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"idle"`)
}

func TestDataConfig(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodGet, "/data/config", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gemini-2.5-flash-lite")
	assert.Contains(t, w.Body.String(), "Internal Use")
}

func TestLastUpdatedInitiallyNull(t *testing.T) {
	router, _ := refreshSetup(t, refreshConfig())
	w := performRequest(router, http.MethodGet, "/data/last-updated", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"updated_at":null`)
}

// ── gemini ──

func geminiRouter(t *testing.T, restBase string, cfg *config.Config) *gin.Engine {
	t.Helper()
	store := seededStore(t)
	rest := gemini.NewRESTClientForBase(restBase, nil, testLogger())
	tracker := gemini.NewRateLimitTrackerForBase(restBase, nil, cache.NewTwoTier(nil, testLogger()), cfg.LLM.Model, testLogger())
	handler := NewGeminiHandler(rest, tracker, store, cfg, testLogger())

	router := gin.New()
	router.GET("/gemini/models", handler.ListModels)
	router.GET("/gemini/rate-limits", handler.RateLimits)
	router.POST("/gemini/verify-key", handler.VerifyKey)
	return router
}

func TestVerifyKeyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer server.Close()

	router := geminiRouter(t, server.URL, refreshConfig())
	w := performRequest(router, http.MethodPost, "/gemini/verify-key", models.VerifyKeyRequest{APIKey: "key"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestVerifyKeyMissingBody(t *testing.T) {
	router := geminiRouter(t, "http://unused", refreshConfig())
	w := performRequest(router, http.MethodPost, "/gemini/verify-key", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListModelsWithoutKeyServesSavedDocument(t *testing.T) {
	router := geminiRouter(t, "http://unused", refreshConfig())
	w := performRequest(router, http.MethodGet, "/gemini/models", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"models"`)
}

func TestRateLimitsWithoutAnyKey(t *testing.T) {
	router := geminiRouter(t, "http://unused", refreshConfig())
	w := performRequest(router, http.MethodGet, "/gemini/rate-limits", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_checked":null`)
}
