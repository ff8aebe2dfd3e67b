package models

import "time"

// ThirdSelection is the compound answer to the third survey question.
type ThirdSelection struct {
	Complexity    string   `json:"complexity"`
	Priority      []string `json:"priority"`
	ContextAmount string   `json:"context_amount"`
}

// Selections carries the raw survey answers as submitted.
type Selections struct {
	Q1 string         `json:"q1"`
	Q2 string         `json:"q2"`
	Q3 ThirdSelection `json:"q3"`
}

type RecommendRequest struct {
	Selections Selections `json:"selections" binding:"required"`
}

// RankedResult is one recommendation, frozen at computation time.
type RankedResult struct {
	Rank    int        `json:"rank"`
	Model   ModelEntry `json:"model"`
	Score   float64    `json:"score"`
	Reason  string     `json:"reason"`
	Caution string     `json:"caution,omitempty"`
}

type RecommendResponse struct {
	DiagnosisID     string         `json:"diagnosis_id"`
	Recommendations []RankedResult `json:"recommendations"`
	Selections      Selections     `json:"selections"`
}

// FeedbackRequest accepts either field name; older clients send "rating".
type FeedbackRequest struct {
	Feedback *int `json:"feedback"`
	Rating   *int `json:"rating"`
}

// Value returns the submitted feedback value, preferring "feedback".
func (r *FeedbackRequest) Value() (int, bool) {
	if r.Feedback != nil {
		return *r.Feedback, true
	}
	if r.Rating != nil {
		return *r.Rating, true
	}
	return 0, false
}

type RefreshRequest struct {
	ModelID string `json:"model_id"`
	APIKey  string `json:"api_key"`
}

// Refresh attempt statuses. Completed means the attempt ran to conclusion;
// the audit record carries the success/partial/failed outcome separately.
const (
	RefreshIdle      = "idle"
	RefreshRunning   = "running"
	RefreshCompleted = "completed"
	RefreshFailed    = "failed"
)

// RefreshState is the single process-wide refresh record, re-initialized at
// the start of each attempt. Progress is monotonically non-decreasing within
// one attempt.
type RefreshState struct {
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message"`
	StartedAt    *time.Time `json:"started_at"`
	LastResultID string     `json:"last_result_id,omitempty"`
}

// Audit outcomes for one refresh attempt.
const (
	UpdateSuccess = "success"
	UpdatePartial = "partial"
	UpdateFailed  = "failed"
)

// UpdateSummary is the structured change description stored with each
// audit record.
type UpdateSummary struct {
	ModelsAdded    []string `json:"models_added"`
	ModelsRemoved  []string `json:"models_removed"`
	ModelsUpdated  []string `json:"models_updated"`
	KeyChanges     []string `json:"key_changes"`
	OverallSummary string   `json:"overall_summary"`
}

// RateLimitInfo describes one quota window (requests or tokens per minute).
type RateLimitInfo struct {
	Limit      int     `json:"limit"`
	Used       int     `json:"used"`
	Remaining  int     `json:"remaining"`
	ResetAt    *string `json:"reset_at"`
	Percentage int     `json:"percentage"`
	Status     string  `json:"status"`
	Note       string  `json:"note,omitempty"`
}

// ModelRateLimits groups the quota windows reported for one model.
type ModelRateLimits struct {
	RPM *RateLimitInfo `json:"rpm,omitempty"`
	TPM *RateLimitInfo `json:"tpm,omitempty"`
}

// RateLimitsResponse is the cached quota report for an API key.
type RateLimitsResponse struct {
	RateLimits  map[string]ModelRateLimits `json:"rate_limits"`
	LastChecked string                     `json:"last_checked"`
	APIKeyHash  string                     `json:"api_key_hash,omitempty"`
}

type VerifyKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type VerifyKeyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// GeminiModelInfo is one selectable analysis model, as listed by the
// provider API or the persisted fallback document.
type GeminiModelInfo struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	DisplayName    string             `json:"display_name"`
	Description    string             `json:"description"`
	Version        string             `json:"version"`
	Tier           string             `json:"tier"`
	Performance    map[string]float64 `json:"performance"`
	ContextLength  int                `json:"context_length"`
	RecommendedFor []string           `json:"recommended_for"`
	Available      bool               `json:"available"`
	Default        bool               `json:"default"`
}

// GeminiModelList is the versioned document persisted as gemini_models.json.
type GeminiModelList struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"last_updated"`
	Models      []GeminiModelInfo `json:"models"`
}
