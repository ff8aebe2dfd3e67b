package models

// GORM models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JSONColumn stores a typed document in a jsonb column.
type JSONColumn[T any] struct {
	Data T
}

func (j JSONColumn[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

func (j *JSONColumn[T]) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		var zero T
		j.Data = zero
		return nil
	case []byte:
		return json.Unmarshal(v, &j.Data)
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn", value)
	}
}

func (j JSONColumn[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

func (j *JSONColumn[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// DiagnosisResult is the frozen recommendation list stored with a diagnosis.
type DiagnosisResult struct {
	Recommendations []RankedResult `json:"recommendations"`
}

// DiagnosisHistory is one survey run: the raw answers, the computed ranking
// as it was at that time, and an optional 1-5 feedback value.
type DiagnosisHistory struct {
	ID         string                      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time                   `json:"created_at"`
	Selections JSONColumn[Selections]      `json:"selections" gorm:"type:jsonb;not null"`
	Result     JSONColumn[DiagnosisResult] `json:"result" gorm:"type:jsonb;not null"`
	Feedback   *int                        `json:"feedback"`
}

// UpdateHistory is the immutable audit record of one refresh attempt,
// including full before/after catalog snapshots.
type UpdateHistory struct {
	ID          string                    `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time                 `json:"created_at"`
	Status      string                    `json:"status" gorm:"not null;check:status IN ('success','partial','failed')"`
	Summary     JSONColumn[UpdateSummary] `json:"summary" gorm:"type:jsonb;not null"`
	OldData     JSONColumn[ModelCatalog]  `json:"old_data" gorm:"type:jsonb"`
	NewData     JSONColumn[ModelCatalog]  `json:"new_data" gorm:"type:jsonb"`
	GeminiModel string                    `json:"gemini_model"`
}

// Repository interfaces

type DiagnosisRepository interface {
	Create(record *DiagnosisHistory) error
	GetByID(id string) (*DiagnosisHistory, error)
	List(limit, offset int) ([]DiagnosisHistory, int64, error)
	SetFeedback(id string, feedback int) error
}

type UpdateHistoryRepository interface {
	Create(record *UpdateHistory) error
	GetByID(id string) (*UpdateHistory, error)
	ListRecent(limit int) ([]UpdateHistory, error)
}

// TableName methods for custom table names
func (DiagnosisHistory) TableName() string { return "diagnosis_history" }
func (UpdateHistory) TableName() string    { return "update_history" }

// Model validation methods
func (d *DiagnosisHistory) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("diagnosis id is required")
	}
	if d.Feedback != nil && (*d.Feedback < 1 || *d.Feedback > 5) {
		return fmt.Errorf("feedback must be between 1 and 5, got %d", *d.Feedback)
	}
	return nil
}

func (u *UpdateHistory) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("update id is required")
	}
	switch u.Status {
	case UpdateSuccess, UpdatePartial, UpdateFailed:
	default:
		return fmt.Errorf("invalid update status: %s", u.Status)
	}
	return nil
}

// GORM hooks
func (d *DiagnosisHistory) BeforeCreate(tx *gorm.DB) error {
	return d.Validate()
}

func (u *UpdateHistory) BeforeCreate(tx *gorm.DB) error {
	return u.Validate()
}
