package repository

import (
	"github.com/shimayu0701/copilot-navi/internal/models"
	"gorm.io/gorm"
)

// DiagnosisRepositoryImpl implements DiagnosisRepository
type DiagnosisRepositoryImpl struct {
	db *gorm.DB
}

func NewDiagnosisRepository(db *gorm.DB) models.DiagnosisRepository {
	return &DiagnosisRepositoryImpl{db: db}
}

func (r *DiagnosisRepositoryImpl) Create(record *models.DiagnosisHistory) error {
	return r.db.Create(record).Error
}

func (r *DiagnosisRepositoryImpl) GetByID(id string) (*models.DiagnosisHistory, error) {
	var record models.DiagnosisHistory
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *DiagnosisRepositoryImpl) List(limit, offset int) ([]models.DiagnosisHistory, int64, error) {
	var total int64
	if err := r.db.Model(&models.DiagnosisHistory{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.DiagnosisHistory
	err := r.db.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, total, err
}

func (r *DiagnosisRepositoryImpl) SetFeedback(id string, feedback int) error {
	result := r.db.Model(&models.DiagnosisHistory{}).
		Where("id = ?", id).
		Update("feedback", feedback)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateHistoryRepositoryImpl implements UpdateHistoryRepository
type UpdateHistoryRepositoryImpl struct {
	db *gorm.DB
}

func NewUpdateHistoryRepository(db *gorm.DB) models.UpdateHistoryRepository {
	return &UpdateHistoryRepositoryImpl{db: db}
}

func (r *UpdateHistoryRepositoryImpl) Create(record *models.UpdateHistory) error {
	return r.db.Create(record).Error
}

func (r *UpdateHistoryRepositoryImpl) GetByID(id string) (*models.UpdateHistory, error) {
	var record models.UpdateHistory
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *UpdateHistoryRepositoryImpl) ListRecent(limit int) ([]models.UpdateHistory, error) {
	var records []models.UpdateHistory
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	Diagnosis     models.DiagnosisRepository
	UpdateHistory models.UpdateHistoryRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Diagnosis:     NewDiagnosisRepository(db),
		UpdateHistory: NewUpdateHistoryRepository(db),
	}
}
