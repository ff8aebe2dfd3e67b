package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/sirupsen/logrus"
)

// Live dataset filenames under the data directory.
const (
	CatalogFile      = "models.json"
	ChartFile        = "chart.json"
	RulesFile        = "recommendation_rules.json"
	GeminiModelsFile = "gemini_models.json"
)

// Store owns the JSON documents on disk. A missing or malformed document is
// a configuration error surfaced to the caller, never silently defaulted.
// The catalog is the only document rewritten at runtime, and only through
// the atomic SaveCatalog commit.
type Store struct {
	dir    string
	logger *logrus.Logger

	// Serializes catalog swaps against concurrent readers.
	mu sync.RWMutex
}

func NewStore(dir string, logger *logrus.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// LoadCatalog reads and validates the live model catalog.
func (s *Store) LoadCatalog() (*models.ModelCatalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var catalog models.ModelCatalog
	if err := s.readJSON(CatalogFile, &catalog); err != nil {
		return nil, err
	}
	if len(catalog.Models) == 0 {
		return nil, fmt.Errorf("%s: catalog contains no models", CatalogFile)
	}
	return &catalog, nil
}

// LoadChart reads and validates the survey chart document.
func (s *Store) LoadChart() (*models.SurveyChart, error) {
	var chart models.SurveyChart
	if err := s.readJSON(ChartFile, &chart); err != nil {
		return nil, err
	}
	if len(chart.Questions) == 0 {
		return nil, fmt.Errorf("%s: chart contains no questions", ChartFile)
	}
	return &chart, nil
}

// LoadRules reads and validates the recommendation rules document.
func (s *Store) LoadRules() (*models.RecommendationRules, error) {
	var rules models.RecommendationRules
	if err := s.readJSON(RulesFile, &rules); err != nil {
		return nil, err
	}
	if len(rules.BaseWeights) == 0 {
		return nil, fmt.Errorf("%s: base_weights is empty", RulesFile)
	}
	return &rules, nil
}

// SaveCatalog replaces the live catalog with a single whole-document
// overwrite: write to a temporary file in the same directory, then rename.
// Readers never observe a half-written document.
func (s *Store) SaveCatalog(catalog *models.ModelCatalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSONAtomic(CatalogFile, catalog)
}

// LoadGeminiModels reads the persisted analysis-model listing. A missing
// file returns an empty list; this document is a cache, not configuration.
func (s *Store) LoadGeminiModels() (*models.GeminiModelList, error) {
	var list models.GeminiModelList
	if err := s.readJSON(GeminiModelsFile, &list); err != nil {
		if os.IsNotExist(err) {
			return &models.GeminiModelList{Models: []models.GeminiModelInfo{}}, nil
		}
		return nil, err
	}
	return &list, nil
}

// SaveGeminiModels persists the analysis-model listing.
func (s *Store) SaveGeminiModels(list *models.GeminiModelList) error {
	return s.writeJSONAtomic(GeminiModelsFile, list)
}

func (s *Store) readJSON(name string, dest interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSONAtomic(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.logger.WithField("file", name).Debug("Dataset file replaced")
	return nil
}
