// Package health probes the service's dependencies for the health endpoint.
package health

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shimayu0701/copilot-navi/internal/database"
	"github.com/shimayu0701/copilot-navi/internal/datastore"
)

// Checker runs the dependency probes behind the health endpoint.
type Checker struct {
	dbManager *database.Manager
	store     *datastore.Store
	logger    *logrus.Logger
	startedAt time.Time
}

func NewChecker(dbManager *database.Manager, store *datastore.Store, logger *logrus.Logger) *Checker {
	return &Checker{
		dbManager: dbManager,
		store:     store,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

// CheckPostgreSQL checks PostgreSQL database health
func (h *Checker) CheckPostgreSQL() ServiceHealth {
	start := time.Now()
	err := h.dbManager.PingDatabase()
	return h.serviceHealth("postgresql", start, err)
}

// CheckRedis checks Redis cache health
func (h *Checker) CheckRedis() ServiceHealth {
	start := time.Now()
	err := h.dbManager.PingRedis()
	return h.serviceHealth("redis", start, err)
}

// CheckDatastore checks that the live catalog is loadable.
func (h *Checker) CheckDatastore() ServiceHealth {
	start := time.Now()
	_, err := h.store.LoadCatalog()
	return h.serviceHealth("datastore", start, err)
}

// CheckAll runs every probe. The overall status is healthy only when all
// services are.
func (h *Checker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
		h.CheckDatastore(),
	}

	status := "healthy"
	for _, s := range services {
		if s.Status != "healthy" {
			status = "degraded"
			break
		}
	}

	return OverallHealth{
		Status:   status,
		Services: services,
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
	}
}

func (h *Checker) serviceHealth(name string, start time.Time, err error) ServiceHealth {
	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: int(time.Since(start).Milliseconds()),
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}
