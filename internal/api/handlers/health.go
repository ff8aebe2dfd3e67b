package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shimayu0701/copilot-navi/internal/health"
)

// HealthHandler reports dependency health.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check runs all probes. Degraded systems answer 503 so load balancers can
// react.
func (h *HealthHandler) Check(c *gin.Context) {
	overall := h.checker.CheckAll()

	code := http.StatusOK
	if overall.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, overall)
}
