package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/monitoring"
)

// HealthHandler serves liveness and readiness reports from the health manager.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler constructs a health handler. A nil manager reports a bare "up".
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Health returns the aggregate readiness status without per-check details.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.readiness(c)
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": time.Now().UTC(),
	})
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	report := monitoring.HealthReport{Success: true, Status: monitoring.StatusUp, Checks: []monitoring.ProbeResult{}}
	if h.manager != nil {
		report = h.manager.EvaluateLiveness(requestContext(c))
	}
	writeHealthReport(c, report)
}

// Ready reports whether dependencies can serve traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	writeHealthReport(c, h.readiness(c))
}

func (h *HealthHandler) readiness(c *gin.Context) monitoring.HealthReport {
	if h.manager == nil {
		return monitoring.HealthReport{Success: true, Status: monitoring.StatusUp, Checks: []monitoring.ProbeResult{}}
	}
	return h.manager.EvaluateReadiness(requestContext(c))
}

// DisabledHealth answers health routes when health checks are switched off.
func DisabledHealth(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
