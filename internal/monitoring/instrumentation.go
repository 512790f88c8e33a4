package monitoring

import (
	"strings"
	"time"

	"github.com/charlesng35/simplenotify/pkg/metrics"
)

// Push delivery outcomes.
const (
	PushResultSent       = "sent"
	PushResultSuppressed = "suppressed"
	PushResultGone       = "gone"
	PushResultFailed     = "failed"
)

// Maintenance run results.
const (
	MaintenanceResultSuccess = "success"
	MaintenanceResultFailure = "failure"
)

// RecordPushDelivery counts a dispatcher outcome. The Prometheus counter is
// updated even when no module is configured.
func RecordPushDelivery(result string) {
	result = normalizeLabel(result)
	switch result {
	case PushResultSent, PushResultSuppressed, PushResultGone:
	default:
		result = PushResultFailed
	}
	metrics.PushDeliveries.WithLabelValues(result).Inc()

	module := CurrentModule()
	if module == nil {
		return
	}
	now := time.Now()
	if result == PushResultSent {
		module.metrics.pushLastSuccess.Set(float64(now.Unix()))
	}
	module.stats.recordPush(result, now)
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	if jobID == "" {
		jobID = "unknown"
	}
	result = normalizeLabel(result)
	if result == "" {
		result = "unknown"
	}

	now := time.Now()
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == MaintenanceResultSuccess {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(now.Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration, now)
}

func normalizeLabel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
