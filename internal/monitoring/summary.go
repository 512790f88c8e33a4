package monitoring

import "time"

// Summary surfaces aggregated delivery and maintenance data for operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Push        PushSummary        `json:"push"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type PushSummary struct {
	Sent          uint64    `json:"sent"`
	Suppressed    uint64    `json:"suppressed"`
	Gone          uint64    `json:"gone"`
	Failed        uint64    `json:"failed"`
	LastSuccessAt time.Time `json:"last_success_at"`
	LastFailureAt time.Time `json:"last_failure_at"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return CurrentModule().Summary()
}

func emptySummary() Summary {
	return Summary{
		GeneratedAt: time.Now(),
		Maintenance: MaintenanceSummary{Jobs: []MaintenanceJobSummary{}},
	}
}
