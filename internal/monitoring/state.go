package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	pushSent        atomic.Uint64
	pushSuppressed  atomic.Uint64
	pushGone        atomic.Uint64
	pushFailed      atomic.Uint64
	pushLastSuccess atomic.Int64 // unix nano
	pushLastFailure atomic.Int64 // unix nano

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	return Summary{
		GeneratedAt: time.Now(),
		Push: PushSummary{
			Sent:          s.pushSent.Load(),
			Suppressed:    s.pushSuppressed.Load(),
			Gone:          s.pushGone.Load(),
			Failed:        s.pushFailed.Load(),
			LastSuccessAt: unixNanoTime(s.pushLastSuccess.Load()),
			LastFailureAt: unixNanoTime(s.pushLastFailure.Load()),
		},
		Maintenance: MaintenanceSummary{Jobs: s.cloneMaintenance()},
	}
}

func (s *statStore) recordPush(result string, at time.Time) {
	switch result {
	case PushResultSent:
		s.pushSent.Add(1)
		s.pushLastSuccess.Store(at.UnixNano())
	case PushResultSuppressed:
		s.pushSuppressed.Add(1)
	case PushResultGone:
		s.pushGone.Add(1)
	default:
		s.pushFailed.Add(1)
		s.pushLastFailure.Store(at.UnixNano())
	}
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if existing, ok := s.maintenance.Load(job); ok {
		return existing.(*maintenanceStats)
	}
	entry, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return entry.(*maintenanceStats)
}

type maintenanceStats struct {
	mu                  sync.Mutex
	lastStatus          string
	lastError           string
	lastRun             time.Time
	lastDuration        time.Duration
	lastSuccess         time.Time
	consecutiveFailures uint64
	totalRuns           uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          m.lastStatus,
		LastRunAt:           m.lastRun,
		LastDuration:        m.lastDuration,
		LastError:           m.lastError,
		ConsecutiveFailures: m.consecutiveFailures,
		LastSuccessAt:       m.lastSuccess,
		TotalRuns:           m.totalRuns,
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration, at time.Time) {
	if duration < 0 {
		duration = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastStatus = result
	m.lastError = message
	m.lastRun = at
	m.lastDuration = duration
	m.totalRuns++

	if result == MaintenanceResultSuccess {
		m.consecutiveFailures = 0
		m.lastSuccess = at
		return
	}
	m.consecutiveFailures++
}

func unixNanoTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}
