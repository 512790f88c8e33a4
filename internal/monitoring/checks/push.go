package checks

import (
	"context"
	"time"

	"github.com/charlesng35/simplenotify/internal/monitoring"
)

// PushConfigurer reports whether push delivery has usable VAPID credentials.
type PushConfigurer interface {
	Configured() error
}

// Push returns a readiness probe that reports degraded while VAPID credentials are missing.
// Subscription management keeps working without them, so the probe never reports down.
func Push(dispatcher PushConfigurer) monitoring.Check {
	return monitoring.NewCheck("push", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if dispatcher == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "push dispatcher not initialised",
				Duration: time.Since(start),
			}
		}
		if err := dispatcher.Configured(); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
