package services

import (
	"math/rand/v2"
	"time"

	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/pkg/validator"
)

// Rand is the uniform integer source used by the frequency check.
type Rand interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from math/rand/v2's global source.
var DefaultRand Rand = globalRand{}

// ShouldSend reports whether a notification may be delivered under prefs at now.
// Both the frequency and quiet hours checks must pass.
func ShouldSend(prefs MergedPreferences, now time.Time, rnd Rand) bool {
	if rnd == nil {
		rnd = DefaultRand
	}
	return passesFrequency(prefs.NotificationFrequency, rnd) && !InQuietHours(prefs, now)
}

// passesFrequency draws from [0,100] and suppresses when the draw exceeds frequency.
func passesFrequency(frequency int, rnd Rand) bool {
	if frequency >= models.DefaultNotificationFrequency {
		return true
	}
	return rnd.IntN(101) <= frequency
}

// InQuietHours reports whether now falls inside the configured quiet window.
// Windows with start > end wrap past midnight. Unset bounds never suppress.
func InQuietHours(prefs MergedPreferences, now time.Time) bool {
	if prefs.QuietHoursStart == nil || prefs.QuietHoursEnd == nil {
		return false
	}
	start, ok := secondsOfDay(*prefs.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := secondsOfDay(*prefs.QuietHoursEnd)
	if !ok {
		return false
	}

	local := now.In(loadLocation(prefs.QuietHoursTimezone))
	current := local.Hour()*3600 + local.Minute()*60 + local.Second()

	if start <= end {
		return current >= start && current <= end
	}
	return current >= start || current <= end
}

func secondsOfDay(value string) (int, bool) {
	parsed, ok := validator.ParseTimeOfDay(value)
	if !ok {
		return 0, false
	}
	return parsed.Hour()*3600 + parsed.Minute()*60 + parsed.Second(), true
}

// loadLocation resolves an IANA zone name, falling back to UTC.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
