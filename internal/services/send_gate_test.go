package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func quietPrefs(start, end, tz string) MergedPreferences {
	prefs := DefaultMergedPreferences()
	prefs.QuietHoursStart = stringPtr(start)
	prefs.QuietHoursEnd = stringPtr(end)
	prefs.QuietHoursTimezone = tz
	return prefs
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 5, 4, hour, minute, 0, 0, time.UTC)
}

func TestShouldSendFrequency(t *testing.T) {
	tests := []struct {
		name      string
		frequency int
		draw      int
		want      bool
	}{
		{name: "always at 100", frequency: 100, draw: 100, want: true},
		{name: "draw below frequency", frequency: 50, draw: 10, want: true},
		{name: "draw equals frequency", frequency: 50, draw: 50, want: true},
		{name: "draw above frequency", frequency: 50, draw: 51, want: false},
		{name: "zero frequency passes only on zero draw", frequency: 0, draw: 0, want: true},
		{name: "zero frequency suppresses", frequency: 0, draw: 1, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prefs := DefaultMergedPreferences()
			prefs.NotificationFrequency = tc.frequency
			require.Equal(t, tc.want, ShouldSend(prefs, at(12, 0), fixedRand(tc.draw)))
		})
	}
}

func TestShouldSendFrequencyIsProbabilistic(t *testing.T) {
	prefs := DefaultMergedPreferences()
	prefs.NotificationFrequency = 50

	const trials = 1000
	sent := 0
	for i := 0; i < trials; i++ {
		if ShouldSend(prefs, at(12, 0), nil) {
			sent++
		}
	}

	// expected rate is 51/101; the bounds sit more than six standard deviations out
	require.Greater(t, sent, 400)
	require.Less(t, sent, 610)
}

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		prefs MergedPreferences
		now   time.Time
		want  bool
	}{
		{name: "unset", prefs: DefaultMergedPreferences(), now: at(3, 0), want: false},
		{name: "only start set", prefs: MergedPreferences{QuietHoursStart: stringPtr("22:00:00")}, now: at(23, 0), want: false},
		{name: "daytime inside", prefs: quietPrefs("09:00:00", "17:00:00", "UTC"), now: at(12, 0), want: true},
		{name: "daytime start inclusive", prefs: quietPrefs("09:00:00", "17:00:00", "UTC"), now: at(9, 0), want: true},
		{name: "daytime end inclusive", prefs: quietPrefs("09:00:00", "17:00:00", "UTC"), now: at(17, 0), want: true},
		{name: "daytime outside", prefs: quietPrefs("09:00:00", "17:00:00", "UTC"), now: at(18, 0), want: false},
		{name: "overnight late", prefs: quietPrefs("22:00:00", "06:00:00", "UTC"), now: at(23, 0), want: true},
		{name: "overnight early", prefs: quietPrefs("22:00:00", "06:00:00", "UTC"), now: at(3, 0), want: true},
		{name: "overnight midday", prefs: quietPrefs("22:00:00", "06:00:00", "UTC"), now: at(12, 0), want: false},
		{name: "overnight end inclusive", prefs: quietPrefs("22:00:00", "06:00:00", "UTC"), now: at(6, 0), want: true},
		{name: "timezone shifts window", prefs: quietPrefs("22:00:00", "06:00:00", "America/New_York"), now: at(3, 0), want: true},
		{name: "timezone moves outside", prefs: quietPrefs("22:00:00", "06:00:00", "America/New_York"), now: at(12, 0), want: false},
		{name: "unknown timezone falls back to utc", prefs: quietPrefs("22:00:00", "06:00:00", "Mars/Olympus"), now: at(23, 0), want: true},
		{name: "short layout accepted", prefs: quietPrefs("22:00", "06:00", "UTC"), now: at(22, 30), want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, InQuietHours(tc.prefs, tc.now))
		})
	}
}

func TestShouldSendRequiresBothChecks(t *testing.T) {
	prefs := quietPrefs("22:00:00", "06:00:00", "UTC")

	require.False(t, ShouldSend(prefs, at(23, 0), fixedRand(0)))
	require.True(t, ShouldSend(prefs, at(12, 0), fixedRand(0)))

	prefs.NotificationFrequency = 10
	require.False(t, ShouldSend(prefs, at(12, 0), fixedRand(90)))
}
