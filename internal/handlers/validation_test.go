package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	appValidator "github.com/charlesng35/simplenotify/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	err := appValidator.ValidateStruct(subscribeRequest{Endpoint: "nope"})
	require.Error(t, err)

	msg := formatValidationError(err)
	require.Contains(t, msg, "endpoint must be a valid URL")
	require.Contains(t, msg, "p256dh is required")
	require.Contains(t, msg, "auth is required")
}

func TestFormatValidationErrorTimeOfDay(t *testing.T) {
	bad := "later"
	err := appValidator.ValidateStruct(updatePreferencesRequest{QuietHoursStart: &bad})
	require.Error(t, err)
	require.Contains(t, formatValidationError(err), "quiet hours start must be a time of day")
}
