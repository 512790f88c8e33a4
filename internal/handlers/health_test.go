package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/simplenotify/internal/app"
	"github.com/charlesng35/simplenotify/internal/handlers/testutil"
)

type healthBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Checks  []struct {
		Component string `json:"component"`
		Status    string `json:"status"`
	} `json:"checks"`
}

func decodeHealth(t *testing.T, raw []byte) healthBody {
	t.Helper()
	var body healthBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestHealthEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeHealth(t, w.Body.Bytes())
	require.True(t, body.Success)
	require.Equal(t, "up", body.Status)
	require.Empty(t, body.Checks)

	w = env.Request(http.MethodGet, "/health/live", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeHealth(t, w.Body.Bytes())
	require.Len(t, body.Checks, 2)
}

func TestReadinessDegradedWithoutPush(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithoutPush())

	w := env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeHealth(t, w.Body.Bytes())
	require.True(t, body.Success)
	require.Equal(t, "degraded", body.Status)
}

func TestHealthDisabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
	}))

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "disabled")
}
