package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandlerGetSystemInfo(t *testing.T) {
	h := NewSystemHandler("streamcart-finance", "staging")
	h.startTime = time.Now().Add(-90 * time.Second)

	c, w := testContext(t)
	h.GetSystemInfo(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "streamcart-finance", data["name"])
	assert.Equal(t, "staging", data["env"])
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.Equal(t, "1m30s", data["uptime"])
	assert.GreaterOrEqual(t, data["uptime_seconds"], float64(90))
}

func TestSystemHandlerPing(t *testing.T) {
	h := NewSystemHandler("streamcart-finance", "test")

	c, w := testContext(t)
	h.Ping(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pong", data["message"])

	ts, err := time.Parse(time.RFC3339, data["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}
