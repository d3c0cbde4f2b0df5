package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"github.com/streamcart/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := middleware.DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Contains(t, cfg.SkipPathPrefixes, "/debug")
}

// profiledLabels captures the pprof labels visible inside the handler.
func profiledLabels(t *testing.T, cfg middleware.ProfilingConfig, method, route, path string, setup gin.HandlerFunc) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if setup != nil {
		r.Use(setup)
	}
	r.Use(middleware.ProfilingWithConfig(cfg))

	captured := map[string]string{}
	r.Handle(method, route, func(c *gin.Context) {
		for _, key := range []string{
			telemetry.ProfilingLabelMethod,
			telemetry.ProfilingLabelRoute,
			telemetry.ProfilingLabelController,
			telemetry.ProfilingLabelChannelID,
		} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				captured[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return captured
}

func TestProfilingMiddleware_LabelsRequest(t *testing.T) {
	labels := profiledLabels(t, middleware.DefaultProfilingConfig(),
		http.MethodGet, "/api/v1/payouts/:id", "/api/v1/payouts/123", nil)

	assert.Equal(t, http.MethodGet, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/payouts/:id", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, "payouts", labels[telemetry.ProfilingLabelController])
}

func TestProfilingMiddleware_Disabled(t *testing.T) {
	labels := profiledLabels(t, middleware.ProfilingConfig{Enabled: false},
		http.MethodGet, "/api/v1/payouts", "/api/v1/payouts", nil)
	assert.Empty(t, labels)
}

func TestProfilingMiddleware_SkipPaths(t *testing.T) {
	cfg := middleware.ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health"},
		SkipPathPrefixes: []string{"/debug"},
	}

	tests := []struct {
		name    string
		route   string
		labeled bool
	}{
		{"health_exact", "/health", false},
		{"debug_prefix", "/debug/pprof", false},
		{"api_route", "/api/v1/disputes", true},
		{"health_subpath_is_not_exact", "/health/live", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := profiledLabels(t, cfg, http.MethodGet, tt.route, tt.route, nil)
			if tt.labeled {
				assert.NotEmpty(t, labels)
			} else {
				assert.Empty(t, labels)
			}
		})
	}
}

func TestProfilingMiddleware_ChannelLabel(t *testing.T) {
	t.Run("from context", func(t *testing.T) {
		labels := profiledLabels(t, middleware.DefaultProfilingConfig(),
			http.MethodGet, "/api/v1/payouts", "/api/v1/payouts",
			func(c *gin.Context) {
				c.Set(middleware.ChannelIDKey, "live-shop")
				c.Next()
			})
		assert.Equal(t, "live-shop", labels[telemetry.ProfilingLabelChannelID])
	})

	t.Run("absent", func(t *testing.T) {
		labels := profiledLabels(t, middleware.DefaultProfilingConfig(),
			http.MethodGet, "/api/v1/payouts", "/api/v1/payouts", nil)
		_, ok := labels[telemetry.ProfilingLabelChannelID]
		assert.False(t, ok)
	})

	t.Run("wrong type is skipped", func(t *testing.T) {
		labels := profiledLabels(t, middleware.DefaultProfilingConfig(),
			http.MethodGet, "/api/v1/payouts", "/api/v1/payouts",
			func(c *gin.Context) {
				c.Set(middleware.ChannelIDKey, 12345)
				c.Next()
			})
		_, ok := labels[telemetry.ProfilingLabelChannelID]
		assert.False(t, ok)
	})
}

func TestProfilingMiddleware_ControllerFromRoute(t *testing.T) {
	tests := []struct {
		route      string
		path       string
		controller string
	}{
		{"/api/v1/payouts", "/api/v1/payouts", "payouts"},
		{"/api/v1/disputes/:id/evidence", "/api/v1/disputes/d1/evidence", "disputes"},
		{"/api/v2/ledger/accounts", "/api/v2/ledger/accounts", "ledger"},
		{"/v1/recon/runs", "/v1/recon/runs", "recon"},
		{"/api/policies", "/api/policies", "policies"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			labels := profiledLabels(t, middleware.DefaultProfilingConfig(),
				http.MethodGet, tt.route, tt.path, nil)
			assert.Equal(t, tt.controller, labels[telemetry.ProfilingLabelController])
		})
	}
}

func TestProfiling_DefaultConfiguration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Profiling())

	called := false
	r.GET("/api/v1/payouts", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payouts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestProfilingMiddleware_PreservesGinContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_tag", "abc")
		c.Next()
	})
	r.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	r.GET("/api/v1/payouts", func(c *gin.Context) {
		v, ok := c.Get("request_tag")
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payouts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
