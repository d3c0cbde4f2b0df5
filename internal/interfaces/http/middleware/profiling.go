package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests get profiling labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are exact paths excluded from labeling (health checks).
	SkipPaths []string
	// SkipPathPrefixes excludes whole subtrees such as /debug.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig excludes health and debug endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/debug"},
	}
}

// ProfilingWithConfig labels each request's profiling context with the
// handler name, route pattern, HTTP method, and sales channel, so CPU
// profiles can be sliced per endpoint. Route patterns, not raw paths,
// keep the label set bounded.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// Profiling labels requests using the default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

func requestProfilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)

	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}

	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if resource := routeResource(route); resource != "" {
		labels[telemetry.ProfilingLabelController] = resource
	}

	// Set by the channel middleware. Channels are a small set, so the
	// label stays bounded.
	if channelID := getChannelID(c); channelID != "" {
		labels[telemetry.ProfilingLabelChannelID] = channelID
	}

	return labels
}

// routeResource derives the owning resource from a route pattern:
// "/api/v1/payouts/:id/holds" yields "payouts".
func routeResource(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
