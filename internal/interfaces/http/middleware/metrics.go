// Package middleware provides HTTP middleware for the finance API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	ServiceName   string
	Enabled       bool
}

// DefaultHTTPMetricsConfig returns default HTTP metrics configuration.
func DefaultHTTPMetricsConfig() HTTPMetricsConfig {
	return HTTPMetricsConfig{
		ServiceName: "streamcart-backend",
		Enabled:     true,
	}
}

// Body size buckets in bytes. Responses get one extra bucket because
// list endpoints can return multi-megabyte pages.
var (
	requestSizeBuckets  = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
	responseSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000}
)

// httpMetrics holds the per-request instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requestTotal, err = telemetry.NewCounter(meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}"); err != nil {
		return nil, err
	}

	if m.requestDuration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if m.requestSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  requestSizeBuckets,
	}); err != nil {
		return nil, err
	}

	if m.responseSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	}); err != nil {
		return nil, err
	}

	if m.activeRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}

	return m, nil
}

// HTTPMetrics instruments every request with count, latency, body
// sizes, and an in-flight gauge. Requests are labeled by method, route
// pattern, status code, and sales channel.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter instruments requests using the given meter. It
// exists so tests can pass a manual-reader meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	m, err := newHTTPMetrics(meter)
	if err != nil {
		// A broken instrument must not take down the request path.
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		m.activeRequests.Add(ctx, 1)
		c.Next()
		m.activeRequests.Add(ctx, -1)

		// The route pattern, not the raw path: raw paths embed payout
		// and dispute ids and would explode the label set.
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		countAttrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
			telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()),
		}
		if channelID := getChannelIDFromContext(c); channelID != "" {
			countAttrs = append(countAttrs, telemetry.AttrChannelID.String(channelID))
		}
		m.requestTotal.Inc(ctx, countAttrs...)

		// Latency and sizes carry method and route only.
		sizeAttrs := countAttrs[:2]
		m.requestDuration.RecordDuration(ctx, time.Since(start), sizeAttrs...)
		if requestSize > 0 {
			m.requestSize.Record(ctx, float64(requestSize), sizeAttrs...)
		}
		if responseSize := c.Writer.Size(); responseSize > 0 {
			m.responseSize.Record(ctx, float64(responseSize), sizeAttrs...)
		}
	}
}

// getChannelIDFromContext retrieves the sales channel from the gin context.
// This relies on the channel middleware having set the value.
func getChannelIDFromContext(c *gin.Context) string {
	if channelID, exists := c.Get(ChannelIDKey); exists {
		if id, ok := channelID.(string); ok && id != "" {
			return id
		}
	}
	return c.GetHeader(ChannelIDHeader)
}
