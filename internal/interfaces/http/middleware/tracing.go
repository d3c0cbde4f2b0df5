package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Caps on identifiers lifted from request headers. Anything longer is
// hostile or broken and must not reach trace attributes.
const (
	MaxRequestIDLength = 128
	MaxScopeIDLength   = 64
)

var scopeIDRegex = regexp.MustCompile(`^[0-9a-zA-Z_-]+$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "streamcart-backend",
		Enabled:     true,
	}
}

// Tracing traces requests with the default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin and stamps each request span with the
// request id, sales channel, and acting user so a payout or dispute can
// be chased across services from any of those three.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	base := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := getRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if channelID := getChannelID(c); channelID != "" {
		span.SetAttributes(attribute.String("channel_id", channelID))
	}
	if userID := getUserID(c); userID != "" {
		span.SetAttributes(attribute.String("user_id", userID))
	}
}

// getRequestID prefers the id minted by the request-id middleware and
// falls back to the inbound header, truncated to the cap.
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getChannelID retrieves the channel ID from the gin context or header.
// Header values are validated to prevent injection into trace attributes.
func getChannelID(c *gin.Context) string {
	if channelID, exists := c.Get(ChannelIDKey); exists {
		if id, ok := channelID.(string); ok && id != "" {
			return id
		}
	}

	if headerID := c.GetHeader(ChannelIDHeader); headerID != "" && isValidScopeID(headerID) {
		return headerID
	}
	return ""
}

// getUserID retrieves the acting user from the gin context or header.
func getUserID(c *gin.Context) string {
	if userID, exists := c.Get(UserIDKey); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id
		}
	}

	if headerID := c.GetHeader(UserIDHeader); headerID != "" && isValidScopeID(headerID) {
		return headerID
	}
	return ""
}

func isValidScopeID(id string) bool {
	return len(id) <= MaxScopeIDLength && scopeIDRegex.MatchString(id)
}

// SpanErrorMarker flags 4xx and 5xx responses on the request span.
// Place it after Tracing in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		message := http.StatusText(statusCode)
		if message == "" {
			message = "Client Error"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
