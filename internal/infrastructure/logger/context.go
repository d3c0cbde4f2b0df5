package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request identifier.
	RequestIDKey contextKey = "request_id"
	// ChannelIDKey is the context key for the sales channel identifier.
	ChannelIDKey contextKey = "channel_id"
	// UserIDKey is the context key for the acting user identifier.
	UserIDKey contextKey = "user_id"
)

// WithRequestID stamps the request identifier into the context so the
// database layer and service logs can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithChannelID stamps the sales channel identifier into the context.
func WithChannelID(ctx context.Context, channelID string) context.Context {
	return context.WithValue(ctx, ChannelIDKey, channelID)
}

// WithUserID stamps the acting user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves the request identifier, or "" when absent.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetChannelID retrieves the sales channel identifier, or "" when absent.
func GetChannelID(ctx context.Context) string {
	if channelID, ok := ctx.Value(ChannelIDKey).(string); ok {
		return channelID
	}
	return ""
}

// GetUserID retrieves the acting user identifier, or "" when absent.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetTraceID returns the active trace id, or "" without a valid span.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// WithTrace enriches a logger with the correlation fields held by the
// context: trace and span ids from the active span plus the request,
// channel, and user identifiers. Entries written through the returned
// logger can be joined against traces and HTTP access logs, which is
// how a disputed payout is reconstructed after the fact.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		log = log.With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	if channelID := GetChannelID(ctx); channelID != "" {
		log = log.With(zap.String("channel_id", channelID))
	}
	if userID := GetUserID(ctx); userID != "" {
		log = log.With(zap.String("user_id", userID))
	}
	return log
}
