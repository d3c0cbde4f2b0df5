package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/streamcart/backend/internal/infrastructure/logger"
)

// Context and header keys for channel scoping.
const (
	// ChannelIDKey is the gin context key holding the live-channel identifier.
	ChannelIDKey = "channel_id"
	// ChannelIDHeader carries the live-channel identifier on incoming requests.
	ChannelIDHeader = "X-Channel-ID"
	// UserIDHeader carries the acting user identifier on incoming requests.
	UserIDHeader = "X-User-ID"
	// UserIDKey is the gin context key holding the acting user identifier.
	UserIDKey = "user_id"
)

// Channel copies the channel and user identifiers from request headers into
// the gin context so downstream handlers and telemetry can read them from a
// single place, and stamps them into the request context for service-layer
// log correlation. Both headers are optional; most ledger and payout
// endpoints operate across channels.
func Channel() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if channelID := c.GetHeader(ChannelIDHeader); channelID != "" && isValidScopeID(channelID) {
			c.Set(ChannelIDKey, channelID)
			ctx = logger.WithChannelID(ctx, channelID)
		}
		if userID := c.GetHeader(UserIDHeader); userID != "" && len(userID) <= MaxScopeIDLength {
			c.Set(UserIDKey, userID)
			ctx = logger.WithUserID(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
