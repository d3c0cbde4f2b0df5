package cache

import (
	"fmt"

	"go.uber.org/zap"

	appdispute "github.com/streamcart/backend/internal/application/dispute"
	"github.com/streamcart/backend/internal/infrastructure/config"
)

// EventDeduperFactory creates event dedupers based on configuration.
type EventDeduperFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// EventDeduperFactoryOption configures the factory.
type EventDeduperFactoryOption func(*EventDeduperFactory)

// WithLogger sets the logger for the factory.
func WithLogger(logger *zap.Logger) EventDeduperFactoryOption {
	return func(f *EventDeduperFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an in-memory deduper is used
// when Redis is unavailable.
func WithInMemoryFallback(allow bool) EventDeduperFactoryOption {
	return func(f *EventDeduperFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewEventDeduperFactory creates a factory with the given Redis configuration.
func NewEventDeduperFactory(redisConfig config.RedisConfig, opts ...EventDeduperFactoryOption) *EventDeduperFactory {
	f := &EventDeduperFactory{
		redisConfig:           redisConfig,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisDeduper creates a Redis-based event deduper.
func (f *EventDeduperFactory) CreateRedisDeduper() (appdispute.EventDeduper, error) {
	deduper, err := NewRedisEventDeduper(f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis event deduper: %w", err)
	}

	return deduper, nil
}

// CreateInMemoryDeduper creates an in-memory event deduper.
// This is suitable for single-instance deployments and testing.
// WARNING: In-memory dedupers do not share state across process instances,
// which can lead to duplicate webhook processing in distributed deployments.
func (f *EventDeduperFactory) CreateInMemoryDeduper() appdispute.EventDeduper {
	return NewInMemoryEventDeduper(f.redisConfig.EventDedupTTL)
}

// CreateDeduper creates an event deduper based on whether Redis is available.
// It tries Redis first, and falls back to in-memory if Redis is not available
// and the fallback is allowed.
func (f *EventDeduperFactory) CreateDeduper() (appdispute.EventDeduper, error) {
	deduper, err := f.CreateRedisDeduper()
	if err == nil {
		f.logger.Info("using Redis event deduper")
		return deduper, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for webhook dedup but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory event deduper. "+
		"This may cause duplicate webhook processing in distributed deployments.",
		zap.Error(err),
	)
	return f.CreateInMemoryDeduper(), nil
}
