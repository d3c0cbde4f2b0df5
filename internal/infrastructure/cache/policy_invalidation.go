package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// policyInvalidationChannel is the Redis Pub/Sub channel used to
	// broadcast policy changes to all server instances.
	policyInvalidationChannel = "streamcart:policy:invalidate"

	invalidatorCloseTimeout = 5 * time.Second
)

// PolicyUpdateMessage is broadcast whenever a policy changes so that every
// instance drops its cached active set.
type PolicyUpdateMessage struct {
	Action     string    `json:"action"` // "updated" or "activated" or "deactivated"
	PolicyName string    `json:"policy_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// RedisPolicyInvalidator propagates policy cache invalidations across
// instances via Redis Pub/Sub.
type RedisPolicyInvalidator struct {
	client     *redis.Client
	ownsClient bool
	logger     *zap.Logger

	mu       sync.Mutex
	pubsub   *redis.PubSub
	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewRedisPolicyInvalidator creates an invalidator that owns its Redis client.
func NewRedisPolicyInvalidator(addr, password string, db int, logger *zap.Logger) *RedisPolicyInvalidator {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPolicyInvalidator{
		client:     client,
		ownsClient: true,
		logger:     logger,
		doneCh:     make(chan struct{}),
	}
}

// NewRedisPolicyInvalidatorWithClient creates an invalidator using an
// existing Redis client. The caller remains responsible for closing it.
func NewRedisPolicyInvalidatorWithClient(client *redis.Client, logger *zap.Logger) *RedisPolicyInvalidator {
	return &RedisPolicyInvalidator{
		client:     client,
		ownsClient: false,
		logger:     logger,
		doneCh:     make(chan struct{}),
	}
}

// Publish broadcasts a policy update to all subscribed instances.
func (i *RedisPolicyInvalidator) Publish(ctx context.Context, msg PolicyUpdateMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal policy update: %w", err)
	}

	if err := i.client.Publish(ctx, policyInvalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish policy update: %w", err)
	}

	return nil
}

// PublishPolicyUpdated is a convenience wrapper for policy rule changes.
func (i *RedisPolicyInvalidator) PublishPolicyUpdated(ctx context.Context, name string) error {
	return i.Publish(ctx, PolicyUpdateMessage{Action: "updated", PolicyName: name})
}

// PublishPolicyActivated is a convenience wrapper for activation changes.
func (i *RedisPolicyInvalidator) PublishPolicyActivated(ctx context.Context, name string) error {
	return i.Publish(ctx, PolicyUpdateMessage{Action: "activated", PolicyName: name})
}

// Subscribe listens for policy updates and invokes the callback for each one.
// It blocks until the context is canceled or Close is called. The callback
// runs on the subscriber goroutine; a panic in it is recovered and logged.
func (i *RedisPolicyInvalidator) Subscribe(ctx context.Context, callback func(PolicyUpdateMessage)) error {
	i.mu.Lock()
	if i.pubsub != nil {
		i.mu.Unlock()
		return fmt.Errorf("already subscribed")
	}
	pubsub := i.client.Subscribe(ctx, policyInvalidationChannel)
	i.pubsub = pubsub
	i.mu.Unlock()

	defer i.markDone()

	// Verify the subscription before consuming
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", policyInvalidationChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}

			var msg PolicyUpdateMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				i.logger.Warn("discarding malformed policy update",
					zap.String("payload", raw.Payload),
					zap.Error(err),
				)
				continue
			}

			i.safeInvoke(callback, msg)
		}
	}
}

func (i *RedisPolicyInvalidator) safeInvoke(callback func(PolicyUpdateMessage), msg PolicyUpdateMessage) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("policy update callback panicked",
				zap.Any("panic", r),
				zap.String("policy_name", msg.PolicyName),
			)
		}
	}()
	callback(msg)
}

func (i *RedisPolicyInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops the subscriber and, if the invalidator owns the client,
// closes the Redis connection. Waits briefly for the subscriber to drain.
func (i *RedisPolicyInvalidator) Close() error {
	i.mu.Lock()
	pubsub := i.pubsub
	i.mu.Unlock()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			i.logger.Warn("failed to close policy invalidation subscription", zap.Error(err))
		}

		select {
		case <-i.doneCh:
		case <-time.After(invalidatorCloseTimeout):
			i.logger.Warn("timed out waiting for policy invalidation subscriber to stop")
		}
	}

	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}
