package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdispute "github.com/streamcart/backend/internal/application/dispute"
)

func TestInMemoryEventDeduper_Seen(t *testing.T) {
	deduper := NewInMemoryEventDeduper(1 * time.Hour)
	defer deduper.Close()

	ctx := context.Background()

	t.Run("records new event", func(t *testing.T) {
		seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_1")
		require.NoError(t, err)
		assert.False(t, seen, "new event should not be seen")
	})

	t.Run("detects redelivered event", func(t *testing.T) {
		seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_2")
		require.NoError(t, err)
		assert.False(t, seen)

		// Redelivery of the same event
		seen, err = deduper.Seen(ctx, "shop-live", "stripe", "evt_2")
		require.NoError(t, err)
		assert.True(t, seen, "redelivered event should be seen")
	})

	t.Run("same event ID from different providers is distinct", func(t *testing.T) {
		seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_3")
		require.NoError(t, err)
		assert.False(t, seen)

		seen, err = deduper.Seen(ctx, "shop-live", "paypal", "evt_3")
		require.NoError(t, err)
		assert.False(t, seen, "different provider should not collide")
	})

	t.Run("same event ID from different channels is distinct", func(t *testing.T) {
		seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_4")
		require.NoError(t, err)
		assert.False(t, seen)

		seen, err = deduper.Seen(ctx, "marketplace", "stripe", "evt_4")
		require.NoError(t, err)
		assert.False(t, seen, "different channel should not collide")
	})
}

func TestInMemoryEventDeduper_Forget(t *testing.T) {
	deduper := NewInMemoryEventDeduper(1 * time.Hour)
	defer deduper.Close()

	ctx := context.Background()

	seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_9")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, deduper.Forget(ctx, "shop-live", "stripe", "evt_9"))

	seen, err = deduper.Seen(ctx, "shop-live", "stripe", "evt_9")
	require.NoError(t, err)
	assert.False(t, seen, "a forgotten event should be processed again")
}

func TestInMemoryEventDeduper_Expiration(t *testing.T) {
	deduper := NewInMemoryEventDeduper(10 * time.Millisecond)
	defer deduper.Close()

	ctx := context.Background()

	seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_exp")
	require.NoError(t, err)
	assert.False(t, seen)

	// Wait for expiration
	time.Sleep(20 * time.Millisecond)

	seen, err = deduper.Seen(ctx, "shop-live", "stripe", "evt_exp")
	require.NoError(t, err)
	assert.False(t, seen, "expired event should be treated as new")
}

func TestInMemoryEventDeduper_RemoveExpired(t *testing.T) {
	deduper := NewInMemoryEventDeduper(10 * time.Millisecond)
	defer deduper.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := deduper.Seen(ctx, "shop-live", "stripe", fmt.Sprintf("evt_%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, deduper.Size())

	time.Sleep(20 * time.Millisecond)
	deduper.removeExpired()

	assert.Equal(t, 0, deduper.Size(), "expired entries should be swept")
}

func TestInMemoryEventDeduper_ConcurrentAccess(t *testing.T) {
	deduper := NewInMemoryEventDeduper(1 * time.Hour)
	defer deduper.Close()

	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0

	// All goroutines race on the same event; exactly one should win
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := deduper.Seen(ctx, "shop-live", "stripe", "evt_race")
			require.NoError(t, err)
			if !seen {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh, "exactly one delivery should be treated as new")
}

func TestInMemoryEventDeduper_Close(t *testing.T) {
	deduper := NewInMemoryEventDeduper(1 * time.Hour)

	require.NoError(t, deduper.Close())
	// Close is idempotent
	require.NoError(t, deduper.Close())
}

func TestEventDeduper_InterfaceCompliance(t *testing.T) {
	var _ appdispute.EventDeduper = (*InMemoryEventDeduper)(nil)
	var _ appdispute.EventDeduper = (*RedisEventDeduper)(nil)
}
