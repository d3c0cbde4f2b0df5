package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryEventDeduper is an in-process event deduper for single-instance
// deployments and tests. State is not shared across processes, so
// redeliveries routed to a different instance will not be detected.
type InMemoryEventDeduper struct {
	mu        sync.RWMutex
	seen      map[string]time.Time
	ttl       time.Duration
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewInMemoryEventDeduper creates an in-memory deduper with a background
// cleanup loop for expired entries.
func NewInMemoryEventDeduper(ttl time.Duration) *InMemoryEventDeduper {
	if ttl <= 0 {
		ttl = defaultEventDedupTTL
	}

	d := &InMemoryEventDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	go d.cleanupLoop()

	return d
}

// Seen reports whether the event was already recorded, and records it if not.
func (d *InMemoryEventDeduper) Seen(_ context.Context, channel, provider, eventID string) (bool, error) {
	key := eventDedupKey(channel, provider, eventID)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiresAt, ok := d.seen[key]; ok && now.Before(expiresAt) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	return false, nil
}

// Forget releases a recorded event so a redelivery is processed again.
func (d *InMemoryEventDeduper) Forget(_ context.Context, channel, provider, eventID string) error {
	key := eventDedupKey(channel, provider, eventID)

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, key)
	return nil
}

// Size returns the number of tracked events, including not-yet-swept expired ones.
func (d *InMemoryEventDeduper) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

// Close stops the cleanup loop.
func (d *InMemoryEventDeduper) Close() error {
	d.closeOnce.Do(func() {
		close(d.stopCh)
	})
	return nil
}

func (d *InMemoryEventDeduper) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.removeExpired()
		case <-d.stopCh:
			return
		}
	}
}

func (d *InMemoryEventDeduper) removeExpired() {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, expiresAt := range d.seen {
		if now.After(expiresAt) {
			delete(d.seen, key)
		}
	}
}
