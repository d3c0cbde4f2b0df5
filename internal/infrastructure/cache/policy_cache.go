package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
)

// CachedPolicyRepository decorates a policy repository with an in-process
// cache of the active policy set. The governor evaluates policies on every
// guarded operation, so FindActive is by far the hottest read path.
//
// Writes go straight through to the inner repository and invalidate the
// cache. Cross-instance invalidation is handled by RedisPolicyInvalidator.
type CachedPolicyRepository struct {
	inner policy.Repository
	ttl   time.Duration

	mu        sync.RWMutex
	active    []*policy.Policy
	fetchedAt time.Time
}

// NewCachedPolicyRepository wraps the inner repository with an active-set
// cache. A non-positive TTL disables caching entirely.
func NewCachedPolicyRepository(inner policy.Repository, ttl time.Duration) *CachedPolicyRepository {
	return &CachedPolicyRepository{inner: inner, ttl: ttl}
}

// FindActive returns the cached active policy set, refreshing from the
// inner repository when the snapshot is stale.
func (r *CachedPolicyRepository) FindActive(ctx context.Context) ([]*policy.Policy, error) {
	if r.ttl <= 0 {
		return r.inner.FindActive(ctx)
	}

	r.mu.RLock()
	if r.active != nil && time.Since(r.fetchedAt) < r.ttl {
		cached := r.active
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	policies, err := r.inner.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.active = policies
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return policies, nil
}

func (r *CachedPolicyRepository) FindByID(ctx context.Context, id uuid.UUID) (*policy.Policy, error) {
	return r.inner.FindByID(ctx, id)
}

func (r *CachedPolicyRepository) FindByName(ctx context.Context, name string) (*policy.Policy, error) {
	return r.inner.FindByName(ctx, name)
}

func (r *CachedPolicyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*policy.Policy, error) {
	return r.inner.FindAll(ctx, filter)
}

// Save persists the policy and drops the cached active set.
func (r *CachedPolicyRepository) Save(ctx context.Context, p *policy.Policy) error {
	if err := r.inner.Save(ctx, p); err != nil {
		return err
	}
	r.Invalidate()
	return nil
}

// SaveWithLock persists the policy with optimistic locking and drops the
// cached active set.
func (r *CachedPolicyRepository) SaveWithLock(ctx context.Context, p *policy.Policy) error {
	if err := r.inner.SaveWithLock(ctx, p); err != nil {
		return err
	}
	r.Invalidate()
	return nil
}

// Invalidate drops the cached active set. The next FindActive call
// refreshes from the inner repository.
func (r *CachedPolicyRepository) Invalidate() {
	r.mu.Lock()
	r.active = nil
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
}
