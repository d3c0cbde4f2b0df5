package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
)

// stubPolicyRepository counts calls so tests can observe cache hits.
type stubPolicyRepository struct {
	mu              sync.Mutex
	findActiveCalls int
	active          []*policy.Policy
	saveCalls       int
}

func (s *stubPolicyRepository) FindByID(_ context.Context, _ uuid.UUID) (*policy.Policy, error) {
	return nil, shared.ErrNotFound
}

func (s *stubPolicyRepository) FindByName(_ context.Context, _ string) (*policy.Policy, error) {
	return nil, shared.ErrNotFound
}

func (s *stubPolicyRepository) FindActive(_ context.Context) ([]*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findActiveCalls++
	return s.active, nil
}

func (s *stubPolicyRepository) FindAll(_ context.Context, _ shared.Filter) ([]*policy.Policy, error) {
	return s.active, nil
}

func (s *stubPolicyRepository) Save(_ context.Context, _ *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	return nil
}

func (s *stubPolicyRepository) SaveWithLock(_ context.Context, _ *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	return nil
}

func (s *stubPolicyRepository) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActiveCalls
}

func activePolicyFixture(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.NewPolicy("payout-approval-threshold", "Require approval above threshold",
		policy.ScopeWorkflow, "payout")
	require.NoError(t, err)
	return p
}

func TestCachedPolicyRepository_FindActive(t *testing.T) {
	ctx := context.Background()

	t.Run("caches active set within TTL", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{activePolicyFixture(t)}}
		repo := NewCachedPolicyRepository(inner, 1*time.Minute)

		first, err := repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Len(t, first, 1)

		second, err := repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Len(t, second, 1)

		assert.Equal(t, 1, inner.calls(), "second read should hit the cache")
	})

	t.Run("refreshes after TTL expires", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{activePolicyFixture(t)}}
		repo := NewCachedPolicyRepository(inner, 10*time.Millisecond)

		_, err := repo.FindActive(ctx)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		_, err = repo.FindActive(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, inner.calls(), "stale snapshot should be refreshed")
	})

	t.Run("zero TTL disables caching", func(t *testing.T) {
		inner := &stubPolicyRepository{}
		repo := NewCachedPolicyRepository(inner, 0)

		_, err := repo.FindActive(ctx)
		require.NoError(t, err)
		_, err = repo.FindActive(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, inner.calls())
	})

	t.Run("caches empty active set", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{}}
		repo := NewCachedPolicyRepository(inner, 1*time.Minute)

		first, err := repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Empty(t, first)

		_, err = repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, inner.calls(), "empty set is still a valid snapshot")
	})
}

func TestCachedPolicyRepository_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("save drops the cached set", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{activePolicyFixture(t)}}
		repo := NewCachedPolicyRepository(inner, 1*time.Minute)

		_, err := repo.FindActive(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, activePolicyFixture(t)))

		_, err = repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.calls(), "save should invalidate the cache")
	})

	t.Run("save with lock drops the cached set", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{activePolicyFixture(t)}}
		repo := NewCachedPolicyRepository(inner, 1*time.Minute)

		_, err := repo.FindActive(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.SaveWithLock(ctx, activePolicyFixture(t)))

		_, err = repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.calls())
	})

	t.Run("explicit invalidate drops the cached set", func(t *testing.T) {
		inner := &stubPolicyRepository{active: []*policy.Policy{activePolicyFixture(t)}}
		repo := NewCachedPolicyRepository(inner, 1*time.Minute)

		_, err := repo.FindActive(ctx)
		require.NoError(t, err)

		repo.Invalidate()

		_, err = repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.calls())
	})
}

func TestCachedPolicyRepository_InterfaceCompliance(t *testing.T) {
	var _ policy.Repository = (*CachedPolicyRepository)(nil)
}
