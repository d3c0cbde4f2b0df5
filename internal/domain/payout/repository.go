package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// Filter narrows payout queries
type Filter struct {
	shared.Filter
	CreatorID *uuid.UUID
	Status    *Status
	HeldOnly  bool
}

// Repository persists payouts with their items and holds
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	// FindByCreatorAndPeriod backs draft idempotency: at most one non-canceled
	// payout exists per creator and period.
	FindByCreatorAndPeriod(ctx context.Context, creatorID uuid.UUID, periodStart, periodEnd time.Time) (*Payout, error)
	FindAll(ctx context.Context, filter Filter) ([]*Payout, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Save(ctx context.Context, p *Payout) error
	// SaveWithLock persists with an optimistic version check and returns
	// a concurrency conflict error when the version moved.
	SaveWithLock(ctx context.Context, p *Payout) error
}
