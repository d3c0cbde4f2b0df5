package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// Repository persists policies with their rule sets
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	FindByName(ctx context.Context, name string) (*Policy, error)
	// FindActive returns every active policy; the governor filters by
	// scope against the action context.
	FindActive(ctx context.Context) ([]*Policy, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Policy, error)
	Save(ctx context.Context, p *Policy) error
	SaveWithLock(ctx context.Context, p *Policy) error
}

// ApprovalRepository persists approval requests
type ApprovalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Approval, error)
	FindPending(ctx context.Context, filter shared.Filter) ([]*Approval, error)
	Save(ctx context.Context, a *Approval) error
	SaveWithLock(ctx context.Context, a *Approval) error
}

// IncidentRepository persists incident records
type IncidentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Incident, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Incident, error)
	FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]*Incident, error)
	Save(ctx context.Context, i *Incident) error
}
