package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// Filter narrows dispute queries
type Filter struct {
	shared.Filter
	Provider    string
	Status      *Status
	NeedsManual *bool
}

// Repository persists disputes with their timelines
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Dispute, error)
	// FindByProviderCase backs ingestion dedup on (channel, provider, case).
	FindByProviderCase(ctx context.Context, channel, provider, providerCaseID string) (*Dispute, error)
	FindAll(ctx context.Context, filter Filter) ([]*Dispute, error)
	// FindApproachingDeadline lists non-terminal disputes whose evidence
	// deadline falls before the cutoff.
	FindApproachingDeadline(ctx context.Context, cutoff time.Time) ([]*Dispute, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Save(ctx context.Context, d *Dispute) error
	SaveWithLock(ctx context.Context, d *Dispute) error
}

// EvidencePackRepository persists evidence packs
type EvidencePackRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*EvidencePack, error)
	FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*EvidencePack, error)
	Save(ctx context.Context, p *EvidencePack) error
}
