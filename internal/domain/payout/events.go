package payout

import (
	"github.com/streamcart/backend/internal/domain/shared"
)

const (
	EventTypeDraftCreated = "payout.draft_created"
	EventTypeApproved     = "payout.approved"
	EventTypePaid         = "payout.paid"
	EventTypeFailed       = "payout.failed"
	EventTypeHeld         = "payout.held"
)

// DraftCreatedEvent is raised when a payout draft is assembled for a period
type DraftCreatedEvent struct {
	shared.BaseDomainEvent
	CreatorID string `json:"creator_id"`
	Currency  string `json:"currency"`
	NetCents  int64  `json:"net_cents"`
}

func NewDraftCreatedEvent(p *Payout) *DraftCreatedEvent {
	return &DraftCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDraftCreated, "Payout", p.ID),
		CreatorID:       p.CreatorID.String(),
		Currency:        string(p.Currency),
		NetCents:        p.NetCents,
	}
}

// ApprovedEvent is raised when a payout becomes eligible for processing
type ApprovedEvent struct {
	shared.BaseDomainEvent
	CreatorID string `json:"creator_id"`
	NetCents  int64  `json:"net_cents"`
}

func NewApprovedEvent(p *Payout) *ApprovedEvent {
	return &ApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApproved, "Payout", p.ID),
		CreatorID:       p.CreatorID.String(),
		NetCents:        p.NetCents,
	}
}

// PaidEvent is raised on provider confirmation
type PaidEvent struct {
	shared.BaseDomainEvent
	CreatorID   string `json:"creator_id"`
	NetCents    int64  `json:"net_cents"`
	ProviderRef string `json:"provider_ref"`
}

func NewPaidEvent(p *Payout) *PaidEvent {
	return &PaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaid, "Payout", p.ID),
		CreatorID:       p.CreatorID.String(),
		NetCents:        p.NetCents,
		ProviderRef:     p.ProviderRef,
	}
}

// FailedEvent is raised when the payment rail rejects a payout attempt
type FailedEvent struct {
	shared.BaseDomainEvent
	CreatorID string `json:"creator_id"`
	Reason    string `json:"reason"`
	Attempt   int    `json:"attempt"`
}

func NewFailedEvent(p *Payout) *FailedEvent {
	return &FailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFailed, "Payout", p.ID),
		CreatorID:       p.CreatorID.String(),
		Reason:          p.FailReason,
		Attempt:         p.Attempt,
	}
}

// HeldEvent is raised when a hold suspends payout processing
type HeldEvent struct {
	shared.BaseDomainEvent
	CreatorID string `json:"creator_id"`
	HoldType  string `json:"hold_type"`
	Reason    string `json:"reason"`
}

func NewHeldEvent(p *Payout, hold Hold) *HeldEvent {
	return &HeldEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHeld, "Payout", p.ID),
		CreatorID:       p.CreatorID.String(),
		HoldType:        string(hold.Type),
		Reason:          hold.Reason,
	}
}
