package payout

import (
	"context"

	"github.com/google/uuid"
)

// DispatchRequest is the instruction handed to a payment rail
type DispatchRequest struct {
	PayoutID       uuid.UUID `json:"payout_id"`
	DestinationRef string    `json:"destination_ref"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// DispatchResult is the rail's confirmation of an accepted dispatch
type DispatchResult struct {
	ProviderRef string `json:"provider_ref"`
}

// Rail abstracts the payment provider that moves money to a creator's
// destination. Implementations must treat the idempotency key as the
// dedup token so retries never double-pay.
type Rail interface {
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}
