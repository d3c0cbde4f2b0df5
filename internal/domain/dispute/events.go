package dispute

import (
	"github.com/streamcart/backend/internal/domain/shared"
)

const (
	EventTypeOpened    = "dispute.opened"
	EventTypeSubmitted = "dispute.submitted"
	EventTypeResolved  = "dispute.resolved"
)

// OpenedEvent is raised when a new case is ingested
type OpenedEvent struct {
	shared.BaseDomainEvent
	Provider       string `json:"provider"`
	ProviderCaseID string `json:"provider_case_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	ReasonCode     string `json:"reason_code"`
}

func NewOpenedEvent(d *Dispute) *OpenedEvent {
	return &OpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOpened, "Dispute", d.ID),
		Provider:        d.Provider,
		ProviderCaseID:  d.ProviderCaseID,
		AmountCents:     d.AmountCents,
		Currency:        string(d.Currency),
		ReasonCode:      d.ReasonCode.String(),
	}
}

// SubmittedEvent is raised when evidence is handed to the provider
type SubmittedEvent struct {
	shared.BaseDomainEvent
	Provider       string `json:"provider"`
	ProviderCaseID string `json:"provider_case_id"`
}

func NewSubmittedEvent(d *Dispute) *SubmittedEvent {
	return &SubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubmitted, "Dispute", d.ID),
		Provider:        d.Provider,
		ProviderCaseID:  d.ProviderCaseID,
	}
}

// ResolvedEvent is raised when the provider decides the case
type ResolvedEvent struct {
	shared.BaseDomainEvent
	Provider       string `json:"provider"`
	ProviderCaseID string `json:"provider_case_id"`
	Outcome        string `json:"outcome"`
}

func NewResolvedEvent(d *Dispute) *ResolvedEvent {
	return &ResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeResolved, "Dispute", d.ID),
		Provider:        d.Provider,
		ProviderCaseID:  d.ProviderCaseID,
		Outcome:         d.Status.String(),
	}
}
