package dispute

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// Status represents the dispute lifecycle state
type Status string

const (
	StatusOpen             Status = "OPEN"
	StatusEvidenceRequired Status = "EVIDENCE_REQUIRED"
	StatusEvidenceBuilding Status = "EVIDENCE_BUILDING"
	StatusEvidenceReady    Status = "EVIDENCE_READY"
	StatusSubmitted        Status = "SUBMITTED"
	StatusWon              Status = "WON"
	StatusLost             Status = "LOST"
	StatusClosed           Status = "CLOSED"
	StatusNeedsManual      Status = "NEEDS_MANUAL"
	StatusCanceled         Status = "CANCELED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusEvidenceRequired, StatusEvidenceBuilding,
		StatusEvidenceReady, StatusSubmitted, StatusWon, StatusLost,
		StatusClosed, StatusNeedsManual, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the dispute is in a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// TimelineEntry is one append-only audit record of a dispute transition.
// No dispute field update is applied without a corresponding entry.
type TimelineEntry struct {
	ID         uuid.UUID  `json:"id"`
	FromStatus Status     `json:"from_status"`
	ToStatus   Status     `json:"to_status"`
	Note       string     `json:"note"`
	Actor      *uuid.UUID `json:"actor,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Dispute is a chargeback or dispute case ingested from a provider.
// Cases are deduplicated by (channel, provider, provider case ID); a
// repeated provider webhook updates the provider status instead of
// creating a new case.
type Dispute struct {
	shared.BaseAggregateRoot

	Channel        string `json:"channel"`
	Provider       string `json:"provider"`
	ProviderCaseID string `json:"provider_case_id"`
	ProviderStatus string `json:"provider_status"`

	OrderID     *uuid.UUID           `json:"order_id,omitempty"`
	LedgerTxnID *uuid.UUID           `json:"ledger_txn_id,omitempty"`
	AmountCents int64                `json:"amount_cents"`
	Currency    valueobject.Currency `json:"currency"`
	ReasonCode  ReasonCode           `json:"reason_code"`

	Status           Status     `json:"status"`
	NeedsManual      bool       `json:"needs_manual"`
	EvidenceDeadline time.Time  `json:"evidence_deadline"`
	EvidencePackID   *uuid.UUID `json:"evidence_pack_id,omitempty"`

	LastProviderUpdateAt time.Time  `json:"last_provider_update_at"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`

	Timeline []TimelineEntry `json:"timeline"`
}

// NewDispute opens a dispute case from a provider notification
func NewDispute(channel, provider, providerCaseID string, amountCents int64, currency valueobject.Currency, reason ReasonCode, evidenceDeadline time.Time) (*Dispute, error) {
	if channel == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Dispute channel cannot be empty")
	}
	if provider == "" {
		return nil, shared.NewDomainError("INVALID_PROVIDER", "Dispute provider cannot be empty")
	}
	if providerCaseID == "" {
		return nil, shared.NewDomainError("INVALID_CASE_ID", "Provider case ID cannot be empty")
	}
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Dispute amount must be positive")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Dispute currency cannot be empty")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON_CODE",
			fmt.Sprintf("Invalid dispute reason code: %s", reason))
	}
	if evidenceDeadline.IsZero() {
		return nil, shared.NewDomainError("INVALID_DEADLINE", "Evidence deadline cannot be zero")
	}

	now := nowUTC()
	d := &Dispute{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		Channel:              channel,
		Provider:             provider,
		ProviderCaseID:       providerCaseID,
		AmountCents:          amountCents,
		Currency:             currency,
		ReasonCode:           reason,
		Status:               StatusOpen,
		EvidenceDeadline:     evidenceDeadline.UTC(),
		LastProviderUpdateAt: now,
		Timeline: []TimelineEntry{{
			ID:         uuid.New(),
			FromStatus: "",
			ToStatus:   StatusOpen,
			Note:       "Case opened from provider notification",
			OccurredAt: now,
		}},
	}

	d.AddDomainEvent(NewOpenedEvent(d))

	return d, nil
}

// AmountMoney returns the disputed amount as a Money value
func (d *Dispute) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyFromCents(d.AmountCents, d.Currency)
}

// AttachOrder links the disputed order and its ledger transaction
func (d *Dispute) AttachOrder(orderID uuid.UUID, ledgerTxnID *uuid.UUID) error {
	if d.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify a terminal dispute")
	}
	if orderID == uuid.Nil {
		return shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}

	d.OrderID = &orderID
	d.LedgerTxnID = ledgerTxnID
	d.appendTimeline(d.Status, d.Status, "Order attached", nil)

	return nil
}

// ApplyProviderUpdate records a re-delivered or follow-up provider webhook
// for an existing case
func (d *Dispute) ApplyProviderUpdate(providerStatus string, at time.Time) {
	d.ProviderStatus = providerStatus
	d.LastProviderUpdateAt = at.UTC()
	d.appendTimeline(d.Status, d.Status,
		fmt.Sprintf("Provider status update: %s", providerStatus), nil)
}

// RequireEvidence marks the case as contestable
func (d *Dispute) RequireEvidence(actor *uuid.UUID) error {
	if d.Status != StatusOpen {
		return d.invalidTransition(StatusEvidenceRequired)
	}
	d.transition(StatusEvidenceRequired, "Evidence requested", actor)
	return nil
}

// BeginEvidence starts evidence assembly, linking the pack
func (d *Dispute) BeginEvidence(packID uuid.UUID, actor *uuid.UUID) error {
	if d.Status != StatusOpen && d.Status != StatusEvidenceRequired && d.Status != StatusEvidenceBuilding {
		return d.invalidTransition(StatusEvidenceBuilding)
	}
	if packID == uuid.Nil {
		return shared.NewDomainError("INVALID_PACK", "Evidence pack ID cannot be empty")
	}

	d.EvidencePackID = &packID
	if d.Status != StatusEvidenceBuilding {
		d.transition(StatusEvidenceBuilding, "Evidence assembly started", actor)
	} else {
		d.appendTimeline(d.Status, d.Status, "Evidence assembly re-run", actor)
	}
	return nil
}

// MarkEvidenceReady records that the pack satisfies the reason code's
// required fields
func (d *Dispute) MarkEvidenceReady(actor *uuid.UUID) error {
	if d.Status != StatusEvidenceBuilding {
		return d.invalidTransition(StatusEvidenceReady)
	}
	d.transition(StatusEvidenceReady, "Evidence pack complete", actor)
	return nil
}

// Submit hands the case to the provider. Only legal with a ready pack and
// before the evidence deadline; past-deadline attempts fail closed and
// flag the case for human handling instead of silently dropping it.
func (d *Dispute) Submit(now time.Time, actor *uuid.UUID) error {
	if d.Status != StatusEvidenceReady {
		return d.invalidTransition(StatusSubmitted)
	}
	if !now.Before(d.EvidenceDeadline) {
		d.NeedsManual = true
		d.transition(StatusNeedsManual, "Evidence deadline passed before submission", actor)
		return shared.NewDomainError("DEADLINE_PASSED",
			"Evidence deadline has passed; case flagged for manual handling")
	}

	at := now.UTC()
	d.SubmittedAt = &at
	d.transition(StatusSubmitted, "Evidence submitted to provider", actor)

	d.AddDomainEvent(NewSubmittedEvent(d))

	return nil
}

// MarkWon records a provider decision in our favor
func (d *Dispute) MarkWon(actor *uuid.UUID) error {
	return d.resolve(StatusWon, "Provider resolved in our favor", actor)
}

// MarkLost records a provider decision against us
func (d *Dispute) MarkLost(actor *uuid.UUID) error {
	return d.resolve(StatusLost, "Provider resolved against us", actor)
}

func (d *Dispute) resolve(to Status, note string, actor *uuid.UUID) error {
	if d.Status != StatusSubmitted && d.Status != StatusNeedsManual {
		return d.invalidTransition(to)
	}
	now := nowUTC()
	d.ResolvedAt = &now
	d.transition(to, note, actor)

	d.AddDomainEvent(NewResolvedEvent(d))

	return nil
}

// Close finalizes a resolved dispute
func (d *Dispute) Close(actor *uuid.UUID) error {
	if d.Status != StatusWon && d.Status != StatusLost {
		return d.invalidTransition(StatusClosed)
	}
	d.transition(StatusClosed, "Case closed", actor)
	return nil
}

// FlagManual routes the case to human handling from any non-terminal state
func (d *Dispute) FlagManual(reason string, actor *uuid.UUID) error {
	if d.Status.IsTerminal() {
		return d.invalidTransition(StatusNeedsManual)
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Manual flag reason cannot be empty")
	}
	d.NeedsManual = true
	d.transition(StatusNeedsManual, reason, actor)
	return nil
}

// Cancel terminates the case from any non-terminal state
func (d *Dispute) Cancel(reason string, actor *uuid.UUID) error {
	if d.Status.IsTerminal() {
		return d.invalidTransition(StatusCanceled)
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason cannot be empty")
	}
	d.transition(StatusCanceled, reason, actor)
	return nil
}

func (d *Dispute) transition(to Status, note string, actor *uuid.UUID) {
	from := d.Status
	d.Status = to
	d.appendTimeline(from, to, note, actor)
}

func (d *Dispute) appendTimeline(from, to Status, note string, actor *uuid.UUID) {
	now := nowUTC()
	d.Timeline = append(d.Timeline, TimelineEntry{
		ID:         uuid.New(),
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		Actor:      actor,
		OccurredAt: now,
	})
	d.UpdatedAt = now
}

func (d *Dispute) invalidTransition(to Status) error {
	return shared.NewDomainError("INVALID_STATE",
		fmt.Sprintf("Cannot transition dispute from %s to %s", d.Status, to))
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
