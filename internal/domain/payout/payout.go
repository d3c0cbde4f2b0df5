package payout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// Status represents the payout lifecycle state
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusProcessing      Status = "PROCESSING"
	StatusPaid            Status = "PAID"
	StatusFailed          Status = "FAILED"
	StatusCanceled        Status = "CANCELED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved,
		StatusProcessing, StatusPaid, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the payout is in a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

// HoldType classifies what triggered a payout hold
type HoldType string

const (
	HoldTypeFraud   HoldType = "FRAUD"
	HoldTypeDispute HoldType = "DISPUTE"
	HoldTypePolicy  HoldType = "POLICY"
	HoldTypeManual  HoldType = "MANUAL"
)

// IsValid checks if the hold type is valid
func (t HoldType) IsValid() bool {
	switch t {
	case HoldTypeFraud, HoldTypeDispute, HoldTypePolicy, HoldTypeManual:
		return true
	}
	return false
}

// Hold suspends payout processing. It overlays the lifecycle state: a held
// payout keeps its status but cannot advance until every hold is released.
type Hold struct {
	ID            uuid.UUID  `json:"id"`
	Type          HoldType   `json:"type"`
	Reason        string     `json:"reason"`
	AppliedBy     uuid.UUID  `json:"applied_by"`
	AppliedAt     time.Time  `json:"applied_at"`
	ReleasedBy    *uuid.UUID `json:"released_by,omitempty"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	ReleaseReason string     `json:"release_reason,omitempty"`
}

// Active returns true while the hold has not been released
func (h Hold) Active() bool {
	return h.ReleasedAt == nil
}

// Item is one ledger-derived contribution to a payout, one per order or
// commission event. Items are immutable once the payout leaves DRAFT.
type Item struct {
	ID              uuid.UUID `json:"id"`
	SourceType      string    `json:"source_type"` // e.g. "ORDER", "COMMISSION", "CLAWBACK"
	SourceID        uuid.UUID `json:"source_id"`
	Description     string    `json:"description"`
	GrossCents      int64     `json:"gross_cents"`
	FeeCents        int64     `json:"fee_cents"`
	AdjustmentCents int64     `json:"adjustment_cents"`
}

// Payout is a creator's earnings for a period. Amounts derive from ledger
// entries tagged to the creator; the payout never recomputes or overrides
// ledger truth, it is a view with approval state layered on top.
type Payout struct {
	shared.BaseAggregateRoot

	CreatorID   uuid.UUID            `json:"creator_id"`
	PeriodStart time.Time            `json:"period_start"`
	PeriodEnd   time.Time            `json:"period_end"`
	Currency    valueobject.Currency `json:"currency"`

	Status       Status `json:"status"`
	DenialReason string `json:"denial_reason,omitempty"`
	FailReason   string `json:"fail_reason,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`

	GrossCents      int64 `json:"gross_cents"`
	FeeCents        int64 `json:"fee_cents"`
	AdjustmentCents int64 `json:"adjustment_cents"`
	NetCents        int64 `json:"net_cents"`

	DestinationRef string     `json:"destination_ref"`
	ApprovalID     *uuid.UUID `json:"approval_id,omitempty"`
	LedgerTxnID    *uuid.UUID `json:"ledger_txn_id,omitempty"`
	ProviderRef    string     `json:"provider_ref,omitempty"`
	Attempt        int        `json:"attempt"`

	Items []Item `json:"items"`
	Holds []Hold `json:"holds"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// NewDraft creates a DRAFT payout for a creator and period
func NewDraft(creatorID uuid.UUID, periodStart, periodEnd time.Time, currency valueobject.Currency, destinationRef string) (*Payout, error) {
	if creatorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CREATOR", "Creator ID cannot be empty")
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Payout period cannot be zero")
	}
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Payout period end must be after start")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Payout currency cannot be empty")
	}

	p := &Payout{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CreatorID:         creatorID,
		PeriodStart:       periodStart.UTC(),
		PeriodEnd:         periodEnd.UTC(),
		Currency:          currency,
		Status:            StatusDraft,
		DestinationRef:    destinationRef,
		Items:             make([]Item, 0),
		Holds:             make([]Hold, 0),
	}

	p.AddDomainEvent(NewDraftCreatedEvent(p))

	return p, nil
}

// AddItem appends a contribution line and recomputes the totals.
// Only legal while the payout is still a draft.
func (p *Payout) AddItem(sourceType string, sourceID uuid.UUID, description string, grossCents, feeCents, adjustmentCents int64) error {
	if p.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot add items to payout in %s status", p.Status))
	}
	if sourceType == "" {
		return shared.NewDomainError("INVALID_SOURCE_TYPE", "Item source type cannot be empty")
	}
	if sourceID == uuid.Nil {
		return shared.NewDomainError("INVALID_SOURCE", "Item source ID cannot be empty")
	}

	p.Items = append(p.Items, Item{
		ID:              uuid.New(),
		SourceType:      sourceType,
		SourceID:        sourceID,
		Description:     description,
		GrossCents:      grossCents,
		FeeCents:        feeCents,
		AdjustmentCents: adjustmentCents,
	})
	p.recompute()
	p.touch()

	return nil
}

// recompute derives the totals from items: net = gross - fees + adjustments
func (p *Payout) recompute() {
	var gross, fees, adjustments int64
	for _, item := range p.Items {
		gross += item.GrossCents
		fees += item.FeeCents
		adjustments += item.AdjustmentCents
	}
	p.GrossCents = gross
	p.FeeCents = fees
	p.AdjustmentCents = adjustments
	p.NetCents = gross - fees + adjustments
}

// NetMoney returns the net amount as a Money value
func (p *Payout) NetMoney() valueobject.Money {
	return valueobject.NewMoneyFromCents(p.NetCents, p.Currency)
}

// IsHeld returns true while any hold is active
func (p *Payout) IsHeld() bool {
	for _, h := range p.Holds {
		if h.Active() {
			return true
		}
	}
	return false
}

// ActiveHolds returns the currently active holds
func (p *Payout) ActiveHolds() []Hold {
	out := make([]Hold, 0)
	for _, h := range p.Holds {
		if h.Active() {
			out = append(out, h)
		}
	}
	return out
}

// MarkPendingApproval records submission awaiting a human decision
func (p *Payout) MarkPendingApproval(approvalID uuid.UUID) error {
	if p.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit payout in %s status", p.Status))
	}
	if approvalID == uuid.Nil {
		return shared.NewDomainError("INVALID_APPROVAL", "Approval ID cannot be empty")
	}

	now := nowUTC()
	p.Status = StatusPendingApproval
	p.ApprovalID = &approvalID
	p.DenialReason = ""
	p.SubmittedAt = &now
	p.touch()

	return nil
}

// MarkApproved advances the payout to APPROVED, either directly from DRAFT
// when policy allows, or from PENDING_APPROVAL when the approval is granted
func (p *Payout) MarkApproved() error {
	if p.Status != StatusDraft && p.Status != StatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve payout in %s status", p.Status))
	}

	now := nowUTC()
	p.Status = StatusApproved
	p.DenialReason = ""
	p.ApprovedAt = &now
	if p.SubmittedAt == nil {
		p.SubmittedAt = &now
	}
	p.touch()

	p.AddDomainEvent(NewApprovedEvent(p))

	return nil
}

// MarkDenied records a policy denial. The payout stays (or returns to)
// DRAFT and retains the reason.
func (p *Payout) MarkDenied(reason string) error {
	if p.Status != StatusDraft && p.Status != StatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot deny payout in %s status", p.Status))
	}

	p.Status = StatusDraft
	p.ApprovalID = nil
	p.DenialReason = reason
	p.touch()

	return nil
}

// BeginProcessing transitions APPROVED to PROCESSING, recording the ledger
// transaction that cleared the creator liability. Only legal from APPROVED
// and while no hold is active.
func (p *Payout) BeginProcessing(ledgerTxnID uuid.UUID) error {
	if p.Status != StatusApproved {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot process payout in %s status", p.Status))
	}
	if p.IsHeld() {
		return shared.NewDomainError("PAYOUT_HELD", "Cannot process a held payout")
	}
	if ledgerTxnID == uuid.Nil {
		return shared.NewDomainError("INVALID_TXN_ID", "Ledger transaction ID cannot be empty")
	}

	p.Status = StatusProcessing
	p.LedgerTxnID = &ledgerTxnID
	p.Attempt++
	p.touch()

	return nil
}

// MarkPaid records provider confirmation
func (p *Payout) MarkPaid(providerRef string) error {
	if p.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark payout paid in %s status", p.Status))
	}

	now := nowUTC()
	p.Status = StatusPaid
	p.ProviderRef = providerRef
	p.PaidAt = &now
	p.touch()

	p.AddDomainEvent(NewPaidEvent(p))

	return nil
}

// MarkFailed records a provider failure with the reason retained. The
// payout may be retried with a fresh idempotency key, never by mutating
// the failed attempt.
func (p *Payout) MarkFailed(reason string) error {
	if p.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot fail payout in %s status", p.Status))
	}

	now := nowUTC()
	p.Status = StatusFailed
	p.FailReason = reason
	p.FailedAt = &now
	p.touch()

	p.AddDomainEvent(NewFailedEvent(p))

	return nil
}

// Retry returns a FAILED payout to APPROVED for another processing attempt
func (p *Payout) Retry() error {
	if p.Status != StatusFailed {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot retry payout in %s status", p.Status))
	}

	p.Status = StatusApproved
	p.touch()

	return nil
}

// ApplyHold suspends processing from any non-terminal state
func (p *Payout) ApplyHold(holdType HoldType, reason string, appliedBy uuid.UUID) (*Hold, error) {
	if p.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot hold payout in terminal %s status", p.Status))
	}
	if !holdType.IsValid() {
		return nil, shared.NewDomainError("INVALID_HOLD_TYPE", "Invalid hold type")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Hold reason cannot be empty")
	}
	if appliedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Hold requires the applying user")
	}

	hold := Hold{
		ID:        uuid.New(),
		Type:      holdType,
		Reason:    reason,
		AppliedBy: appliedBy,
		AppliedAt: nowUTC(),
	}
	p.Holds = append(p.Holds, hold)
	p.touch()

	p.AddDomainEvent(NewHeldEvent(p, hold))

	return &hold, nil
}

// ReleaseHold lifts a hold. The releasing user must be distinct from the
// one that applied it.
func (p *Payout) ReleaseHold(holdID, releasedBy uuid.UUID, releaseReason string) error {
	if releasedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Hold release requires a user")
	}
	if releaseReason == "" {
		return shared.NewDomainError("INVALID_REASON", "Hold release reason cannot be empty")
	}

	for i := range p.Holds {
		if p.Holds[i].ID != holdID {
			continue
		}
		if !p.Holds[i].Active() {
			return shared.NewDomainError("INVALID_STATE", "Hold is already released")
		}
		if p.Holds[i].AppliedBy == releasedBy {
			return shared.NewDomainError("SAME_AUTHORIZER",
				"Hold release requires a distinct authorization from the one that created it")
		}

		now := nowUTC()
		p.Holds[i].ReleasedBy = &releasedBy
		p.Holds[i].ReleasedAt = &now
		p.Holds[i].ReleaseReason = releaseReason
		p.touch()
		return nil
	}

	return shared.NewDomainError("NOT_FOUND", "Hold not found")
}

// Cancel terminates a payout from any non-terminal state
func (p *Payout) Cancel(reason string) error {
	if p.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel payout in terminal %s status", p.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason cannot be empty")
	}

	p.Status = StatusCanceled
	p.CancelReason = reason
	p.touch()

	return nil
}

func (p *Payout) touch() {
	p.UpdatedAt = nowUTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
