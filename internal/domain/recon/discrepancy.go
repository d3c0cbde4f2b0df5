package recon

import (
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// DiscrepancyKind classifies why a discrepancy was raised
type DiscrepancyKind string

const (
	// DiscrepancyKindAmbiguousMatch means multiple exact candidates were
	// found in the window; auto-picking is forbidden
	DiscrepancyKindAmbiguousMatch DiscrepancyKind = "AMBIGUOUS_MATCH"
	// DiscrepancyKindAgedUnmatched means an external transaction stayed
	// unmatched past the configured age
	DiscrepancyKindAgedUnmatched DiscrepancyKind = "AGED_UNMATCHED"
	// DiscrepancyKindPartialAmount means a fuzzy match carried a non-zero
	// amount delta that needs review
	DiscrepancyKindPartialAmount DiscrepancyKind = "PARTIAL_AMOUNT"
)

// IsValid checks if the discrepancy kind is valid
func (k DiscrepancyKind) IsValid() bool {
	switch k {
	case DiscrepancyKindAmbiguousMatch, DiscrepancyKindAgedUnmatched, DiscrepancyKindPartialAmount:
		return true
	}
	return false
}

// DiscrepancySeverity grades how urgently a discrepancy needs resolution
type DiscrepancySeverity string

const (
	SeverityLow      DiscrepancySeverity = "LOW"
	SeverityMedium   DiscrepancySeverity = "MEDIUM"
	SeverityHigh     DiscrepancySeverity = "HIGH"
	SeverityCritical DiscrepancySeverity = "CRITICAL"
)

// Severity thresholds in minor units
const (
	severityMediumCents   = 10_000    // $100
	severityHighCents     = 100_000   // $1,000
	severityCriticalCents = 1_000_000 // $10,000
)

// SeverityForAmount scales severity by the absolute amount at stake
func SeverityForAmount(amountCents int64) DiscrepancySeverity {
	abs := amountCents
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= severityCriticalCents:
		return SeverityCritical
	case abs >= severityHighCents:
		return SeverityHigh
	case abs >= severityMediumCents:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Escalate raises the severity one step, capped at critical. Aging
// discrepancies escalate rather than silently dropping.
func (s DiscrepancySeverity) Escalate() DiscrepancySeverity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// DiscrepancyStatus is the resolution state of a discrepancy
type DiscrepancyStatus string

const (
	DiscrepancyStatusOpen     DiscrepancyStatus = "OPEN"
	DiscrepancyStatusResolved DiscrepancyStatus = "RESOLVED"
)

// Discrepancy is an unresolved mismatch between expected and reported
// money movement, requiring human resolution. It is recorded, not thrown.
type Discrepancy struct {
	shared.BaseAggregateRoot

	ExternalTxnID uuid.UUID           `json:"external_txn_id"`
	Kind          DiscrepancyKind     `json:"kind"`
	Severity      DiscrepancySeverity `json:"severity"`
	Status        DiscrepancyStatus   `json:"status"`
	AmountCents   int64               `json:"amount_cents"`
	Details       string              `json:"details"`
	ResolvedBy    *uuid.UUID          `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
	Resolution    string              `json:"resolution"`
}

// NewDiscrepancy records a discrepancy for an external transaction
func NewDiscrepancy(externalTxnID uuid.UUID, kind DiscrepancyKind, amountCents int64, details string) (*Discrepancy, error) {
	if externalTxnID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_TXN", "Discrepancy requires an external transaction")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Invalid discrepancy kind")
	}

	return &Discrepancy{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ExternalTxnID:     externalTxnID,
		Kind:              kind,
		Severity:          SeverityForAmount(amountCents),
		Status:            DiscrepancyStatusOpen,
		AmountCents:       amountCents,
		Details:           details,
	}, nil
}

// EscalateSeverity bumps severity for an aged, still-open discrepancy
func (d *Discrepancy) EscalateSeverity() {
	if d.Status != DiscrepancyStatusOpen {
		return
	}
	d.Severity = d.Severity.Escalate()
	d.UpdatedAt = time.Now().UTC()
}

// Resolve closes the discrepancy with an explanation
func (d *Discrepancy) Resolve(userID uuid.UUID, resolution string) error {
	if d.Status == DiscrepancyStatusResolved {
		return shared.NewDomainError("INVALID_STATE", "Discrepancy is already resolved")
	}
	if userID == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Resolution requires a user")
	}
	if resolution == "" {
		return shared.NewDomainError("INVALID_RESOLUTION", "Resolution text cannot be empty")
	}

	now := time.Now().UTC()
	d.Status = DiscrepancyStatusResolved
	d.ResolvedBy = &userID
	d.ResolvedAt = &now
	d.Resolution = resolution
	d.UpdatedAt = now

	return nil
}
