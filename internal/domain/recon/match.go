package recon

import (
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// MatchMethod describes how a reconciliation match was made
type MatchMethod string

const (
	MatchMethodExact  MatchMethod = "EXACT"
	MatchMethodFuzzy  MatchMethod = "FUZZY"
	MatchMethodManual MatchMethod = "MANUAL"
)

// IsValid checks if the match method is valid
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchMethodExact, MatchMethodFuzzy, MatchMethodManual:
		return true
	}
	return false
}

// String returns the string representation of MatchMethod
func (m MatchMethod) String() string {
	return string(m)
}

// Match asserts, with confidence, that an external transaction corresponds
// to an internal ledger transaction.
type Match struct {
	shared.BaseAggregateRoot

	ExternalTxnID    uuid.UUID   `json:"external_txn_id"`
	LedgerTxnID      uuid.UUID   `json:"ledger_txn_id"`
	Confidence       float64     `json:"confidence"` // Always within [0,1]
	Method           MatchMethod `json:"method"`
	DiscrepancyCents int64       `json:"discrepancy_cents"` // Non-zero for partial fuzzy matches
	MatchedBy        *uuid.UUID  `json:"matched_by,omitempty"`
	MatchedAt        time.Time   `json:"matched_at"`
}

// NewMatch creates an automatic (exact or fuzzy) match
func NewMatch(externalTxnID, ledgerTxnID uuid.UUID, confidence float64, method MatchMethod, discrepancyCents int64) (*Match, error) {
	if externalTxnID == uuid.Nil || ledgerTxnID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MATCH", "Match requires both transaction IDs")
	}
	if confidence < 0 || confidence > 1 {
		return nil, shared.NewDomainError("INVALID_CONFIDENCE", "Match confidence must be within [0,1]")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Invalid match method")
	}

	return &Match{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ExternalTxnID:     externalTxnID,
		LedgerTxnID:       ledgerTxnID,
		Confidence:        confidence,
		Method:            method,
		DiscrepancyCents:  discrepancyCents,
		MatchedAt:         time.Now().UTC(),
	}, nil
}

// NewManualMatch creates a user-asserted match. Manual matches always
// override automatic matching and are never re-evaluated by the matcher.
func NewManualMatch(externalTxnID, ledgerTxnID, userID uuid.UUID) (*Match, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Manual match requires the matching user")
	}
	m, err := NewMatch(externalTxnID, ledgerTxnID, 1.0, MatchMethodManual, 0)
	if err != nil {
		return nil, err
	}
	m.MatchedBy = &userID
	return m, nil
}

// IsManual returns true for user-asserted matches
func (m *Match) IsManual() bool {
	return m.Method == MatchMethodManual
}
