package policy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// ApprovalStatus is the decision state of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusGranted  ApprovalStatus = "GRANTED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusExpired  ApprovalStatus = "EXPIRED"
)

// IsValid checks if the approval status is valid
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusGranted, ApprovalStatusRejected, ApprovalStatusExpired:
		return true
	}
	return false
}

// Approval is a pending human decision with an expiry. It is an
// append-only audit record: never edited in place, only transitioned by
// appending a decision. An approval past its expiry counts as a denial,
// and a granted approval is consumed exactly once; the action re-runs
// the policy check rather than resuming automatically.
type Approval struct {
	shared.BaseAggregateRoot

	Action      string         `json:"action"`
	PolicyID    uuid.UUID      `json:"policy_id"`
	RuleID      uuid.UUID      `json:"rule_id"`
	SubjectID   *uuid.UUID     `json:"subject_id,omitempty"`
	ContextJSON string         `json:"context_json"`
	Status      ApprovalStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	DecidedBy   *uuid.UUID     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Consumed    bool           `json:"consumed"`
	ConsumedAt  *time.Time     `json:"consumed_at,omitempty"`
}

// NewApproval opens a pending approval request
func NewApproval(action string, policyID, ruleID uuid.UUID, subjectID *uuid.UUID, contextJSON string, expiresAt time.Time) (*Approval, error) {
	if action == "" {
		return nil, shared.NewDomainError("INVALID_ACTION", "Approval action cannot be empty")
	}
	if policyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_POLICY", "Approval policy ID cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_EXPIRY", "Approval expiry cannot be zero")
	}

	return &Approval{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Action:            action,
		PolicyID:          policyID,
		RuleID:            ruleID,
		SubjectID:         subjectID,
		ContextJSON:       contextJSON,
		Status:            ApprovalStatusPending,
		ExpiresAt:         expiresAt.UTC(),
	}, nil
}

// IsExpired reports whether the expiry has passed
func (a *Approval) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Grant records a human approval. Granting past the expiry is refused;
// the approval is marked expired instead.
func (a *Approval) Grant(decidedBy uuid.UUID, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return a.invalidDecision()
	}
	if a.IsExpired(now) {
		a.markExpired(now)
		return shared.NewDomainError("APPROVAL_EXPIRED", "Approval has expired and counts as denied")
	}
	if decidedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Approval decision requires a user")
	}

	at := now.UTC()
	a.Status = ApprovalStatusGranted
	a.DecidedBy = &decidedBy
	a.DecidedAt = &at
	a.UpdatedAt = at
	return nil
}

// Reject records a human denial with a reason
func (a *Approval) Reject(decidedBy uuid.UUID, reason string, now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return a.invalidDecision()
	}
	if decidedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Approval decision requires a user")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Rejection reason cannot be empty")
	}

	at := now.UTC()
	a.Status = ApprovalStatusRejected
	a.Reason = reason
	a.DecidedBy = &decidedBy
	a.DecidedAt = &at
	a.UpdatedAt = at
	return nil
}

// Expire transitions a pending approval past its deadline
func (a *Approval) Expire(now time.Time) error {
	if a.Status != ApprovalStatusPending {
		return a.invalidDecision()
	}
	if !a.IsExpired(now) {
		return shared.NewDomainError("NOT_EXPIRED", "Approval has not reached its expiry")
	}
	a.markExpired(now)
	return nil
}

// Consume marks a granted, unexpired approval as used. Each grant backs
// at most one execution of the governed action.
func (a *Approval) Consume(now time.Time) error {
	if a.Status != ApprovalStatusGranted {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot consume approval in %s status", a.Status))
	}
	if a.Consumed {
		return shared.NewDomainError("APPROVAL_CONSUMED", "Approval has already been consumed")
	}
	if a.IsExpired(now) {
		return shared.NewDomainError("APPROVAL_EXPIRED", "Approval has expired and counts as denied")
	}

	at := now.UTC()
	a.Consumed = true
	a.ConsumedAt = &at
	a.UpdatedAt = at
	return nil
}

func (a *Approval) markExpired(now time.Time) {
	at := now.UTC()
	a.Status = ApprovalStatusExpired
	a.DecidedAt = &at
	a.UpdatedAt = at
}

func (a *Approval) invalidDecision() error {
	return shared.NewDomainError("INVALID_STATE",
		fmt.Sprintf("Approval is already decided: %s", a.Status))
}
