package policy

import (
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// IncidentKind classifies what the recorded violation is
type IncidentKind string

const (
	IncidentPolicyViolation   IncidentKind = "POLICY_VIOLATION"
	IncidentLedgerImbalance   IncidentKind = "LEDGER_IMBALANCE"
	IncidentInvalidTransition IncidentKind = "INVALID_TRANSITION"
	IncidentEvaluationFailure IncidentKind = "EVALUATION_FAILURE"
)

// IsValid checks if the incident kind is valid
func (k IncidentKind) IsValid() bool {
	switch k {
	case IncidentPolicyViolation, IncidentLedgerImbalance,
		IncidentInvalidTransition, IncidentEvaluationFailure:
		return true
	}
	return false
}

// IncidentSeverity grades the urgency of an incident
type IncidentSeverity string

const (
	IncidentSeverityWarning  IncidentSeverity = "WARNING"
	IncidentSeverityCritical IncidentSeverity = "CRITICAL"
)

// Incident is a recorded violation. It is append-only: the only
// permitted mutation is acknowledgement, which appends who and when.
type Incident struct {
	shared.BaseAggregateRoot

	Kind        IncidentKind     `json:"kind"`
	Severity    IncidentSeverity `json:"severity"`
	Action      string           `json:"action"`
	Reason      string           `json:"reason"`
	PolicyID    *uuid.UUID       `json:"policy_id,omitempty"`
	RuleID      *uuid.UUID       `json:"rule_id,omitempty"`
	SubjectID   *uuid.UUID       `json:"subject_id,omitempty"`
	ContextJSON string           `json:"context_json"`

	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// NewIncident records a violation
func NewIncident(kind IncidentKind, severity IncidentSeverity, action, reason, contextJSON string) (*Incident, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Invalid incident kind")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Incident reason cannot be empty")
	}

	return &Incident{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		Severity:          severity,
		Action:            action,
		Reason:            reason,
		ContextJSON:       contextJSON,
	}, nil
}

// WithPolicy links the policy and rule that raised the incident
func (i *Incident) WithPolicy(policyID, ruleID uuid.UUID) *Incident {
	i.PolicyID = &policyID
	i.RuleID = &ruleID
	return i
}

// WithSubject links the affected aggregate
func (i *Incident) WithSubject(subjectID uuid.UUID) *Incident {
	i.SubjectID = &subjectID
	return i
}

// Acknowledge records the human who took ownership of the incident
func (i *Incident) Acknowledge(userID uuid.UUID, now time.Time) error {
	if i.AcknowledgedAt != nil {
		return shared.NewDomainError("ALREADY_ACKNOWLEDGED", "Incident is already acknowledged")
	}
	if userID == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Acknowledgement requires a user")
	}

	at := now.UTC()
	i.AcknowledgedBy = &userID
	i.AcknowledgedAt = &at
	i.UpdatedAt = at
	return nil
}
