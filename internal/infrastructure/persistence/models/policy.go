package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/policy"
)

// RuleValueJSON stores a rule's typed comparison operand as a JSONB column.
type RuleValueJSON policy.Value

// Value implements driver.Valuer interface for GORM to store as JSONB
func (v RuleValueJSON) Value() (driver.Value, error) {
	return json.Marshal(policy.Value(v))
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (v *RuleValueJSON) Scan(value interface{}) error {
	if value == nil {
		*v = RuleValueJSON{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("cannot scan %T into RuleValueJSON", value)
	}
	return json.Unmarshal(data, (*policy.Value)(v))
}

// PolicyModel is the persistence model for the Policy aggregate root.
type PolicyModel struct {
	AggregateModel
	Name        string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_policies_name"`
	Description string       `gorm:"type:varchar(500)"`
	Scope       policy.Scope `gorm:"type:varchar(20);not null;index"`
	ScopeRef    string       `gorm:"type:varchar(100)"`
	Active      bool         `gorm:"not null;default:true;index"`
	Rules       []RuleModel  `gorm:"foreignKey:PolicyID;references:ID"`
}

// TableName returns the table name for GORM
func (PolicyModel) TableName() string {
	return "policies"
}

// RuleModel is the persistence model for one policy rule.
type RuleModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	PolicyID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"type:varchar(500)"`
	Effect      policy.Effect   `gorm:"type:varchar(30);not null"`
	FieldPath   string          `gorm:"type:varchar(100);not null"`
	Operator    policy.Operator `gorm:"type:varchar(20);not null"`
	RuleValue   RuleValueJSON   `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RuleModel) TableName() string {
	return "policy_rules"
}

// ToDomain converts the persistence model to a domain Policy.
func (m *PolicyModel) ToDomain() *policy.Policy {
	rules := make([]policy.Rule, len(m.Rules))
	for i, r := range m.Rules {
		rules[i] = policy.Rule{
			ID:          r.ID,
			Description: r.Description,
			Effect:      r.Effect,
			FieldPath:   r.FieldPath,
			Operator:    r.Operator,
			Value:       policy.Value(r.RuleValue),
		}
	}

	return &policy.Policy{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		Scope:             m.Scope,
		ScopeRef:          m.ScopeRef,
		Active:            m.Active,
		Rules:             rules,
	}
}

// FromDomain populates the persistence model from a domain Policy.
func (m *PolicyModel) FromDomain(p *policy.Policy) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.Description = p.Description
	m.Scope = p.Scope
	m.ScopeRef = p.ScopeRef
	m.Active = p.Active

	m.Rules = make([]RuleModel, len(p.Rules))
	for i, r := range p.Rules {
		m.Rules[i] = RuleModel{
			ID:          r.ID,
			PolicyID:    p.ID,
			Description: r.Description,
			Effect:      r.Effect,
			FieldPath:   r.FieldPath,
			Operator:    r.Operator,
			RuleValue:   RuleValueJSON(r.Value),
		}
	}
}

// PolicyModelFromDomain creates a new persistence model from a domain Policy.
func PolicyModelFromDomain(p *policy.Policy) *PolicyModel {
	m := &PolicyModel{}
	m.FromDomain(p)
	return m
}

// ApprovalModel is the persistence model for the Approval aggregate root.
type ApprovalModel struct {
	AggregateModel
	Action      string                `gorm:"type:varchar(100);not null;index"`
	PolicyID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	RuleID      uuid.UUID             `gorm:"type:uuid;not null"`
	SubjectID   *uuid.UUID            `gorm:"type:uuid;index"`
	ContextJSON string                `gorm:"type:jsonb;not null;default:'{}'"`
	Status      policy.ApprovalStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Reason      string                `gorm:"type:varchar(500)"`
	DecidedBy   *uuid.UUID            `gorm:"type:uuid"`
	DecidedAt   *time.Time
	ExpiresAt   time.Time `gorm:"not null;index"`
	Consumed    bool      `gorm:"not null;default:false"`
	ConsumedAt  *time.Time
}

// TableName returns the table name for GORM
func (ApprovalModel) TableName() string {
	return "approvals"
}

// ToDomain converts the persistence model to a domain Approval.
func (m *ApprovalModel) ToDomain() *policy.Approval {
	return &policy.Approval{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Action:            m.Action,
		PolicyID:          m.PolicyID,
		RuleID:            m.RuleID,
		SubjectID:         m.SubjectID,
		ContextJSON:       m.ContextJSON,
		Status:            m.Status,
		Reason:            m.Reason,
		DecidedBy:         m.DecidedBy,
		DecidedAt:         m.DecidedAt,
		ExpiresAt:         m.ExpiresAt,
		Consumed:          m.Consumed,
		ConsumedAt:        m.ConsumedAt,
	}
}

// FromDomain populates the persistence model from a domain Approval.
func (m *ApprovalModel) FromDomain(a *policy.Approval) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Action = a.Action
	m.PolicyID = a.PolicyID
	m.RuleID = a.RuleID
	m.SubjectID = a.SubjectID
	m.ContextJSON = a.ContextJSON
	m.Status = a.Status
	m.Reason = a.Reason
	m.DecidedBy = a.DecidedBy
	m.DecidedAt = a.DecidedAt
	m.ExpiresAt = a.ExpiresAt
	m.Consumed = a.Consumed
	m.ConsumedAt = a.ConsumedAt
}

// ApprovalModelFromDomain creates a new persistence model from a domain Approval.
func ApprovalModelFromDomain(a *policy.Approval) *ApprovalModel {
	m := &ApprovalModel{}
	m.FromDomain(a)
	return m
}

// IncidentModel is the persistence model for the Incident aggregate root.
type IncidentModel struct {
	AggregateModel
	Kind        policy.IncidentKind     `gorm:"type:varchar(30);not null;index"`
	Severity    policy.IncidentSeverity `gorm:"type:varchar(20);not null;index"`
	Action      string                  `gorm:"type:varchar(100);not null"`
	Reason      string                  `gorm:"type:varchar(500);not null"`
	PolicyID    *uuid.UUID              `gorm:"type:uuid"`
	RuleID      *uuid.UUID              `gorm:"type:uuid"`
	SubjectID   *uuid.UUID              `gorm:"type:uuid;index"`
	ContextJSON string                  `gorm:"type:jsonb;not null;default:'{}'"`

	AcknowledgedBy *uuid.UUID `gorm:"type:uuid"`
	AcknowledgedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (IncidentModel) TableName() string {
	return "incidents"
}

// ToDomain converts the persistence model to a domain Incident.
func (m *IncidentModel) ToDomain() *policy.Incident {
	return &policy.Incident{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Kind:              m.Kind,
		Severity:          m.Severity,
		Action:            m.Action,
		Reason:            m.Reason,
		PolicyID:          m.PolicyID,
		RuleID:            m.RuleID,
		SubjectID:         m.SubjectID,
		ContextJSON:       m.ContextJSON,
		AcknowledgedBy:    m.AcknowledgedBy,
		AcknowledgedAt:    m.AcknowledgedAt,
	}
}

// FromDomain populates the persistence model from a domain Incident.
func (m *IncidentModel) FromDomain(i *policy.Incident) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.Kind = i.Kind
	m.Severity = i.Severity
	m.Action = i.Action
	m.Reason = i.Reason
	m.PolicyID = i.PolicyID
	m.RuleID = i.RuleID
	m.SubjectID = i.SubjectID
	m.ContextJSON = i.ContextJSON
	m.AcknowledgedBy = i.AcknowledgedBy
	m.AcknowledgedAt = i.AcknowledgedAt
}

// IncidentModelFromDomain creates a new persistence model from a domain Incident.
func IncidentModelFromDomain(i *policy.Incident) *IncidentModel {
	m := &IncidentModel{}
	m.FromDomain(i)
	return m
}
