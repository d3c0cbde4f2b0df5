package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/dispute"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// DisputeModel is the persistence model for the Dispute aggregate root.
// The (channel, provider, provider_case_id) unique index is what makes
// webhook ingestion idempotent at the row level.
type DisputeModel struct {
	AggregateModel
	Channel        string `gorm:"type:varchar(50);not null;uniqueIndex:idx_disputes_provider_case,priority:1"`
	Provider       string `gorm:"type:varchar(50);not null;uniqueIndex:idx_disputes_provider_case,priority:2"`
	ProviderCaseID string `gorm:"type:varchar(200);not null;uniqueIndex:idx_disputes_provider_case,priority:3"`
	ProviderStatus string `gorm:"type:varchar(100)"`

	OrderID     *uuid.UUID           `gorm:"type:uuid;index"`
	LedgerTxnID *uuid.UUID           `gorm:"type:uuid"`
	AmountCents int64                `gorm:"not null"`
	Currency    valueobject.Currency `gorm:"type:varchar(3);not null"`
	ReasonCode  dispute.ReasonCode   `gorm:"type:varchar(40);not null"`

	Status           dispute.Status `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	NeedsManual      bool           `gorm:"not null;default:false;index"`
	EvidenceDeadline time.Time      `gorm:"not null;index"`
	EvidencePackID   *uuid.UUID     `gorm:"type:uuid"`

	LastProviderUpdateAt time.Time `gorm:"not null"`
	SubmittedAt          *time.Time
	ResolvedAt           *time.Time

	Timeline []DisputeTimelineModel `gorm:"foreignKey:DisputeID;references:ID"`
}

// TableName returns the table name for GORM
func (DisputeModel) TableName() string {
	return "disputes"
}

// DisputeTimelineModel is the persistence model for one dispute timeline entry.
type DisputeTimelineModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	DisputeID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	FromStatus dispute.Status `gorm:"type:varchar(20);not null"`
	ToStatus   dispute.Status `gorm:"type:varchar(20);not null"`
	Note       string         `gorm:"type:varchar(500)"`
	Actor      *uuid.UUID     `gorm:"type:uuid"`
	OccurredAt time.Time      `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DisputeTimelineModel) TableName() string {
	return "dispute_timeline"
}

// ToDomain converts the persistence model to a domain Dispute.
func (m *DisputeModel) ToDomain() *dispute.Dispute {
	timeline := make([]dispute.TimelineEntry, len(m.Timeline))
	for i, e := range m.Timeline {
		timeline[i] = dispute.TimelineEntry{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Note:       e.Note,
			Actor:      e.Actor,
			OccurredAt: e.OccurredAt,
		}
	}

	return &dispute.Dispute{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		Channel:              m.Channel,
		Provider:             m.Provider,
		ProviderCaseID:       m.ProviderCaseID,
		ProviderStatus:       m.ProviderStatus,
		OrderID:              m.OrderID,
		LedgerTxnID:          m.LedgerTxnID,
		AmountCents:          m.AmountCents,
		Currency:             m.Currency,
		ReasonCode:           m.ReasonCode,
		Status:               m.Status,
		NeedsManual:          m.NeedsManual,
		EvidenceDeadline:     m.EvidenceDeadline,
		EvidencePackID:       m.EvidencePackID,
		LastProviderUpdateAt: m.LastProviderUpdateAt,
		SubmittedAt:          m.SubmittedAt,
		ResolvedAt:           m.ResolvedAt,
		Timeline:             timeline,
	}
}

// FromDomain populates the persistence model from a domain Dispute.
func (m *DisputeModel) FromDomain(d *dispute.Dispute) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Channel = d.Channel
	m.Provider = d.Provider
	m.ProviderCaseID = d.ProviderCaseID
	m.ProviderStatus = d.ProviderStatus
	m.OrderID = d.OrderID
	m.LedgerTxnID = d.LedgerTxnID
	m.AmountCents = d.AmountCents
	m.Currency = d.Currency
	m.ReasonCode = d.ReasonCode
	m.Status = d.Status
	m.NeedsManual = d.NeedsManual
	m.EvidenceDeadline = d.EvidenceDeadline
	m.EvidencePackID = d.EvidencePackID
	m.LastProviderUpdateAt = d.LastProviderUpdateAt
	m.SubmittedAt = d.SubmittedAt
	m.ResolvedAt = d.ResolvedAt

	m.Timeline = make([]DisputeTimelineModel, len(d.Timeline))
	for i, e := range d.Timeline {
		m.Timeline[i] = DisputeTimelineModel{
			ID:         e.ID,
			DisputeID:  d.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Note:       e.Note,
			Actor:      e.Actor,
			OccurredAt: e.OccurredAt,
		}
	}
}

// DisputeModelFromDomain creates a new persistence model from a domain Dispute.
func DisputeModelFromDomain(d *dispute.Dispute) *DisputeModel {
	m := &DisputeModel{}
	m.FromDomain(d)
	return m
}

// CommunicationsJSON stores customer communications as a JSONB column.
type CommunicationsJSON []dispute.Communication

// Value implements driver.Valuer interface for GORM to store as JSONB
func (c CommunicationsJSON) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (c *CommunicationsJSON) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CommunicationsJSON", value)
	}
	return json.Unmarshal(data, c)
}

// EvidencePackModel is the persistence model for the EvidencePack aggregate root.
type EvidencePackModel struct {
	AggregateModel
	DisputeID  uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_evidence_packs_dispute"`
	ReasonCode dispute.ReasonCode `gorm:"type:varchar(40);not null"`
	Status     dispute.PackStatus `gorm:"type:varchar(20);not null;default:'BUILDING'"`

	OrderSummary   string `gorm:"type:text"`
	TrackingNumber string `gorm:"type:varchar(100)"`
	Carrier        string `gorm:"type:varchar(100)"`
	DeliveredAt    *time.Time
	DeliveryProof  string             `gorm:"type:text"`
	Communications CommunicationsJSON `gorm:"type:jsonb;default:'[]'"`
	PolicyText     string             `gorm:"type:text"`
	RefundEvidence string             `gorm:"type:text"`

	Attachments []EvidenceAttachmentModel `gorm:"foreignKey:PackID;references:ID"`

	SubmittedAt *time.Time
}

// TableName returns the table name for GORM
func (EvidencePackModel) TableName() string {
	return "evidence_packs"
}

// EvidenceAttachmentModel is the persistence model for one uploaded
// evidence file reference.
type EvidenceAttachmentModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	PackID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Filename    string    `gorm:"type:varchar(255);not null"`
	ContentType string    `gorm:"type:varchar(100);not null"`
	SizeBytes   int64     `gorm:"not null"`
	StorageKey  string    `gorm:"type:varchar(500);not null"`
	UploadedAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EvidenceAttachmentModel) TableName() string {
	return "evidence_attachments"
}

// ToDomain converts the persistence model to a domain EvidencePack.
func (m *EvidencePackModel) ToDomain() *dispute.EvidencePack {
	attachments := make([]dispute.Attachment, len(m.Attachments))
	for i, a := range m.Attachments {
		attachments[i] = dispute.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			StorageKey:  a.StorageKey,
			UploadedAt:  a.UploadedAt,
		}
	}

	return &dispute.EvidencePack{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		DisputeID:         m.DisputeID,
		ReasonCode:        m.ReasonCode,
		Status:            m.Status,
		OrderSummary:      m.OrderSummary,
		TrackingNumber:    m.TrackingNumber,
		Carrier:           m.Carrier,
		DeliveredAt:       m.DeliveredAt,
		DeliveryProof:     m.DeliveryProof,
		Communications:    []dispute.Communication(m.Communications),
		PolicyText:        m.PolicyText,
		RefundEvidence:    m.RefundEvidence,
		Attachments:       attachments,
		SubmittedAt:       m.SubmittedAt,
	}
}

// FromDomain populates the persistence model from a domain EvidencePack.
func (m *EvidencePackModel) FromDomain(p *dispute.EvidencePack) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.DisputeID = p.DisputeID
	m.ReasonCode = p.ReasonCode
	m.Status = p.Status
	m.OrderSummary = p.OrderSummary
	m.TrackingNumber = p.TrackingNumber
	m.Carrier = p.Carrier
	m.DeliveredAt = p.DeliveredAt
	m.DeliveryProof = p.DeliveryProof
	m.Communications = CommunicationsJSON(p.Communications)
	m.PolicyText = p.PolicyText
	m.RefundEvidence = p.RefundEvidence
	m.SubmittedAt = p.SubmittedAt

	m.Attachments = make([]EvidenceAttachmentModel, len(p.Attachments))
	for i, a := range p.Attachments {
		m.Attachments[i] = EvidenceAttachmentModel{
			ID:          a.ID,
			PackID:      p.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			StorageKey:  a.StorageKey,
			UploadedAt:  a.UploadedAt,
		}
	}
}

// EvidencePackModelFromDomain creates a new persistence model from a domain EvidencePack.
func EvidencePackModelFromDomain(p *dispute.EvidencePack) *EvidencePackModel {
	m := &EvidencePackModel{}
	m.FromDomain(p)
	return m
}
