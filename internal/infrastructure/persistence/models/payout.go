package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/payout"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// PayoutModel is the persistence model for the Payout aggregate root.
// The (creator_id, period_start, period_end) index backs draft idempotency.
type PayoutModel struct {
	AggregateModel
	CreatorID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_payouts_creator_period,priority:1,where:status <> 'CANCELED'"`
	PeriodStart time.Time            `gorm:"not null;uniqueIndex:idx_payouts_creator_period,priority:2"`
	PeriodEnd   time.Time            `gorm:"not null;uniqueIndex:idx_payouts_creator_period,priority:3"`
	Currency    valueobject.Currency `gorm:"type:varchar(3);not null"`

	Status       payout.Status `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DenialReason string        `gorm:"type:varchar(500)"`
	FailReason   string        `gorm:"type:varchar(500)"`
	CancelReason string        `gorm:"type:varchar(500)"`

	GrossCents      int64 `gorm:"not null;default:0"`
	FeeCents        int64 `gorm:"not null;default:0"`
	AdjustmentCents int64 `gorm:"not null;default:0"`
	NetCents        int64 `gorm:"not null;default:0"`

	DestinationRef string     `gorm:"type:varchar(200);not null"`
	ApprovalID     *uuid.UUID `gorm:"type:uuid"`
	LedgerTxnID    *uuid.UUID `gorm:"type:uuid;index"`
	ProviderRef    string     `gorm:"type:varchar(200)"`
	Attempt        int        `gorm:"not null;default:0"`

	Items []PayoutItemModel `gorm:"foreignKey:PayoutID;references:ID"`
	Holds []PayoutHoldModel `gorm:"foreignKey:PayoutID;references:ID"`

	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	PaidAt      *time.Time
	FailedAt    *time.Time
}

// TableName returns the table name for GORM
func (PayoutModel) TableName() string {
	return "payouts"
}

// PayoutItemModel is the persistence model for one ledger-derived payout line.
type PayoutItemModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	PayoutID        uuid.UUID `gorm:"type:uuid;not null;index"`
	SourceType      string    `gorm:"type:varchar(30);not null"`
	SourceID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Description     string    `gorm:"type:varchar(500)"`
	GrossCents      int64     `gorm:"not null;default:0"`
	FeeCents        int64     `gorm:"not null;default:0"`
	AdjustmentCents int64     `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PayoutItemModel) TableName() string {
	return "payout_items"
}

// PayoutHoldModel is the persistence model for a hold placed on a payout.
type PayoutHoldModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	PayoutID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type          payout.HoldType `gorm:"type:varchar(20);not null"`
	Reason        string          `gorm:"type:varchar(500);not null"`
	AppliedBy     uuid.UUID       `gorm:"type:uuid;not null"`
	AppliedAt     time.Time       `gorm:"not null"`
	ReleasedBy    *uuid.UUID      `gorm:"type:uuid"`
	ReleasedAt    *time.Time
	ReleaseReason string    `gorm:"type:varchar(500)"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PayoutHoldModel) TableName() string {
	return "payout_holds"
}

// ToDomain converts the persistence model to a domain Payout.
func (m *PayoutModel) ToDomain() *payout.Payout {
	items := make([]payout.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = payout.Item{
			ID:              it.ID,
			SourceType:      it.SourceType,
			SourceID:        it.SourceID,
			Description:     it.Description,
			GrossCents:      it.GrossCents,
			FeeCents:        it.FeeCents,
			AdjustmentCents: it.AdjustmentCents,
		}
	}
	holds := make([]payout.Hold, len(m.Holds))
	for i, h := range m.Holds {
		holds[i] = payout.Hold{
			ID:            h.ID,
			Type:          h.Type,
			Reason:        h.Reason,
			AppliedBy:     h.AppliedBy,
			AppliedAt:     h.AppliedAt,
			ReleasedBy:    h.ReleasedBy,
			ReleasedAt:    h.ReleasedAt,
			ReleaseReason: h.ReleaseReason,
		}
	}

	return &payout.Payout{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		CreatorID:         m.CreatorID,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
		Currency:          m.Currency,
		Status:            m.Status,
		DenialReason:      m.DenialReason,
		FailReason:        m.FailReason,
		CancelReason:      m.CancelReason,
		GrossCents:        m.GrossCents,
		FeeCents:          m.FeeCents,
		AdjustmentCents:   m.AdjustmentCents,
		NetCents:          m.NetCents,
		DestinationRef:    m.DestinationRef,
		ApprovalID:        m.ApprovalID,
		LedgerTxnID:       m.LedgerTxnID,
		ProviderRef:       m.ProviderRef,
		Attempt:           m.Attempt,
		Items:             items,
		Holds:             holds,
		SubmittedAt:       m.SubmittedAt,
		ApprovedAt:        m.ApprovedAt,
		PaidAt:            m.PaidAt,
		FailedAt:          m.FailedAt,
	}
}

// FromDomain populates the persistence model from a domain Payout.
func (m *PayoutModel) FromDomain(p *payout.Payout) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CreatorID = p.CreatorID
	m.PeriodStart = p.PeriodStart
	m.PeriodEnd = p.PeriodEnd
	m.Currency = p.Currency
	m.Status = p.Status
	m.DenialReason = p.DenialReason
	m.FailReason = p.FailReason
	m.CancelReason = p.CancelReason
	m.GrossCents = p.GrossCents
	m.FeeCents = p.FeeCents
	m.AdjustmentCents = p.AdjustmentCents
	m.NetCents = p.NetCents
	m.DestinationRef = p.DestinationRef
	m.ApprovalID = p.ApprovalID
	m.LedgerTxnID = p.LedgerTxnID
	m.ProviderRef = p.ProviderRef
	m.Attempt = p.Attempt
	m.SubmittedAt = p.SubmittedAt
	m.ApprovedAt = p.ApprovedAt
	m.PaidAt = p.PaidAt
	m.FailedAt = p.FailedAt

	m.Items = make([]PayoutItemModel, len(p.Items))
	for i, it := range p.Items {
		m.Items[i] = PayoutItemModel{
			ID:              it.ID,
			PayoutID:        p.ID,
			SourceType:      it.SourceType,
			SourceID:        it.SourceID,
			Description:     it.Description,
			GrossCents:      it.GrossCents,
			FeeCents:        it.FeeCents,
			AdjustmentCents: it.AdjustmentCents,
		}
	}
	m.Holds = make([]PayoutHoldModel, len(p.Holds))
	for i, h := range p.Holds {
		m.Holds[i] = PayoutHoldModel{
			ID:            h.ID,
			PayoutID:      p.ID,
			Type:          h.Type,
			Reason:        h.Reason,
			AppliedBy:     h.AppliedBy,
			AppliedAt:     h.AppliedAt,
			ReleasedBy:    h.ReleasedBy,
			ReleasedAt:    h.ReleasedAt,
			ReleaseReason: h.ReleaseReason,
		}
	}
}

// PayoutModelFromDomain creates a new persistence model from a domain Payout.
func PayoutModelFromDomain(p *payout.Payout) *PayoutModel {
	m := &PayoutModel{}
	m.FromDomain(p)
	return m
}
