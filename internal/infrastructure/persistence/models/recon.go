package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// ExternalTransactionModel is the persistence model for the external
// transaction feed. The (source, external_id) unique index is what makes
// ingestion dedup-on-conflict.
type ExternalTransactionModel struct {
	AggregateModel
	Source      string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_external_txn_source_key,priority:1"`
	ExternalID  string               `gorm:"type:varchar(200);not null;uniqueIndex:idx_external_txn_source_key,priority:2"`
	AmountCents int64                `gorm:"not null"`
	Currency    valueobject.Currency `gorm:"type:varchar(3);not null"`
	OccurredAt  time.Time            `gorm:"not null;index"`
	Reference   string               `gorm:"type:varchar(500)"`
	Raw         string               `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ExternalTransactionModel) TableName() string {
	return "external_transactions"
}

// ToDomain converts the persistence model to a domain ExternalTransaction.
func (m *ExternalTransactionModel) ToDomain() *recon.ExternalTransaction {
	return &recon.ExternalTransaction{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Source:            m.Source,
		ExternalID:        m.ExternalID,
		AmountCents:       m.AmountCents,
		Currency:          m.Currency,
		OccurredAt:        m.OccurredAt,
		Reference:         m.Reference,
		Raw:               m.Raw,
	}
}

// FromDomain populates the persistence model from a domain ExternalTransaction.
func (m *ExternalTransactionModel) FromDomain(t *recon.ExternalTransaction) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.Source = t.Source
	m.ExternalID = t.ExternalID
	m.AmountCents = t.AmountCents
	m.Currency = t.Currency
	m.OccurredAt = t.OccurredAt
	m.Reference = t.Reference
	m.Raw = t.Raw
}

// ExternalTransactionModelFromDomain creates a new persistence model from a domain ExternalTransaction.
func ExternalTransactionModelFromDomain(t *recon.ExternalTransaction) *ExternalTransactionModel {
	m := &ExternalTransactionModel{}
	m.FromDomain(t)
	return m
}

// MatchModel is the persistence model for reconciliation matches. The
// unique index on external_txn_id enforces at most one match per external
// transaction.
type MatchModel struct {
	AggregateModel
	ExternalTxnID    uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_matches_external_txn"`
	LedgerTxnID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	Confidence       float64           `gorm:"not null"`
	Method           recon.MatchMethod `gorm:"type:varchar(20);not null"`
	DiscrepancyCents int64             `gorm:"not null;default:0"`
	MatchedBy        *uuid.UUID        `gorm:"type:uuid"`
	MatchedAt        time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MatchModel) TableName() string {
	return "recon_matches"
}

// ToDomain converts the persistence model to a domain Match.
func (m *MatchModel) ToDomain() *recon.Match {
	return &recon.Match{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ExternalTxnID:     m.ExternalTxnID,
		LedgerTxnID:       m.LedgerTxnID,
		Confidence:        m.Confidence,
		Method:            m.Method,
		DiscrepancyCents:  m.DiscrepancyCents,
		MatchedBy:         m.MatchedBy,
		MatchedAt:         m.MatchedAt,
	}
}

// FromDomain populates the persistence model from a domain Match.
func (m *MatchModel) FromDomain(match *recon.Match) {
	m.FromDomainAggregateRoot(match.BaseAggregateRoot)
	m.ExternalTxnID = match.ExternalTxnID
	m.LedgerTxnID = match.LedgerTxnID
	m.Confidence = match.Confidence
	m.Method = match.Method
	m.DiscrepancyCents = match.DiscrepancyCents
	m.MatchedBy = match.MatchedBy
	m.MatchedAt = match.MatchedAt
}

// MatchModelFromDomain creates a new persistence model from a domain Match.
func MatchModelFromDomain(match *recon.Match) *MatchModel {
	m := &MatchModel{}
	m.FromDomain(match)
	return m
}

// DiscrepancyModel is the persistence model for reconciliation discrepancies.
type DiscrepancyModel struct {
	AggregateModel
	ExternalTxnID uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Kind          recon.DiscrepancyKind     `gorm:"type:varchar(30);not null;index"`
	Severity      recon.DiscrepancySeverity `gorm:"type:varchar(20);not null;index"`
	Status        recon.DiscrepancyStatus   `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	AmountCents   int64                     `gorm:"not null"`
	Details       string                    `gorm:"type:text"`
	ResolvedBy    *uuid.UUID                `gorm:"type:uuid"`
	ResolvedAt    *time.Time
	Resolution    string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (DiscrepancyModel) TableName() string {
	return "recon_discrepancies"
}

// ToDomain converts the persistence model to a domain Discrepancy.
func (m *DiscrepancyModel) ToDomain() *recon.Discrepancy {
	return &recon.Discrepancy{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ExternalTxnID:     m.ExternalTxnID,
		Kind:              m.Kind,
		Severity:          m.Severity,
		Status:            m.Status,
		AmountCents:       m.AmountCents,
		Details:           m.Details,
		ResolvedBy:        m.ResolvedBy,
		ResolvedAt:        m.ResolvedAt,
		Resolution:        m.Resolution,
	}
}

// FromDomain populates the persistence model from a domain Discrepancy.
func (m *DiscrepancyModel) FromDomain(d *recon.Discrepancy) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.ExternalTxnID = d.ExternalTxnID
	m.Kind = d.Kind
	m.Severity = d.Severity
	m.Status = d.Status
	m.AmountCents = d.AmountCents
	m.Details = d.Details
	m.ResolvedBy = d.ResolvedBy
	m.ResolvedAt = d.ResolvedAt
	m.Resolution = d.Resolution
}

// DiscrepancyModelFromDomain creates a new persistence model from a domain Discrepancy.
func DiscrepancyModelFromDomain(d *recon.Discrepancy) *DiscrepancyModel {
	m := &DiscrepancyModel{}
	m.FromDomain(d)
	return m
}
