package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// AccountModel is the persistence model for the ledger Account aggregate root.
type AccountModel struct {
	AggregateModel
	Code     string               `gorm:"type:varchar(100);not null;uniqueIndex:idx_accounts_code"`
	Name     string               `gorm:"type:varchar(200);not null"`
	Type     ledger.AccountType   `gorm:"type:varchar(20);not null;index"`
	Currency valueobject.Currency `gorm:"type:varchar(3);not null"`
	Active   bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain Account.
func (m *AccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Type:              m.Type,
		Currency:          m.Currency,
		Active:            m.Active,
	}
}

// FromDomain populates the persistence model from a domain Account.
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.Type = a.Type
	m.Currency = a.Currency
	m.Active = a.Active
}

// AccountModelFromDomain creates a new persistence model from a domain Account.
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// LedgerTransactionModel is the persistence model for the Transaction
// aggregate root. Entries are held in their own table so source and
// account lookups stay indexed.
type LedgerTransactionModel struct {
	AggregateModel
	TxnID       uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_txn_id"`
	Description string             `gorm:"type:varchar(500);not null"`
	PostedAt    time.Time          `gorm:"not null;index"`
	ReversalOf  *uuid.UUID         `gorm:"type:uuid;index"`
	Entries     []LedgerEntryModel `gorm:"foreignKey:TransactionID;references:ID"`
}

// TableName returns the table name for GORM
func (LedgerTransactionModel) TableName() string {
	return "ledger_transactions"
}

// LedgerEntryModel is the persistence model for one entry line.
// Rows are append-only; no update path exists.
type LedgerEntryModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index"`

	AccountID   uuid.UUID            `gorm:"type:uuid;not null;index:idx_ledger_entries_account"`
	AmountCents int64                `gorm:"not null"`
	Currency    valueobject.Currency `gorm:"type:varchar(3);not null"`

	FXRate          *decimal.Decimal `gorm:"type:decimal(18,8)"`
	BaseAmountCents *int64

	SourceType ledger.SourceType `gorm:"type:varchar(20);not null;index:idx_ledger_entries_source,priority:1"`
	SourceID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_ledger_entries_source,priority:2"`
	Memo       string            `gorm:"type:varchar(500)"`

	PostedAt  time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain Transaction.
func (m *LedgerTransactionModel) ToDomain() *ledger.Transaction {
	entries := make([]ledger.Entry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = e.ToDomain()
	}
	return &ledger.Transaction{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		TxnID:             m.TxnID,
		Entries:           entries,
		Description:       m.Description,
		PostedAt:          m.PostedAt,
		ReversalOf:        m.ReversalOf,
	}
}

// FromDomain populates the persistence model from a domain Transaction.
func (m *LedgerTransactionModel) FromDomain(t *ledger.Transaction) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.TxnID = t.TxnID
	m.Description = t.Description
	m.PostedAt = t.PostedAt
	m.ReversalOf = t.ReversalOf

	m.Entries = make([]LedgerEntryModel, len(t.Entries))
	for i, e := range t.Entries {
		m.Entries[i] = LedgerEntryModelFromDomain(e, t.ID, t.PostedAt)
	}
}

// LedgerTransactionModelFromDomain creates a new persistence model from a domain Transaction.
func LedgerTransactionModelFromDomain(t *ledger.Transaction) *LedgerTransactionModel {
	m := &LedgerTransactionModel{}
	m.FromDomain(t)
	return m
}

// ToDomain converts the persistence model to a domain Entry.
func (m *LedgerEntryModel) ToDomain() ledger.Entry {
	return ledger.Entry{
		ID:              m.ID,
		AccountID:       m.AccountID,
		AmountCents:     m.AmountCents,
		Currency:        m.Currency,
		FXRate:          m.FXRate,
		BaseAmountCents: m.BaseAmountCents,
		SourceType:      m.SourceType,
		SourceID:        m.SourceID,
		Memo:            m.Memo,
	}
}

// LedgerEntryModelFromDomain creates an entry persistence model. PostedAt
// is denormalized from the owning transaction for windowed account queries.
func LedgerEntryModelFromDomain(e ledger.Entry, transactionID uuid.UUID, postedAt time.Time) LedgerEntryModel {
	return LedgerEntryModel{
		ID:              e.ID,
		TransactionID:   transactionID,
		AccountID:       e.AccountID,
		AmountCents:     e.AmountCents,
		Currency:        e.Currency,
		FXRate:          e.FXRate,
		BaseAmountCents: e.BaseAmountCents,
		SourceType:      e.SourceType,
		SourceID:        e.SourceID,
		Memo:            e.Memo,
		PostedAt:        postedAt,
	}
}
