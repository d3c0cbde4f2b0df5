package ledger

import (
	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// AccountCreatedEvent is raised when a new ledger account is created
type AccountCreatedEvent struct {
	shared.BaseDomainEvent
	Code     string               `json:"code"`
	Name     string               `json:"name"`
	Type     AccountType          `json:"account_type"`
	Currency valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *AccountCreatedEvent) EventType() string {
	return "LedgerAccountCreated"
}

// NewAccountCreatedEvent creates a new AccountCreatedEvent
func NewAccountCreatedEvent(a *Account) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LedgerAccountCreated", "Account", a.ID),
		Code:            a.Code,
		Name:            a.Name,
		Type:            a.Type,
		Currency:        a.Currency,
	}
}

// AccountDeactivatedEvent is raised when an account is deactivated
type AccountDeactivatedEvent struct {
	shared.BaseDomainEvent
	Code string `json:"code"`
}

// EventType returns the event type name
func (e *AccountDeactivatedEvent) EventType() string {
	return "LedgerAccountDeactivated"
}

// NewAccountDeactivatedEvent creates a new AccountDeactivatedEvent
func NewAccountDeactivatedEvent(a *Account) *AccountDeactivatedEvent {
	return &AccountDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LedgerAccountDeactivated", "Account", a.ID),
		Code:            a.Code,
	}
}

// TransactionPostedEvent is raised when a balanced transaction is assembled
type TransactionPostedEvent struct {
	shared.BaseDomainEvent
	TxnID      uuid.UUID `json:"txn_id"`
	EntryCount int       `json:"entry_count"`
}

// EventType returns the event type name
func (e *TransactionPostedEvent) EventType() string {
	return "LedgerTransactionPosted"
}

// NewTransactionPostedEvent creates a new TransactionPostedEvent
func NewTransactionPostedEvent(t *Transaction) *TransactionPostedEvent {
	return &TransactionPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LedgerTransactionPosted", "Transaction", t.ID),
		TxnID:           t.TxnID,
		EntryCount:      len(t.Entries),
	}
}

// TransactionReversedEvent is raised when a reversal transaction is built
type TransactionReversedEvent struct {
	shared.BaseDomainEvent
	TxnID         uuid.UUID `json:"txn_id"`
	OriginalTxnID uuid.UUID `json:"original_txn_id"`
}

// EventType returns the event type name
func (e *TransactionReversedEvent) EventType() string {
	return "LedgerTransactionReversed"
}

// NewTransactionReversedEvent creates a new TransactionReversedEvent
func NewTransactionReversedEvent(t *Transaction, originalTxnID uuid.UUID) *TransactionReversedEvent {
	return &TransactionReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LedgerTransactionReversed", "Transaction", t.ID),
		TxnID:           t.TxnID,
		OriginalTxnID:   originalTxnID,
	}
}
