package ledger

import (
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// AccountType classifies a ledger account
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeEquity    AccountType = "EQUITY"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome,
		AccountTypeExpense, AccountTypeEquity:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// Account is a named ledger bucket scoped to a single currency.
// Once transactions reference an account it is immutable except for the
// active flag.
type Account struct {
	shared.BaseAggregateRoot

	Code     string               `json:"code"` // Stable account code, e.g. "cash.operating"
	Name     string               `json:"name"`
	Type     AccountType          `json:"type"`
	Currency valueobject.Currency `json:"currency"`
	Active   bool                 `json:"active"`
}

// NewAccount creates a new active ledger account
func NewAccount(code, name string, accountType AccountType, currency valueobject.Currency) (*Account, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if len(code) > 100 {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot exceed 100 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_TYPE", "Invalid account type")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Account currency cannot be empty")
	}

	a := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Type:              accountType,
		Currency:          currency,
		Active:            true,
	}

	a.AddDomainEvent(NewAccountCreatedEvent(a))

	return a, nil
}

// Deactivate marks the account inactive. Inactive accounts reject new
// entries but retain their history.
func (a *Account) Deactivate() {
	if !a.Active {
		return
	}
	a.Active = false
	a.touch()
	a.AddDomainEvent(NewAccountDeactivatedEvent(a))
}

// Activate re-enables the account for posting
func (a *Account) Activate() {
	if a.Active {
		return
	}
	a.Active = true
	a.touch()
}

func (a *Account) touch() {
	a.UpdatedAt = nowUTC()
}
