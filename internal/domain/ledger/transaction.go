package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// ErrImbalance is the fatal invariant violation for entries that do not
// sum to zero per currency. It must abort the posting and raise an
// Incident, never be auto-corrected.
var ErrImbalance = shared.NewDomainError("LEDGER_IMBALANCE",
	"Ledger entries do not sum to zero per currency")

// SourceType identifies the business object that originated a ledger entry
type SourceType string

const (
	SourceTypeOrder      SourceType = "ORDER"
	SourceTypePayout     SourceType = "PAYOUT"
	SourceTypeRefund     SourceType = "REFUND"
	SourceTypeDispute    SourceType = "DISPUTE"
	SourceTypeFee        SourceType = "FEE"
	SourceTypeAdjustment SourceType = "ADJUSTMENT"
	SourceTypeManual     SourceType = "MANUAL"
)

// IsValid checks if the source type is valid
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeOrder, SourceTypePayout, SourceTypeRefund,
		SourceTypeDispute, SourceTypeFee, SourceTypeAdjustment, SourceTypeManual:
		return true
	}
	return false
}

// String returns the string representation of SourceType
func (t SourceType) String() string {
	return string(t)
}

// Entry is one debit or credit line of a ledger transaction. Amounts are
// signed minor units: positive is a debit, negative is a credit. Entries
// are never mutated or deleted after posting; corrections are new,
// compensating entries referencing the original transaction.
type Entry struct {
	ID          uuid.UUID            `json:"id"`
	AccountID   uuid.UUID            `json:"account_id"`
	AmountCents int64                `json:"amount_cents"`
	Currency    valueobject.Currency `json:"currency"`

	// Optional FX fields for entries booked in a non-base currency
	FXRate          *decimal.Decimal `json:"fx_rate,omitempty"`
	BaseAmountCents *int64           `json:"base_amount_cents,omitempty"`

	SourceType SourceType `json:"source_type"`
	SourceID   uuid.UUID  `json:"source_id"`
	Memo       string     `json:"memo"`
}

// IsDebit returns true for debit (positive) entries
func (e Entry) IsDebit() bool {
	return e.AmountCents > 0
}

// Money returns the entry amount as a Money value
func (e Entry) Money() valueobject.Money {
	return valueobject.NewMoneyFromCents(e.AmountCents, e.Currency)
}

// NewEntry creates a ledger entry line
func NewEntry(accountID uuid.UUID, amountCents int64, currency valueobject.Currency, sourceType SourceType, sourceID uuid.UUID, memo string) (Entry, error) {
	if accountID == uuid.Nil {
		return Entry{}, shared.NewDomainError("INVALID_ACCOUNT", "Entry account ID cannot be empty")
	}
	if amountCents == 0 {
		return Entry{}, shared.NewDomainError("INVALID_AMOUNT", "Entry amount cannot be zero")
	}
	if currency == "" {
		return Entry{}, shared.NewDomainError("INVALID_CURRENCY", "Entry currency cannot be empty")
	}
	if !sourceType.IsValid() {
		return Entry{}, shared.NewDomainError("INVALID_SOURCE_TYPE", "Invalid entry source type")
	}
	return Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		AmountCents: amountCents,
		Currency:    currency,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Memo:        memo,
	}, nil
}

// WithFX attaches an FX rate and base-currency amount to the entry
func (e Entry) WithFX(rate decimal.Decimal, baseAmountCents int64) Entry {
	e.FXRate = &rate
	e.BaseAmountCents = &baseAmountCents
	return e
}

// Transaction is the unit of atomic financial truth: a group of entries
// that must net to zero per currency. The TxnID is caller-supplied so
// posting is idempotent by transaction id independent of the idempotency
// key layer.
type Transaction struct {
	shared.BaseAggregateRoot

	TxnID       uuid.UUID  `json:"txn_id"`
	Entries     []Entry    `json:"entries"`
	Description string     `json:"description"`
	PostedAt    time.Time  `json:"posted_at"`
	ReversalOf  *uuid.UUID `json:"reversal_of,omitempty"`
}

// NewTransaction assembles and validates a balanced transaction. A
// non-zero per-currency sum returns ErrImbalance and nothing is built.
func NewTransaction(txnID uuid.UUID, description string, entries []Entry) (*Transaction, error) {
	if txnID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TXN_ID", "Transaction ID cannot be empty")
	}
	if len(entries) < 2 {
		return nil, shared.NewDomainError("INVALID_ENTRIES", "Transaction requires at least two entries")
	}
	if err := checkBalanced(entries); err != nil {
		return nil, err
	}

	txn := &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TxnID:             txnID,
		Entries:           entries,
		Description:       description,
		PostedAt:          nowUTC(),
	}

	txn.AddDomainEvent(NewTransactionPostedEvent(txn))

	return txn, nil
}

// Reverse produces a new transaction whose entries are the exact negation
// of this one, referencing the original. The original is never edited.
func (t *Transaction) Reverse(newTxnID uuid.UUID, reason string) (*Transaction, error) {
	if newTxnID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TXN_ID", "Reversal transaction ID cannot be empty")
	}
	if newTxnID == t.TxnID {
		return nil, shared.NewDomainError("INVALID_TXN_ID", "Reversal must use a new transaction ID")
	}

	reversed := make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		r := e
		r.ID = uuid.New()
		r.AmountCents = -e.AmountCents
		if e.BaseAmountCents != nil {
			neg := -*e.BaseAmountCents
			r.BaseAmountCents = &neg
		}
		r.Memo = fmt.Sprintf("Reversal of txn %s: %s", t.TxnID, reason)
		reversed[i] = r
	}

	rev := &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TxnID:             newTxnID,
		Entries:           reversed,
		Description:       fmt.Sprintf("Reversal of %s", t.Description),
		PostedAt:          nowUTC(),
		ReversalOf:        &t.TxnID,
	}

	rev.AddDomainEvent(NewTransactionReversedEvent(rev, t.TxnID))

	return rev, nil
}

// TotalDebitsCents returns the sum of debit amounts for a currency
func (t *Transaction) TotalDebitsCents(currency valueobject.Currency) int64 {
	var sum int64
	for _, e := range t.Entries {
		if e.Currency == currency && e.AmountCents > 0 {
			sum += e.AmountCents
		}
	}
	return sum
}

// Currencies returns the distinct currencies present in the transaction
func (t *Transaction) Currencies() []valueobject.Currency {
	seen := make(map[valueobject.Currency]bool)
	out := make([]valueobject.Currency, 0, 1)
	for _, e := range t.Entries {
		if !seen[e.Currency] {
			seen[e.Currency] = true
			out = append(out, e.Currency)
		}
	}
	return out
}

// checkBalanced verifies the per-currency zero-sum invariant
func checkBalanced(entries []Entry) error {
	sums := make(map[valueobject.Currency]int64)
	for _, e := range entries {
		if e.AmountCents == 0 {
			return shared.NewDomainError("INVALID_AMOUNT", "Entry amount cannot be zero")
		}
		sums[e.Currency] += e.AmountCents
	}
	for currency, sum := range sums {
		if sum != 0 {
			return shared.NewDomainError(ErrImbalance.Code,
				fmt.Sprintf("Entries for %s sum to %d, expected 0", currency, sum))
		}
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
