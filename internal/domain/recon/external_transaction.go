package recon

import (
	"time"

	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// ExternalTransaction is a transaction reported by an outside source
// (processor, bank, marketplace). It is keyed uniquely by (source,
// externalID) and immutable once stored; the raw payload is retained
// for audit.
type ExternalTransaction struct {
	shared.BaseAggregateRoot

	Source      string               `json:"source"`      // e.g. "BANK", "STRIPE", "MARKETPLACE"
	ExternalID  string               `json:"external_id"` // Provider-side identifier
	AmountCents int64                `json:"amount_cents"`
	Currency    valueobject.Currency `json:"currency"`
	OccurredAt  time.Time            `json:"occurred_at"`
	Reference   string               `json:"reference"` // Provider reference/description text
	Raw         string               `json:"raw"`       // Raw payload as delivered, for audit
}

// NewExternalTransaction creates an external transaction record
func NewExternalTransaction(source, externalID string, amountCents int64, currency valueobject.Currency, occurredAt time.Time, reference, raw string) (*ExternalTransaction, error) {
	if source == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE", "External transaction source cannot be empty")
	}
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External transaction ID cannot be empty")
	}
	if amountCents == 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "External transaction amount cannot be zero")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "External transaction currency cannot be empty")
	}
	if occurredAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_OCCURRED_AT", "External transaction timestamp cannot be zero")
	}

	return &ExternalTransaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Source:            source,
		ExternalID:        externalID,
		AmountCents:       amountCents,
		Currency:          currency,
		OccurredAt:        occurredAt.UTC(),
		Reference:         reference,
		Raw:               raw,
	}, nil
}

// Money returns the reported amount as a Money value
func (x *ExternalTransaction) Money() valueobject.Money {
	return valueobject.NewMoneyFromCents(x.AmountCents, x.Currency)
}
