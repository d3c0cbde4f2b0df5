package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
	SGD Currency = "SGD"
)

// minorUnitFactor converts between major units and minor units (cents).
// JPY has no minor unit but is stored at factor 100 like everything
// else; external feeds deliver amounts in minor units uniformly.
var minorUnitFactor = decimal.NewFromInt(100)

// Money is an immutable amount in a single currency. The ledger stores
// integer cents; Money is the presentation and arithmetic form, so
// every operation returns a new value and cross-currency arithmetic is
// an error rather than a silent conversion.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money from a decimal amount in major units.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromCents creates Money from minor units. This is the
// canonical constructor for amounts arriving from ledger rows and
// external transaction feeds.
func NewMoneyFromCents(cents int64, currency Currency) Money {
	return Money{
		amount:   decimal.NewFromInt(cents).Div(minorUnitFactor),
		currency: currency,
	}
}

// Amount returns the decimal amount in major units.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Cents returns the amount in minor units, rounded half-up.
func (m Money) Cents() int64 {
	return m.amount.Mul(minorUnitFactor).Round(0).IntPart()
}

func (m Money) Currency() Currency { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) currencyMismatch(op string, other Money) error {
	return fmt.Errorf("cannot %s money with different currencies: %s and %s",
		op, m.currency, other.currency)
}

// Add returns the sum. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, m.currencyMismatch("add", other)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// MustAdd is Add for callers that have already checked the currency;
// it panics on a mismatch.
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns the difference. Currencies must match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, m.currencyMismatch("subtract", other)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Negate returns the amount with the sign reversed.
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Equals reports whether both amount and currency match.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// LessThan compares amounts. Currencies must match.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, m.currencyMismatch("compare", other)
	}
	return m.amount.LessThan(other.amount), nil
}

// GreaterThanOrEqual compares amounts. Currencies must match.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, m.currencyMismatch("compare", other)
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

// String renders as "123.45 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON renders the amount as a string to keep decimal precision
// out of float hands.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.String(), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	m.currency = v.Currency
	return nil
}
