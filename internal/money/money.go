// Package money provides an immutable, arbitrary-precision monetary value
// object. Financial calculations must never use binary floating point, so
// amounts are backed by shopspring/decimal rather than float64.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// validCurrencies is the set of ISO 4217 codes this system accepts.
// Expand as needed for additional international accounts.
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"CAD": true, "AUD": true, "NZD": true,
	"CNY": true, "HKD": true, "SGD": true, "KRW": true, "INR": true, "TWD": true,
	"SEK": true, "NOK": true, "DKK": true, "PLN": true, "CZK": true,
	"MXN": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true,
}

// CurrencyMismatchError is returned when an operation is attempted between
// two Money values of different currencies.
type CurrencyMismatchError struct {
	Currency1 string
	Currency2 string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("cannot perform operation between %s and %s", e.Currency1, e.Currency2)
}

// ValidateCurrency normalizes code to uppercase and verifies it is a
// recognized ISO 4217 code.
func ValidateCurrency(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("currency code cannot be empty")
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != 3 {
		return "", fmt.Errorf("currency code must be 3 characters: %s", code)
	}
	if !validCurrencies[normalized] {
		return "", fmt.Errorf("invalid currency code: %s", code)
	}
	return normalized, nil
}

// Money is an immutable amount plus currency. All arithmetic and comparison
// operations require matching currencies.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New constructs a Money value, validating and normalizing currency.
// Construction-invariant violations (invalid currency) are programming
// errors and are returned as a plain error, not a Result.
func New(amount decimal.Decimal, currency string) (Money, error) {
	normalized, err := ValidateCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: normalized}, nil
}

// MustNew is New but panics on invalid input; intended for constants and
// tests where the currency is known to be valid.
func MustNew(amount decimal.Decimal, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-valued Money in the given currency (defaults to USD
// when currency is empty).
func Zero(currency string) Money {
	if currency == "" {
		currency = "USD"
	}
	return MustNew(decimal.Zero, currency)
}

// FromCents builds Money from an integer count of the smallest currency
// unit (assumes 100 subunits per unit; currencies like JPY that have none
// should use New directly).
func FromCents(cents int64, currency string) Money {
	if currency == "" {
		currency = "USD"
	}
	amount := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	return MustNew(amount, currency)
}

// Amount returns the underlying decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO 4217 currency code.
func (m Money) Currency() string { return m.currency }

func (m Money) checkSameCurrency(other Money) error {
	if m.currency != other.currency {
		return &CurrencyMismatchError{Currency1: m.currency, Currency2: other.currency}
	}
	return nil
}

// Add returns m+other. Fails with CurrencyMismatchError if currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.checkSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m-other. Fails with CurrencyMismatchError if currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.checkSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Mul scales m by a scalar, preserving currency.
func (m Money) Mul(scalar decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(scalar), currency: m.currency}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Cmp compares m and other, returning -1/0/1 like decimal.Decimal.Cmp.
// Fails with CurrencyMismatchError if currencies differ.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.checkSameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.Sign() > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool { return m.amount.Sign() < 0 }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.Sign() == 0 }

// Equal reports whether m and other have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders "1234.56 USD" style output: two decimal places, no
// thousands separator.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}
