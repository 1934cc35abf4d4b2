package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNew_NormalizesCurrency(t *testing.T) {
	m, err := New(mustDecimal(t, "10.00"), "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency())
}

func TestNew_RejectsUnknownCurrency(t *testing.T) {
	_, err := New(mustDecimal(t, "10.00"), "XYZ")
	assert.Error(t, err)
}

func TestAddSameCurrency(t *testing.T) {
	a := MustNew(mustDecimal(t, "100.00"), "USD")
	b := MustNew(mustDecimal(t, "9.99"), "USD")
	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(mustDecimal(t, "109.99")))
}

func TestAddMismatchedCurrencyFails(t *testing.T) {
	a := MustNew(mustDecimal(t, "100.00"), "USD")
	b := MustNew(mustDecimal(t, "100.00"), "EUR")
	_, err := a.Add(b)
	require.Error(t, err)
	var mismatch *CurrencyMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestAddSubRoundTrip(t *testing.T) {
	x := MustNew(mustDecimal(t, "50.25"), "USD")
	y := MustNew(mustDecimal(t, "12.10"), "USD")
	sum, err := x.Add(y)
	require.NoError(t, err)
	back, err := sum.Sub(y)
	require.NoError(t, err)
	assert.True(t, back.Equal(x))
}

func TestNegTwiceIsIdentity(t *testing.T) {
	x := MustNew(mustDecimal(t, "33.33"), "USD")
	assert.True(t, x.Neg().Neg().Equal(x))
}

func TestAbsIsNonNegative(t *testing.T) {
	x := MustNew(mustDecimal(t, "-5.00"), "USD")
	assert.True(t, x.Abs().IsPositive() || x.Abs().IsZero())
}

func TestZeroFactory(t *testing.T) {
	z := Zero("EUR")
	assert.True(t, z.IsZero())
	assert.Equal(t, "EUR", z.Currency())
}

func TestFromCents(t *testing.T) {
	m := FromCents(12345, "USD")
	assert.True(t, m.Amount().Equal(mustDecimal(t, "123.45")))
}

func TestCmpMismatchedCurrencyFails(t *testing.T) {
	a := MustNew(mustDecimal(t, "1"), "USD")
	b := MustNew(mustDecimal(t, "1"), "EUR")
	_, err := a.Cmp(b)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	m := MustNew(mustDecimal(t, "1234.5"), "USD")
	assert.Equal(t, "1234.50 USD", m.String())
}
