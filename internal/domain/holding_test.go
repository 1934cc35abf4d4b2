package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashtam/provider-sync/internal/money"
)

func newTestHolding(t *testing.T) *Holding {
	t.Helper()
	now := time.Now()
	costBasis := money.MustNew(decimal.NewFromInt(1000), "USD")
	currentPrice := money.MustNew(decimal.NewFromInt(120), "USD")
	averagePrice := money.MustNew(decimal.NewFromInt(100), "USD")
	h, err := NewHolding(
		uuid.New(), uuid.New(),
		"ph-1", "aapl", "Apple Inc.",
		AssetEquity,
		decimal.NewFromInt(10),
		&costBasis, &averagePrice, &currentPrice,
		money.MustNew(decimal.NewFromInt(1200), "USD"),
		"USD", true, nil, now, now,
	)
	require.NoError(t, err)
	return h
}

func TestNewHolding_UppercasesSymbol(t *testing.T) {
	h := newTestHolding(t)
	assert.Equal(t, "AAPL", h.Symbol)
}

func TestNewHolding_RejectsBlankSymbol(t *testing.T) {
	now := time.Now()
	_, err := NewHolding(uuid.New(), uuid.New(), "ph-1", "  ", "", AssetEquity, decimal.Zero, nil, nil, nil, money.Zero("USD"), "USD", true, nil, now, now)
	assert.Error(t, err)
}

func TestNewHolding_RejectsMarketValueCurrencyMismatch(t *testing.T) {
	now := time.Now()
	_, err := NewHolding(uuid.New(), uuid.New(), "ph-1", "AAPL", "", AssetEquity, decimal.Zero, nil, nil, nil, money.Zero("EUR"), "USD", true, nil, now, now)
	assert.Error(t, err)
}

func TestNewHolding_RejectsCostBasisCurrencyMismatch(t *testing.T) {
	now := time.Now()
	costBasis := money.Zero("EUR")
	_, err := NewHolding(uuid.New(), uuid.New(), "ph-1", "AAPL", "", AssetEquity, decimal.Zero, &costBasis, nil, nil, money.Zero("USD"), "USD", true, nil, now, now)
	assert.Error(t, err)
}

func TestIsLongIsShort(t *testing.T) {
	h := newTestHolding(t)
	assert.True(t, h.IsLong())
	assert.False(t, h.IsShort())

	h.Quantity = decimal.NewFromInt(-5)
	assert.True(t, h.IsShort())
}

func TestUnrealizedGainLoss(t *testing.T) {
	h := newTestHolding(t)
	gl := h.UnrealizedGainLoss()
	require.NotNil(t, gl)
	assert.True(t, gl.Equal(money.MustNew(decimal.NewFromInt(200), "USD")))
}

func TestUnrealizedGainLoss_NilWhenNoCostBasis(t *testing.T) {
	h := newTestHolding(t)
	h.CostBasis = nil
	assert.Nil(t, h.UnrealizedGainLoss())
}

func TestUpdateFromSync(t *testing.T) {
	h := newTestHolding(t)
	now := time.Now()
	newValue := money.MustNew(decimal.NewFromInt(1500), "USD")
	h.UpdateFromSync(now, decimal.NewFromInt(12), nil, nil, nil, newValue)
	assert.True(t, h.MarketValue.Equal(newValue))
	assert.Equal(t, decimal.NewFromInt(12).String(), h.Quantity.String())
	assert.Nil(t, h.CostBasis)
	assert.Nil(t, h.AveragePrice)
	require.NotNil(t, h.LastSyncedAt)
}

func TestDeactivate(t *testing.T) {
	h := newTestHolding(t)
	h.Deactivate(time.Now())
	assert.False(t, h.IsActive)
}
