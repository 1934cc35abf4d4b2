package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/money"
)

// Holding is a position in a security held within an investment Account.
// Like Account, it is a data container reflecting provider state — sync
// handlers upsert it wholesale rather than issuing partial domain commands,
// so its mutation methods return nothing instead of Result:
// there is no business rule a sync can violate beyond what NewHolding already
// enforces at construction.
type Holding struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	ProviderHoldingID string
	Symbol            string
	Description       string
	AssetType         AssetType
	Quantity          decimal.Decimal
	CostBasis         *money.Money
	AveragePrice      *money.Money
	CurrentPrice      *money.Money
	MarketValue       money.Money
	Currency          string
	IsActive          bool
	LastSyncedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewHolding constructs a Holding, enforcing construction-time invariants:
// provider_holding_id and symbol are non-blank, and all money fields share
// the holding's currency. The sign of quantity is not checked: a negative
// quantity is accepted for every asset type and is reported by IsShort.
func NewHolding(
	id, accountID uuid.UUID,
	providerHoldingID, symbol, description string,
	assetType AssetType,
	quantity decimal.Decimal,
	costBasis, averagePrice, currentPrice *money.Money,
	marketValue money.Money,
	currency string,
	isActive bool,
	lastSyncedAt *time.Time,
	createdAt, updatedAt time.Time,
) (*Holding, error) {
	if strings.TrimSpace(providerHoldingID) == "" {
		return nil, fmt.Errorf("%s: provider_holding_id is required", ErrInvalidProviderHoldingID)
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%s: symbol is required", ErrInvalidSymbol)
	}
	currency = strings.ToUpper(currency)
	if marketValue.Currency() != currency {
		return nil, fmt.Errorf("%s: market_value currency (%s) must match holding currency (%s)", ErrHoldingCurrencyMismatch, marketValue.Currency(), currency)
	}
	if costBasis != nil && costBasis.Currency() != currency {
		return nil, fmt.Errorf("%s: cost_basis currency (%s) must match holding currency (%s)", ErrHoldingCurrencyMismatch, costBasis.Currency(), currency)
	}
	if averagePrice != nil && averagePrice.Currency() != currency {
		return nil, fmt.Errorf("%s: average_price currency (%s) must match holding currency (%s)", ErrHoldingCurrencyMismatch, averagePrice.Currency(), currency)
	}
	if currentPrice != nil && currentPrice.Currency() != currency {
		return nil, fmt.Errorf("%s: current_price currency (%s) must match holding currency (%s)", ErrHoldingCurrencyMismatch, currentPrice.Currency(), currency)
	}

	return &Holding{
		ID:                id,
		AccountID:         accountID,
		ProviderHoldingID: providerHoldingID,
		Symbol:            strings.ToUpper(symbol),
		Description:       description,
		AssetType:         assetType,
		Quantity:          quantity,
		CostBasis:         costBasis,
		AveragePrice:      averagePrice,
		CurrentPrice:      currentPrice,
		MarketValue:       marketValue,
		Currency:          currency,
		IsActive:          isActive,
		LastSyncedAt:      lastSyncedAt,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

// IsLong reports whether the position quantity is positive.
func (h *Holding) IsLong() bool { return h.Quantity.IsPositive() }

// IsShort reports whether the position quantity is negative.
func (h *Holding) IsShort() bool { return h.Quantity.IsNegative() }

// UnrealizedGainLoss computes market value minus cost basis. Returns nil if
// cost basis is unknown or its currency doesn't match (should not happen
// given construction invariants).
func (h *Holding) UnrealizedGainLoss() *money.Money {
	if h.CostBasis == nil {
		return nil
	}
	gl, err := h.MarketValue.Sub(*h.CostBasis)
	if err != nil {
		return nil
	}
	return &gl
}

// UnrealizedGainLossPercent computes the gain/loss as a percentage of cost
// basis, rounded to two decimals. Returns nil when cost basis is unknown
// or zero (a free position has no meaningful percentage return).
func (h *Holding) UnrealizedGainLossPercent() *decimal.Decimal {
	gl := h.UnrealizedGainLoss()
	if gl == nil || h.CostBasis.Amount().IsZero() {
		return nil
	}
	pct := gl.Amount().Div(h.CostBasis.Amount()).Mul(decimal.NewFromInt(100)).Round(2)
	return &pct
}

// UpdateFromSync replaces position fields from a provider sync. Provider
// syncs are idempotent upserts of the provider's current truth, so this
// applies unconditionally rather than returning a Result.
func (h *Holding) UpdateFromSync(now time.Time, quantity decimal.Decimal, costBasis, averagePrice, currentPrice *money.Money, marketValue money.Money) {
	h.Quantity = quantity
	h.CostBasis = costBasis
	h.AveragePrice = averagePrice
	h.CurrentPrice = currentPrice
	h.MarketValue = marketValue
	h.LastSyncedAt = &now
	h.UpdatedAt = now
}

// MarkSynced records a sync timestamp without changing position data.
func (h *Holding) MarkSynced(now time.Time) {
	h.LastSyncedAt = &now
	h.UpdatedAt = now
}

// Deactivate marks the holding inactive, e.g. once a provider stops
// reporting it (position closed).
func (h *Holding) Deactivate(now time.Time) {
	h.IsActive = false
	h.UpdatedAt = now
}
