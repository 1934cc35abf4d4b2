package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/money"
)

// BalanceSnapshot is an immutable point-in-time capture of an Account's
// balance, used to reconstruct historical balance trends independent of
// the live Account row. Snapshots are never mutated or deleted once
// written — they are the append-only ledger backing balance history charts.
type BalanceSnapshot struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Balance          money.Money
	AvailableBalance *money.Money
	HoldingsValue    *money.Money
	CashValue        *money.Money
	Currency         string
	Source           SnapshotSource
	ProviderMetadata map[string]any
	CapturedAt       time.Time
	CreatedAt        time.Time
}

// NewBalanceSnapshot constructs a BalanceSnapshot, enforcing
// construction-time invariants: balance/available_balance/holdings_value/
// cash_value currencies all match the snapshot's declared currency.
func NewBalanceSnapshot(
	id, accountID uuid.UUID,
	balance money.Money,
	availableBalance *money.Money,
	currency string,
	source SnapshotSource,
	capturedAt, createdAt time.Time,
	opts ...BalanceSnapshotOption,
) (*BalanceSnapshot, error) {
	currency = strings.ToUpper(currency)
	if balance.Currency() != currency {
		return nil, fmt.Errorf("%s: balance currency (%s) must match snapshot currency (%s)", ErrSnapshotCurrencyMismatch, balance.Currency(), currency)
	}
	if availableBalance != nil && availableBalance.Currency() != currency {
		return nil, fmt.Errorf("%s: available_balance currency (%s) must match snapshot currency (%s)", ErrSnapshotCurrencyMismatch, availableBalance.Currency(), currency)
	}

	snap := &BalanceSnapshot{
		ID:               id,
		AccountID:        accountID,
		Balance:          balance,
		AvailableBalance: availableBalance,
		Currency:         currency,
		Source:           source,
		CapturedAt:       capturedAt,
		CreatedAt:        createdAt,
	}
	for _, opt := range opts {
		opt(snap)
	}
	if snap.HoldingsValue != nil && snap.HoldingsValue.Currency() != currency {
		return nil, fmt.Errorf("%s: holdings_value currency (%s) must match snapshot currency (%s)", ErrSnapshotCurrencyMismatch, snap.HoldingsValue.Currency(), currency)
	}
	if snap.CashValue != nil && snap.CashValue.Currency() != currency {
		return nil, fmt.Errorf("%s: cash_value currency (%s) must match snapshot currency (%s)", ErrSnapshotCurrencyMismatch, snap.CashValue.Currency(), currency)
	}
	return snap, nil
}

// BalanceSnapshotOption sets one of the optional fields NewBalanceSnapshot
// does not take positionally, keeping the common-case constructor call
// short while still enforcing their currency invariants.
type BalanceSnapshotOption func(*BalanceSnapshot)

// WithHoldingsValue sets the portion of the balance held in securities.
func WithHoldingsValue(v *money.Money) BalanceSnapshotOption {
	return func(s *BalanceSnapshot) { s.HoldingsValue = v }
}

// WithCashValue sets the portion of the balance held in cash.
func WithCashValue(v *money.Money) BalanceSnapshotOption {
	return func(s *BalanceSnapshot) { s.CashValue = v }
}

// WithProviderMetadata attaches the opaque provider payload this snapshot
// was captured from.
func WithProviderMetadata(m map[string]any) BalanceSnapshotOption {
	return func(s *BalanceSnapshot) { s.ProviderMetadata = m }
}

// IsAutomated reports whether this snapshot was taken by an automated sync.
func (s *BalanceSnapshot) IsAutomated() bool { return s.Source.IsAutomated() }

// IsUserInitiated reports whether the user directly triggered this snapshot.
func (s *BalanceSnapshot) IsUserInitiated() bool { return s.Source.IsUserInitiated() }

// Age returns how long ago this snapshot was captured, relative to now.
func (s *BalanceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}
