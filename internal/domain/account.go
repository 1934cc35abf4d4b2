package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/result"
)

// Account is a financial account aggregated from a provider connection.
// Multiple accounts can belong to a single connection (e.g. an IRA and a
// brokerage account at the same institution). Accounts are data containers
// reflecting provider state — they are upserted by sync handlers and never
// destroyed, only deactivated.
type Account struct {
	ID                  uuid.UUID
	ConnectionID        uuid.UUID
	ProviderAccountID   string
	AccountNumberMasked string
	Name                string
	AccountType         AccountType
	Balance             money.Money
	AvailableBalance    *money.Money
	Currency            string
	IsActive            bool
	LastSyncedAt        *time.Time
	ProviderMetadata    map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewAccount constructs an Account, enforcing construction-time invariants:
// required string fields are non-blank, and balance/available_balance
// currencies match the account currency.
func NewAccount(
	id, connectionID uuid.UUID,
	providerAccountID, accountNumberMasked, name string,
	accountType AccountType,
	balance money.Money,
	availableBalance *money.Money,
	currency string,
	isActive bool,
	lastSyncedAt *time.Time,
	providerMetadata map[string]any,
	createdAt, updatedAt time.Time,
) (*Account, error) {
	if strings.TrimSpace(providerAccountID) == "" {
		return nil, fmt.Errorf("%s: provider_account_id is required", ErrInvalidProviderAccountID)
	}
	if strings.TrimSpace(accountNumberMasked) == "" {
		return nil, fmt.Errorf("%s: account_number_masked is required", ErrInvalidAccountNumber)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%s: name is required", ErrInvalidAccountName)
	}
	currency = strings.ToUpper(currency)
	if balance.Currency() != currency {
		return nil, fmt.Errorf("%s: balance currency (%s) must match account currency (%s)", ErrAccountCurrencyMismatch, balance.Currency(), currency)
	}
	if availableBalance != nil && availableBalance.Currency() != currency {
		return nil, fmt.Errorf("%s: available_balance currency (%s) must match account currency (%s)", ErrAccountCurrencyMismatch, availableBalance.Currency(), currency)
	}

	return &Account{
		ID:                  id,
		ConnectionID:        connectionID,
		ProviderAccountID:   providerAccountID,
		AccountNumberMasked: accountNumberMasked,
		Name:                name,
		AccountType:         accountType,
		Balance:             balance,
		AvailableBalance:    availableBalance,
		Currency:            currency,
		IsActive:            isActive,
		LastSyncedAt:        lastSyncedAt,
		ProviderMetadata:    providerMetadata,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}

// IsInvestmentAccount reports whether the account type can hold securities.
func (a *Account) IsInvestmentAccount() bool { return a.AccountType.IsInvestment() }

// IsBankAccount reports whether the account type is a traditional deposit account.
func (a *Account) IsBankAccount() bool { return a.AccountType.IsBank() }

// IsRetirementAccount reports whether the account type has retirement tax treatment.
func (a *Account) IsRetirementAccount() bool { return a.AccountType.IsRetirement() }

// IsCreditAccount reports whether the account type represents money owed.
func (a *Account) IsCreditAccount() bool { return a.AccountType.IsCredit() }

// HasAvailableBalance reports whether an available balance is set and
// differs from the current balance.
func (a *Account) HasAvailableBalance() bool {
	if a.AvailableBalance == nil {
		return false
	}
	return !a.AvailableBalance.Equal(a.Balance)
}

// NeedsSync reports whether the account hasn't been synced within threshold.
func (a *Account) NeedsSync(now time.Time, threshold time.Duration) bool {
	if a.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*a.LastSyncedAt) > threshold
}

// DisplayName combines the account name with its masked number.
func (a *Account) DisplayName() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.AccountNumberMasked)
}

// UpdateBalance replaces balance/available_balance from a provider sync.
// Fails if the new values' currencies don't match the account's currency.
func (a *Account) UpdateBalance(now time.Time, balance money.Money, availableBalance *money.Money) result.Result[struct{}, string] {
	if balance.Currency() != a.Currency {
		return result.Failure[struct{}, string](fmt.Sprintf("balance currency (%s) must match account currency (%s)", balance.Currency(), a.Currency))
	}
	if availableBalance != nil && availableBalance.Currency() != a.Currency {
		return result.Failure[struct{}, string](fmt.Sprintf("available balance currency (%s) must match account currency (%s)", availableBalance.Currency(), a.Currency))
	}
	a.Balance = balance
	a.AvailableBalance = availableBalance
	a.UpdatedAt = now
	return result.Success[struct{}, string](struct{}{})
}

// UpdateFromProvider updates metadata fields from a provider sync. Only
// non-nil arguments are applied.
func (a *Account) UpdateFromProvider(now time.Time, name *string, isActive *bool, providerMetadata map[string]any) result.Result[struct{}, AccountErrorCode] {
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return result.Failure[struct{}, AccountErrorCode](ErrInvalidAccountName)
		}
		a.Name = *name
	}
	if isActive != nil {
		a.IsActive = *isActive
	}
	if providerMetadata != nil {
		a.ProviderMetadata = providerMetadata
	}
	a.UpdatedAt = now
	return result.Success[struct{}, AccountErrorCode](struct{}{})
}

// MarkSynced records a successful sync timestamp. Always succeeds.
func (a *Account) MarkSynced(now time.Time) {
	a.LastSyncedAt = &now
	a.UpdatedAt = now
}

// Deactivate marks the account inactive. Always succeeds.
func (a *Account) Deactivate(now time.Time) {
	a.IsActive = false
	a.UpdatedAt = now
}

// Activate marks the account active. Always succeeds.
func (a *Account) Activate(now time.Time) {
	a.IsActive = true
	a.UpdatedAt = now
}
