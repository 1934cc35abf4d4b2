package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/result"
)

// Transaction is a single provider-reported activity event on an Account:
// a trade, transfer, dividend, fee, or other cash/position movement.
// Transactions are append-mostly — once settled they are immutable history —
// but a transaction can move through PENDING→{SETTLED,FAILED,CANCELLED}
// as the provider confirms it.
type Transaction struct {
	ID                    uuid.UUID
	AccountID             uuid.UUID
	ProviderTransactionID string
	Symbol                *string
	SecurityName          *string
	AssetType             *AssetType
	TransactionType       TransactionType
	TransactionSubtype    TransactionSubtype
	Quantity              *decimal.Decimal
	Price                 *money.Money
	Amount                money.Money
	Fees                  money.Money
	Currency              string
	Status                TransactionStatus
	TransactionDate       time.Time
	SettlementDate        *time.Time
	Description           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewTransaction constructs a Transaction, enforcing construction-time
// invariants: provider_transaction_id is non-blank (it is the idempotency
// key sync handlers upsert on), amount/fees/price share the transaction's
// currency, and a settlement date never precedes the transaction date.
func NewTransaction(
	id, accountID uuid.UUID,
	providerTransactionID string,
	symbol, securityName *string,
	assetType *AssetType,
	transactionType TransactionType,
	transactionSubtype TransactionSubtype,
	quantity *decimal.Decimal,
	price *money.Money,
	amount, fees money.Money,
	currency string,
	status TransactionStatus,
	transactionDate time.Time,
	settlementDate *time.Time,
	description string,
	createdAt, updatedAt time.Time,
) (*Transaction, error) {
	if strings.TrimSpace(providerTransactionID) == "" {
		return nil, fmt.Errorf("%s: provider_transaction_id is required", ErrInvalidProviderTransactionID)
	}
	currency = strings.ToUpper(currency)
	if amount.Currency() != currency {
		return nil, fmt.Errorf("%s: amount currency (%s) must match transaction currency (%s)", ErrTransactionCurrencyMismatch, amount.Currency(), currency)
	}
	if fees.Currency() != currency {
		return nil, fmt.Errorf("%s: fees currency (%s) must match transaction currency (%s)", ErrTransactionCurrencyMismatch, fees.Currency(), currency)
	}
	if price != nil && price.Currency() != currency {
		return nil, fmt.Errorf("%s: price currency (%s) must match transaction currency (%s)", ErrTransactionCurrencyMismatch, price.Currency(), currency)
	}
	if settlementDate != nil && settlementDate.Before(transactionDate) {
		return nil, fmt.Errorf("%s: settlement_date cannot precede transaction_date", ErrInvalidSettlementDate)
	}

	return &Transaction{
		ID:                    id,
		AccountID:             accountID,
		ProviderTransactionID: providerTransactionID,
		Symbol:                symbol,
		SecurityName:          securityName,
		AssetType:             assetType,
		TransactionType:       transactionType,
		TransactionSubtype:    transactionSubtype,
		Quantity:              quantity,
		Price:                 price,
		Amount:                amount,
		Fees:                  fees,
		Currency:              currency,
		Status:                status,
		TransactionDate:       transactionDate,
		SettlementDate:        settlementDate,
		Description:           description,
		CreatedAt:             createdAt,
		UpdatedAt:             updatedAt,
	}, nil
}

// IsTrade reports whether this is a buy/sell/short activity.
func (t *Transaction) IsTrade() bool { return t.TransactionType == TxTrade }

// IsSettled reports whether the transaction has cleared.
func (t *Transaction) IsSettled() bool { return t.Status == TxStatusSettled }

// IsPending reports whether the transaction is still awaiting settlement.
func (t *Transaction) IsPending() bool { return t.Status == TxStatusPending }

// NetAmount returns amount minus fees. Fails if fees share a different
// currency than amount, which construction invariants should prevent.
func (t *Transaction) NetAmount() (money.Money, error) {
	return t.Amount.Sub(t.Fees)
}

var txAllowedTransitions = map[TransactionStatus]map[TransactionStatus]bool{
	TxStatusPending: {
		TxStatusSettled:   true,
		TxStatusFailed:    true,
		TxStatusCancelled: true,
	},
}

// MarkSettled transitions PENDING→SETTLED, recording the settlement date.
func (t *Transaction) MarkSettled(now, settlementDate time.Time) result.Result[struct{}, TransactionErrorCode] {
	if !txAllowedTransitions[t.Status][TxStatusSettled] {
		return result.Failure[struct{}, TransactionErrorCode](ErrCannotTransitionTxStatus)
	}
	t.Status = TxStatusSettled
	t.SettlementDate = &settlementDate
	t.UpdatedAt = now
	return result.Success[struct{}, TransactionErrorCode](struct{}{})
}

// MarkFailed transitions PENDING→FAILED.
func (t *Transaction) MarkFailed(now time.Time) result.Result[struct{}, TransactionErrorCode] {
	if !txAllowedTransitions[t.Status][TxStatusFailed] {
		return result.Failure[struct{}, TransactionErrorCode](ErrCannotTransitionTxStatus)
	}
	t.Status = TxStatusFailed
	t.UpdatedAt = now
	return result.Success[struct{}, TransactionErrorCode](struct{}{})
}

// MarkCancelled transitions PENDING→CANCELLED.
func (t *Transaction) MarkCancelled(now time.Time) result.Result[struct{}, TransactionErrorCode] {
	if !txAllowedTransitions[t.Status][TxStatusCancelled] {
		return result.Failure[struct{}, TransactionErrorCode](ErrCannotTransitionTxStatus)
	}
	t.Status = TxStatusCancelled
	t.UpdatedAt = now
	return result.Success[struct{}, TransactionErrorCode](struct{}{})
}
