// Package ownership implements the cross-entity ownership chain checked
// before every read or write: Transaction/Holding/BalanceSnapshot → Account
// → ProviderConnection → User. It composes repository ports only; it holds
// no state of its own.
package ownership

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/result"
)

// ErrorCode is the closed set of failure codes an ownership check can
// return. Short-circuits on the first missing link in the chain.
type ErrorCode string

const (
	ErrTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrHoldingNotFound     ErrorCode = "HOLDING_NOT_FOUND"
	ErrAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrConnectionNotFound  ErrorCode = "CONNECTION_NOT_FOUND"
	ErrNotOwnedByUser      ErrorCode = "NOT_OWNED_BY_USER"
)

// Verifier checks ownership chains and, on success, returns the resolved
// entity so callers do not need to re-fetch it.
type Verifier struct {
	connections   ports.ProviderConnectionRepository
	accounts      ports.AccountRepository
	holdings      ports.HoldingRepository
	transactions  ports.TransactionRepository
}

// New builds a Verifier over the given repository ports.
func New(
	connections ports.ProviderConnectionRepository,
	accounts ports.AccountRepository,
	holdings ports.HoldingRepository,
	transactions ports.TransactionRepository,
) *Verifier {
	return &Verifier{
		connections:  connections,
		accounts:     accounts,
		holdings:     holdings,
		transactions: transactions,
	}
}

// VerifyConnectionOwnership confirms connectionID belongs to userID,
// returning the loaded connection on success.
func (v *Verifier) VerifyConnectionOwnership(ctx context.Context, connectionID, userID uuid.UUID) result.Result[*domain.ProviderConnection, ErrorCode] {
	conn, err := v.connections.FindByID(ctx, connectionID)
	if err != nil || conn == nil {
		return result.Failure[*domain.ProviderConnection, ErrorCode](ErrConnectionNotFound)
	}
	if conn.UserID != userID {
		return result.Failure[*domain.ProviderConnection, ErrorCode](ErrNotOwnedByUser)
	}
	return result.Success[*domain.ProviderConnection, ErrorCode](conn)
}

// VerifyAccountOwnership confirms accountID's owning connection belongs to
// userID, returning the loaded account on success.
func (v *Verifier) VerifyAccountOwnership(ctx context.Context, accountID, userID uuid.UUID) result.Result[*domain.Account, ErrorCode] {
	account, err := v.accounts.FindByID(ctx, accountID)
	if err != nil || account == nil {
		return result.Failure[*domain.Account, ErrorCode](ErrAccountNotFound)
	}
	if r := v.VerifyConnectionOwnership(ctx, account.ConnectionID, userID); r.IsFailure() {
		return result.Failure[*domain.Account, ErrorCode](r.Error())
	}
	return result.Success[*domain.Account, ErrorCode](account)
}

// VerifyAccountOwnershipOnly is VerifyAccountOwnership without returning the
// entity, for call sites that only need the pass/fail outcome.
func (v *Verifier) VerifyAccountOwnershipOnly(ctx context.Context, accountID, userID uuid.UUID) result.Result[struct{}, ErrorCode] {
	r := v.VerifyAccountOwnership(ctx, accountID, userID)
	if r.IsFailure() {
		return result.Failure[struct{}, ErrorCode](r.Error())
	}
	return result.Success[struct{}, ErrorCode](struct{}{})
}

// VerifyHoldingOwnership confirms holdingID's owning account (and thus
// connection) belongs to userID, returning the loaded holding on success.
func (v *Verifier) VerifyHoldingOwnership(ctx context.Context, holdingID, userID uuid.UUID) result.Result[*domain.Holding, ErrorCode] {
	holding, err := v.holdings.FindByID(ctx, holdingID)
	if err != nil || holding == nil {
		return result.Failure[*domain.Holding, ErrorCode](ErrHoldingNotFound)
	}
	if r := v.VerifyAccountOwnershipOnly(ctx, holding.AccountID, userID); r.IsFailure() {
		return result.Failure[*domain.Holding, ErrorCode](r.Error())
	}
	return result.Success[*domain.Holding, ErrorCode](holding)
}

// VerifyTransactionOwnership confirms transactionID's owning account (and
// thus connection) belongs to userID, returning the loaded transaction on
// success.
func (v *Verifier) VerifyTransactionOwnership(ctx context.Context, transactionID, userID uuid.UUID) result.Result[*domain.Transaction, ErrorCode] {
	tx, err := v.transactions.FindByID(ctx, transactionID)
	if err != nil || tx == nil {
		return result.Failure[*domain.Transaction, ErrorCode](ErrTransactionNotFound)
	}
	if r := v.VerifyAccountOwnershipOnly(ctx, tx.AccountID, userID); r.IsFailure() {
		return result.Failure[*domain.Transaction, ErrorCode](r.Error())
	}
	return result.Success[*domain.Transaction, ErrorCode](tx)
}
