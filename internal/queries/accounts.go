package queries

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/result"
)

// GetAccount fetches one account owned (through its connection) by userID.
func (h *Handlers) GetAccount(ctx context.Context, userID, accountID uuid.UUID) result.Result[AccountDTO, Failure] {
	r := h.Verifier.VerifyAccountOwnership(ctx, accountID, userID)
	if r.IsFailure() {
		return result.Failure[AccountDTO, Failure](fromOwnership(r.Error()))
	}
	return result.Success[AccountDTO, Failure](accountDTO(r.Value()))
}

// ListAccounts lists every account across a user's connections, optionally
// restricted to active accounts and/or a single account type.
func (h *Handlers) ListAccounts(ctx context.Context, userID uuid.UUID, activeOnly bool, accountType *domain.AccountType) result.Result[[]AccountDTO, Failure] {
	accounts, err := h.Accounts.FindByUserID(ctx, userID, activeOnly, accountType)
	if err != nil {
		return result.Failure[[]AccountDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, accountDTO(a))
	}
	return result.Success[[]AccountDTO, Failure](dtos)
}

// GetTransaction fetches one transaction owned (through its account's
// connection) by userID.
func (h *Handlers) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) result.Result[TransactionDTO, Failure] {
	r := h.Verifier.VerifyTransactionOwnership(ctx, transactionID, userID)
	if r.IsFailure() {
		return result.Failure[TransactionDTO, Failure](fromOwnership(r.Error()))
	}
	return result.Success[TransactionDTO, Failure](transactionDTO(r.Value()))
}

// GetHolding fetches one holding owned (through its account's connection)
// by userID.
func (h *Handlers) GetHolding(ctx context.Context, userID, holdingID uuid.UUID) result.Result[HoldingDTO, Failure] {
	r := h.Verifier.VerifyHoldingOwnership(ctx, holdingID, userID)
	if r.IsFailure() {
		return result.Failure[HoldingDTO, Failure](fromOwnership(r.Error()))
	}
	return result.Success[HoldingDTO, Failure](holdingDTO(r.Value()))
}
