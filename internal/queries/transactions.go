package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/result"
)

// TransactionsPageDTO is a page of transactions plus whether a further page
// exists (len(Transactions) == the requested limit).
type TransactionsPageDTO struct {
	Transactions []TransactionDTO
	HasMore      bool
}

// ListTransactionsByAccount lists one page of an account's transaction
// history, most recent first, as the repository orders it.
func (h *Handlers) ListTransactionsByAccount(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) result.Result[TransactionsPageDTO, Failure] {
	if r := h.Verifier.VerifyAccountOwnershipOnly(ctx, accountID, userID); r.IsFailure() {
		return result.Failure[TransactionsPageDTO, Failure](fromOwnership(r.Error()))
	}

	txs, err := h.Transactions.FindByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return result.Failure[TransactionsPageDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, transactionDTO(t))
	}
	return result.Success[TransactionsPageDTO, Failure](TransactionsPageDTO{
		Transactions: dtos,
		HasMore:      len(txs) == limit,
	})
}

// ListTransactionsByDateRange lists an account's transactions whose
// transaction_date falls within [start, end] (both bounds inclusive).
func (h *Handlers) ListTransactionsByDateRange(ctx context.Context, userID, accountID uuid.UUID, start, end time.Time) result.Result[[]TransactionDTO, Failure] {
	if !start.Before(end) {
		return result.Failure[[]TransactionDTO, Failure](Failure{Code: CodeInvalidDateRange, Message: "start_date must be before end_date"})
	}
	if r := h.Verifier.VerifyAccountOwnershipOnly(ctx, accountID, userID); r.IsFailure() {
		return result.Failure[[]TransactionDTO, Failure](fromOwnership(r.Error()))
	}

	txs, err := h.Transactions.FindByDateRange(ctx, accountID, start, end)
	if err != nil {
		return result.Failure[[]TransactionDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, transactionDTO(t))
	}
	return result.Success[[]TransactionDTO, Failure](dtos)
}

// ListTransactionsBySecurity lists transactions for a symbol across every
// account the caller owns. FindSecurityTransactions has no user scoping of
// its own, so results are filtered down to accounts owned (directly or
// through their connection) by userID before being returned.
func (h *Handlers) ListTransactionsBySecurity(ctx context.Context, userID uuid.UUID, symbol string, limit int) result.Result[[]TransactionDTO, Failure] {
	txs, err := h.Transactions.FindSecurityTransactions(ctx, symbol, limit)
	if err != nil {
		return result.Failure[[]TransactionDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}

	owned := map[uuid.UUID]bool{}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		isOwned, checked := owned[t.AccountID]
		if !checked {
			isOwned = h.accountBelongsToUser(ctx, t.AccountID, userID)
			owned[t.AccountID] = isOwned
		}
		if isOwned {
			dtos = append(dtos, transactionDTO(t))
		}
	}
	return result.Success[[]TransactionDTO, Failure](dtos)
}

func (h *Handlers) accountBelongsToUser(ctx context.Context, accountID, userID uuid.UUID) bool {
	return !h.Verifier.VerifyAccountOwnershipOnly(ctx, accountID, userID).IsFailure()
}
