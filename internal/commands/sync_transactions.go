package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/result"
)

// SyncTransactionsInput is the immutable command to pull activity history
// for a connection's accounts from its provider. AccountID restricts the
// sync to a single account; when nil, every active account on the
// connection is synced. Window bounds are optional; when both are nil the
// handler defaults to [now - DefaultSyncWindow, now].
type SyncTransactionsInput struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	AccountID    *uuid.UUID
	Start        *time.Time
	End          *time.Time
}

// SyncTransactionsOutput reports what the sync did, totaled across every
// account it touched. Skipped counts transactions already on file by
// provider_transaction_id — transactions are immutable history, so a
// repeat is a no-op rather than an update.
type SyncTransactionsOutput struct {
	Created int
	Skipped int
	Errors  int
}

// SyncTransactions pulls activity history for one account (if AccountID is
// set) or every active account on a connection, inserting any transaction
// not already recorded by provider_transaction_id. Per-account and
// per-transaction failures are isolated (counted in Errors, loop
// continues); only connection-level preconditions and the provider call
// setup are fatal for the whole invocation.
func (h *Handlers) SyncTransactions(ctx context.Context, in SyncTransactionsInput) result.Result[SyncTransactionsOutput, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeTransactionSyncAttempted, now, in.UserID, events.TransactionSyncPayload{
		ConnectionID: in.ConnectionID,
		AccountID:    in.AccountID,
	}))

	fail := func(code Code, message string) result.Result[SyncTransactionsOutput, Failure] {
		h.publish(ctx, events.New(events.TypeTransactionSyncFailed, h.now(), in.UserID, events.TransactionSyncPayload{
			ConnectionID:  in.ConnectionID,
			AccountID:     in.AccountID,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[SyncTransactionsOutput, Failure](Failure{Code: code, Message: message})
	}

	conn, err := h.Connections.FindByID(ctx, in.ConnectionID)
	if err != nil {
		return fail(CodeDatabaseError, err.Error())
	}
	if conn == nil {
		return fail(CodeConnectionNotFound, "connection not found")
	}
	if conn.UserID != in.UserID {
		return fail(CodeNotOwnedByUser, "connection is not owned by this user")
	}
	if !conn.IsConnected() {
		return fail(CodeConnectionNotActive, "connection is not ACTIVE with stored credentials")
	}

	var accounts []*domain.Account
	if in.AccountID != nil {
		account, err := h.Accounts.FindByID(ctx, *in.AccountID)
		if err != nil {
			return fail(CodeDatabaseError, err.Error())
		}
		if account == nil || account.ConnectionID != conn.ID {
			return fail(CodeAccountNotFound, "account not found on this connection")
		}
		accounts = []*domain.Account{account}
	} else {
		accounts, err = h.Accounts.FindByConnectionID(ctx, conn.ID, true)
		if err != nil {
			return fail(CodeDatabaseError, err.Error())
		}
	}

	bundle, decErr := h.decryptCredentials(conn.Credentials)
	if decErr != nil {
		return fail(decErr.Code, decErr.Message)
	}

	provider, err := h.Factory.GetProvider(conn.ProviderSlug)
	if err != nil {
		return fail(CodeProviderNotFound, err.Error())
	}

	start := in.Start
	if start == nil {
		s := now.Add(-h.DefaultSyncWindow)
		start = &s
	}
	end := in.End
	if end == nil {
		end = &now
	}

	out := SyncTransactionsOutput{}
	for _, account := range accounts {
		if ctx.Err() != nil {
			return fail(CodeCancelled, ctx.Err().Error())
		}
		providerTxs, err := provider.FetchTransactions(ctx, bundle, account.ProviderAccountID, start, end)
		if err != nil {
			out.Errors++
			h.Log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("transaction sync: per-account fetch error, isolated")
			continue
		}
		for _, pt := range providerTxs {
			if ctx.Err() != nil {
				return fail(CodeCancelled, ctx.Err().Error())
			}
			created, syncErr := h.insertTransactionIfNew(ctx, account.ID, pt, now)
			if syncErr != nil {
				out.Errors++
				h.Log.Warn().Err(syncErr).Str("provider_transaction_id", pt.ProviderTransactionID).Msg("transaction sync: per-record error, isolated")
				continue
			}
			if created {
				out.Created++
			} else {
				out.Skipped++
			}
		}
	}

	h.publish(ctx, events.New(events.TypeTransactionSyncSucceeded, now, in.UserID, events.TransactionSyncPayload{
		ConnectionID: conn.ID,
		AccountID:    in.AccountID,
		Created:      out.Created,
		Skipped:      out.Skipped,
		Errors:       out.Errors,
	}))
	return result.Success[SyncTransactionsOutput, Failure](out)
}

// insertTransactionIfNew inserts one provider transaction unless its
// provider_transaction_id is already on file for this account, in which
// case it is skipped (transactions are immutable once recorded; this core
// does not yet propagate provider-side PENDING→SETTLED transitions onto
// rows already stored).
func (h *Handlers) insertTransactionIfNew(ctx context.Context, accountID uuid.UUID, pt ports.ProviderTransactionData, now time.Time) (bool, error) {
	existing, err := h.Transactions.FindByProviderTransactionID(ctx, accountID, pt.ProviderTransactionID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	currency := pt.Currency
	amount, err := money.New(pt.Amount, currency)
	if err != nil {
		return false, err
	}
	fees := money.Zero(currency)
	if pt.Commission != nil {
		fees, err = money.New(*pt.Commission, currency)
		if err != nil {
			return false, err
		}
	}
	var price *money.Money
	if pt.UnitPrice != nil {
		p, err := money.New(*pt.UnitPrice, currency)
		if err != nil {
			return false, err
		}
		price = &p
	}
	var symbol *string
	if pt.Symbol != "" {
		s := pt.Symbol
		symbol = &s
	}
	var securityName *string
	if pt.SecurityName != "" {
		n := pt.SecurityName
		securityName = &n
	}
	var assetType *domain.AssetType
	if pt.AssetType != "" {
		at := normalizeAssetType(pt.AssetType)
		assetType = &at
	}

	txType := normalizeTransactionType(pt.TransactionType)
	tx, err := domain.NewTransaction(
		newID(), accountID, pt.ProviderTransactionID, symbol, securityName, assetType,
		txType, normalizeTransactionSubtype(pt.Subtype, txType),
		pt.Quantity, price, amount, fees, currency,
		normalizeTransactionStatus(pt.Status),
		pt.TransactionDate, pt.SettlementDate, pt.Description,
		now, now,
	)
	if err != nil {
		return false, err
	}

	if err := h.Transactions.Save(ctx, tx); err != nil {
		return false, err
	}
	return true, nil
}
