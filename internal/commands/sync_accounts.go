package commands

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/result"
)

// SyncAccountsInput is the immutable command to pull the current account
// list and balances for one connection from its provider.
type SyncAccountsInput struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	Force        bool
}

// SyncAccountsOutput reports what the sync did. Deltas carries one entry
// per account whose balance actually changed, mirroring the
// AccountBalanceUpdated events emitted alongside it.
type SyncAccountsOutput struct {
	Created   int
	Updated   int
	Unchanged int
	Errors    int
	Deltas    []BalanceDelta
}

// BalanceDelta describes one account's old/new balance for the
// AccountBalanceUpdated event stream.
type BalanceDelta struct {
	AccountID    uuid.UUID
	ConnectionID uuid.UUID
	Old          money.Money
	New          money.Money
}

// SyncAccounts fetches every account the provider currently reports for a
// connection and upserts it. Per-account failures are isolated (counted in
// Errors, loop continues); only connection-level preconditions and the
// provider call itself are fatal for the whole invocation.
func (h *Handlers) SyncAccounts(ctx context.Context, in SyncAccountsInput) result.Result[SyncAccountsOutput, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeAccountSyncAttempted, now, in.UserID, events.AccountSyncPayload{
		ConnectionID: in.ConnectionID,
	}))

	fail := func(code Code, message string) result.Result[SyncAccountsOutput, Failure] {
		h.publish(ctx, events.New(events.TypeAccountSyncFailed, h.now(), in.UserID, events.AccountSyncPayload{
			ConnectionID:  in.ConnectionID,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[SyncAccountsOutput, Failure](Failure{Code: code, Message: message})
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

	if !in.Force && conn.LastSyncAt != nil && now.Sub(*conn.LastSyncAt) < h.MinSyncInterval {
		return fail(CodeRecentlySynced, "connection was synced within the minimum sync interval")
	}

	bundle, decErr := h.decryptCredentials(conn.Credentials)
	if decErr != nil {
		return fail(decErr.Code, decErr.Message)
	}

	provider, err := h.Factory.GetProvider(conn.ProviderSlug)
	if err != nil {
		return fail(CodeProviderNotFound, err.Error())
	}

	providerAccounts, err := provider.FetchAccounts(ctx, bundle)
	if err != nil {
		f := translateProviderError(err)
		return fail(f.Code, f.Message)
	}

	out := SyncAccountsOutput{}
	for _, pa := range providerAccounts {
		if ctx.Err() != nil {
			return fail(CodeCancelled, ctx.Err().Error())
		}
		delta, changed, created, syncErr := h.upsertAccount(ctx, conn.ID, pa, now)
		if syncErr != nil {
			out.Errors++
			h.Log.Warn().Err(syncErr).Str("provider_account_id", pa.ProviderAccountID).Msg("account sync: per-account error, isolated")
			continue
		}
		switch {
		case created:
			out.Created++
		case changed:
			out.Updated++
		default:
			out.Unchanged++
		}
		if delta != nil {
			out.Deltas = append(out.Deltas, *delta)
		}
	}

	if r := conn.RecordSync(now); r.IsFailure() {
		return fail(CodeConnectionNotActive, string(r.Error()))
	}
	if err := h.Connections.Save(ctx, conn); err != nil {
		return fail(CodeDatabaseError, err.Error())
	}

	h.publish(ctx, events.New(events.TypeAccountSyncSucceeded, now, in.UserID, events.AccountSyncPayload{
		ConnectionID: conn.ID,
		Created:      out.Created,
		Updated:      out.Updated,
		Unchanged:    out.Unchanged,
		Errors:       out.Errors,
	}))
	for _, d := range out.Deltas {
		h.publish(ctx, events.New(events.TypeAccountBalanceUpdated, now, in.UserID, events.AccountBalanceUpdatedPayload{
			AccountID:    d.AccountID,
			ConnectionID: d.ConnectionID,
			OldAmount:    d.Old.Amount().String(),
			NewAmount:    d.New.Amount().String(),
			Currency:     d.New.Currency(),
		}))
	}

	return result.Success[SyncAccountsOutput, Failure](out)
}

// upsertAccount creates or updates a single account from normalized
// provider data, keyed by (connection_id, provider_account_id). Returns the
// balance delta (nil if the balance is unchanged), whether anything about
// the account changed (balance, name, active flag or provider metadata),
// whether the account was newly created, and any per-account error for the
// caller to isolate.
func (h *Handlers) upsertAccount(ctx context.Context, connectionID uuid.UUID, pa ports.ProviderAccountData, now time.Time) (*BalanceDelta, bool, bool, error) {
	currency := pa.Currency
	balance, err := money.New(pa.Balance, currency)
	if err != nil {
		return nil, false, false, err
	}
	var available *money.Money
	if pa.AvailableBalance != nil {
		av, err := money.New(*pa.AvailableBalance, currency)
		if err != nil {
			return nil, false, false, err
		}
		available = &av
	}

	existing, err := h.Accounts.FindByProviderAccountID(ctx, connectionID, pa.ProviderAccountID)
	if err != nil {
		return nil, false, false, err
	}

	if existing == nil {
		acc, err := domain.NewAccount(
			newID(), connectionID, pa.ProviderAccountID, pa.AccountNumberMasked, pa.Name,
			normalizeAccountType(pa.AccountType), balance, available, currency,
			pa.IsActive, &now, pa.RawData, now, now,
		)
		if err != nil {
			return nil, false, false, err
		}
		if err := h.Accounts.Save(ctx, acc); err != nil {
			return nil, false, false, err
		}
		h.captureSnapshot(ctx, acc, domain.SnapshotInitialConnection, now)
		if balance.IsZero() {
			return nil, true, true, nil
		}
		zero := money.Zero(currency)
		delta := &BalanceDelta{AccountID: acc.ID, ConnectionID: connectionID, Old: zero, New: balance}
		return delta, true, true, nil
	}

	oldBalance := existing.Balance
	balanceChanged := !oldBalance.Equal(balance)
	metadataChanged := pa.RawData != nil && !reflect.DeepEqual(existing.ProviderMetadata, pa.RawData)
	changed := balanceChanged || existing.Name != pa.Name || existing.IsActive != pa.IsActive || metadataChanged

	if r := existing.UpdateBalance(now, balance, available); r.IsFailure() {
		return nil, false, false, errors.New(r.Error())
	}
	name := pa.Name
	isActive := pa.IsActive
	if r := existing.UpdateFromProvider(now, &name, &isActive, pa.RawData); r.IsFailure() {
		return nil, false, false, errors.New(string(r.Error()))
	}
	existing.MarkSynced(now)

	if err := h.Accounts.Save(ctx, existing); err != nil {
		return nil, false, false, err
	}

	if !balanceChanged {
		return nil, changed, false, nil
	}
	h.captureSnapshot(ctx, existing, domain.SnapshotAccountSync, now)
	delta := &BalanceDelta{AccountID: existing.ID, ConnectionID: connectionID, Old: oldBalance, New: balance}
	return delta, changed, false, nil
}

// captureSnapshot appends a balance snapshot for an account whose balance
// was just established or changed by a sync. Snapshot history is derived
// data, so a failure here is logged and swallowed rather than failing the
// account upsert that triggered it.
func (h *Handlers) captureSnapshot(ctx context.Context, account *domain.Account, source domain.SnapshotSource, now time.Time) {
	snap, err := domain.NewBalanceSnapshot(
		newID(), account.ID, account.Balance, account.AvailableBalance,
		account.Currency, source, now, now,
		domain.WithProviderMetadata(account.ProviderMetadata),
	)
	if err != nil {
		h.Log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("balance snapshot construction failed")
		return
	}
	if err := h.Snapshots.Save(ctx, snap); err != nil {
		h.Log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("balance snapshot save failed")
	}
}
