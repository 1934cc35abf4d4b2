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

// SyncHoldingsInput is the immutable command to pull the current position
// list for one investment account from its provider.
type SyncHoldingsInput struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Force     bool
}

// SyncHoldingsOutput reports what the sync did. Deactivated counts holdings
// the account previously had that the provider no longer reports.
type SyncHoldingsOutput struct {
	Created     int
	Updated     int
	Unchanged   int
	Deactivated int
	Errors      int
}

// SyncHoldings replaces an account's open positions with the provider's
// current view: every reported holding is upserted by provider_holding_id,
// and any previously-active holding absent from this response is
// deactivated (closed positions are retained for history, never deleted).
func (h *Handlers) SyncHoldings(ctx context.Context, in SyncHoldingsInput) result.Result[SyncHoldingsOutput, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeHoldingsSyncAttempted, now, in.UserID, events.HoldingsSyncPayload{
		AccountID: in.AccountID,
	}))

	fail := func(code Code, message string) result.Result[SyncHoldingsOutput, Failure] {
		h.publish(ctx, events.New(events.TypeHoldingsSyncFailed, h.now(), in.UserID, events.HoldingsSyncPayload{
			AccountID:     in.AccountID,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[SyncHoldingsOutput, Failure](Failure{Code: code, Message: message})
	}

	account, err := h.Accounts.FindByID(ctx, in.AccountID)
	if err != nil {
		return fail(CodeDatabaseError, err.Error())
	}
	if account == nil {
		return fail(CodeAccountNotFound, "account not found")
	}

	conn, err := h.Connections.FindByID(ctx, account.ConnectionID)
	if err != nil {
		return fail(CodeDatabaseError, err.Error())
	}
	if conn == nil {
		return fail(CodeConnectionNotFound, "connection not found")
	}
	if conn.UserID != in.UserID {
		return fail(CodeNotOwnedByUser, "account is not owned by this user")
	}
	if !conn.IsConnected() {
		return fail(CodeConnectionNotActive, "connection is not ACTIVE with stored credentials")
	}
	if !account.IsInvestmentAccount() {
		return fail(CodeAccountNotFound, "account does not hold positions")
	}

	if !in.Force && account.LastSyncedAt != nil && now.Sub(*account.LastSyncedAt) < h.MinSyncInterval {
		return fail(CodeRecentlySynced, "account holdings were synced within the minimum sync interval")
	}

	bundle, decErr := h.decryptCredentials(conn.Credentials)
	if decErr != nil {
		return fail(decErr.Code, decErr.Message)
	}

	provider, err := h.Factory.GetProvider(conn.ProviderSlug)
	if err != nil {
		return fail(CodeProviderNotFound, err.Error())
	}

	providerHoldings, err := provider.FetchHoldings(ctx, bundle, account.ProviderAccountID)
	if err != nil {
		f := translateProviderError(err)
		return fail(f.Code, f.Message)
	}

	existing, err := h.Holdings.ListByAccount(ctx, in.AccountID, true)
	if err != nil {
		return fail(CodeDatabaseError, err.Error())
	}
	seen := make(map[string]bool, len(providerHoldings))

	out := SyncHoldingsOutput{}
	for _, ph := range providerHoldings {
		if ctx.Err() != nil {
			return fail(CodeCancelled, ctx.Err().Error())
		}
		seen[ph.ProviderHoldingID] = true
		created, changed, syncErr := h.upsertHolding(ctx, in.AccountID, ph, now)
		if syncErr != nil {
			out.Errors++
			h.Log.Warn().Err(syncErr).Str("provider_holding_id", ph.ProviderHoldingID).Msg("holding sync: per-holding error, isolated")
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
	}

	for _, h2 := range existing {
		if seen[h2.ProviderHoldingID] {
			continue
		}
		h2.Deactivate(now)
		if err := h.Holdings.Save(ctx, h2); err != nil {
			out.Errors++
			h.Log.Warn().Err(err).Str("holding_id", h2.ID.String()).Msg("holding deactivation failed, isolated")
			continue
		}
		out.Deactivated++
	}

	account.MarkSynced(now)
	if err := h.Accounts.Save(ctx, account); err != nil {
		return fail(CodeDatabaseError, err.Error())
	}

	h.publish(ctx, events.New(events.TypeHoldingsSyncSucceeded, now, in.UserID, events.HoldingsSyncPayload{
		AccountID:   in.AccountID,
		Created:     out.Created,
		Updated:     out.Updated,
		Unchanged:   out.Unchanged,
		Deactivated: out.Deactivated,
		Errors:      out.Errors,
	}))
	return result.Success[SyncHoldingsOutput, Failure](out)
}

// upsertHolding creates or updates a single holding keyed by
// (account_id, provider_holding_id). Returns whether it was created,
// whether anything changed, and any per-holding error.
func (h *Handlers) upsertHolding(ctx context.Context, accountID uuid.UUID, ph ports.ProviderHoldingData, now time.Time) (bool, bool, error) {
	currency := ph.Currency
	marketValue, err := money.New(ph.MarketValue, currency)
	if err != nil {
		return false, false, err
	}
	var costBasis *money.Money
	if ph.CostBasis != nil {
		cb, err := money.New(*ph.CostBasis, currency)
		if err != nil {
			return false, false, err
		}
		costBasis = &cb
	}
	var averagePrice *money.Money
	if ph.AveragePrice != nil {
		ap, err := money.New(*ph.AveragePrice, currency)
		if err != nil {
			return false, false, err
		}
		averagePrice = &ap
	}
	var currentPrice *money.Money
	if ph.CurrentPrice != nil {
		cp, err := money.New(*ph.CurrentPrice, currency)
		if err != nil {
			return false, false, err
		}
		currentPrice = &cp
	}

	existing, err := h.Holdings.FindByProviderHoldingID(ctx, accountID, ph.ProviderHoldingID)
	if err != nil {
		return false, false, err
	}

	if existing == nil {
		holding, err := domain.NewHolding(
			newID(), accountID, ph.ProviderHoldingID, ph.Symbol, ph.SecurityName,
			normalizeAssetType(ph.AssetType), ph.Quantity, costBasis, averagePrice,
			currentPrice, marketValue, currency, true, &now, now, now,
		)
		if err != nil {
			return false, false, err
		}
		if err := h.Holdings.Save(ctx, holding); err != nil {
			return false, false, err
		}
		return true, true, nil
	}

	changed := !existing.Quantity.Equal(ph.Quantity) || !existing.MarketValue.Equal(marketValue) || !existing.IsActive
	existing.UpdateFromSync(now, ph.Quantity, costBasis, averagePrice, currentPrice, marketValue)
	existing.IsActive = true
	if err := h.Holdings.Save(ctx, existing); err != nil {
		return false, false, err
	}
	return false, changed, nil
}
