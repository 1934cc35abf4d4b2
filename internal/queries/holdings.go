package queries

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/result"
)

// HoldingAggregateDTO sums a set of holdings' value fields for one currency.
type HoldingAggregateDTO struct {
	MarketValue        string
	CostBasis          string
	UnrealizedGainLoss string
}

// HoldingsListDTO is the result of a holdings listing: the filtered
// holdings plus per-currency aggregates over the returned set.
type HoldingsListDTO struct {
	Holdings             []HoldingDTO
	AggregatesByCurrency map[string]HoldingAggregateDTO
}

func filterHoldings(holdings []*domain.Holding, assetType *domain.AssetType, symbol *string) []*domain.Holding {
	if assetType == nil && symbol == nil {
		return holdings
	}
	out := make([]*domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		if assetType != nil && h.AssetType != *assetType {
			continue
		}
		if symbol != nil && h.Symbol != *symbol {
			continue
		}
		out = append(out, h)
	}
	return out
}

func aggregateHoldings(holdings []*domain.Holding) map[string]HoldingAggregateDTO {
	marketValue := map[string]decimal.Decimal{}
	costBasis := map[string]decimal.Decimal{}
	gainLoss := map[string]decimal.Decimal{}
	for _, h := range holdings {
		marketValue[h.Currency] = marketValue[h.Currency].Add(h.MarketValue.Amount())
		if h.CostBasis != nil {
			costBasis[h.Currency] = costBasis[h.Currency].Add(h.CostBasis.Amount())
		}
		if g := h.UnrealizedGainLoss(); g != nil {
			gainLoss[h.Currency] = gainLoss[h.Currency].Add(g.Amount())
		}
	}
	out := make(map[string]HoldingAggregateDTO, len(marketValue))
	for currency, mv := range marketValue {
		out[currency] = HoldingAggregateDTO{
			MarketValue:        mv.String(),
			CostBasis:          costBasis[currency].String(),
			UnrealizedGainLoss: gainLoss[currency].String(),
		}
	}
	return out
}

func toHoldingsListDTO(holdings []*domain.Holding) HoldingsListDTO {
	dtos := make([]HoldingDTO, 0, len(holdings))
	for _, h := range holdings {
		dtos = append(dtos, holdingDTO(h))
	}
	return HoldingsListDTO{
		Holdings:             dtos,
		AggregatesByCurrency: aggregateHoldings(holdings),
	}
}

// ListHoldingsByAccount lists an account's holdings, optionally filtered by
// asset type and/or symbol, with per-currency value aggregates.
func (h *Handlers) ListHoldingsByAccount(ctx context.Context, userID, accountID uuid.UUID, assetType *domain.AssetType, symbol *string) result.Result[HoldingsListDTO, Failure] {
	if r := h.Verifier.VerifyAccountOwnershipOnly(ctx, accountID, userID); r.IsFailure() {
		return result.Failure[HoldingsListDTO, Failure](fromOwnership(r.Error()))
	}

	holdings, err := h.Holdings.ListByAccount(ctx, accountID, true)
	if err != nil {
		return result.Failure[HoldingsListDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	holdings = filterHoldings(holdings, assetType, symbol)
	return result.Success[HoldingsListDTO, Failure](toHoldingsListDTO(holdings))
}

// ListHoldingsByUser lists every holding across a user's accounts,
// optionally filtered by asset type and/or symbol, with per-currency value
// aggregates.
func (h *Handlers) ListHoldingsByUser(ctx context.Context, userID uuid.UUID, assetType *domain.AssetType, symbol *string) result.Result[HoldingsListDTO, Failure] {
	holdings, err := h.Holdings.ListByUser(ctx, userID, true)
	if err != nil {
		return result.Failure[HoldingsListDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	holdings = filterHoldings(holdings, assetType, symbol)
	return result.Success[HoldingsListDTO, Failure](toHoldingsListDTO(holdings))
}
