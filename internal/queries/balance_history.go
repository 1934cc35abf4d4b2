package queries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/result"
)

var validSnapshotSources = map[domain.SnapshotSource]bool{
	domain.SnapshotAccountSync:       true,
	domain.SnapshotHoldingsSync:      true,
	domain.SnapshotManualSync:        true,
	domain.SnapshotScheduledSync:     true,
	domain.SnapshotInitialConnection: true,
}

func parseSource(raw *string) (*domain.SnapshotSource, *Failure) {
	if raw == nil {
		return nil, nil
	}
	s := domain.SnapshotSource(*raw)
	if !validSnapshotSources[s] {
		f := Failure{Code: CodeInvalidSource, Message: "unrecognized snapshot source"}
		return nil, &f
	}
	return &s, nil
}

// BalanceHistoryDTO is GetBalanceHistory's result: the in-range snapshots
// with per-snapshot deltas, plus a period-level summary.
type BalanceHistoryDTO struct {
	Snapshots          []SnapshotDTO
	TotalChange        *MoneyDTO
	TotalChangePercent *float64
}

// GetBalanceHistory fetches an account's balance snapshots within [start,
// end] (both bounds inclusive), ordered ascending, each annotated with its change relative to the
// previous snapshot in the result set, plus a period-level summary
// comparing the first and last snapshot.
func (h *Handlers) GetBalanceHistory(ctx context.Context, userID, accountID uuid.UUID, start, end time.Time, source *string) result.Result[BalanceHistoryDTO, Failure] {
	if !start.Before(end) {
		return result.Failure[BalanceHistoryDTO, Failure](Failure{Code: CodeInvalidDateRange, Message: "start_date must be before end_date"})
	}
	src, sf := parseSource(source)
	if sf != nil {
		return result.Failure[BalanceHistoryDTO, Failure](*sf)
	}

	if r := h.Verifier.VerifyAccountOwnershipOnly(ctx, accountID, userID); r.IsFailure() {
		return result.Failure[BalanceHistoryDTO, Failure](fromOwnership(r.Error()))
	}

	snaps, err := h.Snapshots.FindByAccountIDInRange(ctx, accountID, start, end, src)
	if err != nil {
		return result.Failure[BalanceHistoryDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}

	dtos := make([]SnapshotDTO, 0, len(snaps))
	var prev *domain.BalanceSnapshot
	for _, s := range snaps {
		dto := snapshotDTO(s)
		if prev != nil && prev.Currency == s.Currency {
			delta, err := s.Balance.Sub(prev.Balance)
			if err == nil {
				amt := delta.Amount().String()
				dto.ChangeAmount = &amt
				if !prev.Balance.Amount().IsZero() {
					pct, _ := delta.Amount().Div(prev.Balance.Amount()).Mul(decimal.NewFromInt(100)).Float64()
					dto.ChangePercent = &pct
				}
			}
		}
		dtos = append(dtos, dto)
		prev = s
	}

	out := BalanceHistoryDTO{Snapshots: dtos}
	if len(snaps) > 0 {
		first, last := snaps[0], snaps[len(snaps)-1]
		if first.Currency == last.Currency {
			totalChange, err := last.Balance.Sub(first.Balance)
			if err == nil {
				out.TotalChange = moneyDTOPtr(&totalChange)
				if !first.Balance.Amount().IsZero() {
					pct, _ := totalChange.Amount().Div(first.Balance.Amount()).Mul(decimal.NewFromInt(100)).Float64()
					out.TotalChangePercent = &pct
				}
			}
		}
	}
	return result.Success[BalanceHistoryDTO, Failure](out)
}

// LatestBalancesDTO is GetLatestBalanceSnapshots' result: the single most
// recent snapshot per account for a user, plus totals summed per currency.
type LatestBalancesDTO struct {
	Snapshots        []SnapshotDTO
	TotalsByCurrency map[string]string
}

// GetLatestBalanceSnapshots fetches the latest balance snapshot for every
// account a user owns, aggregating totals by currency.
func (h *Handlers) GetLatestBalanceSnapshots(ctx context.Context, userID uuid.UUID) result.Result[LatestBalancesDTO, Failure] {
	snaps, err := h.Snapshots.FindLatestByUserID(ctx, userID)
	if err != nil {
		return result.Failure[LatestBalancesDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}

	dtos := make([]SnapshotDTO, 0, len(snaps))
	totals := map[string]decimal.Decimal{}
	for _, s := range snaps {
		dtos = append(dtos, snapshotDTO(s))
		totals[s.Currency] = totals[s.Currency].Add(s.Balance.Amount())
	}
	stringTotals := make(map[string]string, len(totals))
	for currency, sum := range totals {
		stringTotals[currency] = sum.String()
	}

	return result.Success[LatestBalancesDTO, Failure](LatestBalancesDTO{
		Snapshots:        dtos,
		TotalsByCurrency: stringTotals,
	})
}

// GetUserBalanceHistory fetches every snapshot across all of a user's
// accounts within [start, end] (both bounds inclusive). Unlike GetBalanceHistory, no per-snapshot
// delta is computed: snapshots from different accounts (and potentially
// different currencies) have no meaningful pairwise change.
func (h *Handlers) GetUserBalanceHistory(ctx context.Context, userID uuid.UUID, start, end time.Time, source *string) result.Result[[]SnapshotDTO, Failure] {
	if !start.Before(end) {
		return result.Failure[[]SnapshotDTO, Failure](Failure{Code: CodeInvalidDateRange, Message: "start_date must be before end_date"})
	}
	src, sf := parseSource(source)
	if sf != nil {
		return result.Failure[[]SnapshotDTO, Failure](*sf)
	}

	snaps, err := h.Snapshots.FindByUserIDInRange(ctx, userID, start, end, src)
	if err != nil {
		return result.Failure[[]SnapshotDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	dtos := make([]SnapshotDTO, 0, len(snaps))
	for _, s := range snaps {
		dtos = append(dtos, snapshotDTO(s))
	}
	return result.Success[[]SnapshotDTO, Failure](dtos)
}
