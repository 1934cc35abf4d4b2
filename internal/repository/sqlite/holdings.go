package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/domain"
)

// HoldingRepository adapts ports.HoldingRepository onto the holdings table.
type HoldingRepository struct {
	db *sql.DB
}

func NewHoldingRepository(db *sql.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

const holdingColumns = `id, account_id, provider_holding_id, symbol, description, asset_type,
	quantity, cost_basis, average_price, current_price, market_value, currency, is_active,
	last_synced_at, created_at, updated_at`

func scanHolding(scan func(dest ...any) error) (*domain.Holding, error) {
	var (
		id, accountID               uuid.UUID
		providerHoldingID, symbol   string
		description                 sql.NullString
		assetType                   string
		quantityStr                 string
		costBasis, averagePrice     sql.NullString
		currentPrice                sql.NullString
		marketValue, currency       string
		isActive                    int
		lastSyncedAt                sql.NullString
		createdAtStr, updatedAtStr  string
	)
	if err := scan(&id, &accountID, &providerHoldingID, &symbol, &description, &assetType,
		&quantityStr, &costBasis, &averagePrice, &currentPrice, &marketValue, &currency,
		&isActive, &lastSyncedAt, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("decode quantity: %w", err)
	}
	costBasisMoney, err := decodeNullMoney(costBasis, currency)
	if err != nil {
		return nil, fmt.Errorf("decode cost_basis: %w", err)
	}
	averagePriceMoney, err := decodeNullMoney(averagePrice, currency)
	if err != nil {
		return nil, fmt.Errorf("decode average_price: %w", err)
	}
	currentPriceMoney, err := decodeNullMoney(currentPrice, currency)
	if err != nil {
		return nil, fmt.Errorf("decode current_price: %w", err)
	}
	marketValueMoney, err := decodeMoney(marketValue, currency)
	if err != nil {
		return nil, fmt.Errorf("decode market_value: %w", err)
	}
	lastSyncedAtPtr, err := parseNullTime(lastSyncedAt)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtStr)
	if err != nil {
		return nil, err
	}
	desc := ""
	if description.Valid {
		desc = description.String
	}

	return domain.NewHolding(id, accountID, providerHoldingID, symbol, desc,
		domain.AssetType(assetType), quantity, costBasisMoney, averagePriceMoney,
		currentPriceMoney, marketValueMoney, currency, isActive != 0, lastSyncedAtPtr,
		createdAt, updatedAt)
}

func (r *HoldingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+holdingColumns+" FROM holdings WHERE id = ?", id.String())
	h, err := scanHolding(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find holding by id: %w", err)
	}
	return h, nil
}

func (r *HoldingRepository) queryHoldings(ctx context.Context, query string, args ...any) ([]*domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []*domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HoldingRepository) FindByAccountAndSymbol(ctx context.Context, accountID uuid.UUID, symbol string) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE account_id = ? AND symbol = ?",
		accountID.String(), symbol)
	h, err := scanHolding(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find holding by account and symbol: %w", err)
	}
	return h, nil
}

func (r *HoldingRepository) FindByProviderHoldingID(ctx context.Context, accountID uuid.UUID, providerHoldingID string) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE account_id = ? AND provider_holding_id = ?",
		accountID.String(), providerHoldingID)
	h, err := scanHolding(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find holding by provider_holding_id: %w", err)
	}
	return h, nil
}

func (r *HoldingRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, activeOnly bool) ([]*domain.Holding, error) {
	query := "SELECT " + holdingColumns + " FROM holdings WHERE account_id = ?"
	args := []any{accountID.String()}
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY symbol"
	return r.queryHoldings(ctx, query, args...)
}

func (r *HoldingRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Holding, error) {
	query := `SELECT h.id, h.account_id, h.provider_holding_id, h.symbol, h.description, h.asset_type,
		h.quantity, h.cost_basis, h.average_price, h.current_price, h.market_value, h.currency,
		h.is_active, h.last_synced_at, h.created_at, h.updated_at
		FROM holdings h
		JOIN accounts a ON a.id = h.account_id
		JOIN provider_connections c ON c.id = a.connection_id
		WHERE c.user_id = ?`
	args := []any{userID.String()}
	if activeOnly {
		query += " AND h.is_active = 1"
	}
	query += " ORDER BY h.symbol"
	return r.queryHoldings(ctx, query, args...)
}

func (r *HoldingRepository) Save(ctx context.Context, holding *domain.Holding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings (
			id, account_id, provider_holding_id, symbol, description, asset_type,
			quantity, cost_basis, average_price, current_price, market_value, currency,
			is_active, last_synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			description = excluded.description,
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			average_price = excluded.average_price,
			current_price = excluded.current_price,
			market_value = excluded.market_value,
			is_active = excluded.is_active,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`,
		holding.ID.String(), holding.AccountID.String(), holding.ProviderHoldingID,
		holding.Symbol, holding.Description, string(holding.AssetType),
		holding.Quantity.String(), nullMoneyAmount(holding.CostBasis),
		nullMoneyAmount(holding.AveragePrice), nullMoneyAmount(holding.CurrentPrice),
		encodeMoneyAmount(holding.MarketValue), holding.Currency,
		boolToInt(holding.IsActive), nullTime(holding.LastSyncedAt),
		formatTime(holding.CreatedAt), formatTime(holding.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save holding: %w", err)
	}
	return nil
}

// SaveMany bulk-upserts in a single transaction so a partial batch never
// becomes visible.
func (r *HoldingRepository) SaveMany(ctx context.Context, holdings []*domain.Holding) error {
	return WithTransaction(r.db, func(dbTx *sql.Tx) error {
		stmt, err := dbTx.PrepareContext(ctx, `
			INSERT INTO holdings (
				id, account_id, provider_holding_id, symbol, description, asset_type,
				quantity, cost_basis, average_price, current_price, market_value, currency,
				is_active, last_synced_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				description = excluded.description,
				quantity = excluded.quantity,
				cost_basis = excluded.cost_basis,
				average_price = excluded.average_price,
				current_price = excluded.current_price,
				market_value = excluded.market_value,
				is_active = excluded.is_active,
				last_synced_at = excluded.last_synced_at,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("prepare bulk holding upsert: %w", err)
		}
		defer stmt.Close()
		for _, h := range holdings {
			if _, err := stmt.ExecContext(ctx,
				h.ID.String(), h.AccountID.String(), h.ProviderHoldingID,
				h.Symbol, h.Description, string(h.AssetType),
				h.Quantity.String(), nullMoneyAmount(h.CostBasis),
				nullMoneyAmount(h.AveragePrice), nullMoneyAmount(h.CurrentPrice),
				encodeMoneyAmount(h.MarketValue), h.Currency,
				boolToInt(h.IsActive), nullTime(h.LastSyncedAt),
				formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
			); err != nil {
				return fmt.Errorf("save holding %s: %w", h.ID, err)
			}
		}
		return nil
	})
}

func (r *HoldingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM holdings WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return nil
}

func (r *HoldingRepository) DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM holdings WHERE account_id = ?", accountID.String())
	if err != nil {
		return 0, fmt.Errorf("delete holdings by account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
