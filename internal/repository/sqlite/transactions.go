package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
)

// TransactionRepository adapts ports.TransactionRepository onto the
// transactions table. Transactions are append-mostly: Save only ever
// changes status/settlement_date/updated_at on an existing row, never the
// immutable fields set at creation.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, account_id, provider_transaction_id, symbol, security_name, asset_type,
	transaction_type, transaction_subtype, quantity, price, amount, fees, currency, status,
	transaction_date, settlement_date, description, created_at, updated_at`

func scanTransaction(scan func(dest ...any) error) (*domain.Transaction, error) {
	var (
		id, accountID                uuid.UUID
		providerTransactionID        string
		symbol, securityName         sql.NullString
		assetType                    sql.NullString
		txType, txSubtype            string
		quantity, price              sql.NullString
		amount, fees, currency       string
		status                       string
		transactionDateStr           string
		settlementDate               sql.NullString
		description                  sql.NullString
		createdAtStr, updatedAtStr   string
	)
	if err := scan(&id, &accountID, &providerTransactionID, &symbol, &securityName, &assetType,
		&txType, &txSubtype, &quantity, &price, &amount, &fees, &currency, &status,
		&transactionDateStr, &settlementDate, &description, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	quantityDec, err := decodeNullDecimal(quantity)
	if err != nil {
		return nil, fmt.Errorf("decode quantity: %w", err)
	}
	priceMoney, err := decodeNullMoney(price, currency)
	if err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	amountMoney, err := decodeMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	feesMoney, err := decodeMoney(fees, currency)
	if err != nil {
		return nil, fmt.Errorf("decode fees: %w", err)
	}
	transactionDate, err := parseTime(transactionDateStr)
	if err != nil {
		return nil, err
	}
	settlementDatePtr, err := parseNullTime(settlementDate)
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

	var assetTypePtr *domain.AssetType
	if assetType.Valid {
		at := domain.AssetType(assetType.String)
		assetTypePtr = &at
	}

	return domain.NewTransaction(id, accountID, providerTransactionID, fromNullString(symbol),
		fromNullString(securityName), assetTypePtr,
		domain.TransactionType(txType), domain.TransactionSubtype(txSubtype), quantityDec,
		priceMoney, amountMoney, feesMoney, currency, domain.TransactionStatus(status),
		transactionDate, settlementDatePtr, desc, createdAt, updatedAt)
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id.String())
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by id: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ?
		 ORDER BY transaction_date DESC LIMIT ? OFFSET ?`,
		accountID.String(), limit, offset)
}

func (r *TransactionRepository) FindByAccountAndType(ctx context.Context, accountID uuid.UUID, txType domain.TransactionType) ([]*domain.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? AND transaction_type = ?
		 ORDER BY transaction_date DESC`,
		accountID.String(), string(txType))
}

func (r *TransactionRepository) FindByDateRange(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]*domain.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id = ? AND transaction_date >= ? AND transaction_date <= ?
		 ORDER BY transaction_date ASC`,
		accountID.String(), formatTime(start), formatTime(end))
}

func (r *TransactionRepository) FindByProviderTransactionID(ctx context.Context, accountID uuid.UUID, providerTransactionID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE account_id = ? AND provider_transaction_id = ?",
		accountID.String(), providerTransactionID)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by provider_transaction_id: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) FindSecurityTransactions(ctx context.Context, symbol string, limit int) ([]*domain.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE symbol = ?
		 ORDER BY transaction_date DESC LIMIT ?`,
		symbol, limit)
}

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, account_id, provider_transaction_id, symbol, security_name, asset_type,
			transaction_type, transaction_subtype, quantity, price, amount, fees, currency, status,
			transaction_date, settlement_date, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, provider_transaction_id) DO UPDATE SET
			status = excluded.status,
			settlement_date = excluded.settlement_date,
			updated_at = excluded.updated_at
	`,
		tx.ID.String(), tx.AccountID.String(), tx.ProviderTransactionID, nullString(tx.Symbol),
		nullString(tx.SecurityName), nullAssetType(tx.AssetType),
		string(tx.TransactionType), string(tx.TransactionSubtype), nullDecimal(tx.Quantity),
		nullMoneyAmount(tx.Price), encodeMoneyAmount(tx.Amount), encodeMoneyAmount(tx.Fees),
		tx.Currency, string(tx.Status), formatTime(tx.TransactionDate), nullTime(tx.SettlementDate),
		tx.Description, formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

// SaveMany bulk-upserts in a single transaction so a partial batch never
// becomes visible.
func (r *TransactionRepository) SaveMany(ctx context.Context, txs []*domain.Transaction) error {
	return WithTransaction(r.db, func(dbTx *sql.Tx) error {
		stmt, err := dbTx.PrepareContext(ctx, `
			INSERT INTO transactions (
				id, account_id, provider_transaction_id, symbol, security_name, asset_type,
				transaction_type, transaction_subtype, quantity, price, amount, fees, currency, status,
				transaction_date, settlement_date, description, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (account_id, provider_transaction_id) DO UPDATE SET
				status = excluded.status,
				settlement_date = excluded.settlement_date,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("prepare bulk transaction upsert: %w", err)
		}
		defer stmt.Close()
		for _, tx := range txs {
			if _, err := stmt.ExecContext(ctx,
				tx.ID.String(), tx.AccountID.String(), tx.ProviderTransactionID, nullString(tx.Symbol),
				nullString(tx.SecurityName), nullAssetType(tx.AssetType),
				string(tx.TransactionType), string(tx.TransactionSubtype), nullDecimal(tx.Quantity),
				nullMoneyAmount(tx.Price), encodeMoneyAmount(tx.Amount), encodeMoneyAmount(tx.Fees),
				tx.Currency, string(tx.Status), formatTime(tx.TransactionDate), nullTime(tx.SettlementDate),
				tx.Description, formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
			); err != nil {
				return fmt.Errorf("save transaction %s: %w", tx.ID, err)
			}
		}
		return nil
	})
}

func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}
