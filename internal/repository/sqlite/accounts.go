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

// AccountRepository adapts ports.AccountRepository onto the accounts table.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, connection_id, provider_account_id, account_number_masked, name,
	account_type, balance, currency, available_balance, is_active, last_synced_at,
	provider_metadata, created_at, updated_at`

func scanAccount(scan func(dest ...any) error) (*domain.Account, error) {
	var (
		id, connectionID                     uuid.UUID
		providerAccountID, numberMasked, name string
		accountType                           string
		balance, currency                     string
		availableBalance                      sql.NullString
		isActive                              int
		lastSyncedAt                          sql.NullString
		metadata                              sql.NullString
		createdAtStr, updatedAtStr            string
	)
	if err := scan(&id, &connectionID, &providerAccountID, &numberMasked, &name,
		&accountType, &balance, &currency, &availableBalance, &isActive, &lastSyncedAt,
		&metadata, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	balanceMoney, err := decodeMoney(balance, currency)
	if err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	availableMoney, err := decodeNullMoney(availableBalance, currency)
	if err != nil {
		return nil, fmt.Errorf("decode available_balance: %w", err)
	}
	lastSyncedAtPtr, err := parseNullTime(lastSyncedAt)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode provider_metadata: %w", err)
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtStr)
	if err != nil {
		return nil, err
	}

	return domain.NewAccount(id, connectionID, providerAccountID, numberMasked, name,
		domain.AccountType(accountType), balanceMoney, availableMoney, currency,
		isActive != 0, lastSyncedAtPtr, meta, createdAt, updatedAt)
}

func (r *AccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id.String())
	acct, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return acct, nil
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (r *AccountRepository) FindByConnectionID(ctx context.Context, connectionID uuid.UUID, activeOnly bool) ([]*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE connection_id = ?"
	args := []any{connectionID.String()}
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY created_at"
	return r.queryAccounts(ctx, query, args...)
}

func (r *AccountRepository) FindByUserID(ctx context.Context, userID uuid.UUID, activeOnly bool, accountType *domain.AccountType) ([]*domain.Account, error) {
	query := `SELECT a.id, a.connection_id, a.provider_account_id, a.account_number_masked, a.name,
		a.account_type, a.balance, a.currency, a.available_balance, a.is_active, a.last_synced_at,
		a.provider_metadata, a.created_at, a.updated_at
		FROM accounts a
		JOIN provider_connections c ON c.id = a.connection_id
		WHERE c.user_id = ?`
	args := []any{userID.String()}
	if activeOnly {
		query += " AND a.is_active = 1"
	}
	if accountType != nil {
		query += " AND a.account_type = ?"
		args = append(args, string(*accountType))
	}
	query += " ORDER BY a.created_at"
	return r.queryAccounts(ctx, query, args...)
}

func (r *AccountRepository) FindByProviderAccountID(ctx context.Context, connectionID uuid.UUID, providerAccountID string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE connection_id = ? AND provider_account_id = ?",
		connectionID.String(), providerAccountID)
	acct, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by provider_account_id: %w", err)
	}
	return acct, nil
}

func (r *AccountRepository) FindNeedingSync(ctx context.Context, threshold time.Duration) ([]*domain.Account, error) {
	cutoff := formatTime(time.Now().Add(-threshold))
	return r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE is_active = 1 AND (last_synced_at IS NULL OR last_synced_at <= ?)
		 ORDER BY last_synced_at`,
		cutoff)
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	metadata, err := encodeMetadata(account.ProviderMetadata)
	if err != nil {
		return fmt.Errorf("encode provider_metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, connection_id, provider_account_id, account_number_masked, name,
			account_type, balance, currency, available_balance, is_active, last_synced_at,
			provider_metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			account_number_masked = excluded.account_number_masked,
			name = excluded.name,
			account_type = excluded.account_type,
			balance = excluded.balance,
			available_balance = excluded.available_balance,
			is_active = excluded.is_active,
			last_synced_at = excluded.last_synced_at,
			provider_metadata = excluded.provider_metadata,
			updated_at = excluded.updated_at
	`,
		account.ID.String(), account.ConnectionID.String(), account.ProviderAccountID,
		account.AccountNumberMasked, account.Name, string(account.AccountType),
		encodeMoneyAmount(account.Balance), account.Currency, nullMoneyAmount(account.AvailableBalance),
		boolToInt(account.IsActive), nullTime(account.LastSyncedAt), metadata,
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
