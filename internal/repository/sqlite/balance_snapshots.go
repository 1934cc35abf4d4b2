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

// BalanceSnapshotRepository adapts ports.BalanceSnapshotRepository onto the
// balance_snapshots table. Snapshots are insert-only: Save always performs
// a plain INSERT, never an upsert.
type BalanceSnapshotRepository struct {
	db *sql.DB
}

func NewBalanceSnapshotRepository(db *sql.DB) *BalanceSnapshotRepository {
	return &BalanceSnapshotRepository{db: db}
}

const balanceSnapshotColumns = `id, account_id, balance, available_balance, holdings_value, cash_value,
	currency, source, provider_metadata, captured_at, created_at`

func scanBalanceSnapshot(scan func(dest ...any) error) (*domain.BalanceSnapshot, error) {
	var (
		id, accountID                      uuid.UUID
		balance                            string
		availableBalance, holdingsValue    sql.NullString
		cashValue                          sql.NullString
		currency                           string
		source                             string
		providerMetadata                   sql.NullString
		capturedAtStr                      string
		createdAtStr                       string
	)
	if err := scan(&id, &accountID, &balance, &availableBalance, &holdingsValue, &cashValue,
		&currency, &source, &providerMetadata, &capturedAtStr, &createdAtStr); err != nil {
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
	holdingsValueMoney, err := decodeNullMoney(holdingsValue, currency)
	if err != nil {
		return nil, fmt.Errorf("decode holdings_value: %w", err)
	}
	cashValueMoney, err := decodeNullMoney(cashValue, currency)
	if err != nil {
		return nil, fmt.Errorf("decode cash_value: %w", err)
	}
	metadata, err := decodeMetadata(providerMetadata)
	if err != nil {
		return nil, fmt.Errorf("decode provider_metadata: %w", err)
	}
	capturedAt, err := parseTime(capturedAtStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}

	var opts []domain.BalanceSnapshotOption
	if holdingsValueMoney != nil {
		opts = append(opts, domain.WithHoldingsValue(holdingsValueMoney))
	}
	if cashValueMoney != nil {
		opts = append(opts, domain.WithCashValue(cashValueMoney))
	}
	if metadata != nil {
		opts = append(opts, domain.WithProviderMetadata(metadata))
	}

	return domain.NewBalanceSnapshot(id, accountID, balanceMoney, availableMoney, currency,
		domain.SnapshotSource(source), capturedAt, createdAt, opts...)
}

func (r *BalanceSnapshotRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BalanceSnapshot, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+balanceSnapshotColumns+" FROM balance_snapshots WHERE id = ?", id.String())
	s, err := scanBalanceSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find balance snapshot by id: %w", err)
	}
	return s, nil
}

func (r *BalanceSnapshotRepository) querySnapshots(ctx context.Context, query string, args ...any) ([]*domain.BalanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query balance snapshots: %w", err)
	}
	defer rows.Close()

	var out []*domain.BalanceSnapshot
	for rows.Next() {
		s, err := scanBalanceSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan balance snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *BalanceSnapshotRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID, source *domain.SnapshotSource, limit int) ([]*domain.BalanceSnapshot, error) {
	query := "SELECT " + balanceSnapshotColumns + " FROM balance_snapshots WHERE account_id = ?"
	args := []any{accountID.String()}
	if source != nil {
		query += " AND source = ?"
		args = append(args, string(*source))
	}
	query += " ORDER BY captured_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.querySnapshots(ctx, query, args...)
}

func (r *BalanceSnapshotRepository) FindByAccountIDInRange(ctx context.Context, accountID uuid.UUID, start, end time.Time, source *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error) {
	query := `SELECT ` + balanceSnapshotColumns + ` FROM balance_snapshots
		WHERE account_id = ? AND captured_at >= ? AND captured_at <= ?`
	args := []any{accountID.String(), formatTime(start), formatTime(end)}
	if source != nil {
		query += " AND source = ?"
		args = append(args, string(*source))
	}
	query += " ORDER BY captured_at ASC"
	return r.querySnapshots(ctx, query, args...)
}

func (r *BalanceSnapshotRepository) FindLatestByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.BalanceSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+balanceSnapshotColumns+" FROM balance_snapshots WHERE account_id = ? ORDER BY captured_at DESC LIMIT 1",
		accountID.String())
	s, err := scanBalanceSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest balance snapshot: %w", err)
	}
	return s, nil
}

func (r *BalanceSnapshotRepository) FindByUserIDInRange(ctx context.Context, userID uuid.UUID, start, end time.Time, source *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error) {
	query := `SELECT s.id, s.account_id, s.balance, s.available_balance, s.holdings_value, s.cash_value,
		s.currency, s.source, s.provider_metadata, s.captured_at, s.created_at
		FROM balance_snapshots s
		JOIN accounts a ON a.id = s.account_id
		JOIN provider_connections c ON c.id = a.connection_id
		WHERE c.user_id = ? AND s.captured_at >= ? AND s.captured_at <= ?`
	args := []any{userID.String(), formatTime(start), formatTime(end)}
	if source != nil {
		query += " AND s.source = ?"
		args = append(args, string(*source))
	}
	query += " ORDER BY s.captured_at ASC"
	return r.querySnapshots(ctx, query, args...)
}

func (r *BalanceSnapshotRepository) FindLatestByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.BalanceSnapshot, error) {
	return r.querySnapshots(ctx, `
		SELECT s.id, s.account_id, s.balance, s.available_balance, s.holdings_value, s.cash_value,
			s.currency, s.source, s.provider_metadata, s.captured_at, s.created_at
		FROM balance_snapshots s
		JOIN accounts a ON a.id = s.account_id
		JOIN provider_connections c ON c.id = a.connection_id
		WHERE c.user_id = ?
		AND s.captured_at = (
			SELECT MAX(s2.captured_at) FROM balance_snapshots s2 WHERE s2.account_id = s.account_id
		)
		ORDER BY a.id
	`, userID.String())
}

func (r *BalanceSnapshotRepository) Save(ctx context.Context, snapshot *domain.BalanceSnapshot) error {
	metadata, err := encodeMetadata(snapshot.ProviderMetadata)
	if err != nil {
		return fmt.Errorf("encode provider_metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO balance_snapshots (
			id, account_id, balance, available_balance, holdings_value, cash_value,
			currency, source, provider_metadata, captured_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID.String(), snapshot.AccountID.String(), encodeMoneyAmount(snapshot.Balance),
		nullMoneyAmount(snapshot.AvailableBalance), nullMoneyAmount(snapshot.HoldingsValue),
		nullMoneyAmount(snapshot.CashValue), snapshot.Currency, string(snapshot.Source),
		metadata, formatTime(snapshot.CapturedAt), formatTime(snapshot.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save balance snapshot: %w", err)
	}
	return nil
}

func (r *BalanceSnapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM balance_snapshots WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete balance snapshot: %w", err)
	}
	return nil
}

func (r *BalanceSnapshotRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM balance_snapshots WHERE account_id = ?", accountID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count balance snapshots: %w", err)
	}
	return count, nil
}
