package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/providercreds"
)

// ConnectionRepository adapts ports.ProviderConnectionRepository onto the
// provider_connections table. It invalidates the read-through connection
// cache on every Save/Delete so the cache never outlives its row.
type ConnectionRepository struct {
	db    *sql.DB
	cache ports.ProviderConnectionCache
}

// NewConnectionRepository builds a ConnectionRepository. cache may be nil,
// in which case invalidation is a no-op.
func NewConnectionRepository(db *sql.DB, cache ports.ProviderConnectionCache) *ConnectionRepository {
	return &ConnectionRepository{db: db, cache: cache}
}

const connectionColumns = `id, user_id, provider_id, provider_slug, status, alias,
	credential_type, encrypted_credentials, credentials_expires_at,
	connected_at, last_sync_at, created_at, updated_at`

func scanConnection(scan func(dest ...any) error) (*domain.ProviderConnection, error) {
	var (
		id, userID, providerID uuid.UUID
		slug, status           string
		alias                  sql.NullString
		credType               sql.NullString
		encrypted              []byte
		credExpiresAt          sql.NullString
		connectedAt            sql.NullString
		lastSyncAt             sql.NullString
		createdAtStr           string
		updatedAtStr           string
	)
	if err := scan(&id, &userID, &providerID, &slug, &status, &alias,
		&credType, &encrypted, &credExpiresAt, &connectedAt, &lastSyncAt,
		&createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	var creds *providercreds.Credentials
	if credType.Valid && len(encrypted) > 0 {
		var expiresAt *time.Time
		if credExpiresAt.Valid {
			t, err := parseTime(credExpiresAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse credentials_expires_at: %w", err)
			}
			expiresAt = &t
		}
		c, err := providercreds.New(encrypted, providercreds.Type(credType.String), expiresAt)
		if err != nil {
			return nil, fmt.Errorf("rebuild credentials: %w", err)
		}
		creds = &c
	}

	connectedAtPtr, err := parseNullTime(connectedAt)
	if err != nil {
		return nil, err
	}
	lastSyncAtPtr, err := parseNullTime(lastSyncAt)
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

	return domain.NewProviderConnection(id, userID, providerID, slug,
		domain.ConnectionStatus(status), fromNullString(alias), creds,
		connectedAtPtr, lastSyncAtPtr, createdAt, updatedAt)
}

func (r *ConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProviderConnection, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+connectionColumns+" FROM provider_connections WHERE id = ?", id.String())
	conn, err := scanConnection(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find connection by id: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepository) queryConnections(ctx context.Context, query string, args ...any) ([]*domain.ProviderConnection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProviderConnection
	for rows.Next() {
		conn, err := scanConnection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

func (r *ConnectionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderConnection, error) {
	return r.queryConnections(ctx,
		"SELECT "+connectionColumns+" FROM provider_connections WHERE user_id = ? ORDER BY created_at",
		userID.String())
}

func (r *ConnectionRepository) FindByUserAndProvider(ctx context.Context, userID, providerID uuid.UUID) (*domain.ProviderConnection, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM provider_connections WHERE user_id = ? AND provider_id = ?",
		userID.String(), providerID.String())
	conn, err := scanConnection(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find connection by user and provider: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderConnection, error) {
	return r.queryConnections(ctx,
		"SELECT "+connectionColumns+" FROM provider_connections WHERE user_id = ? AND status = ? ORDER BY created_at",
		userID.String(), string(domain.ConnectionActive))
}

func (r *ConnectionRepository) FindExpiringSoon(ctx context.Context, within time.Duration) ([]*domain.ProviderConnection, error) {
	cutoff := formatTime(time.Now().Add(within))
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM provider_connections
		 WHERE status = ? AND credentials_expires_at IS NOT NULL AND credentials_expires_at <= ?
		 ORDER BY credentials_expires_at`,
		string(domain.ConnectionActive), cutoff)
}

func (r *ConnectionRepository) Save(ctx context.Context, conn *domain.ProviderConnection) error {
	var credType sql.NullString
	var encrypted []byte
	var credExpiresAt sql.NullString
	if conn.Credentials != nil {
		credType = sql.NullString{String: string(conn.Credentials.CredentialType()), Valid: true}
		encrypted = conn.Credentials.EncryptedData()
		if exp := conn.Credentials.ExpiresAt(); exp != nil {
			credExpiresAt = sql.NullString{String: formatTime(*exp), Valid: true}
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_connections (
			id, user_id, provider_id, provider_slug, status, alias,
			credential_type, encrypted_credentials, credentials_expires_at,
			connected_at, last_sync_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			alias = excluded.alias,
			credential_type = excluded.credential_type,
			encrypted_credentials = excluded.encrypted_credentials,
			credentials_expires_at = excluded.credentials_expires_at,
			connected_at = excluded.connected_at,
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at
	`,
		conn.ID.String(), conn.UserID.String(), conn.ProviderID.String(), conn.ProviderSlug,
		string(conn.Status), nullString(conn.Alias),
		credType, encrypted, credExpiresAt,
		nullTime(conn.ConnectedAt), nullTime(conn.LastSyncAt),
		formatTime(conn.CreatedAt), formatTime(conn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	if r.cache != nil {
		r.cache.Delete(ctx, conn.ID)
	}
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM provider_connections WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if r.cache != nil {
		r.cache.Delete(ctx, id)
	}
	return nil
}
