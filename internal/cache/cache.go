// Package cache implements the read-through provider connection cache in
// front of the connection repository: a JSON payload plus an expires_at
// timestamp per connection id, upserted on write and pruned by expiry.
// Credentials are cached in their already-encrypted form; this package
// never sees plaintext.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/providercreds"
)

// DefaultTTL is used when a caller does not specify one, matching the
// core's configuration default for cache_provider_ttl_seconds.
const DefaultTTL = 5 * time.Minute

// ConnectionCache is a fail-open, read-through cache for ProviderConnection,
// backed by a SQLite table. Any failure — marshal, unmarshal, or the
// underlying query — is swallowed and surfaced as a cache miss (Get) or
// silently dropped (Set/Delete); the cache is never authoritative.
type ConnectionCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// New builds a ConnectionCache over the given database connection.
func New(db *sql.DB, log zerolog.Logger) *ConnectionCache {
	return &ConnectionCache{db: db, log: log.With().Str("component", "connection_cache").Logger()}
}

// cachedConnection is the JSON wire shape stored in the payload column.
// Credentials are carried as their opaque encrypted bytes plus the routing
// hint and expiry; the plaintext bundle never touches this struct.
type cachedConnection struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	ProviderSlug string     `json:"provider_slug"`
	Status       string     `json:"status"`
	Alias        *string    `json:"alias,omitempty"`
	CredType     string     `json:"cred_type,omitempty"`
	Encrypted    []byte     `json:"encrypted,omitempty"`
	CredExpires  *time.Time `json:"cred_expires,omitempty"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toCached(conn *domain.ProviderConnection) cachedConnection {
	c := cachedConnection{
		ID:           conn.ID,
		UserID:       conn.UserID,
		ProviderID:   conn.ProviderID,
		ProviderSlug: conn.ProviderSlug,
		Status:       string(conn.Status),
		Alias:        conn.Alias,
		ConnectedAt:  conn.ConnectedAt,
		LastSyncAt:   conn.LastSyncAt,
		CreatedAt:    conn.CreatedAt,
		UpdatedAt:    conn.UpdatedAt,
	}
	if conn.Credentials != nil {
		c.CredType = string(conn.Credentials.CredentialType())
		c.Encrypted = conn.Credentials.EncryptedData()
		c.CredExpires = conn.Credentials.ExpiresAt()
	}
	return c
}

func (c cachedConnection) toDomain() (*domain.ProviderConnection, error) {
	var creds *providercreds.Credentials
	if c.CredType != "" && len(c.Encrypted) > 0 {
		built, err := providercreds.New(c.Encrypted, providercreds.Type(c.CredType), c.CredExpires)
		if err != nil {
			return nil, err
		}
		creds = &built
	}
	return domain.NewProviderConnection(c.ID, c.UserID, c.ProviderID, c.ProviderSlug,
		domain.ConnectionStatus(c.Status), c.Alias, creds, c.ConnectedAt, c.LastSyncAt,
		c.CreatedAt, c.UpdatedAt)
}

// Get returns the cached connection and true on a hit. Any error along the
// way — query failure, expired/missing row, or a decode failure — is
// reported as a plain miss; the caller is expected to fall back to the
// repository.
func (c *ConnectionCache) Get(ctx context.Context, connectionID uuid.UUID) (*domain.ProviderConnection, bool) {
	var payload string
	var expiresAt string
	err := c.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM connection_cache WHERE connection_id = ?",
		connectionID.String(),
	).Scan(&payload, &expiresAt)
	if err != nil {
		return nil, false
	}

	expiry, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil || time.Now().After(expiry) {
		return nil, false
	}

	var cached cachedConnection
	if err := json.Unmarshal([]byte(payload), &cached); err != nil {
		c.log.Debug().Err(err).Str("connection_id", connectionID.String()).Msg("cache decode failed, treating as miss")
		return nil, false
	}

	conn, err := cached.toDomain()
	if err != nil {
		c.log.Debug().Err(err).Str("connection_id", connectionID.String()).Msg("cache entry rebuilt invalid entity, treating as miss")
		return nil, false
	}
	return conn, true
}

// Set stores conn under its id with the given ttl. Any failure is logged
// and swallowed: the cache is an optimization, never authoritative, so a
// write failure must never propagate to the caller.
func (c *ConnectionCache) Set(ctx context.Context, conn *domain.ProviderConnection, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	payload, err := json.Marshal(toCached(conn))
	if err != nil {
		c.log.Debug().Err(err).Str("connection_id", conn.ID.String()).Msg("cache encode failed, skipping set")
		return
	}
	expiresAt := time.Now().Add(ttl).UTC().Format(time.RFC3339Nano)
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO connection_cache (connection_id, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (connection_id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`, conn.ID.String(), payload, expiresAt)
	if err != nil {
		c.log.Debug().Err(err).Str("connection_id", conn.ID.String()).Msg("cache set failed")
	}
}

// Delete removes the cache entry for connectionID, if any. Failures are
// logged and swallowed for the same reason as Set.
func (c *ConnectionCache) Delete(ctx context.Context, connectionID uuid.UUID) {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM connection_cache WHERE connection_id = ?", connectionID.String()); err != nil {
		c.log.Debug().Err(err).Str("connection_id", connectionID.String()).Msg("cache delete failed")
	}
}

// DeleteExpired removes every row whose expiry has passed. Intended to be
// invoked periodically by the maintenance scheduler; nothing here
// schedules it.
func (c *ConnectionCache) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := c.db.ExecContext(ctx, "DELETE FROM connection_cache WHERE expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
