package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/providercreds"
	"github.com/dashtam/provider-sync/internal/repository/sqlite"
)

func testCache(t *testing.T) *ConnectionCache {
	t.Helper()
	db, err := sqlite.New(sqlite.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: sqlite.ProfileStandard,
		Name:    "cache-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateCache())
	return New(db.Conn(), zerolog.Nop())
}

func cachedConn(t *testing.T) *domain.ProviderConnection {
	t.Helper()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	creds, err := providercreds.New([]byte{0xDE, 0xAD, 0xBE, 0xEF}, providercreds.OAuth2, &expires)
	require.NoError(t, err)
	conn, err := domain.NewProviderConnection(
		uuid.New(), uuid.New(), uuid.New(), "schwab",
		domain.ConnectionActive, nil, &creds, &now, nil, now, now,
	)
	require.NoError(t, err)
	return conn
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := testCache(t)
	conn := cachedConn(t)

	c.Set(context.Background(), conn, time.Minute)

	got, hit := c.Get(context.Background(), conn.ID)
	require.True(t, hit)
	assert.Equal(t, conn.ID, got.ID)
	assert.Equal(t, conn.UserID, got.UserID)
	assert.Equal(t, conn.Status, got.Status)
	require.NotNil(t, got.Credentials)
	assert.Equal(t, conn.Credentials.EncryptedData(), got.Credentials.EncryptedData(),
		"the cache holds the encrypted blob byte-for-byte")
	assert.Equal(t, providercreds.OAuth2, got.Credentials.CredentialType())
}

func TestCache_MissOnUnknownID(t *testing.T) {
	c := testCache(t)

	_, hit := c.Get(context.Background(), uuid.New())
	assert.False(t, hit)
}

func expireEntry(t *testing.T, c *ConnectionCache, id uuid.UUID) {
	t.Helper()
	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)
	_, err := c.db.Exec("UPDATE connection_cache SET expires_at = ? WHERE connection_id = ?", past, id.String())
	require.NoError(t, err)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := testCache(t)
	conn := cachedConn(t)

	c.Set(context.Background(), conn, time.Minute)
	expireEntry(t, c, conn.ID)

	_, hit := c.Get(context.Background(), conn.ID)
	assert.False(t, hit)
}

func TestCache_CorruptPayloadFailsOpen(t *testing.T) {
	c := testCache(t)
	conn := cachedConn(t)
	c.Set(context.Background(), conn, time.Minute)

	_, err := c.db.Exec("UPDATE connection_cache SET payload = ? WHERE connection_id = ?",
		[]byte("{not json"), conn.ID.String())
	require.NoError(t, err)

	_, hit := c.Get(context.Background(), conn.ID)
	assert.False(t, hit, "a decode failure must surface as a miss, never an error")
}

func TestCache_DeleteRemovesEntry(t *testing.T) {
	c := testCache(t)
	conn := cachedConn(t)
	c.Set(context.Background(), conn, time.Minute)

	c.Delete(context.Background(), conn.ID)

	_, hit := c.Get(context.Background(), conn.ID)
	assert.False(t, hit)
}

func TestCache_DeleteExpiredSweeps(t *testing.T) {
	c := testCache(t)
	live := cachedConn(t)
	dead := cachedConn(t)
	c.Set(context.Background(), live, time.Hour)
	c.Set(context.Background(), dead, time.Minute)
	expireEntry(t, c, dead.ID)

	removed, err := c.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, hit := c.Get(context.Background(), live.ID)
	assert.True(t, hit)
}
