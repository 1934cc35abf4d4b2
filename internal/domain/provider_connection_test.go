package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashtam/provider-sync/internal/providercreds"
)

func newTestConnection(t *testing.T, status ConnectionStatus, creds *providercreds.Credentials) *ProviderConnection {
	t.Helper()
	now := time.Now()
	c, err := NewProviderConnection(
		uuid.New(), uuid.New(), uuid.New(),
		"schwab", status, nil, creds, nil, nil, now, now,
	)
	require.NoError(t, err)
	return c
}

func testCreds(t *testing.T) *providercreds.Credentials {
	t.Helper()
	c, err := providercreds.New([]byte("token"), providercreds.OAuth2, nil)
	require.NoError(t, err)
	return &c
}

func TestNewProviderConnection_RejectsEmptySlug(t *testing.T) {
	now := time.Now()
	_, err := NewProviderConnection(uuid.New(), uuid.New(), uuid.New(), "", ConnectionPending, nil, nil, nil, nil, now, now)
	assert.Error(t, err)
}

func TestNewProviderConnection_RejectsOversizedSlug(t *testing.T) {
	now := time.Now()
	slug := make([]byte, 51)
	for i := range slug {
		slug[i] = 'a'
	}
	_, err := NewProviderConnection(uuid.New(), uuid.New(), uuid.New(), string(slug), ConnectionPending, nil, nil, nil, nil, now, now)
	assert.Error(t, err)
}

func TestNewProviderConnection_RejectsActiveWithoutCredentials(t *testing.T) {
	now := time.Now()
	_, err := NewProviderConnection(uuid.New(), uuid.New(), uuid.New(), "schwab", ConnectionActive, nil, nil, nil, nil, now, now)
	assert.Error(t, err)
}

func TestIsConnected(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	assert.True(t, c.IsConnected())

	pending := newTestConnection(t, ConnectionPending, nil)
	assert.False(t, pending.IsConnected())
}

func TestNeedsReauthentication(t *testing.T) {
	for _, status := range []ConnectionStatus{ConnectionExpired, ConnectionRevoked, ConnectionFailed} {
		c := newTestConnection(t, status, nil)
		assert.True(t, c.NeedsReauthentication(), status)
	}
	active := newTestConnection(t, ConnectionActive, testCreds(t))
	assert.False(t, active.NeedsReauthentication())
}

func TestMarkConnected_RequiresCredentials(t *testing.T) {
	c := newTestConnection(t, ConnectionPending, nil)
	r := c.MarkConnected(time.Now(), nil)
	assert.True(t, r.IsFailure())
	assert.Equal(t, ErrCredentialsRequired, r.Error())
}

func TestMarkConnected_FromPendingSucceeds(t *testing.T) {
	c := newTestConnection(t, ConnectionPending, nil)
	now := time.Now()
	r := c.MarkConnected(now, testCreds(t))
	require.True(t, r.IsSuccess())
	assert.Equal(t, ConnectionActive, c.Status)
	assert.NotNil(t, c.ConnectedAt)
}

func TestMarkConnected_FromDisconnectedFails(t *testing.T) {
	c := newTestConnection(t, ConnectionDisconnected, nil)
	r := c.MarkConnected(time.Now(), testCreds(t))
	assert.True(t, r.IsFailure())
	assert.Equal(t, ErrCannotTransitionToActive, r.Error())
}

func TestMarkDisconnected_ClearsCredentials(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	r := c.MarkDisconnected(time.Now())
	require.True(t, r.IsSuccess())
	assert.Equal(t, ConnectionDisconnected, c.Status)
	assert.Nil(t, c.Credentials)
}

func TestMarkExpired_RequiresActive(t *testing.T) {
	c := newTestConnection(t, ConnectionPending, nil)
	r := c.MarkExpired(time.Now())
	assert.True(t, r.IsFailure())
}

func TestMarkExpired_FromActiveSucceeds(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	r := c.MarkExpired(time.Now())
	require.True(t, r.IsSuccess())
	assert.Equal(t, ConnectionExpired, c.Status)
	assert.NotNil(t, c.Credentials, "credentials retained for refresh attempts")
}

func TestMarkRevoked_FromActiveSucceeds(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	r := c.MarkRevoked(time.Now())
	require.True(t, r.IsSuccess())
	assert.Equal(t, ConnectionRevoked, c.Status)
}

func TestConnectionMarkFailed_FromPendingSucceeds(t *testing.T) {
	c := newTestConnection(t, ConnectionPending, nil)
	r := c.MarkFailed(time.Now())
	require.True(t, r.IsSuccess())
	assert.Equal(t, ConnectionFailed, c.Status)
}

func TestMarkFailed_FromActiveFails(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	r := c.MarkFailed(time.Now())
	assert.True(t, r.IsFailure())
}

func TestUpdateCredentials_RequiresActive(t *testing.T) {
	c := newTestConnection(t, ConnectionPending, nil)
	r := c.UpdateCredentials(time.Now(), testCreds(t))
	assert.True(t, r.IsFailure())
	assert.Equal(t, ErrConnectionNotConnected, r.Error())
}

func TestUpdateCredentials_RequiresNonNil(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	r := c.UpdateCredentials(time.Now(), nil)
	assert.True(t, r.IsFailure())
	assert.Equal(t, ErrCredentialsRequired, r.Error())
}

func TestRecordSync_RequiresActive(t *testing.T) {
	c := newTestConnection(t, ConnectionExpired, nil)
	r := c.RecordSync(time.Now())
	assert.True(t, r.IsFailure())
}

func TestRecordSync_Succeeds(t *testing.T) {
	c := newTestConnection(t, ConnectionActive, testCreds(t))
	now := time.Now()
	r := c.RecordSync(now)
	require.True(t, r.IsSuccess())
	require.NotNil(t, c.LastSyncAt)
	assert.Equal(t, now, *c.LastSyncAt)
}

func TestCanSync_FalseWhenCredentialsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	creds, err := providercreds.New([]byte("token"), providercreds.OAuth2, &past)
	require.NoError(t, err)
	c := newTestConnection(t, ConnectionActive, &creds)
	assert.False(t, c.CanSync(time.Now()))
}
