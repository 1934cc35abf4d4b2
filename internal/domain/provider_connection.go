package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/providercreds"
	"github.com/dashtam/provider-sync/internal/result"
)

// ProviderConnection is the pivot entity: a user's relationship with one
// provider instance, carrying encrypted credentials and a status state
// machine. Authentication-agnostic — the domain has no knowledge of OAuth,
// API keys, or any other auth mechanism; credentials are opaque.
//
// State machine: PENDING→{ACTIVE,FAILED}; {EXPIRED,REVOKED,FAILED}→ACTIVE via
// re-auth; ACTIVE→{EXPIRED,REVOKED} during operation; any→DISCONNECTED
// terminal.
type ProviderConnection struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ProviderID   uuid.UUID
	ProviderSlug string
	Status       ConnectionStatus
	Alias        *string
	Credentials  *providercreds.Credentials
	ConnectedAt  *time.Time
	LastSyncAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewProviderConnection constructs a ProviderConnection, enforcing
// construction-time invariants. These are programming errors, not business
// logic failures, so they surface as a Go error rather than a Result.
func NewProviderConnection(
	id, userID, providerID uuid.UUID,
	providerSlug string,
	status ConnectionStatus,
	alias *string,
	credentials *providercreds.Credentials,
	connectedAt, lastSyncAt *time.Time,
	createdAt, updatedAt time.Time,
) (*ProviderConnection, error) {
	if providerSlug == "" || len(providerSlug) > 50 {
		return nil, fmt.Errorf("%s: provider_slug must be 1-50 characters", ErrInvalidProviderSlug)
	}
	if alias != nil && len(*alias) > 100 {
		return nil, fmt.Errorf("%s: alias must be at most 100 characters", ErrInvalidAlias)
	}
	if status == ConnectionActive && credentials == nil {
		return nil, fmt.Errorf("%s: an ACTIVE connection must hold credentials", ErrActiveWithoutCredentials)
	}
	return &ProviderConnection{
		ID:           id,
		UserID:       userID,
		ProviderID:   providerID,
		ProviderSlug: providerSlug,
		Status:       status,
		Alias:        alias,
		Credentials:  credentials,
		ConnectedAt:  connectedAt,
		LastSyncAt:   lastSyncAt,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// -----------------------------------------------------------------------
// Query methods (read-only)
// -----------------------------------------------------------------------

// IsConnected reports whether the connection is ACTIVE and usable.
func (c *ProviderConnection) IsConnected() bool {
	return c.Status == ConnectionActive && c.Credentials != nil
}

// NeedsReauthentication reports whether the user must re-authenticate.
func (c *ProviderConnection) NeedsReauthentication() bool {
	return NeedsReauthStates()[c.Status]
}

// IsCredentialsExpired reports whether stored credentials have expired.
func (c *ProviderConnection) IsCredentialsExpired(now time.Time) bool {
	if c.Credentials == nil {
		return false
	}
	return c.Credentials.IsExpired(now)
}

// IsCredentialsExpiringSoon reports whether credentials will expire within
// five minutes of now.
func (c *ProviderConnection) IsCredentialsExpiringSoon(now time.Time) bool {
	if c.Credentials == nil {
		return false
	}
	return c.Credentials.IsExpiringSoon(now, 5*time.Minute)
}

// CanSync reports whether the connection can perform data synchronization.
func (c *ProviderConnection) CanSync(now time.Time) bool {
	return c.IsConnected() && !c.IsCredentialsExpired(now)
}

// -----------------------------------------------------------------------
// State transition methods (return Result)
// -----------------------------------------------------------------------

var markConnectedAllowedFrom = map[ConnectionStatus]bool{
	ConnectionPending: true,
	ConnectionExpired: true,
	ConnectionRevoked: true,
	ConnectionFailed:  true,
}

// MarkConnected transitions to ACTIVE with the given credentials. Allowed
// from PENDING, EXPIRED, REVOKED, or FAILED.
func (c *ProviderConnection) MarkConnected(now time.Time, credentials *providercreds.Credentials) result.Result[struct{}, ConnectionErrorCode] {
	if credentials == nil {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCredentialsRequired)
	}
	if !markConnectedAllowedFrom[c.Status] {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCannotTransitionToActive)
	}

	c.Status = ConnectionActive
	c.Credentials = credentials
	c.UpdatedAt = now
	if c.ConnectedAt == nil {
		c.ConnectedAt = &now
	}
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// MarkDisconnected transitions to the terminal DISCONNECTED state, clearing
// credentials. Always succeeds.
func (c *ProviderConnection) MarkDisconnected(now time.Time) result.Result[struct{}, ConnectionErrorCode] {
	c.Status = ConnectionDisconnected
	c.Credentials = nil
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// MarkExpired transitions ACTIVE→EXPIRED. Credentials are retained — they
// may still contain a refresh token.
func (c *ProviderConnection) MarkExpired(now time.Time) result.Result[struct{}, ConnectionErrorCode] {
	if c.Status != ConnectionActive {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCannotTransitionToExpired)
	}
	c.Status = ConnectionExpired
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// MarkRevoked transitions ACTIVE→REVOKED. Credentials are retained for the
// audit trail.
func (c *ProviderConnection) MarkRevoked(now time.Time) result.Result[struct{}, ConnectionErrorCode] {
	if c.Status != ConnectionActive {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCannotTransitionToRevoked)
	}
	c.Status = ConnectionRevoked
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// MarkFailed transitions PENDING→FAILED.
func (c *ProviderConnection) MarkFailed(now time.Time) result.Result[struct{}, ConnectionErrorCode] {
	if c.Status != ConnectionPending {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCannotTransitionToFailed)
	}
	c.Status = ConnectionFailed
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// UpdateCredentials replaces stored credentials after a token refresh.
// Requires the connection to already be ACTIVE.
func (c *ProviderConnection) UpdateCredentials(now time.Time, credentials *providercreds.Credentials) result.Result[struct{}, ConnectionErrorCode] {
	if credentials == nil {
		return result.Failure[struct{}, ConnectionErrorCode](ErrCredentialsRequired)
	}
	if c.Status != ConnectionActive {
		return result.Failure[struct{}, ConnectionErrorCode](ErrConnectionNotConnected)
	}
	c.Credentials = credentials
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}

// RecordSync updates last_sync_at. Requires the connection to be ACTIVE.
func (c *ProviderConnection) RecordSync(now time.Time) result.Result[struct{}, ConnectionErrorCode] {
	if c.Status != ConnectionActive {
		return result.Failure[struct{}, ConnectionErrorCode](ErrConnectionNotConnected)
	}
	c.LastSyncAt = &now
	c.UpdatedAt = now
	return result.Success[struct{}, ConnectionErrorCode](struct{}{})
}
