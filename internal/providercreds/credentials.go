// Package providercreds implements the opaque, encrypted credential
// container used by ProviderConnection. The domain layer never interprets
// the plaintext; only the credential_type hint and expiry are visible here.
package providercreds

import (
	"fmt"
	"time"
)

// Type is a hint for the infrastructure layer about how to decrypt and,
// where applicable, refresh the underlying credential bundle. The domain
// layer treats it as opaque routing information.
type Type string

const (
	OAuth2     Type = "oauth2"
	APIKey     Type = "api_key"
	LinkToken  Type = "link_token"
	Certificate Type = "certificate"
	FileImport Type = "file_import"
	Custom     Type = "custom"
)

// refreshableTypes are credential types that support automatic refresh
// without user interaction.
var refreshableTypes = map[Type]bool{
	OAuth2:    true,
	LinkToken: true,
}

// Credentials is an immutable, opaque encrypted credential blob plus a
// type hint and optional expiry. Never logged, never exposed across a
// command/query boundary.
type Credentials struct {
	encryptedData []byte
	credType      Type
	expiresAt     *time.Time
}

// New constructs Credentials, validating the construction-time invariants:
// encryptedData must be non-empty and credType must be non-empty. These are
// programming errors, not business failures, so they return a plain error.
func New(encryptedData []byte, credType Type, expiresAt *time.Time) (Credentials, error) {
	if len(encryptedData) == 0 {
		return Credentials{}, fmt.Errorf("encrypted_data cannot be empty")
	}
	if credType == "" {
		return Credentials{}, fmt.Errorf("credential_type must be set")
	}
	return Credentials{encryptedData: encryptedData, credType: credType, expiresAt: expiresAt}, nil
}

// EncryptedData returns the opaque ciphertext blob.
func (c Credentials) EncryptedData() []byte { return c.encryptedData }

// CredentialType returns the routing-hint type.
func (c Credentials) CredentialType() Type { return c.credType }

// ExpiresAt returns the expiry timestamp, or nil if credentials never expire.
func (c Credentials) ExpiresAt() *time.Time { return c.expiresAt }

// IsExpired reports whether credentials are past their expiration time as
// of now. Credentials with no expiry never expire.
func (c Credentials) IsExpired(now time.Time) bool {
	if c.expiresAt == nil {
		return false
	}
	return !now.Before(*c.expiresAt)
}

// IsExpiringSoon reports whether credentials will expire within threshold
// of now. Used for proactive refresh before expiration.
func (c Credentials) IsExpiringSoon(now time.Time, threshold time.Duration) bool {
	if c.expiresAt == nil {
		return false
	}
	return !now.Before(c.expiresAt.Add(-threshold))
}

// TimeUntilExpiry returns the duration remaining until expiry, or nil if
// credentials never expire. Returns zero if already expired.
func (c Credentials) TimeUntilExpiry(now time.Time) *time.Duration {
	if c.expiresAt == nil {
		return nil
	}
	remaining := c.expiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// SupportsRefresh reports whether this credential type can be refreshed
// without requiring the user to re-authenticate.
func (c Credentials) SupportsRefresh() bool {
	return refreshableTypes[c.credType]
}

// String renders a safe, non-sensitive representation for logging.
func (c Credentials) String() string {
	status := "valid"
	if c.IsExpired(time.Now()) {
		status = "expired"
	}
	return fmt.Sprintf("ProviderCredentials(%s, %s)", c.credType, status)
}
