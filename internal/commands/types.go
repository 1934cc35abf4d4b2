package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/ownership"
	"github.com/dashtam/provider-sync/internal/ports"
	"github.com/dashtam/provider-sync/internal/providercreds"
)

// Code is the closed set of failure codes every command handler can
// return. A single type is used across handlers (rather than one enum per
// handler) because commands share an ownership-verification vocabulary
// and a Result[T, Failure] error channel; callers branch on the string
// value, which is stable across the whole family.
type Code string

const (
	// Ownership (shared across every handler that loads an owned entity).
	CodeConnectionNotFound Code = "CONNECTION_NOT_FOUND"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeNotOwnedByUser     Code = "NOT_OWNED_BY_USER"

	// ConnectProvider.
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeInvalidProviderSlug Code = "INVALID_PROVIDER_SLUG"
	CodeDatabaseError       Code = "DATABASE_ERROR"

	// RefreshProviderTokens.
	CodeNotActive Code = "NOT_ACTIVE"

	// SyncAccounts / SyncHoldings / SyncTransactions.
	CodeConnectionNotActive         Code = "CONNECTION_NOT_ACTIVE"
	CodeCredentialsInvalid          Code = "CREDENTIALS_INVALID"
	CodeCredentialsDecryptionFailed Code = "CREDENTIALS_DECRYPTION_FAILED"
	CodeProviderError               Code = "PROVIDER_ERROR"
	CodeRecentlySynced              Code = "RECENTLY_SYNCED"
	CodeNoAccounts                  Code = "NO_ACCOUNTS"

	// ImportFromFile.
	CodeProviderNotFound Code = "PROVIDER_NOT_FOUND"
	CodeInvalidFile      Code = "INVALID_FILE"
	CodeImportFailed     Code = "IMPORT_FAILED"

	// Cancellation, observed at a suspension point after side effects.
	CodeCancelled Code = "CANCELLED"
)

// Failure is the error channel of every command Result. Message is the
// human-readable detail, and Error() renders "<code>: <detail>"; the Failed
// event published
// alongside it carries only Code, never Message, so consumers branch on
// the stable code rather than parsing text.
type Failure struct {
	Code    Code
	Message string
}

func (f Failure) Error() string {
	return string(f.Code) + ": " + f.Message
}

func fail(code Code, message string) Failure {
	return Failure{Code: code, Message: message}
}

// Handlers holds every port the command layer consumes. One instance is
// built once at wiring time and is safe for concurrent use by independent
// command invocations.
type Handlers struct {
	Connections  ports.ProviderConnectionRepository
	Accounts     ports.AccountRepository
	Holdings     ports.HoldingRepository
	Transactions ports.TransactionRepository
	Snapshots    ports.BalanceSnapshotRepository
	Cipher       ports.CipherPort
	Factory      ports.ProviderFactory
	Bus          ports.EventBus
	Verifier     *ownership.Verifier
	Log          zerolog.Logger

	// Now is swapped out in tests for a fixed clock; defaults to time.Now
	// when left nil by the caller (see NewHandlers).
	Now func() time.Time

	MinSyncInterval         time.Duration
	DefaultSyncWindow       time.Duration
	ProgressRecordInterval  int
	ProgressPercentInterval int
}

// Default tunables, matching the configuration defaults in
// internal/config.
const (
	DefaultMinSyncInterval         = 5 * time.Minute
	DefaultSyncWindow              = 30 * 24 * time.Hour
	DefaultProgressRecordInterval  = 100
	DefaultProgressPercentInterval = 5
)

// NewHandlers builds a Handlers with default tunables; callers
// override fields directly (it is a plain struct) to change them.
func NewHandlers(
	connections ports.ProviderConnectionRepository,
	accounts ports.AccountRepository,
	holdings ports.HoldingRepository,
	transactions ports.TransactionRepository,
	snapshots ports.BalanceSnapshotRepository,
	cipher ports.CipherPort,
	factory ports.ProviderFactory,
	bus ports.EventBus,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		Connections:             connections,
		Accounts:                accounts,
		Holdings:                holdings,
		Transactions:            transactions,
		Snapshots:               snapshots,
		Cipher:                  cipher,
		Factory:                 factory,
		Bus:                     bus,
		Verifier:                ownership.New(connections, accounts, holdings, transactions),
		Log:                     log.With().Str("component", "commands").Logger(),
		Now:                     time.Now,
		MinSyncInterval:         DefaultMinSyncInterval,
		DefaultSyncWindow:       DefaultSyncWindow,
		ProgressRecordInterval:  DefaultProgressRecordInterval,
		ProgressPercentInterval: DefaultProgressPercentInterval,
	}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// publish is the fire-and-forget wrapper every handler calls around
// ports.EventBus.Publish: handlers never block on, or fail because of,
// downstream consumers. Publish errors are logged, not propagated.
func (h *Handlers) publish(ctx context.Context, evt events.Event) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(ctx, evt); err != nil {
		h.Log.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("event publish failed")
	}
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// decryptCredentials decrypts a connection's opaque blob into the bundle
// shape a ProviderAdapter expects, translating any failure into the
// closed CREDENTIALS_DECRYPTION_FAILED code.
func (h *Handlers) decryptCredentials(creds *providercreds.Credentials) (ports.CredentialBundle, *Failure) {
	if creds == nil {
		f := fail(CodeCredentialsInvalid, "connection has no stored credentials")
		return nil, &f
	}
	bundle, err := h.Cipher.Decrypt(creds.EncryptedData())
	if err != nil {
		f := fail(CodeCredentialsDecryptionFailed, err.Error())
		return nil, &f
	}
	return bundle, nil
}

// translateProviderError maps a ports.ProviderError (or any other adapter
// error) onto the closed PROVIDER_ERROR code; the command layer never
// inspects adapter-internal error types beyond the Code hint.
func translateProviderError(err error) Failure {
	if pe, ok := err.(*ports.ProviderError); ok {
		return fail(CodeProviderError, pe.Error())
	}
	return fail(CodeProviderError, err.Error())
}
