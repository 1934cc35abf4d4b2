package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CredentialBundle is the decrypted representation of a connection's
// credentials, handed to a ProviderAdapter. Its shape is provider-defined;
// OAuth-style adapters expect an access token under "access_token", while
// file-import adapters expect "file_content", "file_format" and "file_name"
// in place of a token.
type CredentialBundle map[string]any

// ProviderErrorCode is the closed set of failure reasons a ProviderAdapter
// can surface. Command handlers translate any of these into a PROVIDER_ERROR
// Failure.
type ProviderErrorCode string

const (
	ProviderErrUnauthorized ProviderErrorCode = "UNAUTHORIZED"
	ProviderErrRateLimited  ProviderErrorCode = "RATE_LIMITED"
	ProviderErrTimeout      ProviderErrorCode = "TIMEOUT"
	ProviderErrBadResponse  ProviderErrorCode = "BAD_RESPONSE"
	ProviderErrInvalidFile  ProviderErrorCode = "INVALID_FILE"
	ProviderErrUnknown      ProviderErrorCode = "UNKNOWN"
)

// ProviderError is returned by adapter fetch methods. It always carries a
// stable Code so handlers can branch without parsing message text.
type ProviderError struct {
	Code    ProviderErrorCode
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ProviderAccountData is the normalized-but-not-yet-entity shape an adapter
// returns for one account.
type ProviderAccountData struct {
	ProviderAccountID   string
	AccountNumberMasked string
	Name                string
	AccountType         string
	Balance             decimal.Decimal
	Currency            string
	AvailableBalance    *decimal.Decimal
	IsActive            bool
	RawData             map[string]any
}

// ProviderTransactionData is the normalized-but-not-yet-entity shape an
// adapter returns for one transaction.
type ProviderTransactionData struct {
	ProviderTransactionID string
	TransactionType       string
	Subtype               string
	Status                string
	Amount                decimal.Decimal
	Currency              string
	Description           string
	AssetType             string
	Symbol                string
	SecurityName          string
	Quantity              *decimal.Decimal
	UnitPrice             *decimal.Decimal
	Commission            *decimal.Decimal
	TransactionDate       time.Time
	SettlementDate        *time.Time
	RawData               map[string]any
}

// ProviderHoldingData is the normalized-but-not-yet-entity shape an adapter
// returns for one holding.
type ProviderHoldingData struct {
	ProviderHoldingID string
	Symbol            string
	SecurityName      string
	AssetType         string
	Quantity          decimal.Decimal
	CostBasis         *decimal.Decimal
	MarketValue       decimal.Decimal
	Currency          string
	AveragePrice      *decimal.Decimal
	CurrentPrice      *decimal.Decimal
	RawData           map[string]any
}

// ProviderAdapter is the single contract every external data source —
// OAuth brokerage API, API-key banking aggregator, or file-import parser —
// must satisfy. Implementations live under internal/providers.
type ProviderAdapter interface {
	FetchAccounts(ctx context.Context, credentials CredentialBundle) ([]ProviderAccountData, error)
	FetchTransactions(ctx context.Context, credentials CredentialBundle, providerAccountID string, start, end *time.Time) ([]ProviderTransactionData, error)
	FetchHoldings(ctx context.Context, credentials CredentialBundle, providerAccountID string) ([]ProviderHoldingData, error)
}

// ProviderFactory resolves a provider slug ("schwab", "plaid", "file-import")
// to its adapter at runtime. Read-only after startup registration.
type ProviderFactory interface {
	GetProvider(slug string) (ProviderAdapter, error)
	Supports(slug string) bool
	ListSupported() []string
}
