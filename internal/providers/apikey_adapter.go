package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/ports"
)

// APIKeyAggregatorAdapter talks to a Plaid-shaped bank-aggregation API,
// authenticating with a static API key plus an item id identifying the
// user's linked institution, both carried in the credential bundle under
// "api_key" and "item_id".
type APIKeyAggregatorAdapter struct {
	http httpClient
}

// NewAPIKeyAggregatorAdapter builds an adapter against baseURL.
func NewAPIKeyAggregatorAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *APIKeyAggregatorAdapter {
	return &APIKeyAggregatorAdapter{
		http: newHTTPClient(baseURL, timeout, log.With().Str("provider_adapter", "apikey_aggregator").Logger()),
	}
}

type aggregatorAccount struct {
	AccountID     string   `json:"account_id"`
	Mask          string   `json:"mask"`
	Name          string   `json:"name"`
	Subtype       string   `json:"subtype"`
	Currency      string   `json:"iso_currency_code"`
	Current       float64  `json:"balance_current"`
	Available     *float64 `json:"balance_available,omitempty"`
	Active        bool     `json:"active"`
}

type aggregatorTransaction struct {
	TransactionID  string     `json:"transaction_id"`
	Category       string     `json:"primary_category"`
	DetailCategory string     `json:"detailed_category,omitempty"`
	PendingStatus  string     `json:"pending_status"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"iso_currency_code"`
	Name           string     `json:"name"`
	Date           time.Time  `json:"date"`
	AuthorizedDate *time.Time `json:"authorized_date,omitempty"`
}

type aggregatorHolding struct {
	HoldingID    string   `json:"holding_id"`
	Symbol       string   `json:"ticker_symbol"`
	SecurityName string   `json:"security_name"`
	SecurityType string   `json:"security_type"`
	Quantity     float64  `json:"quantity"`
	CostBasis    *float64 `json:"cost_basis,omitempty"`
	Value        float64  `json:"institution_value"`
	Currency     string   `json:"iso_currency_code"`
	Price        *float64 `json:"institution_price,omitempty"`
}

func apiKeyHeader(creds ports.CredentialBundle) (string, error) {
	key, ok := credentialString(creds, "api_key")
	if !ok || key == "" {
		return "", &ports.ProviderError{Code: ports.ProviderErrUnauthorized, Message: "credential bundle missing api_key"}
	}
	return key, nil
}

func itemID(creds ports.CredentialBundle) string {
	id, _ := credentialString(creds, "item_id")
	return id
}

func (a *APIKeyAggregatorAdapter) FetchAccounts(ctx context.Context, credentials ports.CredentialBundle) ([]ports.ProviderAccountData, error) {
	auth, err := apiKeyHeader(credentials)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/accounts/get?item_id=%s", itemID(credentials))
	var raw []aggregatorAccount
	if err := a.http.doJSON(ctx, "GET", path, auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderAccountData, 0, len(raw))
	for _, acc := range raw {
		data := ports.ProviderAccountData{
			ProviderAccountID:   acc.AccountID,
			AccountNumberMasked: acc.Mask,
			Name:                acc.Name,
			AccountType:         acc.Subtype,
			Balance:             decimal.NewFromFloat(acc.Current),
			Currency:            acc.Currency,
			IsActive:            acc.Active,
			RawData:             map[string]any{"account_id": acc.AccountID, "subtype": acc.Subtype},
		}
		if acc.Available != nil {
			avail := decimal.NewFromFloat(*acc.Available)
			data.AvailableBalance = &avail
		}
		out = append(out, data)
	}
	return out, nil
}

func (a *APIKeyAggregatorAdapter) FetchTransactions(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string, start, end *time.Time) ([]ports.ProviderTransactionData, error) {
	auth, err := apiKeyHeader(credentials)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/transactions/get?item_id=%s&account_id=%s", itemID(credentials), providerAccountID)
	if start != nil {
		path += "&start_date=" + start.Format("2006-01-02")
	}
	if end != nil {
		path += "&end_date=" + end.Format("2006-01-02")
	}
	var raw []aggregatorTransaction
	if err := a.http.doJSON(ctx, "GET", path, auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderTransactionData, 0, len(raw))
	for _, tx := range raw {
		out = append(out, ports.ProviderTransactionData{
			ProviderTransactionID: tx.TransactionID,
			TransactionType:       tx.Category,
			Subtype:               tx.DetailCategory,
			Status:                tx.PendingStatus,
			Amount:                decimal.NewFromFloat(tx.Amount),
			Currency:              tx.Currency,
			Description:           tx.Name,
			TransactionDate:       tx.Date,
			SettlementDate:        tx.AuthorizedDate,
			RawData:               map[string]any{"transaction_id": tx.TransactionID},
		})
	}
	return out, nil
}

func (a *APIKeyAggregatorAdapter) FetchHoldings(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string) ([]ports.ProviderHoldingData, error) {
	auth, err := apiKeyHeader(credentials)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/investments/holdings/get?item_id=%s&account_id=%s", itemID(credentials), providerAccountID)
	var raw []aggregatorHolding
	if err := a.http.doJSON(ctx, "GET", path, auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderHoldingData, 0, len(raw))
	for _, h := range raw {
		data := ports.ProviderHoldingData{
			ProviderHoldingID: h.HoldingID,
			Symbol:            h.Symbol,
			SecurityName:      h.SecurityName,
			AssetType:         h.SecurityType,
			Quantity:          decimal.NewFromFloat(h.Quantity),
			MarketValue:       decimal.NewFromFloat(h.Value),
			Currency:          h.Currency,
			RawData:           map[string]any{"holding_id": h.HoldingID},
		}
		if h.CostBasis != nil {
			cost := decimal.NewFromFloat(*h.CostBasis)
			data.CostBasis = &cost
		}
		if h.Price != nil {
			price := decimal.NewFromFloat(*h.Price)
			data.CurrentPrice = &price
		}
		out = append(out, data)
	}
	return out, nil
}
