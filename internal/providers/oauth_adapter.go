package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dashtam/provider-sync/internal/ports"
)

// OAuthBrokerageAdapter talks to a Schwab-shaped brokerage REST API,
// authenticating every request with a bearer access token pulled from the
// credential bundle. It owns its own http.Client internally rather than
// borrowing a shared one.
type OAuthBrokerageAdapter struct {
	http httpClient
}

// NewOAuthBrokerageAdapter builds an adapter against baseURL (e.g. a
// sandbox or production brokerage API host).
func NewOAuthBrokerageAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *OAuthBrokerageAdapter {
	return &OAuthBrokerageAdapter{
		http: newHTTPClient(baseURL, timeout, log.With().Str("provider_adapter", "oauth_brokerage").Logger()),
	}
}

type oauthAccount struct {
	AccountID        string  `json:"accountId"`
	AccountNumber    string  `json:"accountNumberMasked"`
	Nickname         string  `json:"nickname"`
	Type             string  `json:"type"`
	Currency         string  `json:"currency"`
	CashBalance      float64 `json:"cashBalance"`
	AvailableCash    *float64 `json:"availableCash,omitempty"`
	IsClosed         bool    `json:"isClosed"`
}

type oauthTransaction struct {
	TransactionID  string     `json:"transactionId"`
	Type           string     `json:"type"`
	SubType        string     `json:"subType,omitempty"`
	Status         string     `json:"status"`
	NetAmount      float64    `json:"netAmount"`
	Currency       string     `json:"currency"`
	Description    string     `json:"description"`
	AssetType      string     `json:"assetType,omitempty"`
	Symbol         string     `json:"symbol,omitempty"`
	SecurityName   string     `json:"securityDescription,omitempty"`
	Quantity       *float64   `json:"quantity,omitempty"`
	Price          *float64   `json:"price,omitempty"`
	Commission     *float64   `json:"commission,omitempty"`
	TradeDate      time.Time  `json:"tradeDate"`
	SettlementDate *time.Time `json:"settlementDate,omitempty"`
}

type oauthPosition struct {
	PositionID   string   `json:"positionId"`
	Symbol       string   `json:"symbol"`
	Description  string   `json:"description"`
	AssetType    string   `json:"assetType"`
	Quantity     float64  `json:"quantity"`
	AverageCost  *float64 `json:"averageCost,omitempty"`
	MarketValue  float64  `json:"marketValue"`
	Currency     string   `json:"currency"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

func bearerHeader(creds ports.CredentialBundle) (string, error) {
	token, ok := credentialString(creds, "access_token")
	if !ok || token == "" {
		return "", &ports.ProviderError{Code: ports.ProviderErrUnauthorized, Message: "credential bundle missing access_token"}
	}
	return "Bearer " + token, nil
}

func (a *OAuthBrokerageAdapter) FetchAccounts(ctx context.Context, credentials ports.CredentialBundle) ([]ports.ProviderAccountData, error) {
	auth, err := bearerHeader(credentials)
	if err != nil {
		return nil, err
	}
	var raw []oauthAccount
	if err := a.http.doJSON(ctx, "GET", "/v1/accounts", auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderAccountData, 0, len(raw))
	for _, acc := range raw {
		data := ports.ProviderAccountData{
			ProviderAccountID:   acc.AccountID,
			AccountNumberMasked: acc.AccountNumber,
			Name:                acc.Nickname,
			AccountType:         acc.Type,
			Balance:             decimal.NewFromFloat(acc.CashBalance),
			Currency:            acc.Currency,
			IsActive:            !acc.IsClosed,
			RawData:             map[string]any{"accountId": acc.AccountID, "type": acc.Type},
		}
		if acc.AvailableCash != nil {
			avail := decimal.NewFromFloat(*acc.AvailableCash)
			data.AvailableBalance = &avail
		}
		out = append(out, data)
	}
	return out, nil
}

func (a *OAuthBrokerageAdapter) FetchTransactions(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string, start, end *time.Time) ([]ports.ProviderTransactionData, error) {
	auth, err := bearerHeader(credentials)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/v1/accounts/%s/transactions", providerAccountID)
	if start != nil || end != nil {
		path += "?"
		if start != nil {
			path += "start=" + start.Format(time.RFC3339)
		}
		if end != nil {
			if start != nil {
				path += "&"
			}
			path += "end=" + end.Format(time.RFC3339)
		}
	}
	var raw []oauthTransaction
	if err := a.http.doJSON(ctx, "GET", path, auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderTransactionData, 0, len(raw))
	for _, tx := range raw {
		data := ports.ProviderTransactionData{
			ProviderTransactionID: tx.TransactionID,
			TransactionType:       tx.Type,
			Subtype:               tx.SubType,
			Status:                tx.Status,
			Amount:                decimal.NewFromFloat(tx.NetAmount),
			Currency:              tx.Currency,
			Description:           tx.Description,
			AssetType:             tx.AssetType,
			Symbol:                tx.Symbol,
			SecurityName:          tx.SecurityName,
			TransactionDate:       tx.TradeDate,
			SettlementDate:        tx.SettlementDate,
			RawData:               map[string]any{"transactionId": tx.TransactionID},
		}
		if tx.Quantity != nil {
			q := decimal.NewFromFloat(*tx.Quantity)
			data.Quantity = &q
		}
		if tx.Price != nil {
			p := decimal.NewFromFloat(*tx.Price)
			data.UnitPrice = &p
		}
		if tx.Commission != nil {
			c := decimal.NewFromFloat(*tx.Commission)
			data.Commission = &c
		}
		out = append(out, data)
	}
	return out, nil
}

func (a *OAuthBrokerageAdapter) FetchHoldings(ctx context.Context, credentials ports.CredentialBundle, providerAccountID string) ([]ports.ProviderHoldingData, error) {
	auth, err := bearerHeader(credentials)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/v1/accounts/%s/positions", providerAccountID)
	var raw []oauthPosition
	if err := a.http.doJSON(ctx, "GET", path, auth, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ports.ProviderHoldingData, 0, len(raw))
	for _, pos := range raw {
		data := ports.ProviderHoldingData{
			ProviderHoldingID: pos.PositionID,
			Symbol:            pos.Symbol,
			SecurityName:      pos.Description,
			AssetType:         pos.AssetType,
			Quantity:          decimal.NewFromFloat(pos.Quantity),
			MarketValue:       decimal.NewFromFloat(pos.MarketValue),
			Currency:          pos.Currency,
			RawData:           map[string]any{"positionId": pos.PositionID},
		}
		if pos.AverageCost != nil {
			cost := decimal.NewFromFloat(*pos.AverageCost * pos.Quantity)
			data.CostBasis = &cost
			avg := decimal.NewFromFloat(*pos.AverageCost)
			data.AveragePrice = &avg
		}
		if pos.CurrentPrice != nil {
			cp := decimal.NewFromFloat(*pos.CurrentPrice)
			data.CurrentPrice = &cp
		}
		out = append(out, data)
	}
	return out, nil
}
