// Package queries implements the read-side query handlers: ownership check
// (or user-scoped filter) followed by repository fetch and DTO projection.
// Queries are side-effect-free and never publish events, unlike the
// command handlers in internal/commands.
package queries

import (
	"time"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/ownership"
	"github.com/dashtam/provider-sync/internal/ports"
)

// Code is the closed set of failure codes a query handler can return.
type Code string

const (
	CodeConnectionNotFound  Code = "CONNECTION_NOT_FOUND"
	CodeAccountNotFound     Code = "ACCOUNT_NOT_FOUND"
	CodeHoldingNotFound     Code = "HOLDING_NOT_FOUND"
	CodeTransactionNotFound Code = "TRANSACTION_NOT_FOUND"
	CodeNotOwnedByUser      Code = "NOT_OWNED_BY_USER"
	CodeDatabaseError       Code = "DATABASE_ERROR"
	CodeInvalidDateRange    Code = "INVALID_DATE_RANGE"
	CodeInvalidSource       Code = "INVALID_SOURCE"
)

// Failure is the error channel of every query Result.
type Failure struct {
	Code    Code
	Message string
}

func (f Failure) Error() string {
	return string(f.Code) + ": " + f.Message
}

// fromOwnership translates an ownership.ErrorCode into a query Failure. The
// string values of the two closed sets are defined to match exactly, so
// this is a type conversion, not a lookup table.
func fromOwnership(code ownership.ErrorCode) Failure {
	return Failure{Code: Code(code), Message: string(code)}
}

// Handlers holds every port the query layer consumes.
type Handlers struct {
	Connections  ports.ProviderConnectionRepository
	Accounts     ports.AccountRepository
	Holdings     ports.HoldingRepository
	Transactions ports.TransactionRepository
	Snapshots    ports.BalanceSnapshotRepository
	Verifier     *ownership.Verifier
}

// NewHandlers builds a query Handlers over the given repository ports,
// composing its own ownership.Verifier the same way commands.Handlers does.
func NewHandlers(
	connections ports.ProviderConnectionRepository,
	accounts ports.AccountRepository,
	holdings ports.HoldingRepository,
	transactions ports.TransactionRepository,
	snapshots ports.BalanceSnapshotRepository,
) *Handlers {
	return &Handlers{
		Connections:  connections,
		Accounts:     accounts,
		Holdings:     holdings,
		Transactions: transactions,
		Snapshots:    snapshots,
		Verifier:     ownership.New(connections, accounts, holdings, transactions),
	}
}

// MoneyDTO projects a money.Money across the query boundary as a
// (amount, currency) string pair rather than the internal decimal type.
type MoneyDTO struct {
	Amount   string
	Currency string
}

func moneyDTO(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount().String(), Currency: m.Currency()}
}

func moneyDTOPtr(m *money.Money) *MoneyDTO {
	if m == nil {
		return nil
	}
	dto := moneyDTO(*m)
	return &dto
}

// ConnectionDTO projects a domain.ProviderConnection.
type ConnectionDTO struct {
	ID                    string
	UserID                string
	ProviderID            string
	ProviderSlug          string
	Status                string
	Alias                 *string
	ConnectedAt           *time.Time
	LastSyncAt            *time.Time
	IsConnected           bool
	NeedsReauthentication bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func connectionDTO(c *domain.ProviderConnection) ConnectionDTO {
	return ConnectionDTO{
		ID:                    c.ID.String(),
		UserID:                c.UserID.String(),
		ProviderID:            c.ProviderID.String(),
		ProviderSlug:          c.ProviderSlug,
		Status:                string(c.Status),
		Alias:                 c.Alias,
		ConnectedAt:           c.ConnectedAt,
		LastSyncAt:            c.LastSyncAt,
		IsConnected:           c.IsConnected(),
		NeedsReauthentication: c.NeedsReauthentication(),
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// AccountDTO projects a domain.Account.
type AccountDTO struct {
	ID                  string
	ConnectionID        string
	ProviderAccountID   string
	AccountNumberMasked string
	Name                string
	AccountType         string
	Balance             MoneyDTO
	AvailableBalance    *MoneyDTO
	Currency            string
	IsActive            bool
	LastSyncedAt        *time.Time
}

func accountDTO(a *domain.Account) AccountDTO {
	return AccountDTO{
		ID:                  a.ID.String(),
		ConnectionID:        a.ConnectionID.String(),
		ProviderAccountID:   a.ProviderAccountID,
		AccountNumberMasked: a.AccountNumberMasked,
		Name:                a.Name,
		AccountType:         string(a.AccountType),
		Balance:             moneyDTO(a.Balance),
		AvailableBalance:    moneyDTOPtr(a.AvailableBalance),
		Currency:            a.Currency,
		IsActive:            a.IsActive,
		LastSyncedAt:        a.LastSyncedAt,
	}
}

// HoldingDTO projects a domain.Holding, including the derived
// unrealized_gain_loss the entity itself computes.
type HoldingDTO struct {
	ID                        string
	AccountID                 string
	ProviderHoldingID         string
	Symbol                    string
	Description               string
	AssetType                 string
	Quantity                  string
	CostBasis                 *MoneyDTO
	AveragePrice              *MoneyDTO
	CurrentPrice              *MoneyDTO
	MarketValue               MoneyDTO
	Currency                  string
	IsActive                  bool
	UnrealizedGainLoss        *MoneyDTO
	UnrealizedGainLossPercent *string
	LastSyncedAt              *time.Time
}

func holdingDTO(h *domain.Holding) HoldingDTO {
	dto := HoldingDTO{
		ID:                 h.ID.String(),
		AccountID:          h.AccountID.String(),
		ProviderHoldingID:  h.ProviderHoldingID,
		Symbol:             h.Symbol,
		Description:        h.Description,
		AssetType:          string(h.AssetType),
		Quantity:           h.Quantity.String(),
		CostBasis:          moneyDTOPtr(h.CostBasis),
		AveragePrice:       moneyDTOPtr(h.AveragePrice),
		CurrentPrice:       moneyDTOPtr(h.CurrentPrice),
		MarketValue:        moneyDTO(h.MarketValue),
		Currency:           h.Currency,
		IsActive:           h.IsActive,
		UnrealizedGainLoss: moneyDTOPtr(h.UnrealizedGainLoss()),
		LastSyncedAt:       h.LastSyncedAt,
	}
	if pct := h.UnrealizedGainLossPercent(); pct != nil {
		s := pct.StringFixed(2)
		dto.UnrealizedGainLossPercent = &s
	}
	return dto
}

// TransactionDTO projects a domain.Transaction.
type TransactionDTO struct {
	ID                    string
	AccountID             string
	ProviderTransactionID string
	Symbol                *string
	SecurityName          *string
	AssetType             *string
	TransactionType       string
	TransactionSubtype    string
	Quantity              *string
	Price                 *MoneyDTO
	Amount                MoneyDTO
	Fees                  MoneyDTO
	Currency              string
	Status                string
	TransactionDate       time.Time
	SettlementDate        *time.Time
	Description           string
}

func transactionDTO(t *domain.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                    t.ID.String(),
		AccountID:             t.AccountID.String(),
		ProviderTransactionID: t.ProviderTransactionID,
		Symbol:                t.Symbol,
		SecurityName:          t.SecurityName,
		TransactionType:       string(t.TransactionType),
		TransactionSubtype:    string(t.TransactionSubtype),
		Price:                 moneyDTOPtr(t.Price),
		Amount:                moneyDTO(t.Amount),
		Fees:                  moneyDTO(t.Fees),
		Currency:              t.Currency,
		Status:                string(t.Status),
		TransactionDate:       t.TransactionDate,
		SettlementDate:        t.SettlementDate,
		Description:           t.Description,
	}
	if t.AssetType != nil {
		at := string(*t.AssetType)
		dto.AssetType = &at
	}
	if t.Quantity != nil {
		q := t.Quantity.String()
		dto.Quantity = &q
	}
	return dto
}

// SnapshotDTO projects a domain.BalanceSnapshot, plus the period-relative
// deltas GetBalanceHistory computes across a result set (nil for queries
// that don't compute them, such as GetUserBalanceHistory).
type SnapshotDTO struct {
	ID               string
	AccountID        string
	Balance          MoneyDTO
	AvailableBalance *MoneyDTO
	HoldingsValue    *MoneyDTO
	CashValue        *MoneyDTO
	Currency         string
	Source           string
	CapturedAt       time.Time
	ChangeAmount     *string
	ChangePercent    *float64
}

func snapshotDTO(s *domain.BalanceSnapshot) SnapshotDTO {
	return SnapshotDTO{
		ID:               s.ID.String(),
		AccountID:        s.AccountID.String(),
		Balance:          moneyDTO(s.Balance),
		AvailableBalance: moneyDTOPtr(s.AvailableBalance),
		HoldingsValue:    moneyDTOPtr(s.HoldingsValue),
		CashValue:        moneyDTOPtr(s.CashValue),
		Currency:         s.Currency,
		Source:           string(s.Source),
		CapturedAt:       s.CapturedAt,
	}
}
