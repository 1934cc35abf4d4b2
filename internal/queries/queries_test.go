package queries

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/money"
	"github.com/dashtam/provider-sync/internal/providercreds"
)

// ---------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------

type memConnRepo struct {
	byID map[uuid.UUID]*domain.ProviderConnection
}

func (m *memConnRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.ProviderConnection, error) {
	return m.byID[id], nil
}
func (m *memConnRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]*domain.ProviderConnection, error) {
	var out []*domain.ProviderConnection
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *memConnRepo) FindByUserAndProvider(context.Context, uuid.UUID, uuid.UUID) (*domain.ProviderConnection, error) {
	return nil, nil
}
func (m *memConnRepo) FindActiveByUser(context.Context, uuid.UUID) ([]*domain.ProviderConnection, error) {
	return nil, nil
}
func (m *memConnRepo) FindExpiringSoon(context.Context, time.Duration) ([]*domain.ProviderConnection, error) {
	return nil, nil
}
func (m *memConnRepo) Save(_ context.Context, c *domain.ProviderConnection) error {
	m.byID[c.ID] = c
	return nil
}
func (m *memConnRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

type memAccountRepo struct {
	byID  map[uuid.UUID]*domain.Account
	conns *memConnRepo
}

func (m *memAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	return m.byID[id], nil
}
func (m *memAccountRepo) FindByConnectionID(context.Context, uuid.UUID, bool) ([]*domain.Account, error) {
	return nil, nil
}
func (m *memAccountRepo) FindByUserID(_ context.Context, userID uuid.UUID, activeOnly bool, accountType *domain.AccountType) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, a := range m.byID {
		conn := m.conns.byID[a.ConnectionID]
		if conn == nil || conn.UserID != userID {
			continue
		}
		if activeOnly && !a.IsActive {
			continue
		}
		if accountType != nil && a.AccountType != *accountType {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
func (m *memAccountRepo) FindByProviderAccountID(context.Context, uuid.UUID, string) (*domain.Account, error) {
	return nil, nil
}
func (m *memAccountRepo) FindNeedingSync(context.Context, time.Duration) ([]*domain.Account, error) {
	return nil, nil
}
func (m *memAccountRepo) Save(_ context.Context, a *domain.Account) error {
	m.byID[a.ID] = a
	return nil
}
func (m *memAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

type memHoldingRepo struct {
	byID map[uuid.UUID]*domain.Holding
}

func (m *memHoldingRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Holding, error) {
	return m.byID[id], nil
}
func (m *memHoldingRepo) FindByAccountAndSymbol(context.Context, uuid.UUID, string) (*domain.Holding, error) {
	return nil, nil
}
func (m *memHoldingRepo) FindByProviderHoldingID(context.Context, uuid.UUID, string) (*domain.Holding, error) {
	return nil, nil
}
func (m *memHoldingRepo) ListByAccount(_ context.Context, accountID uuid.UUID, activeOnly bool) ([]*domain.Holding, error) {
	var out []*domain.Holding
	for _, h := range m.byID {
		if h.AccountID != accountID {
			continue
		}
		if activeOnly && !h.IsActive {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}
func (m *memHoldingRepo) ListByUser(context.Context, uuid.UUID, bool) ([]*domain.Holding, error) {
	return nil, nil
}
func (m *memHoldingRepo) Save(_ context.Context, h *domain.Holding) error {
	m.byID[h.ID] = h
	return nil
}
func (m *memHoldingRepo) SaveMany(ctx context.Context, hs []*domain.Holding) error {
	for _, h := range hs {
		if err := m.Save(ctx, h); err != nil {
			return err
		}
	}
	return nil
}
func (m *memHoldingRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}
func (m *memHoldingRepo) DeleteByAccount(context.Context, uuid.UUID) (int, error) { return 0, nil }

type memTxRepo struct {
	byID map[uuid.UUID]*domain.Transaction
}

func (m *memTxRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return m.byID[id], nil
}
func (m *memTxRepo) FindByAccountID(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	var all []*domain.Transaction
	for _, tx := range m.byID {
		if tx.AccountID == accountID {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TransactionDate.After(all[j].TransactionDate) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
func (m *memTxRepo) FindByAccountAndType(context.Context, uuid.UUID, domain.TransactionType) ([]*domain.Transaction, error) {
	return nil, nil
}
func (m *memTxRepo) FindByDateRange(context.Context, uuid.UUID, time.Time, time.Time) ([]*domain.Transaction, error) {
	return nil, nil
}
func (m *memTxRepo) FindByProviderTransactionID(context.Context, uuid.UUID, string) (*domain.Transaction, error) {
	return nil, nil
}
func (m *memTxRepo) FindSecurityTransactions(_ context.Context, symbol string, limit int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, tx := range m.byID {
		if tx.Symbol != nil && *tx.Symbol == symbol {
			out = append(out, tx)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
func (m *memTxRepo) Save(_ context.Context, tx *domain.Transaction) error {
	m.byID[tx.ID] = tx
	return nil
}
func (m *memTxRepo) SaveMany(ctx context.Context, txs []*domain.Transaction) error {
	for _, tx := range txs {
		if err := m.Save(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
func (m *memTxRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

type memSnapshotRepo struct {
	snapshots []*domain.BalanceSnapshot
}

func (m *memSnapshotRepo) FindByID(context.Context, uuid.UUID) (*domain.BalanceSnapshot, error) {
	return nil, nil
}
func (m *memSnapshotRepo) FindByAccountID(context.Context, uuid.UUID, *domain.SnapshotSource, int) ([]*domain.BalanceSnapshot, error) {
	return nil, nil
}
func (m *memSnapshotRepo) FindByAccountIDInRange(_ context.Context, accountID uuid.UUID, start, end time.Time, source *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error) {
	var out []*domain.BalanceSnapshot
	for _, s := range m.snapshots {
		if s.AccountID != accountID || s.CapturedAt.Before(start) || s.CapturedAt.After(end) {
			continue
		}
		if source != nil && s.Source != *source {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}
func (m *memSnapshotRepo) FindLatestByAccountID(context.Context, uuid.UUID) (*domain.BalanceSnapshot, error) {
	return nil, nil
}
func (m *memSnapshotRepo) FindByUserIDInRange(context.Context, uuid.UUID, time.Time, time.Time, *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error) {
	return nil, nil
}
func (m *memSnapshotRepo) FindLatestByUserID(context.Context, uuid.UUID) ([]*domain.BalanceSnapshot, error) {
	return m.snapshots, nil
}
func (m *memSnapshotRepo) Save(_ context.Context, s *domain.BalanceSnapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}
func (m *memSnapshotRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (m *memSnapshotRepo) CountByAccountID(context.Context, uuid.UUID) (int, error) {
	return len(m.snapshots), nil
}

// ---------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------

type fixture struct {
	handlers  *Handlers
	conns     *memConnRepo
	accounts  *memAccountRepo
	holdings  *memHoldingRepo
	txs       *memTxRepo
	snapshots *memSnapshotRepo
	now       time.Time
}

func newFixture() *fixture {
	conns := &memConnRepo{byID: map[uuid.UUID]*domain.ProviderConnection{}}
	accounts := &memAccountRepo{byID: map[uuid.UUID]*domain.Account{}, conns: conns}
	holdings := &memHoldingRepo{byID: map[uuid.UUID]*domain.Holding{}}
	txs := &memTxRepo{byID: map[uuid.UUID]*domain.Transaction{}}
	snapshots := &memSnapshotRepo{}
	return &fixture{
		handlers:  NewHandlers(conns, accounts, holdings, txs, snapshots),
		conns:     conns,
		accounts:  accounts,
		holdings:  holdings,
		txs:       txs,
		snapshots: snapshots,
		now:       time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) connection(t *testing.T, userID uuid.UUID) *domain.ProviderConnection {
	t.Helper()
	creds, err := providercreds.New([]byte("sealed"), providercreds.OAuth2, nil)
	require.NoError(t, err)
	conn, err := domain.NewProviderConnection(
		uuid.New(), userID, uuid.New(), "schwab",
		domain.ConnectionActive, nil, &creds, &f.now, nil, f.now, f.now,
	)
	require.NoError(t, err)
	require.NoError(t, f.conns.Save(context.Background(), conn))
	return conn
}

func (f *fixture) account(t *testing.T, connectionID uuid.UUID, accountType domain.AccountType) *domain.Account {
	t.Helper()
	acc, err := domain.NewAccount(
		uuid.New(), connectionID, uuid.New().String(), "***1", "Test",
		accountType, money.MustNew(decimal.NewFromInt(1000), "USD"), nil, "USD",
		true, nil, nil, f.now, f.now,
	)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Save(context.Background(), acc))
	return acc
}

func (f *fixture) snapshot(t *testing.T, accountID uuid.UUID, balance int64, capturedAt time.Time) *domain.BalanceSnapshot {
	t.Helper()
	s, err := domain.NewBalanceSnapshot(
		uuid.New(), accountID, money.MustNew(decimal.NewFromInt(balance), "USD"), nil,
		"USD", domain.SnapshotAccountSync, capturedAt, capturedAt,
	)
	require.NoError(t, err)
	require.NoError(t, f.snapshots.Save(context.Background(), s))
	return s
}

func (f *fixture) holding(t *testing.T, accountID uuid.UUID, symbol string, assetType domain.AssetType, marketValue, costBasis int64) *domain.Holding {
	t.Helper()
	cb := money.MustNew(decimal.NewFromInt(costBasis), "USD")
	h, err := domain.NewHolding(
		uuid.New(), accountID, uuid.New().String(), symbol, symbol+" Inc",
		assetType, decimal.NewFromInt(10), &cb, nil, nil,
		money.MustNew(decimal.NewFromInt(marketValue), "USD"), "USD",
		true, nil, f.now, f.now,
	)
	require.NoError(t, err)
	require.NoError(t, f.holdings.Save(context.Background(), h))
	return h
}

// ---------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------

func TestGetProviderConnection_DerivedFlags(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)

	r := f.handlers.GetProviderConnection(context.Background(), userID, conn.ID)
	require.True(t, r.IsSuccess())
	dto := r.Value()
	assert.True(t, dto.IsConnected)
	assert.False(t, dto.NeedsReauthentication)
	assert.Equal(t, "active", dto.Status)
}

func TestGetProviderConnection_NotOwned(t *testing.T) {
	f := newFixture()
	conn := f.connection(t, uuid.New())

	r := f.handlers.GetProviderConnection(context.Background(), uuid.New(), conn.ID)
	require.True(t, r.IsFailure())
	assert.Equal(t, CodeNotOwnedByUser, r.Error().Code)
}

func TestListProviderConnections_ScopedToUser(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	f.connection(t, userID)
	f.connection(t, userID)
	f.connection(t, uuid.New())

	r := f.handlers.ListProviderConnections(context.Background(), userID)
	require.True(t, r.IsSuccess())
	assert.Len(t, r.Value(), 2)
}

// ---------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------

func TestGetAccount_OwnershipChain(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	acc := f.account(t, conn.ID, domain.AccountBrokerage)

	owned := f.handlers.GetAccount(context.Background(), userID, acc.ID)
	require.True(t, owned.IsSuccess())
	assert.Equal(t, acc.ID.String(), owned.Value().ID)

	foreign := f.handlers.GetAccount(context.Background(), uuid.New(), acc.ID)
	require.True(t, foreign.IsFailure())
	assert.Equal(t, CodeNotOwnedByUser, foreign.Error().Code)
}

func TestListAccounts_TypeFilter(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	f.account(t, conn.ID, domain.AccountBrokerage)
	f.account(t, conn.ID, domain.AccountChecking)

	brokerage := domain.AccountBrokerage
	r := f.handlers.ListAccounts(context.Background(), userID, true, &brokerage)
	require.True(t, r.IsSuccess())
	require.Len(t, r.Value(), 1)
	assert.Equal(t, "brokerage", r.Value()[0].AccountType)
}

// ---------------------------------------------------------------------
// Balance history
// ---------------------------------------------------------------------

func TestGetBalanceHistory_DeltasAndSummary(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	acc := f.account(t, conn.ID, domain.AccountBrokerage)

	d1 := f.now.AddDate(0, 0, -3)
	d2 := f.now.AddDate(0, 0, -2)
	d3 := f.now.AddDate(0, 0, -1)
	f.snapshot(t, acc.ID, 100, d1)
	f.snapshot(t, acc.ID, 110, d2)
	f.snapshot(t, acc.ID, 121, d3)

	r := f.handlers.GetBalanceHistory(context.Background(), userID, acc.ID, d1, d3, nil)
	require.True(t, r.IsSuccess())
	out := r.Value()
	require.Len(t, out.Snapshots, 3)

	assert.Nil(t, out.Snapshots[0].ChangeAmount)
	assert.Nil(t, out.Snapshots[0].ChangePercent)
	require.NotNil(t, out.Snapshots[1].ChangeAmount)
	assert.Equal(t, "10", *out.Snapshots[1].ChangeAmount)
	assert.InDelta(t, 10.0, *out.Snapshots[1].ChangePercent, 0.001)
	require.NotNil(t, out.Snapshots[2].ChangeAmount)
	assert.Equal(t, "11", *out.Snapshots[2].ChangeAmount)
	assert.InDelta(t, 10.0, *out.Snapshots[2].ChangePercent, 0.001)

	require.NotNil(t, out.TotalChange)
	assert.Equal(t, "21", out.TotalChange.Amount)
	require.NotNil(t, out.TotalChangePercent)
	assert.InDelta(t, 21.0, *out.TotalChangePercent, 0.001)
}

func TestGetBalanceHistory_InvalidDateRange(t *testing.T) {
	f := newFixture()
	r := f.handlers.GetBalanceHistory(context.Background(), uuid.New(), uuid.New(), f.now, f.now.Add(-time.Hour), nil)
	require.True(t, r.IsFailure())
	assert.Equal(t, CodeInvalidDateRange, r.Error().Code)
}

func TestGetBalanceHistory_InvalidSource(t *testing.T) {
	f := newFixture()
	bad := "cosmic_rays"
	r := f.handlers.GetBalanceHistory(context.Background(), uuid.New(), uuid.New(), f.now.Add(-time.Hour), f.now, &bad)
	require.True(t, r.IsFailure())
	assert.Equal(t, CodeInvalidSource, r.Error().Code)
}

func TestGetBalanceHistory_ZeroFirstBalanceHasNoPercent(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	acc := f.account(t, conn.ID, domain.AccountBrokerage)

	d1 := f.now.AddDate(0, 0, -2)
	d2 := f.now.AddDate(0, 0, -1)
	f.snapshot(t, acc.ID, 0, d1)
	f.snapshot(t, acc.ID, 50, d2)

	r := f.handlers.GetBalanceHistory(context.Background(), userID, acc.ID, d1, d2, nil)
	require.True(t, r.IsSuccess())
	out := r.Value()
	require.NotNil(t, out.TotalChange)
	assert.Equal(t, "50", out.TotalChange.Amount)
	assert.Nil(t, out.TotalChangePercent, "percent is undefined from a zero base")
	assert.Nil(t, out.Snapshots[1].ChangePercent)
	require.NotNil(t, out.Snapshots[1].ChangeAmount)
}

func TestGetLatestBalanceSnapshots_TotalsByCurrency(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	a1 := f.account(t, conn.ID, domain.AccountBrokerage)
	a2 := f.account(t, conn.ID, domain.AccountChecking)
	f.snapshot(t, a1.ID, 100, f.now)
	f.snapshot(t, a2.ID, 250, f.now)

	r := f.handlers.GetLatestBalanceSnapshots(context.Background(), userID)
	require.True(t, r.IsSuccess())
	assert.Equal(t, "350", r.Value().TotalsByCurrency["USD"])
}

// ---------------------------------------------------------------------
// Holdings
// ---------------------------------------------------------------------

func TestListHoldingsByAccount_FiltersAndAggregates(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	acc := f.account(t, conn.ID, domain.AccountBrokerage)
	f.holding(t, acc.ID, "AAPL", domain.AssetEquity, 1500, 1000)
	f.holding(t, acc.ID, "VOO", domain.AssetETF, 3000, 2800)

	all := f.handlers.ListHoldingsByAccount(context.Background(), userID, acc.ID, nil, nil)
	require.True(t, all.IsSuccess())
	assert.Len(t, all.Value().Holdings, 2)
	agg := all.Value().AggregatesByCurrency["USD"]
	assert.Equal(t, "4500", agg.MarketValue)
	assert.Equal(t, "3800", agg.CostBasis)
	assert.Equal(t, "700", agg.UnrealizedGainLoss)

	equity := domain.AssetEquity
	filtered := f.handlers.ListHoldingsByAccount(context.Background(), userID, acc.ID, &equity, nil)
	require.True(t, filtered.IsSuccess())
	require.Len(t, filtered.Value().Holdings, 1)
	assert.Equal(t, "AAPL", filtered.Value().Holdings[0].Symbol)
	require.NotNil(t, filtered.Value().Holdings[0].UnrealizedGainLossPercent)
	assert.Equal(t, "50.00", *filtered.Value().Holdings[0].UnrealizedGainLossPercent)
}

func TestListHoldingsByAccount_NotOwned(t *testing.T) {
	f := newFixture()
	conn := f.connection(t, uuid.New())
	acc := f.account(t, conn.ID, domain.AccountBrokerage)

	r := f.handlers.ListHoldingsByAccount(context.Background(), uuid.New(), acc.ID, nil, nil)
	require.True(t, r.IsFailure())
	assert.Equal(t, CodeNotOwnedByUser, r.Error().Code)
}

// ---------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------

func (f *fixture) transaction(t *testing.T, accountID uuid.UUID, symbol string, date time.Time) *domain.Transaction {
	t.Helper()
	var sym *string
	if symbol != "" {
		sym = &symbol
	}
	tx, err := domain.NewTransaction(
		uuid.New(), accountID, uuid.New().String(), sym, nil, nil,
		domain.TxTrade, domain.SubtypeBuy,
		nil, nil,
		money.MustNew(decimal.NewFromInt(-100), "USD"), money.Zero("USD"), "USD",
		domain.TxStatusSettled, date, nil, "buy", date, date,
	)
	require.NoError(t, err)
	require.NoError(t, f.txs.Save(context.Background(), tx))
	return tx
}

func TestListTransactionsByAccount_HasMore(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	acc := f.account(t, conn.ID, domain.AccountBrokerage)
	for i := 0; i < 5; i++ {
		f.transaction(t, acc.ID, "", f.now.AddDate(0, 0, -i))
	}

	page := f.handlers.ListTransactionsByAccount(context.Background(), userID, acc.ID, 3, 0)
	require.True(t, page.IsSuccess())
	assert.Len(t, page.Value().Transactions, 3)
	assert.True(t, page.Value().HasMore, "full page implies more may exist")

	last := f.handlers.ListTransactionsByAccount(context.Background(), userID, acc.ID, 3, 3)
	require.True(t, last.IsSuccess())
	assert.Len(t, last.Value().Transactions, 2)
	assert.False(t, last.Value().HasMore)
}

func TestListTransactionsBySecurity_FiltersForeignAccounts(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	conn := f.connection(t, userID)
	mine := f.account(t, conn.ID, domain.AccountBrokerage)
	otherConn := f.connection(t, uuid.New())
	theirs := f.account(t, otherConn.ID, domain.AccountBrokerage)

	f.transaction(t, mine.ID, "AAPL", f.now)
	f.transaction(t, theirs.ID, "AAPL", f.now)

	r := f.handlers.ListTransactionsBySecurity(context.Background(), userID, "AAPL", 10)
	require.True(t, r.IsSuccess())
	require.Len(t, r.Value(), 1)
	assert.Equal(t, mine.ID.String(), r.Value()[0].AccountID)
}
