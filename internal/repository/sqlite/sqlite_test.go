package sqlite

import (
	"context"
	"path/filepath"
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

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func fixedTime() time.Time {
	return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
}

func seedConnection(t *testing.T, db *DB, userID uuid.UUID) *domain.ProviderConnection {
	t.Helper()
	now := fixedTime()
	expires := now.Add(time.Hour)
	creds, err := providercreds.New([]byte{0x01, 0x02, 0xFF}, providercreds.OAuth2, &expires)
	require.NoError(t, err)
	alias := "My Brokerage"
	conn, err := domain.NewProviderConnection(
		uuid.New(), userID, uuid.New(), "schwab",
		domain.ConnectionActive, &alias, &creds, &now, nil, now, now,
	)
	require.NoError(t, err)
	repo := NewConnectionRepository(db.Conn(), nil)
	require.NoError(t, repo.Save(context.Background(), conn))
	return conn
}

func seedAccount(t *testing.T, db *DB, connectionID uuid.UUID) *domain.Account {
	t.Helper()
	now := fixedTime()
	available := money.MustNew(decimal.NewFromInt(900), "USD")
	acc, err := domain.NewAccount(
		uuid.New(), connectionID, "ACCT-1", "***4321", "Brokerage",
		domain.AccountBrokerage, money.MustNew(decimal.RequireFromString("1000.25"), "USD"), &available, "USD",
		true, &now, map[string]any{"institution": "schwab"}, now, now,
	)
	require.NoError(t, err)
	repo := NewAccountRepository(db.Conn())
	require.NoError(t, repo.Save(context.Background(), acc))
	return acc
}

func TestConnectionRepository_RoundTrip(t *testing.T) {
	db := testDB(t)
	userID := uuid.New()
	conn := seedConnection(t, db, userID)
	repo := NewConnectionRepository(db.Conn(), nil)

	got, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, conn.ID, got.ID)
	assert.Equal(t, conn.UserID, got.UserID)
	assert.Equal(t, conn.ProviderID, got.ProviderID)
	assert.Equal(t, conn.ProviderSlug, got.ProviderSlug)
	assert.Equal(t, conn.Status, got.Status)
	require.NotNil(t, got.Alias)
	assert.Equal(t, *conn.Alias, *got.Alias)
	require.NotNil(t, got.Credentials)
	assert.Equal(t, conn.Credentials.EncryptedData(), got.Credentials.EncryptedData())
	assert.Equal(t, conn.Credentials.CredentialType(), got.Credentials.CredentialType())
	require.NotNil(t, got.Credentials.ExpiresAt())
	assert.True(t, conn.Credentials.ExpiresAt().Equal(*got.Credentials.ExpiresAt()))
	require.NotNil(t, got.ConnectedAt)
	assert.True(t, conn.ConnectedAt.Equal(*got.ConnectedAt))
}

func TestConnectionRepository_FindByIDMissing(t *testing.T) {
	db := testDB(t)
	repo := NewConnectionRepository(db.Conn(), nil)

	got, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConnectionRepository_SaveIsUpsert(t *testing.T) {
	db := testDB(t)
	userID := uuid.New()
	conn := seedConnection(t, db, userID)
	repo := NewConnectionRepository(db.Conn(), nil)

	now := fixedTime().Add(time.Minute)
	conn.MarkDisconnected(now)
	require.NoError(t, repo.Save(context.Background(), conn))

	got, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ConnectionDisconnected, got.Status)
	assert.Nil(t, got.Credentials)

	all, err := repo.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "save of an existing id must not create a second row")
}

func TestConnectionRepository_FindActiveByUser(t *testing.T) {
	db := testDB(t)
	userID := uuid.New()
	active := seedConnection(t, db, userID)
	inactive := seedConnection(t, db, userID)
	repo := NewConnectionRepository(db.Conn(), nil)

	inactive.MarkDisconnected(fixedTime())
	require.NoError(t, repo.Save(context.Background(), inactive))

	got, err := repo.FindActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}

func TestAccountRepository_RoundTrip(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewAccountRepository(db.Conn())

	got, err := repo.FindByID(context.Background(), acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, acc.ConnectionID, got.ConnectionID)
	assert.Equal(t, "ACCT-1", got.ProviderAccountID)
	assert.True(t, acc.Balance.Equal(got.Balance))
	require.NotNil(t, got.AvailableBalance)
	assert.True(t, acc.AvailableBalance.Equal(*got.AvailableBalance))
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, map[string]any{"institution": "schwab"}, got.ProviderMetadata)
	assert.True(t, got.IsActive)
}

func TestAccountRepository_FindByProviderAccountID(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewAccountRepository(db.Conn())

	got, err := repo.FindByProviderAccountID(context.Background(), conn.ID, "ACCT-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acc.ID, got.ID)

	missing, err := repo.FindByProviderAccountID(context.Background(), conn.ID, "ACCT-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountRepository_FindByUserIDJoinsOwnershipChain(t *testing.T) {
	db := testDB(t)
	userID := uuid.New()
	conn := seedConnection(t, db, userID)
	seedAccount(t, db, conn.ID)
	otherConn := seedConnection(t, db, uuid.New())
	seedAccount(t, db, otherConn.ID)
	repo := NewAccountRepository(db.Conn())

	got, err := repo.FindByUserID(context.Background(), userID, true, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	brokerage := domain.AccountBrokerage
	typed, err := repo.FindByUserID(context.Background(), userID, true, &brokerage)
	require.NoError(t, err)
	assert.Len(t, typed, 1)

	checking := domain.AccountChecking
	none, err := repo.FindByUserID(context.Background(), userID, true, &checking)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionRepository_RoundTripAndDedup(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewTransactionRepository(db.Conn())
	now := fixedTime()

	symbol := "AAPL"
	securityName := "Apple Inc"
	assetType := domain.AssetEquity
	qty := decimal.NewFromInt(10)
	price := money.MustNew(decimal.RequireFromString("150.50"), "USD")
	tx, err := domain.NewTransaction(
		uuid.New(), acc.ID, "PTX-1", &symbol, &securityName, &assetType,
		domain.TxTrade, domain.SubtypeBuy,
		&qty, &price,
		money.MustNew(decimal.RequireFromString("-1505.00"), "USD"),
		money.MustNew(decimal.RequireFromString("4.95"), "USD"), "USD",
		domain.TxStatusSettled, now.AddDate(0, 0, -1), &now, "bought apple", now, now,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tx))

	got, err := repo.FindByProviderTransactionID(context.Background(), acc.ID, "PTX-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.ID, got.ID)
	require.NotNil(t, got.Symbol)
	assert.Equal(t, "AAPL", *got.Symbol)
	require.NotNil(t, got.SecurityName)
	assert.Equal(t, "Apple Inc", *got.SecurityName)
	require.NotNil(t, got.AssetType)
	assert.Equal(t, domain.AssetEquity, *got.AssetType)
	require.NotNil(t, got.Quantity)
	assert.True(t, qty.Equal(*got.Quantity))
	require.NotNil(t, got.Price)
	assert.True(t, price.Equal(*got.Price))
	assert.True(t, tx.Amount.Equal(got.Amount))
	assert.Equal(t, domain.TxStatusSettled, got.Status)
}

func TestTransactionRepository_FindByAccountIDOrdersDescending(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewTransactionRepository(db.Conn())
	now := fixedTime()

	for i := 0; i < 3; i++ {
		tx, err := domain.NewTransaction(
			uuid.New(), acc.ID, uuid.New().String(), nil, nil, nil,
			domain.TxTransfer, domain.SubtypeDeposit,
			nil, nil,
			money.MustNew(decimal.NewFromInt(int64(100+i)), "USD"),
			money.Zero("USD"), "USD",
			domain.TxStatusSettled, now.AddDate(0, 0, -i), nil, "deposit", now, now,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), tx))
	}

	got, err := repo.FindByAccountID(context.Background(), acc.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].TransactionDate.After(got[1].TransactionDate))
	assert.True(t, got[1].TransactionDate.After(got[2].TransactionDate))
}

func TestHoldingRepository_RoundTrip(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewHoldingRepository(db.Conn())
	now := fixedTime()

	cb := money.MustNew(decimal.RequireFromString("1000.00"), "USD")
	ap := money.MustNew(decimal.RequireFromString("100.00"), "USD")
	cp := money.MustNew(decimal.RequireFromString("155.00"), "USD")
	h, err := domain.NewHolding(
		uuid.New(), acc.ID, "PH-1", "aapl", "Apple Inc",
		domain.AssetEquity, decimal.NewFromInt(10), &cb, &ap, &cp,
		money.MustNew(decimal.RequireFromString("1550.00"), "USD"), "USD",
		true, &now, now, now,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), h))

	got, err := repo.FindByProviderHoldingID(context.Background(), acc.ID, "PH-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol, "symbols are stored uppercased")
	assert.True(t, h.MarketValue.Equal(got.MarketValue))
	require.NotNil(t, got.CostBasis)
	assert.True(t, cb.Equal(*got.CostBasis))
	require.NotNil(t, got.AveragePrice)
	assert.True(t, ap.Equal(*got.AveragePrice))

	gl := got.UnrealizedGainLoss()
	require.NotNil(t, gl)
	assert.Equal(t, "550", gl.Amount().String())
}

func TestBalanceSnapshotRepository_RangeQueryOrdersAscending(t *testing.T) {
	db := testDB(t)
	conn := seedConnection(t, db, uuid.New())
	acc := seedAccount(t, db, conn.ID)
	repo := NewBalanceSnapshotRepository(db.Conn())
	now := fixedTime()

	for i := 3; i >= 1; i-- {
		s, err := domain.NewBalanceSnapshot(
			uuid.New(), acc.ID,
			money.MustNew(decimal.NewFromInt(int64(100*i)), "USD"), nil,
			"USD", domain.SnapshotAccountSync, now.AddDate(0, 0, -i), now,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), s))
	}

	got, err := repo.FindByAccountIDInRange(context.Background(), acc.ID, now.AddDate(0, 0, -7), now, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].CapturedAt.Before(got[1].CapturedAt))
	assert.True(t, got[1].CapturedAt.Before(got[2].CapturedAt))
	assert.Equal(t, "300", got[0].Balance.Amount().String())
	assert.Equal(t, "100", got[2].Balance.Amount().String())
}

func TestBalanceSnapshotRepository_FindLatestByUserID(t *testing.T) {
	db := testDB(t)
	userID := uuid.New()
	conn := seedConnection(t, db, userID)
	acc := seedAccount(t, db, conn.ID)
	repo := NewBalanceSnapshotRepository(db.Conn())
	now := fixedTime()

	for i := 0; i < 2; i++ {
		s, err := domain.NewBalanceSnapshot(
			uuid.New(), acc.ID,
			money.MustNew(decimal.NewFromInt(int64(100+i)), "USD"), nil,
			"USD", domain.SnapshotAccountSync, now.Add(time.Duration(i)*time.Hour), now,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), s))
	}

	got, err := repo.FindLatestByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 1, "one snapshot per account")
	assert.Equal(t, "101", got[0].Balance.Amount().String())
}
