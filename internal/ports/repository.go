// Package ports declares the narrow interfaces the core consumes for
// persistence, provider access, encryption, eventing, caching and rate
// limiting. Nothing in this package touches a concrete driver; adapters
// living under internal/repository, internal/cipher, internal/cache and
// internal/providers implement these contracts.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
)

// ProviderConnectionRepository persists ProviderConnection aggregates.
type ProviderConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProviderConnection, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderConnection, error)
	FindByUserAndProvider(ctx context.Context, userID, providerID uuid.UUID) (*domain.ProviderConnection, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderConnection, error)
	FindExpiringSoon(ctx context.Context, within time.Duration) ([]*domain.ProviderConnection, error)
	Save(ctx context.Context, conn *domain.ProviderConnection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountRepository persists Account aggregates, scoped to their owning
// ProviderConnection.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByConnectionID(ctx context.Context, connectionID uuid.UUID, activeOnly bool) ([]*domain.Account, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, activeOnly bool, accountType *domain.AccountType) ([]*domain.Account, error)
	FindByProviderAccountID(ctx context.Context, connectionID uuid.UUID, providerAccountID string) (*domain.Account, error)
	FindNeedingSync(ctx context.Context, threshold time.Duration) ([]*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository persists Transaction rows, which are append-mostly:
// once settled they are immutable except for status transitions.
type TransactionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error)
	FindByAccountAndType(ctx context.Context, accountID uuid.UUID, txType domain.TransactionType) ([]*domain.Transaction, error)
	FindByDateRange(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]*domain.Transaction, error)
	FindByProviderTransactionID(ctx context.Context, accountID uuid.UUID, providerTransactionID string) (*domain.Transaction, error)
	FindSecurityTransactions(ctx context.Context, symbol string, limit int) ([]*domain.Transaction, error)
	Save(ctx context.Context, tx *domain.Transaction) error
	SaveMany(ctx context.Context, txs []*domain.Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// HoldingRepository persists Holding rows (positions within an Account).
type HoldingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error)
	FindByAccountAndSymbol(ctx context.Context, accountID uuid.UUID, symbol string) (*domain.Holding, error)
	FindByProviderHoldingID(ctx context.Context, accountID uuid.UUID, providerHoldingID string) (*domain.Holding, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, activeOnly bool) ([]*domain.Holding, error)
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Holding, error)
	Save(ctx context.Context, holding *domain.Holding) error
	SaveMany(ctx context.Context, holdings []*domain.Holding) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
}

// BalanceSnapshotRepository persists BalanceSnapshot rows, which are
// insert-only history.
type BalanceSnapshotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.BalanceSnapshot, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID, source *domain.SnapshotSource, limit int) ([]*domain.BalanceSnapshot, error)
	FindByAccountIDInRange(ctx context.Context, accountID uuid.UUID, start, end time.Time, source *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error)
	FindLatestByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.BalanceSnapshot, error)
	FindByUserIDInRange(ctx context.Context, userID uuid.UUID, start, end time.Time, source *domain.SnapshotSource) ([]*domain.BalanceSnapshot, error)
	FindLatestByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.BalanceSnapshot, error)
	Save(ctx context.Context, snapshot *domain.BalanceSnapshot) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int, error)
}
