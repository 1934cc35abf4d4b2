// Package wiring is the composition root: it opens the stores, builds
// every adapter, and assembles the command and query handler sets. Nothing
// here contains behavior of its own — it only decides which concrete
// implementation satisfies which port.
package wiring

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/cache"
	"github.com/dashtam/provider-sync/internal/cipher"
	"github.com/dashtam/provider-sync/internal/commands"
	"github.com/dashtam/provider-sync/internal/config"
	"github.com/dashtam/provider-sync/internal/eventbus"
	"github.com/dashtam/provider-sync/internal/providers"
	"github.com/dashtam/provider-sync/internal/queries"
	"github.com/dashtam/provider-sync/internal/repository/sqlite"
)

// providerTimeout bounds every outbound provider API call; an elapsed
// timeout surfaces as a normal PROVIDER_ERROR failure, not a hang.
const providerTimeout = 30 * time.Second

// App is the assembled service: both handler sets plus the shared
// infrastructure main needs for lifecycle management (closing stores,
// scheduling the janitor, subscribing consumers to the bus).
type App struct {
	Commands *commands.Handlers
	Queries  *queries.Handlers

	Bus   *eventbus.Bus
	Cache *cache.ConnectionCache

	DomainDB *sqlite.DB
	CacheDB  *sqlite.DB
}

// Build wires the full application from configuration. The domain store
// holds all five aggregate tables under the full-fsync ledger profile —
// the transaction and snapshot history is an audit trail, and the
// ownership-chain queries join across all of them, so they share one
// database file. The cache store is separate and disposable, opened under
// the faster standard profile.
func Build(cfg *config.Config, log zerolog.Logger) (*App, error) {
	domainDB, err := sqlite.New(sqlite.Config{
		Path:    filepath.Join(cfg.DataDir, "provider_sync.db"),
		Profile: sqlite.ProfileLedger,
		Name:    "domain",
	})
	if err != nil {
		return nil, fmt.Errorf("open domain store: %w", err)
	}
	cacheDB, err := sqlite.New(sqlite.Config{
		Path:    filepath.Join(cfg.DataDir, "provider_sync_cache.db"),
		Profile: sqlite.ProfileStandard,
		Name:    "cache",
	})
	if err != nil {
		domainDB.Close()
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	closeAll := func() {
		domainDB.Close()
		cacheDB.Close()
	}
	if err := domainDB.Migrate(); err != nil {
		closeAll()
		return nil, err
	}
	if err := cacheDB.MigrateCache(); err != nil {
		closeAll()
		return nil, err
	}

	connCache := cache.New(cacheDB.Conn(), log)

	connections := sqlite.NewConnectionRepository(domainDB.Conn(), connCache)
	accounts := sqlite.NewAccountRepository(domainDB.Conn())
	holdings := sqlite.NewHoldingRepository(domainDB.Conn())
	transactions := sqlite.NewTransactionRepository(domainDB.Conn())
	snapshots := sqlite.NewBalanceSnapshotRepository(domainDB.Conn())

	keys := cfg.CipherKeys
	if len(keys) == 0 {
		// No key material configured: run with an ephemeral key. Every
		// stored credential becomes undecryptable on restart, which is
		// acceptable for development and catastrophic for production, so
		// shout about it.
		log.Warn().Msg("PROVIDER_SYNC_CIPHER_KEYS not set; using an ephemeral cipher key (credentials will not survive restart)")
		ephemeral := make([]byte, 32)
		if _, err := rand.Read(ephemeral); err != nil {
			closeAll()
			return nil, fmt.Errorf("generate ephemeral cipher key: %w", err)
		}
		keys = map[uint32][]byte{cfg.CipherPrimaryKeyID: ephemeral}
	}
	credCipher, err := cipher.New(keys, cfg.CipherPrimaryKeyID)
	if err != nil {
		closeAll()
		return nil, err
	}

	registry := providers.NewRegistry()
	registry.Register("schwab", providers.NewOAuthBrokerageAdapter(cfg.BrokerageAPIBaseURL, providerTimeout, log))
	registry.Register("plaid", providers.NewAPIKeyAggregatorAdapter(cfg.AggregatorAPIBaseURL, providerTimeout, log))
	registry.Register("file-import", providers.NewFileImportAdapter())

	bus := eventbus.New(log)

	cmd := commands.NewHandlers(connections, accounts, holdings, transactions, snapshots,
		credCipher, registry, bus, log)
	cmd.MinSyncInterval = cfg.MinSyncInterval
	cmd.DefaultSyncWindow = cfg.DefaultSyncWindow
	cmd.ProgressRecordInterval = cfg.ProgressRecordInterval
	cmd.ProgressPercentInterval = cfg.ProgressPercentInterval

	qry := queries.NewHandlers(connections, accounts, holdings, transactions, snapshots)

	return &App{
		Commands: cmd,
		Queries:  qry,
		Bus:      bus,
		Cache:    connCache,
		DomainDB: domainDB,
		CacheDB:  cacheDB,
	}, nil
}

// Close releases the stores.
func (a *App) Close() {
	a.DomainDB.Close()
	a.CacheDB.Close()
}
