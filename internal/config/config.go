// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables
// (optionally from a .env file): godotenv.Load() is attempted first (a
// missing .env is not an error), then each setting is read with a typed
// default.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the options the sync engine consumes. Every field has a
// default and can be overridden by environment variable.
type Config struct {
	// DataDir is the base directory for the SQLite databases. Always
	// resolved to an absolute path and created if missing.
	DataDir string

	// CacheProviderTTL is the read-through connection cache's entry
	// lifetime (cache_provider_ttl_seconds).
	CacheProviderTTL time.Duration

	// MinSyncInterval is the minimum time between non-forced syncs of the
	// same connection (min_sync_interval).
	MinSyncInterval time.Duration

	// DefaultSyncWindow is the transaction sync lookback window used when
	// a command does not specify start/end dates (default_sync_window).
	DefaultSyncWindow time.Duration

	// ProgressRecordInterval is the record-count stride at which
	// FileImportProgress is emitted (progress_record_interval).
	ProgressRecordInterval int

	// ProgressPercentInterval is the percent-of-total stride at which
	// FileImportProgress is emitted (progress_percent_interval).
	ProgressPercentInterval int

	// LogLevel controls the zerolog level (debug, info, warn, error).
	LogLevel string

	// CipherPrimaryKeyID selects which keyring entry CipherPort.Encrypt
	// stamps new ciphertexts with; older key ids remain valid for Decrypt
	// until rotated out of the keyring entirely.
	CipherPrimaryKeyID uint32

	// CipherKeys is the keyring, parsed from PROVIDER_SYNC_CIPHER_KEYS
	// ("id:hex32bytes" entries separated by ";"). Empty means no key
	// material was configured; the composition root decides whether to
	// fall back to an ephemeral dev key or refuse to start.
	CipherKeys map[uint32][]byte

	// BrokerageAPIBaseURL / AggregatorAPIBaseURL point the demo OAuth and
	// API-key provider adapters at their upstream APIs.
	BrokerageAPIBaseURL  string
	AggregatorAPIBaseURL string

	// BackupBucket enables scheduled S3 backups when non-empty.
	BackupBucket   string
	BackupRegion   string
	BackupEndpoint string
	BackupPrefix   string
	BackupSchedule string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset. dataDirOverride takes priority over the
// PROVIDER_SYNC_DATA_DIR environment variable (CLI flag beats env var
// beats default).
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("PROVIDER_SYNC_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                 absDataDir,
		CacheProviderTTL:        getEnvAsSeconds("CACHE_PROVIDER_TTL_SECONDS", 300),
		MinSyncInterval:         getEnvAsSeconds("MIN_SYNC_INTERVAL_SECONDS", 300),
		DefaultSyncWindow:       getEnvAsSeconds("DEFAULT_SYNC_WINDOW_SECONDS", 30*24*3600),
		ProgressRecordInterval:  getEnvAsInt("PROGRESS_RECORD_INTERVAL", 100),
		ProgressPercentInterval: getEnvAsInt("PROGRESS_PERCENT_INTERVAL", 5),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		CipherPrimaryKeyID:      uint32(getEnvAsInt("CIPHER_PRIMARY_KEY_ID", 1)),
		BrokerageAPIBaseURL:     getEnv("BROKERAGE_API_BASE_URL", "https://api.schwabapi.com/trader/v1"),
		AggregatorAPIBaseURL:    getEnv("AGGREGATOR_API_BASE_URL", "https://production.plaid.com"),
		BackupBucket:            getEnv("BACKUP_S3_BUCKET", ""),
		BackupRegion:            getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupEndpoint:          getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupPrefix:            getEnv("BACKUP_S3_PREFIX", "provider-sync"),
		BackupSchedule:          getEnv("BACKUP_SCHEDULE", "@daily"),
	}

	keys, err := parseCipherKeys(os.Getenv("PROVIDER_SYNC_CIPHER_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.CipherKeys = keys

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the core relies on at startup.
func (c *Config) Validate() error {
	if c.CacheProviderTTL <= 0 {
		return fmt.Errorf("CACHE_PROVIDER_TTL_SECONDS must be positive")
	}
	if c.MinSyncInterval <= 0 {
		return fmt.Errorf("MIN_SYNC_INTERVAL_SECONDS must be positive")
	}
	if c.ProgressRecordInterval <= 0 || c.ProgressPercentInterval <= 0 {
		return fmt.Errorf("progress intervals must be positive")
	}
	return nil
}

// parseCipherKeys parses "1:<64 hex chars>;2:<64 hex chars>" into a
// keyring. An empty input yields a nil map, which the composition root
// treats as "no key material configured".
func parseCipherKeys(raw string) (map[uint32][]byte, error) {
	if raw == "" {
		return nil, nil
	}
	keys := make(map[uint32][]byte)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("PROVIDER_SYNC_CIPHER_KEYS entry %q must be id:hexkey", entry)
		}
		id, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_SYNC_CIPHER_KEYS entry %q has invalid key id: %w", entry, err)
		}
		key, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_SYNC_CIPHER_KEYS entry %q has invalid hex key: %w", entry, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("PROVIDER_SYNC_CIPHER_KEYS entry %q must decode to 32 bytes, got %d", entry, len(key))
		}
		keys[uint32(id)] = key
	}
	return keys, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
