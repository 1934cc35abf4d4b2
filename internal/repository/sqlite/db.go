// Package sqlite adapts the repository ports onto modernc.org/sqlite, a
// pure-Go SQLite driver. Named profiles tune PRAGMAs per durability need,
// and WithTransaction centralizes commit/rollback/panic handling so
// repository methods never hand-roll it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Profile tunes PRAGMAs for the durability/speed tradeoff a given table set
// needs.
type Profile string

const (
	// ProfileLedger is maximum-durability: full fsync, no auto-vacuum.
	// Used for the domain store that holds all five aggregate tables.
	ProfileLedger Profile = "ledger"
	// ProfileStandard balances durability and throughput. Used for the
	// disposable connection-cache store.
	ProfileStandard Profile = "standard"
)

// DB wraps a sql.DB with the profile it was opened under.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// Config configures a single SQLite-backed store.
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// New opens (creating if necessary) a SQLite database file under the given
// profile's PRAGMAs.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		cfg.Path = absPath
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	switch profile {
	case ProfileLedger:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	case ProfileStandard:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-64000)"
	return connStr
}

func configureConnectionPool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Conn returns the underlying *sql.DB, for repositories to build queries
// against directly.
func (db *DB) Conn() *sql.DB { return db.conn }

// Name returns the friendly store name used in logs/errors.
func (db *DB) Name() string { return db.name }

// Profile returns the durability profile this store was opened under.
func (db *DB) Profile() Profile { return db.profile }

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic. Any panic is recovered and converted to
// an error after rollback.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()
	err = fn(tx)
	return err
}

// HealthCheck pings the connection and runs SQLite's integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}
	var integrity string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, integrity)
	}
	return nil
}

// Stats reports on-disk and page-level database statistics.
type Stats struct {
	SizeBytes     int64
	WALSizeBytes  int64
	PageCount     int64
	PageSize      int64
	FreelistCount int64
}

// GetStats retrieves current Stats for this store.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = info.Size()
	}
	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&stats.PageCount); err != nil {
		return nil, fmt.Errorf("get page count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&stats.PageSize); err != nil {
		return nil, fmt.Errorf("get page size: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA freelist_count").Scan(&stats.FreelistCount); err != nil {
		return nil, fmt.Errorf("get freelist count: %w", err)
	}
	return stats, nil
}
