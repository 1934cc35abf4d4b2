package sqlite

import (
	_ "embed"
	"fmt"
)

//go:embed schema/domain.sql
var domainSchema string

//go:embed schema/cache.sql
var cacheSchema string

// Migrate applies the domain table and index definitions. Every statement
// is IF NOT EXISTS, so Migrate is idempotent and safe to run on every
// start.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(domainSchema); err != nil {
		return fmt.Errorf("migrate %s: %w", db.name, err)
	}
	return nil
}

// MigrateCache applies the connection-cache schema. Kept separate from
// Migrate because the cache lives in its own store under a faster, less
// durable profile; losing it costs nothing but warm-up time.
func (db *DB) MigrateCache() error {
	if _, err := db.conn.Exec(cacheSchema); err != nil {
		return fmt.Errorf("migrate cache %s: %w", db.name, err)
	}
	return nil
}
