package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Janitor is the scheduler job that sweeps expired connection-cache rows.
// Expired entries are already invisible to Get, so the sweep is purely
// about reclaiming space; it can run infrequently.
type Janitor struct {
	cache *ConnectionCache
	log   zerolog.Logger
}

// NewJanitor builds a Janitor over the given cache.
func NewJanitor(cache *ConnectionCache, log zerolog.Logger) *Janitor {
	return &Janitor{cache: cache, log: log.With().Str("component", "cache_janitor").Logger()}
}

// Name implements scheduler.Job.
func (j *Janitor) Name() string { return "connection-cache-janitor" }

// Run implements scheduler.Job.
func (j *Janitor) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	removed, err := j.cache.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("swept expired cache entries")
	}
	return nil
}
