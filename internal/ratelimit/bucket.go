package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyFor derives the storage key for a rule evaluation from its scope. The
// endpoint is always part of the key so two endpoints sharing a scope do
// not share a bucket.
//
//	IP:            rate_limit:ip:{address}:{endpoint}
//	USER:          rate_limit:user:{user_id}:{endpoint}
//	USER_PROVIDER: rate_limit:user_provider:{user_id}:{provider}:{endpoint}
//	GLOBAL:        rate_limit:global:{endpoint}
func KeyFor(scope Scope, endpoint, ipAddress string, userID uuid.UUID, providerSlug string) string {
	switch scope {
	case ScopeIP:
		return fmt.Sprintf("rate_limit:ip:%s:%s", ipAddress, endpoint)
	case ScopeUser:
		return fmt.Sprintf("rate_limit:user:%s:%s", userID, endpoint)
	case ScopeUserProvider:
		return fmt.Sprintf("rate_limit:user_provider:%s:%s:%s", userID, providerSlug, endpoint)
	default:
		return fmt.Sprintf("rate_limit:global:%s", endpoint)
	}
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// MemoryBucket is an in-process token-bucket store implementing the
// check-and-consume contract. A single mutex serializes all buckets; the
// critical section is a handful of float operations, so contention is not
// a concern at the request rates a single process serves. Entries whose
// rule TTL has lapsed are dropped lazily on next access.
type MemoryBucket struct {
	mu      sync.Mutex
	buckets map[string]bucketState
}

// NewMemoryBucket returns an empty in-memory bucket store.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{buckets: make(map[string]bucketState)}
}

// CheckAndConsume refills the bucket for keyBase up to rule.MaxTokens based
// on elapsed time, then atomically consumes cost tokens if available.
// Disabled rules always allow. The in-memory store has no failure mode, but
// the contract it implements is fail-open: any future storage-backed
// implementation must return Allowed=true on storage errors.
func (m *MemoryBucket) CheckAndConsume(ctx context.Context, keyBase string, rule Rule, cost int, now time.Time) Result {
	if !rule.Enabled {
		return Result{Allowed: true, Remaining: rule.MaxTokens, Limit: rule.MaxTokens}
	}
	if cost <= 0 {
		cost = rule.Cost
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.buckets[keyBase]
	if !ok || now.Sub(state.lastRefill).Seconds() > float64(rule.TTLSeconds()) {
		state = bucketState{tokens: float64(rule.MaxTokens), lastRefill: now}
	} else {
		elapsed := now.Sub(state.lastRefill).Seconds()
		if elapsed > 0 {
			state.tokens = math.Min(float64(rule.MaxTokens), state.tokens+elapsed*rule.RefillRate/60.0)
			state.lastRefill = now
		}
	}

	res := Result{Limit: rule.MaxTokens}
	if state.tokens >= float64(cost) {
		state.tokens -= float64(cost)
		res.Allowed = true
	} else {
		// Not enough tokens: retry once enough have refilled to cover cost.
		deficit := float64(cost) - state.tokens
		res.RetryAfter = deficit * rule.SecondsPerToken()
	}
	res.Remaining = int(state.tokens)
	res.ResetSeconds = int(math.Ceil((float64(rule.MaxTokens) - state.tokens) * rule.SecondsPerToken()))

	m.buckets[keyBase] = state
	return res
}

// Reset clears the bucket for keyBase, restoring it to full.
func (m *MemoryBucket) Reset(keyBase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, keyBase)
}
