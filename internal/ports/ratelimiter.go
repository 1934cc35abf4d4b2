package ports

import (
	"context"
	"time"

	"github.com/dashtam/provider-sync/internal/ratelimit"
)

// RateLimiter implements check_and_consume atomically against whatever
// storage backs a token bucket. The core does not mandate a storage engine;
// any atomic check-and-decrement is acceptable. Fail-open: a storage error
// MUST be translated by the implementation into Allowed=true rather than
// propagated, so that rate-limiter outages never cause user-visible denial.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, keyBase string, rule ratelimit.Rule, cost int, now time.Time) ratelimit.Result
}
