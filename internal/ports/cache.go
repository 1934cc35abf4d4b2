package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
)

// ProviderConnectionCache is a read-through cache in front of
// ProviderConnectionRepository, keyed by connection id. It is never
// authoritative: decode failures and storage errors surface as a cache
// miss (Get) or are silently swallowed (Set/Delete) so that cache outages
// never propagate into command/query failures. The repository layer is
// responsible for invalidating on every save/delete.
type ProviderConnectionCache interface {
	// Get returns the cached connection and true on a hit, or (nil, false)
	// on a miss — including a miss caused by a decode error.
	Get(ctx context.Context, connectionID uuid.UUID) (*domain.ProviderConnection, bool)
	Set(ctx context.Context, conn *domain.ProviderConnection, ttl time.Duration)
	Delete(ctx context.Context, connectionID uuid.UUID)
}
