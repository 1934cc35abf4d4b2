package ports

import (
	"context"

	"github.com/dashtam/provider-sync/internal/events"
)

// EventBus fans out published events to whatever downstream consumers the
// surrounding system wires up (audit log, SSE bridge, analytics). Handlers
// never wait on consumers; a publish failure is logged by the adapter and
// never aborts the handler that called it.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
}
