// Package eventbus implements the ports.EventBus port: an in-process,
// fire-and-forget fan-out of the three-phase event stream, with
// Subscribe-based listener registration for deriving downstream work from
// published events. Publication never blocks the caller and never fails
// the command handler that published it; subscriber panics and slow
// consumers are isolated behind their own goroutine.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/events"
)

// Subscriber receives every event published to the bus, including ones it
// has no use for; it is expected to switch on evt.Type and ignore the
// rest. One bus, many narrow subscribers (SSE bridge, audit log,
// analytics).
type Subscriber func(evt events.Event)

// Bus is a minimal, synchronous-publish/async-dispatch pub-sub hub. It
// satisfies ports.EventBus. Publish always logs the event at info level
// and then hands it to every registered subscriber on its own goroutine
// so a slow or blocking subscriber cannot delay the command handler that
// published it.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	log         zerolog.Logger
}

// New builds a Bus that logs every publication under the given logger.
func New(log zerolog.Logger) *Bus {
	return &Bus{log: log.With().Str("component", "eventbus").Logger()}
}

// Subscribe registers a consumer that is invoked (on its own goroutine) for
// every subsequent publication. Subscribe takes the bus's write lock, so
// concurrent calls are safe; each call briefly blocks Publish from taking
// its snapshot of the subscriber list.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish implements ports.EventBus. It never returns a non-nil error for
// subscriber failures — only a bus that has been given a plainly unusable
// event (currently none) would fail — so callers can treat Publish as
// effectively infallible: fire-and-forget from the publisher's
// perspective.
func (b *Bus) Publish(ctx context.Context, evt events.Event) error {
	b.log.Info().
		Str("event_id", evt.ID.String()).
		Str("event_type", string(evt.Type)).
		Str("user_id", evt.UserID.String()).
		Time("occurred_at", evt.OccurredAt).
		Interface("payload", evt.Payload).
		Msg("event published")

	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		go func(s Subscriber) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().
						Interface("panic", r).
						Str("event_type", string(evt.Type)).
						Msg("event subscriber panicked")
				}
			}()
			s(evt)
		}(sub)
	}
	return nil
}
