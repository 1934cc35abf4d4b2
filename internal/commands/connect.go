package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/domain"
	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/providercreds"
	"github.com/dashtam/provider-sync/internal/result"
)

// ConnectProviderInput is the immutable command for establishing a new
// provider connection. Credentials arrive already encrypted — the engine
// never performs the OAuth handshake or token negotiation itself; an
// external collaborator hands it the opaque container.
type ConnectProviderInput struct {
	UserID       uuid.UUID
	ProviderID   uuid.UUID
	ProviderSlug string
	Credentials  *providercreds.Credentials
	Alias        *string
}

// ConnectProvider creates a new ACTIVE ProviderConnection for a user. It
// never looks up an existing connection for (user, provider) — repeated
// connects for the same provider create independent connection rows,
// matching the state machine's "created when a user first authenticates"
// framing. Replacing the credentials of an existing ACTIVE connection is
// RefreshProviderTokens' job; neither handler moves an EXPIRED, REVOKED or
// FAILED connection back to ACTIVE.
func (h *Handlers) ConnectProvider(ctx context.Context, in ConnectProviderInput) result.Result[uuid.UUID, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeProviderConnectionAttempted, now, in.UserID, events.ProviderConnectionPayload{
		ProviderID:   in.ProviderID,
		ProviderSlug: in.ProviderSlug,
	}))

	fail := func(code Code, message string) result.Result[uuid.UUID, Failure] {
		h.publish(ctx, events.New(events.TypeProviderConnectionFailed, h.now(), in.UserID, events.ProviderConnectionPayload{
			ProviderID:    in.ProviderID,
			ProviderSlug:  in.ProviderSlug,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[uuid.UUID, Failure](Failure{Code: code, Message: message})
	}

	if in.Credentials == nil {
		return fail(CodeInvalidCredentials, "credentials are required to connect a provider")
	}
	if len(in.ProviderSlug) == 0 || len(in.ProviderSlug) > 50 {
		return fail(CodeInvalidProviderSlug, "provider_slug must be 1-50 characters")
	}

	conn, err := domain.NewProviderConnection(
		newID(), in.UserID, in.ProviderID, in.ProviderSlug,
		domain.ConnectionActive, in.Alias, in.Credentials,
		&now, nil, now, now,
	)
	if err != nil {
		return fail(CodeInvalidCredentials, err.Error())
	}

	if err := h.Connections.Save(ctx, conn); err != nil {
		return fail(CodeDatabaseError, err.Error())
	}

	h.publish(ctx, events.New(events.TypeProviderConnectionSucceeded, now, in.UserID, events.ProviderConnectionPayload{
		ConnectionID: conn.ID,
		ProviderID:   in.ProviderID,
		ProviderSlug: in.ProviderSlug,
	}))
	return result.Success[uuid.UUID, Failure](conn.ID)
}
