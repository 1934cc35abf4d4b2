package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/result"
)

// DisconnectProviderInput is the immutable command for terminating a
// provider connection.
type DisconnectProviderInput struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
}

// DisconnectProvider transitions a connection to the terminal DISCONNECTED
// state. mark_disconnected() never fails once ownership is established, so
// the only failure paths are CONNECTION_NOT_FOUND, NOT_OWNED_BY_USER, and
// DATABASE_ERROR.
//
// Before the connection is loaded its provider id is unknown, so the
// Attempted event — and any not-found Failed event — carries
// ProviderID=uuid.Nil as an explicit sentinel rather than repurposing
// some other id in its place.
func (h *Handlers) DisconnectProvider(ctx context.Context, in DisconnectProviderInput) result.Result[struct{}, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeProviderDisconnectionAttempted, now, in.UserID, events.ProviderDisconnectionPayload{
		ConnectionID: in.ConnectionID,
		ProviderID:   uuid.Nil,
	}))

	failWith := func(providerID uuid.UUID, code Code, message string) result.Result[struct{}, Failure] {
		h.publish(ctx, events.New(events.TypeProviderDisconnectionFailed, h.now(), in.UserID, events.ProviderDisconnectionPayload{
			ConnectionID:  in.ConnectionID,
			ProviderID:    providerID,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[struct{}, Failure](Failure{Code: code, Message: message})
	}

	conn, err := h.Connections.FindByID(ctx, in.ConnectionID)
	if err != nil {
		return failWith(uuid.Nil, CodeDatabaseError, err.Error())
	}
	if conn == nil {
		return failWith(uuid.Nil, CodeConnectionNotFound, "connection not found")
	}
	if conn.UserID != in.UserID {
		return failWith(conn.ProviderID, CodeNotOwnedByUser, "connection is not owned by this user")
	}

	conn.MarkDisconnected(now)
	if err := h.Connections.Save(ctx, conn); err != nil {
		return failWith(conn.ProviderID, CodeDatabaseError, err.Error())
	}

	h.publish(ctx, events.New(events.TypeProviderDisconnectionSucceeded, now, in.UserID, events.ProviderDisconnectionPayload{
		ConnectionID: conn.ID,
		ProviderID:   conn.ProviderID,
	}))
	return result.Success[struct{}, Failure](struct{}{})
}
