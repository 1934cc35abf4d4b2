package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/events"
	"github.com/dashtam/provider-sync/internal/providercreds"
	"github.com/dashtam/provider-sync/internal/result"
)

// RefreshProviderTokensInput is the immutable command for replacing a
// connection's stored credentials after an external token refresh.
// UserID is required: ownership is enforced on every write, token
// refreshes included.
type RefreshProviderTokensInput struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	Credentials  *providercreds.Credentials
}

// RefreshProviderTokens replaces a connection's credentials, e.g. after an
// external OAuth refresh flow completes. Requires the connection to
// already be ACTIVE; a connection in EXPIRED/REVOKED/FAILED must go
// through ConnectProvider-style re-authentication instead (the entity's
// own UpdateCredentials enforces this).
func (h *Handlers) RefreshProviderTokens(ctx context.Context, in RefreshProviderTokensInput) result.Result[struct{}, Failure] {
	now := h.now()
	h.publish(ctx, events.New(events.TypeProviderTokenRefreshAttempted, now, in.UserID, events.ProviderTokenRefreshPayload{
		ConnectionID: in.ConnectionID,
	}))

	fail := func(code Code, message string) result.Result[struct{}, Failure] {
		h.publish(ctx, events.New(events.TypeProviderTokenRefreshFailed, h.now(), in.UserID, events.ProviderTokenRefreshPayload{
			ConnectionID:  in.ConnectionID,
			FailedPayload: events.FailedPayload{Reason: string(code)},
		}))
		return result.Failure[struct{}, Failure](Failure{Code: code, Message: message})
	}

	if in.Credentials == nil {
		return fail(CodeInvalidCredentials, "credentials are required to refresh a connection")
	}

	conn, err := h.Connections.FindByID(ctx, in.ConnectionID)
	if err != nil {
		return fail(CodeDatabaseError, err.Error())
	}
	if conn == nil {
		return fail(CodeConnectionNotFound, "connection not found")
	}
	if conn.UserID != in.UserID {
		return fail(CodeNotOwnedByUser, "connection is not owned by this user")
	}

	if r := conn.UpdateCredentials(now, in.Credentials); r.IsFailure() {
		switch r.Error() {
		case "NOT_CONNECTED":
			return fail(CodeNotActive, "connection is not ACTIVE")
		default:
			return fail(CodeInvalidCredentials, string(r.Error()))
		}
	}

	if err := h.Connections.Save(ctx, conn); err != nil {
		return fail(CodeDatabaseError, err.Error())
	}

	h.publish(ctx, events.New(events.TypeProviderTokenRefreshSucceeded, now, in.UserID, events.ProviderTokenRefreshPayload{
		ConnectionID: conn.ID,
	}))
	return result.Success[struct{}, Failure](struct{}{})
}
