package queries

import (
	"context"

	"github.com/google/uuid"

	"github.com/dashtam/provider-sync/internal/result"
)

// GetProviderConnection fetches one connection owned by userID, projected
// to a DTO carrying the derived is_connected/needs_reauthentication flags.
func (h *Handlers) GetProviderConnection(ctx context.Context, userID, connectionID uuid.UUID) result.Result[ConnectionDTO, Failure] {
	r := h.Verifier.VerifyConnectionOwnership(ctx, connectionID, userID)
	if r.IsFailure() {
		return result.Failure[ConnectionDTO, Failure](fromOwnership(r.Error()))
	}
	conn, _, _ := r.Unwrap()
	return result.Success[ConnectionDTO, Failure](connectionDTO(conn))
}

// ListProviderConnections lists every connection belonging to userID.
func (h *Handlers) ListProviderConnections(ctx context.Context, userID uuid.UUID) result.Result[[]ConnectionDTO, Failure] {
	conns, err := h.Connections.FindByUserID(ctx, userID)
	if err != nil {
		return result.Failure[[]ConnectionDTO, Failure](Failure{Code: CodeDatabaseError, Message: err.Error()})
	}
	dtos := make([]ConnectionDTO, 0, len(conns))
	for _, c := range conns {
		dtos = append(dtos, connectionDTO(c))
	}
	return result.Success[[]ConnectionDTO, Failure](dtos)
}
