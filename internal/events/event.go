// Package events defines the three-phase (Attempted/Succeeded/Failed) event
// taxonomy command handlers publish around every significant action, plus
// the Event envelope and EventBus port's payload contract.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event on the bus. The three-phase pattern
// applies to every write action: Attempted is published before any side
// effect, and exactly one of Succeeded/Failed is published before the
// handler returns.
type Type string

const (
	TypeProviderConnectionAttempted Type = "provider_connection.attempted"
	TypeProviderConnectionSucceeded Type = "provider_connection.succeeded"
	TypeProviderConnectionFailed    Type = "provider_connection.failed"

	TypeProviderDisconnectionAttempted Type = "provider_disconnection.attempted"
	TypeProviderDisconnectionSucceeded Type = "provider_disconnection.succeeded"
	TypeProviderDisconnectionFailed    Type = "provider_disconnection.failed"

	TypeProviderTokenRefreshAttempted Type = "provider_token_refresh.attempted"
	TypeProviderTokenRefreshSucceeded Type = "provider_token_refresh.succeeded"
	TypeProviderTokenRefreshFailed    Type = "provider_token_refresh.failed"

	TypeAccountSyncAttempted Type = "account_sync.attempted"
	TypeAccountSyncSucceeded Type = "account_sync.succeeded"
	TypeAccountSyncFailed    Type = "account_sync.failed"

	TypeHoldingsSyncAttempted Type = "holdings_sync.attempted"
	TypeHoldingsSyncSucceeded Type = "holdings_sync.succeeded"
	TypeHoldingsSyncFailed    Type = "holdings_sync.failed"

	TypeTransactionSyncAttempted Type = "transaction_sync.attempted"
	TypeTransactionSyncSucceeded Type = "transaction_sync.succeeded"
	TypeTransactionSyncFailed    Type = "transaction_sync.failed"

	TypeFileImportAttempted Type = "file_import.attempted"
	TypeFileImportProgress  Type = "file_import.progress"
	TypeFileImportSucceeded Type = "file_import.succeeded"
	TypeFileImportFailed    Type = "file_import.failed"

	TypeAccountBalanceUpdated Type = "account_balance_updated"

	// The following two are part of the taxonomy described by the wider
	// system's event bus but are published by the RBAC component, not by
	// this core's command handlers; declared here so the closed set of
	// event types on the shared bus is complete for consumers that branch
	// on Type.
	TypeRoleAssignmentAttempted Type = "role_assignment.attempted"
	TypeRoleAssignmentSucceeded Type = "role_assignment.succeeded"
	TypeRoleAssignmentFailed    Type = "role_assignment.failed"
	TypeRoleRevocationAttempted Type = "role_revocation.attempted"
	TypeRoleRevocationSucceeded Type = "role_revocation.succeeded"
	TypeRoleRevocationFailed    Type = "role_revocation.failed"
)

// Event is the envelope every publication carries: a time-ordered id, the
// timestamp it occurred, the acting user, and a type-specific payload.
type Event struct {
	ID         uuid.UUID
	Type       Type
	OccurredAt time.Time
	UserID     uuid.UUID
	Payload    any
}

// New builds an Event with a fresh time-ordered id.
func New(eventType Type, occurredAt time.Time, userID uuid.UUID, payload any) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: occurredAt,
		UserID:     userID,
		Payload:    payload,
	}
}

// FailedPayload is embedded (by value) in every *Failed event's payload to
// carry the stable reason code consumers branch on.
type FailedPayload struct {
	Reason string
}

// ProviderConnectionPayload backs ProviderConnection{Attempted,Succeeded,Failed}.
type ProviderConnectionPayload struct {
	ConnectionID uuid.UUID
	ProviderID   uuid.UUID
	ProviderSlug string
	FailedPayload
}

// ProviderDisconnectionPayload backs ProviderDisconnection{Attempted,Succeeded,Failed}.
type ProviderDisconnectionPayload struct {
	ConnectionID uuid.UUID
	ProviderID   uuid.UUID
	FailedPayload
}

// ProviderTokenRefreshPayload backs ProviderTokenRefresh{Attempted,Succeeded,Failed}.
type ProviderTokenRefreshPayload struct {
	ConnectionID uuid.UUID
	FailedPayload
}

// AccountSyncPayload backs AccountSync{Attempted,Succeeded,Failed}.
type AccountSyncPayload struct {
	ConnectionID uuid.UUID
	Created      int
	Updated      int
	Unchanged    int
	Errors       int
	FailedPayload
}

// HoldingsSyncPayload backs HoldingsSync{Attempted,Succeeded,Failed}.
type HoldingsSyncPayload struct {
	AccountID   uuid.UUID
	Created     int
	Updated     int
	Unchanged   int
	Deactivated int
	Errors      int
	FailedPayload
}

// TransactionSyncPayload backs TransactionSync{Attempted,Succeeded,Failed}.
type TransactionSyncPayload struct {
	ConnectionID uuid.UUID
	AccountID    *uuid.UUID
	Created      int
	Skipped      int
	Errors       int
	FailedPayload
}

// FileImportPayload backs FileImport{Attempted,Succeeded,Failed}.
type FileImportPayload struct {
	ProviderSlug        string
	FileName            string
	FileFormat          string
	AccountsUpdated     int
	TransactionsNew     int
	TransactionsSkipped int
	FailedPayload
}

// FileImportProgressPayload backs FileImport.Progress.
type FileImportProgressPayload struct {
	ProviderSlug     string
	FileName         string
	FileFormat       string
	RecordsProcessed int
	TotalRecords     int
	ProgressPercent  float64
}

// AccountBalanceUpdatedPayload backs AccountBalanceUpdated, published once
// per account whose balance changed during a sync.
type AccountBalanceUpdatedPayload struct {
	AccountID    uuid.UUID
	ConnectionID uuid.UUID
	OldAmount    string
	NewAmount    string
	Currency     string
}
