/*
store.go - Read interface between the engine and persistence

PURPOSE:
  The engine never writes. It reads every record it needs for one org unit
  through Store and then computes from that in-memory Snapshot. Any backend
  (SQLite, in-memory, a remote service) can serve the engine by implementing
  these lookups.

NOT-FOUND CONVENTION:
  Get* methods return (nil, nil) when the record does not exist. Missing
  budgets, forecasts and actuals are valid "absent" states, not errors.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite backend used by the server and CLI
  - budget/store/memory.go: In-memory backend for tests and demos

SEE ALSO:
  - snapshot.go: What the engine builds from these reads
  - engine.go: Consumer of Store
*/
package budget

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Read access to one org unit's records
// =============================================================================

// Store is the engine's read-only view of the record store.
type Store interface {
	// GetOrgUnit returns nil, nil when the unit does not exist.
	GetOrgUnit(ctx context.Context, id OrgUnitID) (*OrgUnit, error)

	ListBudgets(ctx context.Context, orgUnitID OrgUnitID) ([]Budget, error)
	ListForecasts(ctx context.Context, orgUnitID OrgUnitID) ([]Forecast, error)
	ListActuals(ctx context.Context, orgUnitID OrgUnitID) ([]Actual, error)
	ListRequisitions(ctx context.Context, orgUnitID OrgUnitID) ([]Requisition, error)

	// ListOffers returns every offer whose requisition belongs to the unit.
	ListOffers(ctx context.Context, orgUnitID OrgUnitID) ([]Offer, error)

	// GetOffer returns nil, nil when the offer does not exist.
	GetOffer(ctx context.Context, id OfferID) (*Offer, error)
}

// =============================================================================
// AUDIT LOG - Written by the surrounding service, never by the engine
// =============================================================================

type AuditAction string

const (
	AuditCreate          AuditAction = "CREATE"
	AuditUpdate          AuditAction = "UPDATE"
	AuditDelete          AuditAction = "DELETE"
	AuditDeactivate      AuditAction = "DEACTIVATE"
	AuditHardDelete      AuditAction = "HARD_DELETE"
	AuditLock            AuditAction = "LOCK"
	AuditTransition      AuditAction = "TRANSITION"
	AuditPropose         AuditAction = "PROPOSE"
	AuditApprove         AuditAction = "APPROVE"
	AuditSend            AuditAction = "SEND"
	AuditHold            AuditAction = "HOLD"
	AuditAccept          AuditAction = "ACCEPT"
	AuditReject          AuditAction = "REJECT"
	AuditCancel          AuditAction = "CANCEL"
	AuditChangeStartDate AuditAction = "CHANGE_START_DATE"
	AuditImport          AuditAction = "IMPORT"
	AuditLoadScenario    AuditAction = "LOAD_SCENARIO"
)

// AuditEntry records who changed what when.
type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    string
	Action     AuditAction
	EntityType string
	EntityID   string
	Changes    map[string]any
}
