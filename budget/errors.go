/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All error types in one place so the HTTP and CLI layers can map them to
  status codes and messages without string matching.

ERROR CATEGORIES:
  1. Input errors - malformed months, unknown statuses, bad windows
  2. Lookup errors - missing org units, offers, requisitions, jobs, budgets
  3. Workflow errors - locked budgets, illegal status transitions, org
     units still in use

USAGE:
  if errors.Is(err, budget.ErrBudgetLocked) {
      // 409 for the API, non-zero exit for the CLI
  }

SEE ALSO:
  - lifecycle.go: Produces TransitionError
  - api/handlers.go: Maps errors to HTTP status
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMonth is returned for month labels not shaped like "YYYY-MM".
	ErrInvalidMonth = errors.New("invalid month: expected YYYY-MM")

	// ErrInvalidStatus is returned for status strings outside the closed enums.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidWindow is returned when a simulation window is out of range.
	ErrInvalidWindow = errors.New("invalid month window")

	// ErrNoOffers is returned when an offer preview is requested without offers.
	ErrNoOffers = errors.New("no offer ids provided")

	// ErrNegativeAmount is returned for money fields outside their allowed range.
	ErrNegativeAmount = errors.New("invalid amount")

	ErrOrgUnitNotFound     = errors.New("org unit not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrRequisitionNotFound = errors.New("requisition not found")
	ErrJobNotFound         = errors.New("job not found")
	ErrBudgetNotFound      = errors.New("budget not found for this month")

	// ErrBudgetLocked is returned when a locked budget month would change.
	ErrBudgetLocked = errors.New("cannot update locked budget")

	// ErrOrgUnitInUse is returned when deleting an org unit that still owns
	// financial rows or requisitions.
	ErrOrgUnitInUse = errors.New("org unit still has budgets or requisitions")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record. It unwraps to the sentinel for its
// kind.
type NotFoundError struct {
	Kind string // "org_unit", "offer", "requisition", "job", "budget"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	switch e.Kind {
	case "org_unit":
		return ErrOrgUnitNotFound
	case "offer":
		return ErrOfferNotFound
	case "requisition":
		return ErrRequisitionNotFound
	case "job":
		return ErrJobNotFound
	case "budget":
		return ErrBudgetNotFound
	}
	return nil
}

// TransitionError reports a rejected lifecycle change.
type TransitionError struct {
	Kind   string // "offer" or "requisition"
	ID     string
	Action string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("cannot %s %s in %s status", e.Action, e.Kind, e.From)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InvalidStatusError reports a status string outside its enum.
type InvalidStatusError struct {
	Kind  string
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid %s status %q", e.Kind, e.Value)
}

func (e *InvalidStatusError) Unwrap() error {
	return ErrInvalidStatus
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrNoOffers) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflict returns true if the error means the record is in a state that
// forbids the change.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBudgetLocked) ||
		errors.Is(err, ErrOrgUnitInUse)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrgUnitNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		errors.Is(err, ErrRequisitionNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrBudgetNotFound)
}
