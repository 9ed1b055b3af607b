/*
Package budget provides the headcount budget health and impact engine.

PURPOSE:
  Given the financial records of an org unit (approved budgets, forecasts,
  actuals, requisitions and offers) the engine computes a per-month health
  signal and simulates how hypothetical hires would move that signal over a
  rolling window of months.

KEY CONCEPTS IN THIS FILE (types.go):
  - OrgUnit: budget-holding unit with an overhead multiplier
  - Budget / Forecast / Actual: one row per (org unit, month)
  - Requisition / Offer: hiring pipeline records with closed status enums
  - MonthHealth / MonthImpact: computed outputs, never persisted

DESIGN PRINCIPLES:
  1. Precision: every amount is decimal.Decimal, never float64
  2. Purity: calculations run over a Snapshot of records, no hidden state
  3. Closed enums: statuses are typed and validated at the edges

USAGE:
  engine := budget.NewEngine(store)
  health, err := engine.MonthHealth(ctx, "ou-eng", budget.MustParseMonth("2026-01"))

SEE ALSO:
  - prorata.go: Pro-rata and monthly cost arithmetic
  - health.go: GREEN/YELLOW/RED classifier
  - resolvers.go: Baseline, committed and pipeline aggregates
  - engine.go: Month health, impact previews and summaries
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgUnitID string
type OfferID string
type RequisitionID string
type JobID string

// DefaultCurrency is used when a record does not carry one.
const DefaultCurrency = "BRL"

// DefaultOverhead applies when an org unit is unknown or has no multiplier.
var DefaultOverhead = decimal.NewFromInt(1)

// =============================================================================
// ORG UNIT & MONTHLY FINANCIALS
// =============================================================================

type OrgUnit struct {
	ID                 OrgUnitID
	Name               string
	Currency           string
	OverheadMultiplier decimal.Decimal
	Active             bool
	CreatedAt          time.Time
}

// Overhead returns the unit multiplier, falling back to DefaultOverhead for
// a nil unit.
func (o *OrgUnit) Overhead() decimal.Decimal {
	if o == nil {
		return DefaultOverhead
	}
	return o.OverheadMultiplier
}

// Budget is the approved amount for a month. Locked budgets are read-only.
type Budget struct {
	ID             string
	OrgUnitID      OrgUnitID
	Month          Month
	ApprovedAmount decimal.Decimal
	Currency       string
	Locked         bool
	LockedBy       string
	LockedAt       *time.Time
	UpdatedAt      time.Time
}

type Forecast struct {
	ID        string
	OrgUnitID OrgUnitID
	Month     Month
	Amount    decimal.Decimal
	Currency  string
	Source    string
	CreatedAt time.Time
}

type Actual struct {
	ID        string
	OrgUnitID OrgUnitID
	Month     Month
	Amount    decimal.Decimal
	Currency  string
	Finalized bool
	CreatedAt time.Time
}

// JobCatalog is the reference cost of a role. Requisitions default their
// estimate to MonthlyCost.
type JobCatalog struct {
	ID             JobID
	JobFamily      string
	Level          string
	Title          string
	MonthlyCost    decimal.Decimal
	HierarchyLevel int
	Currency       string
	Active         bool
}

// =============================================================================
// HIRING PIPELINE
// =============================================================================

type RequisitionPriority string

const (
	PriorityP0 RequisitionPriority = "P0"
	PriorityP1 RequisitionPriority = "P1"
	PriorityP2 RequisitionPriority = "P2"
	PriorityP3 RequisitionPriority = "P3"
)

func (p RequisitionPriority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

type RequisitionStatus string

const (
	RequisitionDraft        RequisitionStatus = "DRAFT"
	RequisitionOpen         RequisitionStatus = "OPEN"
	RequisitionInterviewing RequisitionStatus = "INTERVIEWING"
	RequisitionOfferPending RequisitionStatus = "OFFER_PENDING"
	RequisitionFilled       RequisitionStatus = "FILLED"
	RequisitionCancelled    RequisitionStatus = "CANCELLED"
)

// ParseRequisitionStatus rejects anything outside the closed set.
func ParseRequisitionStatus(s string) (RequisitionStatus, error) {
	st := RequisitionStatus(s)
	if _, ok := requisitionTransitions[st]; !ok {
		return "", &InvalidStatusError{Kind: "requisition", Value: s}
	}
	return st, nil
}

// InPipeline reports whether the requisition counts toward pipeline potential.
func (s RequisitionStatus) InPipeline() bool {
	return s == RequisitionOpen || s == RequisitionInterviewing
}

type Requisition struct {
	ID                   RequisitionID
	OrgUnitID            OrgUnitID
	JobCatalogID         JobID
	Title                string
	Priority             RequisitionPriority
	Status               RequisitionStatus
	TargetStartMonth     *Month
	EstimatedMonthlyCost *decimal.Decimal
	HasCandidateReady    bool
	OwnerID              string
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type OfferStatus string

const (
	OfferDraft     OfferStatus = "DRAFT"
	OfferProposed  OfferStatus = "PROPOSED"
	OfferApproved  OfferStatus = "APPROVED"
	OfferSent      OfferStatus = "SENT"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferHold      OfferStatus = "HOLD"
	OfferCancelled OfferStatus = "CANCELLED"
)

// ParseOfferStatus rejects anything outside the closed set.
func ParseOfferStatus(s string) (OfferStatus, error) {
	switch st := OfferStatus(s); st {
	case OfferDraft, OfferProposed, OfferApproved, OfferSent,
		OfferAccepted, OfferRejected, OfferHold, OfferCancelled:
		return st, nil
	}
	return "", &InvalidStatusError{Kind: "offer", Value: s}
}

type Offer struct {
	ID                  OfferID
	RequisitionID       RequisitionID
	OrgUnitID           OrgUnitID // denormalized from the requisition by the store
	CandidateName       string
	Status              OfferStatus
	ProposedMonthlyCost decimal.Decimal
	FinalMonthlyCost    *decimal.Decimal
	Currency            string
	StartDate           *time.Time
	HoldReason          string
	HoldUntil           *time.Time
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CommittedCost is the final cost when set, else the proposed one.
func (o Offer) CommittedCost() decimal.Decimal {
	if o.FinalMonthlyCost != nil {
		return *o.FinalMonthlyCost
	}
	return o.ProposedMonthlyCost
}

// IsCommitted reports whether the offer reduces budget headroom.
func (o Offer) IsCommitted() bool {
	return o.Status == OfferAccepted && o.StartDate != nil
}

// =============================================================================
// WHAT-IF INPUT
// =============================================================================

// Position is a hypothetical hire used by PreviewNewPositions. A nil
// OverheadMultiplier means "use the org unit default".
type Position struct {
	JobCatalogID       JobID
	MonthlyCost        decimal.Decimal
	StartDate          time.Time
	OverheadMultiplier *decimal.Decimal
}

// =============================================================================
// ENGINE OUTPUT
// =============================================================================

type BaselineSource string

const (
	BaselineActual   BaselineSource = "actual"
	BaselineForecast BaselineSource = "forecast"
	BaselineNone     BaselineSource = "none"
)

// MonthHealth is the health snapshot of one org unit for one month.
// Remaining = Approved - Baseline - Committed; PipelinePotential is reported
// but never subtracted.
type MonthHealth struct {
	Month             Month
	Approved          decimal.Decimal
	Baseline          decimal.Decimal
	BaselineSource    BaselineSource
	Committed         decimal.Decimal
	PipelinePotential decimal.Decimal
	Remaining         decimal.Decimal
	Status            HealthStatus
}

// MonthImpact is the before/after effect of a simulation on one month.
type MonthImpact struct {
	Month           Month
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
	Delta           decimal.Decimal
	StatusBefore    HealthStatus
	StatusAfter     HealthStatus
	IsBottleneck    bool
}
