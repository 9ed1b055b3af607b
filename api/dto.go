/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the budget domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

JSON CONVENTIONS:
  - Money is a decimal string ("18000.00"), never a float
  - Months are "YYYY-MM", dates are "YYYY-MM-DD"
  - Impact previews are an object keyed by month label, in month order

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/headcount-budget/budget"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ORG UNITS
// =============================================================================

type OrgUnitDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Currency           string          `json:"currency"`
	OverheadMultiplier decimal.Decimal `json:"overhead_multiplier"`
	Active             bool            `json:"active"`
	CreatedAt          time.Time       `json:"created_at"`
}

type CreateOrgUnitRequest struct {
	ID                 string           `json:"id,omitempty"`
	Name               string           `json:"name"`
	Currency           string           `json:"currency,omitempty"`
	OverheadMultiplier *decimal.Decimal `json:"overhead_multiplier,omitempty"`
	Active             *bool            `json:"active,omitempty"`
}

// UpdateOrgUnitRequest is a partial update; omitted fields are unchanged.
type UpdateOrgUnitRequest struct {
	Name               *string          `json:"name,omitempty"`
	Currency           *string          `json:"currency,omitempty"`
	OverheadMultiplier *decimal.Decimal `json:"overhead_multiplier,omitempty"`
	Active             *bool            `json:"active,omitempty"`
}

func toOrgUnitDTO(u budget.OrgUnit) OrgUnitDTO {
	return OrgUnitDTO{
		ID:                 string(u.ID),
		Name:               u.Name,
		Currency:           u.Currency,
		OverheadMultiplier: u.OverheadMultiplier,
		Active:             u.Active,
		CreatedAt:          u.CreatedAt,
	}
}

// =============================================================================
// BUDGETS, FORECASTS, ACTUALS
// =============================================================================

type BudgetDTO struct {
	ID             string          `json:"id"`
	OrgUnitID      string          `json:"org_unit_id"`
	Month          budget.Month    `json:"month"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	Currency       string          `json:"currency"`
	Locked         bool            `json:"locked"`
	LockedBy       string          `json:"locked_by,omitempty"`
	LockedAt       *time.Time      `json:"locked_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type UpsertBudgetRequest struct {
	Month          string          `json:"month"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	Currency       string          `json:"currency,omitempty"`
}

type LockMonthRequest struct {
	Month string `json:"month"`
}

func toBudgetDTO(b budget.Budget) BudgetDTO {
	return BudgetDTO{
		ID:             b.ID,
		OrgUnitID:      string(b.OrgUnitID),
		Month:          b.Month,
		ApprovedAmount: b.ApprovedAmount,
		Currency:       b.Currency,
		Locked:         b.Locked,
		LockedBy:       b.LockedBy,
		LockedAt:       b.LockedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

type ForecastDTO struct {
	ID        string          `json:"id"`
	OrgUnitID string          `json:"org_unit_id"`
	Month     budget.Month    `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source,omitempty"`
}

type UpsertForecastRequest struct {
	Month    string          `json:"month"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
	Source   string          `json:"source,omitempty"`
}

func toForecastDTO(f budget.Forecast) ForecastDTO {
	return ForecastDTO{
		ID:        f.ID,
		OrgUnitID: string(f.OrgUnitID),
		Month:     f.Month,
		Amount:    f.Amount,
		Currency:  f.Currency,
		Source:    f.Source,
	}
}

type ActualDTO struct {
	ID        string          `json:"id"`
	OrgUnitID string          `json:"org_unit_id"`
	Month     budget.Month    `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Finalized bool            `json:"finalized"`
}

type UpsertActualRequest struct {
	Month     string          `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Finalized bool            `json:"finalized"`
}

func toActualDTO(a budget.Actual) ActualDTO {
	return ActualDTO{
		ID:        a.ID,
		OrgUnitID: string(a.OrgUnitID),
		Month:     a.Month,
		Amount:    a.Amount,
		Currency:  a.Currency,
		Finalized: a.Finalized,
	}
}

// =============================================================================
// JOB CATALOG
// =============================================================================

type JobDTO struct {
	ID             string          `json:"id"`
	JobFamily      string          `json:"job_family"`
	Level          string          `json:"level"`
	Title          string          `json:"title"`
	MonthlyCost    decimal.Decimal `json:"monthly_cost"`
	HierarchyLevel int             `json:"hierarchy_level"`
	Currency       string          `json:"currency"`
	Active         bool            `json:"active"`
}

type CreateJobRequest struct {
	ID             string          `json:"id,omitempty"`
	JobFamily      string          `json:"job_family"`
	Level          string          `json:"level"`
	Title          string          `json:"title"`
	MonthlyCost    decimal.Decimal `json:"monthly_cost"`
	HierarchyLevel int             `json:"hierarchy_level"`
	Currency       string          `json:"currency,omitempty"`
}

type UpdateJobRequest struct {
	JobFamily      *string          `json:"job_family,omitempty"`
	Level          *string          `json:"level,omitempty"`
	Title          *string          `json:"title,omitempty"`
	MonthlyCost    *decimal.Decimal `json:"monthly_cost,omitempty"`
	HierarchyLevel *int             `json:"hierarchy_level,omitempty"`
	Currency       *string          `json:"currency,omitempty"`
	Active         *bool            `json:"active,omitempty"`
}

func toJobDTO(j budget.JobCatalog) JobDTO {
	return JobDTO{
		ID:             string(j.ID),
		JobFamily:      j.JobFamily,
		Level:          j.Level,
		Title:          j.Title,
		MonthlyCost:    j.MonthlyCost,
		HierarchyLevel: j.HierarchyLevel,
		Currency:       j.Currency,
		Active:         j.Active,
	}
}

// =============================================================================
// REQUISITIONS
// =============================================================================

type RequisitionDTO struct {
	ID                   string           `json:"id"`
	OrgUnitID            string           `json:"org_unit_id"`
	JobCatalogID         string           `json:"job_catalog_id"`
	Title                string           `json:"title"`
	Priority             string           `json:"priority"`
	Status               string           `json:"status"`
	TargetStartMonth     *budget.Month    `json:"target_start_month,omitempty"`
	EstimatedMonthlyCost *decimal.Decimal `json:"estimated_monthly_cost,omitempty"`
	HasCandidateReady    bool             `json:"has_candidate_ready"`
	OwnerID              string           `json:"owner_id,omitempty"`
	Notes                string           `json:"notes,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

type CreateRequisitionRequest struct {
	OrgUnitID            string           `json:"org_unit_id"`
	JobCatalogID         string           `json:"job_catalog_id"`
	Title                string           `json:"title"`
	Priority             string           `json:"priority,omitempty"`
	TargetStartMonth     string           `json:"target_start_month,omitempty"`
	EstimatedMonthlyCost *decimal.Decimal `json:"estimated_monthly_cost,omitempty"`
	HasCandidateReady    bool             `json:"has_candidate_ready"`
	OwnerID              string           `json:"owner_id,omitempty"`
	Notes                string           `json:"notes,omitempty"`
}

type UpdateRequisitionRequest struct {
	Title                *string          `json:"title,omitempty"`
	Priority             *string          `json:"priority,omitempty"`
	Status               *string          `json:"status,omitempty"`
	TargetStartMonth     *string          `json:"target_start_month,omitempty"`
	EstimatedMonthlyCost *decimal.Decimal `json:"estimated_monthly_cost,omitempty"`
	HasCandidateReady    *bool            `json:"has_candidate_ready,omitempty"`
	Notes                *string          `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

func toRequisitionDTO(r budget.Requisition) RequisitionDTO {
	return RequisitionDTO{
		ID:                   string(r.ID),
		OrgUnitID:            string(r.OrgUnitID),
		JobCatalogID:         string(r.JobCatalogID),
		Title:                r.Title,
		Priority:             string(r.Priority),
		Status:               string(r.Status),
		TargetStartMonth:     r.TargetStartMonth,
		EstimatedMonthlyCost: r.EstimatedMonthlyCost,
		HasCandidateReady:    r.HasCandidateReady,
		OwnerID:              r.OwnerID,
		Notes:                r.Notes,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// =============================================================================
// OFFERS
// =============================================================================

type OfferDTO struct {
	ID                  string           `json:"id"`
	RequisitionID       string           `json:"requisition_id"`
	OrgUnitID           string           `json:"org_unit_id"`
	CandidateName       string           `json:"candidate_name"`
	Status              string           `json:"status"`
	ProposedMonthlyCost decimal.Decimal  `json:"proposed_monthly_cost"`
	FinalMonthlyCost    *decimal.Decimal `json:"final_monthly_cost,omitempty"`
	Currency            string           `json:"currency"`
	StartDate           *string          `json:"start_date,omitempty"`
	HoldReason          string           `json:"hold_reason,omitempty"`
	HoldUntil           *string          `json:"hold_until,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type CreateOfferRequest struct {
	RequisitionID       string          `json:"requisition_id"`
	CandidateName       string          `json:"candidate_name"`
	ProposedMonthlyCost decimal.Decimal `json:"proposed_monthly_cost"`
	Currency            string          `json:"currency,omitempty"`
	StartDate           string          `json:"start_date,omitempty"`
	Notes               string          `json:"notes,omitempty"`
}

// UpdateOfferRequest edits the terms of an offer under negotiation.
type UpdateOfferRequest struct {
	CandidateName       *string          `json:"candidate_name,omitempty"`
	ProposedMonthlyCost *decimal.Decimal `json:"proposed_monthly_cost,omitempty"`
	FinalMonthlyCost    *decimal.Decimal `json:"final_monthly_cost,omitempty"`
	StartDate           *string          `json:"start_date,omitempty"`
	Notes               *string          `json:"notes,omitempty"`
}

type HoldOfferRequest struct {
	Reason string `json:"reason"`
	Until  string `json:"until,omitempty"`
}

type AcceptOfferRequest struct {
	FinalMonthlyCost *decimal.Decimal `json:"final_monthly_cost,omitempty"`
	StartDate        string           `json:"start_date,omitempty"`
}

type ChangeStartDateRequest struct {
	StartDate string `json:"start_date"`
	Notes     string `json:"notes,omitempty"`
}

func toOfferDTO(o budget.Offer) OfferDTO {
	return OfferDTO{
		ID:                  string(o.ID),
		RequisitionID:       string(o.RequisitionID),
		OrgUnitID:           string(o.OrgUnitID),
		CandidateName:       o.CandidateName,
		Status:              string(o.Status),
		ProposedMonthlyCost: o.ProposedMonthlyCost,
		FinalMonthlyCost:    o.FinalMonthlyCost,
		Currency:            o.Currency,
		StartDate:           formatDatePtr(o.StartDate),
		HoldReason:          o.HoldReason,
		HoldUntil:           formatDatePtr(o.HoldUntil),
		Notes:               o.Notes,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// =============================================================================
// HEALTH & IMPACT
// =============================================================================

// MonthHealthDTO is the health snapshot of one month.
type MonthHealthDTO struct {
	Month             budget.Month    `json:"month"`
	Approved          decimal.Decimal `json:"approved"`
	Baseline          decimal.Decimal `json:"baseline"`
	BaselineSource    string          `json:"baseline_source"`
	Committed         decimal.Decimal `json:"committed"`
	PipelinePotential decimal.Decimal `json:"pipeline_potential"`
	Remaining         decimal.Decimal `json:"remaining"`
	Status            string          `json:"status"`
}

type SummaryDTO struct {
	OrgUnitID   string           `json:"org_unit_id"`
	OrgUnitName string           `json:"org_unit_name"`
	Months      []MonthHealthDTO `json:"months"`
}

// ToMonthHealthDTO converts engine output for the API and the CLI.
func ToMonthHealthDTO(m budget.MonthHealth) MonthHealthDTO {
	return MonthHealthDTO{
		Month:             m.Month,
		Approved:          m.Approved,
		Baseline:          m.Baseline,
		BaselineSource:    string(m.BaselineSource),
		Committed:         m.Committed,
		PipelinePotential: m.PipelinePotential,
		Remaining:         m.Remaining,
		Status:            string(m.Status),
	}
}

type MonthImpactDTO struct {
	Month           budget.Month    `json:"month"`
	RemainingBefore decimal.Decimal `json:"remaining_before"`
	RemainingAfter  decimal.Decimal `json:"remaining_after"`
	Delta           decimal.Decimal `json:"delta"`
	StatusBefore    string          `json:"status_before"`
	StatusAfter     string          `json:"status_after"`
	IsBottleneck    bool            `json:"is_bottleneck"`
}

// ImpactsDTO serializes as {"impacts": {"2026-10": {...}, ...}}, one key per
// simulated month in the order of the report.
type ImpactsDTO struct {
	Impacts []MonthImpactDTO
}

func (d ImpactsDTO) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"impacts":{`)
	for i, m := range d.Impacts {
		if i > 0 {
			buf.WriteByte(',')
		}
		value, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("impact %s: %w", m.Month, err)
		}
		fmt.Fprintf(&buf, "%q:", m.Month.String())
		buf.Write(value)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// ToImpactsDTO converts a preview report for the API and the CLI.
func ToImpactsDTO(r budget.ImpactReport) ImpactsDTO {
	out := ImpactsDTO{Impacts: make([]MonthImpactDTO, len(r.Months))}
	for i, m := range r.Months {
		out.Impacts[i] = MonthImpactDTO{
			Month:           m.Month,
			RemainingBefore: m.RemainingBefore,
			RemainingAfter:  m.RemainingAfter,
			Delta:           m.Delta,
			StatusBefore:    string(m.StatusBefore),
			StatusAfter:     string(m.StatusAfter),
			IsBottleneck:    m.IsBottleneck,
		}
	}
	return out
}

type PreviewImpactRequest struct {
	OfferIDs    []string `json:"offer_ids"`
	MonthsAhead *int     `json:"months_ahead,omitempty"`
}

type PositionRequest struct {
	JobCatalogID       string           `json:"job_catalog_id,omitempty"`
	MonthlyCost        *decimal.Decimal `json:"monthly_cost,omitempty"`
	StartDate          string           `json:"start_date"`
	OverheadMultiplier *decimal.Decimal `json:"overhead_multiplier,omitempty"`
}

type PreviewPositionsRequest struct {
	OrgUnitID   string            `json:"org_unit_id"`
	Positions   []PositionRequest `json:"positions"`
	MonthsAhead *int              `json:"months_ahead,omitempty"`
}

// =============================================================================
// DATA EXCHANGE, AUDIT, SCENARIOS
// =============================================================================

type ImportResultDTO struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	At         time.Time      `json:"at"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Changes    map[string]any `json:"changes,omitempty"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
