/*
handlers.go - HTTP API handlers for the headcount budget service

PURPOSE:
  Exposes the budget health and impact engine via REST API. Handles HTTP
  request/response, JSON serialization, audit logging, and delegates the
  arithmetic to the budget package.

ENDPOINTS:
  Org units:
    GET    /api/org-units                       List org units
    POST   /api/org-units                       Create org unit
    GET    /api/org-units/{id}                  Get org unit
    PATCH  /api/org-units/{id}                  Update name, currency, overhead, active
    DELETE /api/org-units/{id}                  Delete an org unit with no records
    GET    /api/org-units/{id}/month-health     Health of one month (?month=YYYY-MM)
    GET    /api/org-units/{id}/summary          Last month + N months (?months=6)

  Monthly financials:
    GET/POST /api/org-units/{id}/budgets        List / upsert approved budget
    POST     /api/org-units/{id}/lock-month     Freeze a budget month
    GET/POST /api/org-units/{id}/forecasts      List / upsert forecast
    GET/POST /api/org-units/{id}/actuals        List / upsert actual

  Hiring pipeline:
    GET/POST /api/job-catalog
    GET/PATCH/DELETE /api/job-catalog/{id}      (?hard=true deletes, else deactivates)
    GET/POST /api/requisitions                  (?org_unit_id=&status=)
    GET/PATCH /api/requisitions/{id}
    POST     /api/requisitions/{id}/transition
    GET/POST /api/offers                        (?org_unit_id=&requisition_id=&status=)
    GET/PATCH/DELETE /api/offers/{id}           PATCH only while DRAFT, PROPOSED or HOLD
    POST     /api/offers/{id}/{action}          Offer lifecycle
    POST     /api/offers/preview-impact         What-if for existing offers
    POST     /api/offers/preview-new-positions  What-if for hypothetical hires

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Engine: Health and impact calculations reading from Store
  - Log: Structured logger
  - Monitor: Background RED month detection

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, illegal status changes
  - 404: Resource not found
  - 409: Conflict (locked budget month, org unit still in use)
  - 500: Internal errors

AUDIT:
  Every mutating endpoint appends an audit entry. The actor is read from the
  X-Actor-ID header and defaults to "system".

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - csv.go: CSV import/export
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/headcount-budget/budget"
	"github.com/warp/headcount-budget/store/sqlite"
)

// ActorHeader carries the ID recorded in the audit log.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *budget.Engine
	Log     logrus.FieldLogger
	Monitor *HealthMonitor

	// MonthsAhead is the preview and summary window when a request omits one.
	MonthsAhead int

	// DefaultOverhead applies to org units created without a multiplier.
	DefaultOverhead decimal.Decimal

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	engine := budget.NewEngine(store)
	return &Handler{
		Store:           store,
		Engine:          engine,
		Log:             log,
		Monitor:         NewHealthMonitor(store, engine, log),
		MonthsAhead:     6,
		DefaultOverhead: budget.DefaultOverhead,
	}
}

func (h *Handler) now() time.Time {
	if h.Engine.Now != nil {
		return h.Engine.Now()
	}
	return time.Now()
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ORG UNIT HANDLERS
// =============================================================================

// ListOrgUnits returns all org units.
func (h *Handler) ListOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListOrgUnits(r.Context())
	if err != nil {
		h.fail(w, "Failed to list org units", err)
		return
	}

	dtos := make([]OrgUnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toOrgUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrgUnit creates a budget-holding unit.
// POST /api/org-units
func (h *Handler) CreateOrgUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateOrgUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	overhead := h.DefaultOverhead
	if req.OverheadMultiplier != nil {
		overhead = *req.OverheadMultiplier
	}
	if overhead.IsNegative() {
		writeError(w, http.StatusBadRequest, "Overhead multiplier must not be negative", nil)
		return
	}

	ctx := r.Context()
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else {
		existing, err := h.Store.GetOrgUnit(ctx, budget.OrgUnitID(id))
		if err != nil {
			h.fail(w, "Failed to load org unit", err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Org unit already exists", nil)
			return
		}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	unit := budget.OrgUnit{
		ID:                 budget.OrgUnitID(id),
		Name:               req.Name,
		Currency:           currencyOrDefault(req.Currency),
		OverheadMultiplier: overhead,
		Active:             active,
		CreatedAt:          h.now(),
	}
	if err := h.Store.SaveOrgUnit(ctx, unit); err != nil {
		h.fail(w, "Failed to create org unit", err)
		return
	}

	h.audit(r, budget.AuditCreate, "org_unit", id, map[string]any{
		"name":                unit.Name,
		"overhead_multiplier": overhead.String(),
	})
	writeJSON(w, http.StatusCreated, toOrgUnitDTO(unit))
}

// GetOrgUnit returns a single org unit.
func (h *Handler) GetOrgUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrgUnitDTO(*unit))
}

// UpdateOrgUnit changes name, currency, overhead or active flag. A new
// overhead applies to every cost the engine computes afterwards.
// PATCH /api/org-units/{id}
func (h *Handler) UpdateOrgUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	var req UpdateOrgUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	old := map[string]any{
		"name":                unit.Name,
		"currency":            unit.Currency,
		"overhead_multiplier": unit.OverheadMultiplier.String(),
		"active":              unit.Active,
	}
	updated := map[string]any{}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, "Name is required", nil)
			return
		}
		unit.Name = *req.Name
		updated["name"] = unit.Name
	}
	if req.Currency != nil {
		unit.Currency = currencyOrDefault(*req.Currency)
		updated["currency"] = unit.Currency
	}
	if req.OverheadMultiplier != nil {
		if req.OverheadMultiplier.IsNegative() {
			writeError(w, http.StatusBadRequest, "Overhead multiplier must not be negative", nil)
			return
		}
		unit.OverheadMultiplier = *req.OverheadMultiplier
		updated["overhead_multiplier"] = unit.OverheadMultiplier.String()
	}
	if req.Active != nil {
		unit.Active = *req.Active
		updated["active"] = unit.Active
	}

	if err := h.Store.SaveOrgUnit(r.Context(), *unit); err != nil {
		h.fail(w, "Failed to update org unit", err)
		return
	}

	h.audit(r, budget.AuditUpdate, "org_unit", string(unit.ID), map[string]any{"old": old, "new": updated})
	writeJSON(w, http.StatusOK, toOrgUnitDTO(*unit))
}

// DeleteOrgUnit removes an org unit with no budgets, forecasts, actuals or
// requisitions left. 409 otherwise.
// DELETE /api/org-units/{id}
func (h *Handler) DeleteOrgUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteOrgUnit(r.Context(), unit.ID); err != nil {
		h.fail(w, "Cannot delete org unit", err)
		return
	}

	h.audit(r, budget.AuditDelete, "org_unit", string(unit.ID), map[string]any{"name": unit.Name})
	w.WriteHeader(http.StatusNoContent)
}

// GetMonthHealth computes the health of one month, the current one by default.
// GET /api/org-units/{id}/month-health?month=2026-01
func (h *Handler) GetMonthHealth(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	month := h.Engine.CurrentMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := budget.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = m
	}

	health, err := h.Engine.MonthHealth(r.Context(), unit.ID, month)
	if err != nil {
		h.fail(w, "Failed to compute month health", err)
		return
	}
	writeJSON(w, http.StatusOK, ToMonthHealthDTO(health))
}

// GetSummary returns last month, the current month and the months after it.
// GET /api/org-units/{id}/summary?months=6
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	months := h.MonthsAhead
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid months parameter", err)
			return
		}
		months = n
	}

	summary, err := h.Engine.Summary(r.Context(), unit.ID, months)
	if err != nil {
		h.fail(w, "Failed to compute summary", err)
		return
	}

	dto := SummaryDTO{
		OrgUnitID:   string(unit.ID),
		OrgUnitName: unit.Name,
		Months:      make([]MonthHealthDTO, len(summary)),
	}
	for i, m := range summary {
		dto.Months[i] = ToMonthHealthDTO(m)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BUDGET, FORECAST & ACTUAL HANDLERS
// =============================================================================

// ListBudgets returns the approved budgets of an org unit in month order.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	budgets, err := h.Store.ListBudgets(r.Context(), unit.ID)
	if err != nil {
		h.fail(w, "Failed to list budgets", err)
		return
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		dtos[i] = toBudgetDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertBudget creates or updates the approved amount for a month.
// POST /api/org-units/{id}/budgets
func (h *Handler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	var req UpsertBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := budget.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	if req.ApprovedAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Approved amount must not be negative", nil)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = unit.Currency
	}
	b, created, err := h.Store.UpsertBudget(r.Context(), budget.Budget{
		OrgUnitID:      unit.ID,
		Month:          month,
		ApprovedAmount: req.ApprovedAmount,
		Currency:       currency,
	}, h.now())
	if err != nil {
		h.fail(w, "Failed to save budget", err)
		return
	}

	action, status := budget.AuditUpdate, http.StatusOK
	if created {
		action, status = budget.AuditCreate, http.StatusCreated
	}
	h.audit(r, action, "budget", b.ID, map[string]any{
		"month":           month.String(),
		"approved_amount": b.ApprovedAmount.String(),
	})
	writeJSON(w, status, toBudgetDTO(b))
}

// LockMonth freezes the budget of a month.
// POST /api/org-units/{id}/lock-month
func (h *Handler) LockMonth(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	var req LockMonthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := budget.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	actor := actorID(r)
	b, err := h.Store.LockMonth(r.Context(), unit.ID, month, actor, h.now())
	if err != nil {
		h.fail(w, "Failed to lock month", err)
		return
	}

	h.audit(r, budget.AuditLock, "budget", b.ID, map[string]any{"month": month.String(), "locked": true})
	h.Log.WithFields(logrus.Fields{
		"org_unit_id": unit.ID,
		"month":       month.String(),
		"actor":       actor,
	}).Info("budget month locked")
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// ListForecasts returns the forecasts of an org unit.
func (h *Handler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	forecasts, err := h.Store.ListForecasts(r.Context(), unit.ID)
	if err != nil {
		h.fail(w, "Failed to list forecasts", err)
		return
	}

	dtos := make([]ForecastDTO, len(forecasts))
	for i, f := range forecasts {
		dtos[i] = toForecastDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertForecast records the expected spend of a month.
func (h *Handler) UpsertForecast(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	var req UpsertForecastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := budget.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	f, created, err := h.Store.UpsertForecast(r.Context(), budget.Forecast{
		OrgUnitID: unit.ID,
		Month:     month,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Source:    req.Source,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.fail(w, "Failed to save forecast", err)
		return
	}

	action, status := budget.AuditUpdate, http.StatusOK
	if created {
		action, status = budget.AuditCreate, http.StatusCreated
	}
	h.audit(r, action, "forecast", f.ID, map[string]any{"month": month.String(), "amount": f.Amount.String()})
	writeJSON(w, status, toForecastDTO(f))
}

// ListActuals returns the realized spend of an org unit.
func (h *Handler) ListActuals(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	actuals, err := h.Store.ListActuals(r.Context(), unit.ID)
	if err != nil {
		h.fail(w, "Failed to list actuals", err)
		return
	}

	dtos := make([]ActualDTO, len(actuals))
	for i, a := range actuals {
		dtos[i] = toActualDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertActual records the realized spend of a month.
func (h *Handler) UpsertActual(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	var req UpsertActualRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := budget.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	a, created, err := h.Store.UpsertActual(r.Context(), budget.Actual{
		OrgUnitID: unit.ID,
		Month:     month,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Finalized: req.Finalized,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.fail(w, "Failed to save actual", err)
		return
	}

	action, status := budget.AuditUpdate, http.StatusOK
	if created {
		action, status = budget.AuditCreate, http.StatusCreated
	}
	h.audit(r, action, "actual", a.ID, map[string]any{"month": month.String(), "amount": a.Amount.String()})
	writeJSON(w, status, toActualDTO(a))
}

// =============================================================================
// JOB CATALOG HANDLERS
// =============================================================================

// ListJobs returns the job catalog.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context())
	if err != nil {
		h.fail(w, "Failed to list job catalog", err)
		return
	}

	dtos := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toJobDTO(j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateJob adds a role to the catalog.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}
	if req.MonthlyCost.IsNegative() {
		writeError(w, http.StatusBadRequest, "Monthly cost must not be negative", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	job := budget.JobCatalog{
		ID:             budget.JobID(id),
		JobFamily:      req.JobFamily,
		Level:          req.Level,
		Title:          req.Title,
		MonthlyCost:    req.MonthlyCost,
		HierarchyLevel: req.HierarchyLevel,
		Currency:       currencyOrDefault(req.Currency),
		Active:         true,
	}
	if err := h.Store.SaveJob(r.Context(), job); err != nil {
		h.fail(w, "Failed to create job", err)
		return
	}

	h.audit(r, budget.AuditCreate, "job_catalog", id, map[string]any{"title": job.Title, "monthly_cost": job.MonthlyCost.String()})
	writeJSON(w, http.StatusCreated, toJobDTO(job))
}

// GetJob returns a single catalog entry.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(*job))
}

// UpdateJob edits a catalog entry. Existing requisitions keep the estimate
// they were created with.
// PATCH /api/job-catalog/{id}
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	var req UpdateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	old := map[string]any{
		"job_family":   job.JobFamily,
		"level":        job.Level,
		"title":        job.Title,
		"monthly_cost": job.MonthlyCost.String(),
		"active":       job.Active,
	}
	updated := map[string]any{}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			writeError(w, http.StatusBadRequest, "Title is required", nil)
			return
		}
		job.Title = *req.Title
		updated["title"] = job.Title
	}
	if req.MonthlyCost != nil {
		if req.MonthlyCost.IsNegative() {
			writeError(w, http.StatusBadRequest, "Monthly cost must not be negative", nil)
			return
		}
		job.MonthlyCost = *req.MonthlyCost
		updated["monthly_cost"] = job.MonthlyCost.String()
	}
	if req.JobFamily != nil {
		job.JobFamily = *req.JobFamily
		updated["job_family"] = job.JobFamily
	}
	if req.Level != nil {
		job.Level = *req.Level
		updated["level"] = job.Level
	}
	if req.HierarchyLevel != nil {
		job.HierarchyLevel = *req.HierarchyLevel
		updated["hierarchy_level"] = job.HierarchyLevel
	}
	if req.Currency != nil {
		job.Currency = currencyOrDefault(*req.Currency)
		updated["currency"] = job.Currency
	}
	if req.Active != nil {
		job.Active = *req.Active
		updated["active"] = job.Active
	}

	if err := h.Store.SaveJob(r.Context(), *job); err != nil {
		h.fail(w, "Failed to update job", err)
		return
	}

	h.audit(r, budget.AuditUpdate, "job_catalog", string(job.ID), map[string]any{"old": old, "new": updated})
	writeJSON(w, http.StatusOK, toJobDTO(*job))
}

// DeleteJob deactivates a catalog entry, or removes it with ?hard=true.
// DELETE /api/job-catalog/{id}?hard=true
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	hard := false
	if raw := r.URL.Query().Get("hard"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hard parameter", err)
			return
		}
		hard = b
	}

	ctx := r.Context()
	if hard {
		if err := h.Store.DeleteJob(ctx, job.ID); err != nil {
			h.fail(w, "Failed to delete job", err)
			return
		}
		h.audit(r, budget.AuditHardDelete, "job_catalog", string(job.ID), map[string]any{"title": job.Title, "level": job.Level})
		writeJSON(w, http.StatusOK, map[string]string{"message": "Job catalog entry permanently deleted"})
		return
	}

	job.Active = false
	if err := h.Store.SaveJob(ctx, *job); err != nil {
		h.fail(w, "Failed to deactivate job", err)
		return
	}
	h.audit(r, budget.AuditDeactivate, "job_catalog", string(job.ID), nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job catalog entry deactivated"})
}

// =============================================================================
// REQUISITION HANDLERS
// =============================================================================

// ListRequisitions returns requisitions, optionally filtered.
// GET /api/requisitions?org_unit_id=ou-eng&status=OPEN
func (h *Handler) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	filter := sqlite.RequisitionFilter{
		OrgUnitID: budget.OrgUnitID(r.URL.Query().Get("org_unit_id")),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := budget.ParseRequisitionStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		filter.Status = status
	}

	reqs, err := h.Store.QueryRequisitions(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list requisitions", err)
		return
	}

	dtos := make([]RequisitionDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequisitionDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRequisition opens a DRAFT requisition. Without an explicit estimate
// the catalog monthly cost is used.
// POST /api/requisitions
func (h *Handler) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	var req CreateRequisitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	unit, err := h.Store.GetOrgUnit(ctx, budget.OrgUnitID(req.OrgUnitID))
	if err != nil {
		h.fail(w, "Failed to load org unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusBadRequest, "Invalid org unit ID", nil)
		return
	}

	job, err := h.Store.GetJob(ctx, budget.JobID(req.JobCatalogID))
	if err != nil {
		h.fail(w, "Failed to load job", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusBadRequest, "Invalid job catalog ID", nil)
		return
	}

	priority := budget.PriorityP2
	if req.Priority != "" {
		priority = budget.RequisitionPriority(req.Priority)
		if !priority.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid priority", nil)
			return
		}
	}

	var target *budget.Month
	if req.TargetStartMonth != "" {
		m, err := budget.ParseMonth(req.TargetStartMonth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target start month", err)
			return
		}
		target = &m
	}

	estimate := req.EstimatedMonthlyCost
	if estimate == nil {
		cost := job.MonthlyCost
		estimate = &cost
	}

	title := req.Title
	if title == "" {
		title = job.Title
	}

	now := h.now()
	requisition := budget.Requisition{
		ID:                   budget.RequisitionID(uuid.NewString()),
		OrgUnitID:            unit.ID,
		JobCatalogID:         job.ID,
		Title:                title,
		Priority:             priority,
		Status:               budget.RequisitionDraft,
		TargetStartMonth:     target,
		EstimatedMonthlyCost: estimate,
		HasCandidateReady:    req.HasCandidateReady,
		OwnerID:              req.OwnerID,
		Notes:                req.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := h.Store.SaveRequisition(ctx, requisition); err != nil {
		h.fail(w, "Failed to create requisition", err)
		return
	}

	h.audit(r, budget.AuditCreate, "requisition", string(requisition.ID), map[string]any{
		"title":                  title,
		"estimated_monthly_cost": estimate.String(),
	})
	writeJSON(w, http.StatusCreated, toRequisitionDTO(requisition))
}

// GetRequisition returns a single requisition.
func (h *Handler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRequisitionDTO(*req))
}

// UpdateRequisition applies a partial update. A status in the body must be a
// legal transition from the current one.
// PATCH /api/requisitions/{id}
func (h *Handler) UpdateRequisition(w http.ResponseWriter, r *http.Request) {
	requisition, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}

	var req UpdateRequisitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edit := budget.RequisitionEdit{
		Title:                req.Title,
		EstimatedMonthlyCost: req.EstimatedMonthlyCost,
		HasCandidateReady:    req.HasCandidateReady,
		Notes:                req.Notes,
	}
	updated := map[string]any{}
	if req.Title != nil {
		updated["title"] = *req.Title
	}
	if req.Priority != nil {
		p := budget.RequisitionPriority(*req.Priority)
		edit.Priority = &p
		updated["priority"] = *req.Priority
	}
	if req.Status != nil {
		status, err := budget.ParseRequisitionStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		edit.Status = &status
		updated["status"] = *req.Status
	}
	if req.TargetStartMonth != nil {
		m, err := budget.ParseMonth(*req.TargetStartMonth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target start month", err)
			return
		}
		edit.TargetStartMonth = &m
		updated["target_start_month"] = m.String()
	}
	if req.EstimatedMonthlyCost != nil {
		updated["estimated_monthly_cost"] = req.EstimatedMonthlyCost.String()
	}
	if req.HasCandidateReady != nil {
		updated["has_candidate_ready"] = *req.HasCandidateReady
	}

	old := map[string]any{
		"title":    requisition.Title,
		"priority": string(requisition.Priority),
		"status":   string(requisition.Status),
	}
	if err := requisition.Edit(edit, h.now()); err != nil {
		h.fail(w, "Invalid requisition update", err)
		return
	}
	if err := h.Store.SaveRequisition(r.Context(), *requisition); err != nil {
		h.fail(w, "Failed to save requisition", err)
		return
	}

	h.audit(r, budget.AuditUpdate, "requisition", string(requisition.ID), map[string]any{"old": old, "new": updated})
	writeJSON(w, http.StatusOK, toRequisitionDTO(*requisition))
}

// TransitionRequisition moves a requisition through its workflow.
// POST /api/requisitions/{id}/transition {"status": "OPEN"}
func (h *Handler) TransitionRequisition(w http.ResponseWriter, r *http.Request) {
	requisition, ok := h.loadRequisition(w, r)
	if !ok {
		return
	}

	var body TransitionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to, err := budget.ParseRequisitionStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}

	from := requisition.Status
	if err := requisition.Transition(to, h.now()); err != nil {
		h.fail(w, "Invalid status transition", err)
		return
	}
	if err := h.Store.SaveRequisition(r.Context(), *requisition); err != nil {
		h.fail(w, "Failed to save requisition", err)
		return
	}

	h.audit(r, budget.AuditTransition, "requisition", string(requisition.ID), map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	writeJSON(w, http.StatusOK, toRequisitionDTO(*requisition))
}

// =============================================================================
// OFFER HANDLERS
// =============================================================================

// ListOffers returns offers, optionally filtered.
// GET /api/offers?org_unit_id=ou-eng&requisition_id=r-1&status=SENT
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sqlite.OfferFilter{
		OrgUnitID:     budget.OrgUnitID(q.Get("org_unit_id")),
		RequisitionID: budget.RequisitionID(q.Get("requisition_id")),
	}
	if raw := q.Get("status"); raw != "" {
		status, err := budget.ParseOfferStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		filter.Status = status
	}

	offers, err := h.Store.QueryOffers(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list offers", err)
		return
	}

	dtos := make([]OfferDTO, len(offers))
	for i, o := range offers {
		dtos[i] = toOfferDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOffer drafts an offer against an existing requisition.
// POST /api/offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	requisition, err := h.Store.GetRequisition(ctx, budget.RequisitionID(req.RequisitionID))
	if err != nil {
		h.fail(w, "Failed to load requisition", err)
		return
	}
	if requisition == nil {
		writeError(w, http.StatusBadRequest, "Invalid requisition ID", nil)
		return
	}
	if strings.TrimSpace(req.CandidateName) == "" {
		writeError(w, http.StatusBadRequest, "Candidate name is required", nil)
		return
	}
	if !req.ProposedMonthlyCost.IsPositive() {
		writeError(w, http.StatusBadRequest, "Proposed monthly cost must be positive", nil)
		return
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}

	now := h.now()
	offer := budget.Offer{
		ID:                  budget.OfferID(uuid.NewString()),
		RequisitionID:       requisition.ID,
		OrgUnitID:           requisition.OrgUnitID,
		CandidateName:       req.CandidateName,
		Status:              budget.OfferDraft,
		ProposedMonthlyCost: req.ProposedMonthlyCost,
		Currency:            currencyOrDefault(req.Currency),
		StartDate:           start,
		Notes:               req.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.Store.SaveOffer(ctx, offer); err != nil {
		h.fail(w, "Failed to create offer", err)
		return
	}

	h.audit(r, budget.AuditCreate, "offer", string(offer.ID), map[string]any{
		"candidate_name":        offer.CandidateName,
		"proposed_monthly_cost": offer.ProposedMonthlyCost.String(),
	})
	writeJSON(w, http.StatusCreated, toOfferDTO(offer))
}

// GetOffer returns a single offer.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, ok := h.loadOffer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTO(*offer))
}

// UpdateOffer edits the terms of a DRAFT, PROPOSED or HOLD offer.
// PATCH /api/offers/{id} {"proposed_monthly_cost": "12000", "start_date": "2026-03-01"}
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req UpdateOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edit := budget.OfferEdit{
		CandidateName:       req.CandidateName,
		ProposedMonthlyCost: req.ProposedMonthlyCost,
		FinalMonthlyCost:    req.FinalMonthlyCost,
		Notes:               req.Notes,
	}
	changes := map[string]any{}
	if req.CandidateName != nil {
		if strings.TrimSpace(*req.CandidateName) == "" {
			writeError(w, http.StatusBadRequest, "Candidate name is required", nil)
			return
		}
		changes["candidate_name"] = *req.CandidateName
	}
	if req.ProposedMonthlyCost != nil {
		changes["proposed_monthly_cost"] = req.ProposedMonthlyCost.String()
	}
	if req.FinalMonthlyCost != nil {
		changes["final_monthly_cost"] = req.FinalMonthlyCost.String()
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		edit.StartDate = &start
		changes["start_date"] = *req.StartDate
	}

	h.offerAction(w, r, budget.AuditUpdate, changes, func(o *budget.Offer, now time.Time) error {
		return o.Edit(edit, now)
	})
}

// DeleteOffer removes an offer in any status.
// DELETE /api/offers/{id}
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	offer, ok := h.loadOffer(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteOffer(r.Context(), offer.ID); err != nil {
		h.fail(w, "Failed to delete offer", err)
		return
	}

	h.audit(r, budget.AuditDelete, "offer", string(offer.ID), map[string]any{
		"candidate_name": offer.CandidateName,
		"status":         string(offer.Status),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ProposeOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, budget.AuditPropose, nil, (*budget.Offer).Propose)
}

func (h *Handler) ApproveOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, budget.AuditApprove, nil, (*budget.Offer).Approve)
}

func (h *Handler) SendOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, budget.AuditSend, nil, (*budget.Offer).Send)
}

func (h *Handler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, budget.AuditReject, nil, (*budget.Offer).Reject)
}

func (h *Handler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, budget.AuditCancel, nil, (*budget.Offer).Cancel)
}

// HoldOffer parks a proposed or approved offer.
// POST /api/offers/{id}/hold {"reason": "budget freeze", "until": "2026-04-01"}
func (h *Handler) HoldOffer(w http.ResponseWriter, r *http.Request) {
	var req HoldOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	until, err := parseOptionalDate(req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid until date", err)
		return
	}

	h.offerAction(w, r, budget.AuditHold, map[string]any{"reason": req.Reason}, func(o *budget.Offer, now time.Time) error {
		return o.Hold(req.Reason, until, now)
	})
}

// ChangeStartDate moves the start date of an offer in any status.
// POST /api/offers/{id}/change-start-date {"start_date": "2026-03-01", "notes": "visa"}
func (h *Handler) ChangeStartDate(w http.ResponseWriter, r *http.Request) {
	var req ChangeStartDateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}

	changes := map[string]any{"start_date": req.StartDate, "notes": req.Notes}
	h.offerAction(w, r, budget.AuditChangeStartDate, changes, func(o *budget.Offer, now time.Time) error {
		o.ChangeStartDate(start, req.Notes, now)
		return nil
	})
}

// AcceptOffer commits a sent offer and fills its requisition in one
// transaction.
// POST /api/offers/{id}/accept {"final_monthly_cost": "11000", "start_date": "2026-02-15"}
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	var req AcceptOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}

	offer, ok := h.loadOffer(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	now := h.now()

	if err := offer.Accept(req.FinalMonthlyCost, start, now); err != nil {
		h.fail(w, "Cannot accept offer", err)
		return
	}

	requisition, err := h.Store.GetRequisition(ctx, offer.RequisitionID)
	if err != nil {
		h.fail(w, "Failed to load requisition", err)
		return
	}
	if requisition == nil {
		h.fail(w, "Requisition not found", &budget.NotFoundError{Kind: "requisition", ID: string(offer.RequisitionID)})
		return
	}
	if err := requisition.Fill(now); err != nil {
		h.fail(w, "Cannot fill requisition", err)
		return
	}

	if err := h.Store.SaveAcceptance(ctx, *offer, *requisition); err != nil {
		h.fail(w, "Failed to save acceptance", err)
		return
	}

	changes := map[string]any{"final_monthly_cost": offer.CommittedCost().String()}
	if offer.StartDate != nil {
		changes["start_date"] = offer.StartDate.Format(dateLayout)
	}
	h.audit(r, budget.AuditAccept, "offer", string(offer.ID), changes)
	h.Log.WithFields(logrus.Fields{
		"offer_id":       offer.ID,
		"requisition_id": requisition.ID,
		"org_unit_id":    offer.OrgUnitID,
	}).Info("offer accepted, requisition filled")

	writeJSON(w, http.StatusOK, toOfferDTO(*offer))
}

// offerAction loads the offer, applies a lifecycle change, saves and audits.
func (h *Handler) offerAction(w http.ResponseWriter, r *http.Request, action budget.AuditAction, changes map[string]any, apply func(*budget.Offer, time.Time) error) {
	offer, ok := h.loadOffer(w, r)
	if !ok {
		return
	}

	from := offer.Status
	if err := apply(offer, h.now()); err != nil {
		h.fail(w, "Invalid offer action", err)
		return
	}
	if err := h.Store.SaveOffer(r.Context(), *offer); err != nil {
		h.fail(w, "Failed to save offer", err)
		return
	}

	if changes == nil {
		changes = map[string]any{}
	}
	changes["from"] = string(from)
	changes["to"] = string(offer.Status)
	h.audit(r, action, "offer", string(offer.ID), changes)
	writeJSON(w, http.StatusOK, toOfferDTO(*offer))
}

// =============================================================================
// WHAT-IF HANDLERS
// =============================================================================

// PreviewOfferImpact simulates approving existing offers. The org unit is the
// one of the first offer.
// POST /api/offers/preview-impact {"offer_ids": ["..."], "months_ahead": 6}
func (h *Handler) PreviewOfferImpact(w http.ResponseWriter, r *http.Request) {
	var req PreviewImpactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.OfferIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No offer IDs provided", nil)
		return
	}
	ctx := r.Context()

	first, err := h.Store.GetOffer(ctx, budget.OfferID(req.OfferIDs[0]))
	if err != nil {
		h.fail(w, "Failed to load offer", err)
		return
	}
	if first == nil {
		writeError(w, http.StatusNotFound, "Offer not found", nil)
		return
	}

	ids := make([]budget.OfferID, len(req.OfferIDs))
	for i, id := range req.OfferIDs {
		ids[i] = budget.OfferID(id)
	}

	report, err := h.Engine.PreviewOfferImpact(ctx, first.OrgUnitID, ids, h.monthsAhead(req.MonthsAhead))
	if err != nil {
		h.fail(w, "Failed to preview offer impact", err)
		return
	}

	h.logBottleneck(first.OrgUnitID, report, logrus.Fields{"offer_ids": req.OfferIDs})
	writeJSON(w, http.StatusOK, ToImpactsDTO(report))
}

// PreviewNewPositions simulates hypothetical hires. A position without a
// monthly cost takes it from its job catalog entry.
// POST /api/offers/preview-new-positions
func (h *Handler) PreviewNewPositions(w http.ResponseWriter, r *http.Request) {
	var req PreviewPositionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	unit, err := h.Store.GetOrgUnit(ctx, budget.OrgUnitID(req.OrgUnitID))
	if err != nil {
		h.fail(w, "Failed to load org unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Org unit not found", nil)
		return
	}

	positions := make([]budget.Position, 0, len(req.Positions))
	for i, p := range req.Positions {
		start, err := parseDate(p.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date for position "+strconv.Itoa(i), err)
			return
		}

		var cost decimal.Decimal
		switch {
		case p.MonthlyCost != nil:
			cost = *p.MonthlyCost
		case p.JobCatalogID != "":
			job, err := h.Store.GetJob(ctx, budget.JobID(p.JobCatalogID))
			if err != nil {
				h.fail(w, "Failed to load job", err)
				return
			}
			if job == nil {
				writeError(w, http.StatusBadRequest, "Invalid job catalog ID", nil)
				return
			}
			cost = job.MonthlyCost
		default:
			writeError(w, http.StatusBadRequest, "Position "+strconv.Itoa(i)+" needs monthly_cost or job_catalog_id", nil)
			return
		}

		positions = append(positions, budget.Position{
			JobCatalogID:       budget.JobID(p.JobCatalogID),
			MonthlyCost:        cost,
			StartDate:          start,
			OverheadMultiplier: p.OverheadMultiplier,
		})
	}

	report, err := h.Engine.PreviewNewPositions(ctx, unit.ID, positions, h.monthsAhead(req.MonthsAhead))
	if err != nil {
		h.fail(w, "Failed to preview new positions", err)
		return
	}

	h.logBottleneck(unit.ID, report, logrus.Fields{"positions": len(positions)})
	writeJSON(w, http.StatusOK, ToImpactsDTO(report))
}

func (h *Handler) monthsAhead(requested *int) int {
	if requested != nil {
		return *requested
	}
	return h.MonthsAhead
}

func (h *Handler) logBottleneck(id budget.OrgUnitID, report budget.ImpactReport, fields logrus.Fields) {
	b, ok := report.Bottleneck()
	if !ok {
		return
	}
	h.Log.WithFields(fields).WithFields(logrus.Fields{
		"org_unit_id":     id,
		"bottleneck":      b.Month.String(),
		"remaining_after": b.RemainingAfter.String(),
	}).Info("preview turns a month red")
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// ListAuditLogs returns recent audit entries, newest first.
// GET /api/admin/audit-logs?limit=50
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Store.ListAudit(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to list audit logs", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			At:         e.At,
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Changes:    e.Changes,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAlerts runs the health monitor check once and returns the first RED
// month of every active org unit.
// GET /api/admin/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Monitor.Check(r.Context())
	if err != nil {
		h.fail(w, "Failed to check budget health", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// audit records a change. Failures are logged, never surfaced to the client.
func (h *Handler) audit(r *http.Request, action budget.AuditAction, entityType, entityID string, changes map[string]any) {
	err := h.Store.AppendAudit(r.Context(), budget.AuditEntry{
		At:         h.now(),
		ActorID:    actorID(r),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
	})
	if err != nil {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Warn("failed to write audit entry")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadOrgUnit(w http.ResponseWriter, r *http.Request) (*budget.OrgUnit, bool) {
	unit, err := h.Store.GetOrgUnit(r.Context(), budget.OrgUnitID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to load org unit", err)
		return nil, false
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Org unit not found", nil)
		return nil, false
	}
	return unit, true
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*budget.JobCatalog, bool) {
	job, err := h.Store.GetJob(r.Context(), budget.JobID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to load job", err)
		return nil, false
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return nil, false
	}
	return job, true
}

func (h *Handler) loadRequisition(w http.ResponseWriter, r *http.Request) (*budget.Requisition, bool) {
	req, err := h.Store.GetRequisition(r.Context(), budget.RequisitionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to load requisition", err)
		return nil, false
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Requisition not found", nil)
		return nil, false
	}
	return req, true
}

func (h *Handler) loadOffer(w http.ResponseWriter, r *http.Request) (*budget.Offer, bool) {
	offer, err := h.Store.GetOffer(r.Context(), budget.OfferID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to load offer", err)
		return nil, false
	}
	if offer == nil {
		writeError(w, http.StatusNotFound, "Offer not found", nil)
		return nil, false
	}
	return offer, true
}

// fail maps a domain error to its HTTP status. Only unexpected errors are
// logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error(message)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case budget.IsNotFound(err):
		return http.StatusNotFound
	case budget.IsConflict(err):
		return http.StatusConflict
	case budget.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func actorID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
		return id
	}
	return "system"
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func currencyOrDefault(c string) string {
	if c == "" {
		return budget.DefaultCurrency
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
