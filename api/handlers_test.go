/*
handlers_test.go - HTTP tests for the budget API

Tests for:
- Org unit creation, validation and audit
- Budget upsert and month locking
- Month health and summary endpoints
- Requisition and offer workflows
- What-if previews
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/headcount-budget/budget"
	"github.com/warp/headcount-budget/store/sqlite"
)

var testNow = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := NewHandler(store, logger)
	h.Engine.Now = func() time.Time { return testNow }
	return h, NewRouter(h, []string{"*"})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// seedEngineering creates ou-eng (overhead 1.8) with a 100000 budget for
// January and February 2026 and a backend job costing 10000.
func seedEngineering(t *testing.T, h *Handler) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.Store.SaveOrgUnit(ctx, budget.OrgUnit{
		ID: "ou-eng", Name: "Engineering", Currency: "BRL",
		OverheadMultiplier: decimal.RequireFromString("1.8"), Active: true, CreatedAt: testNow,
	}))
	for _, m := range []string{"2026-01", "2026-02"} {
		_, _, err := h.Store.UpsertBudget(ctx, budget.Budget{
			OrgUnitID: "ou-eng", Month: budget.MustParseMonth(m), ApprovedAmount: decimal.NewFromInt(100000),
		}, testNow)
		require.NoError(t, err)
	}
	require.NoError(t, h.Store.SaveJob(ctx, budget.JobCatalog{
		ID: "job-be", Title: "Backend Engineer", MonthlyCost: decimal.NewFromInt(10000), Active: true,
	}))
}

// =============================================================================
// ORG UNITS
// =============================================================================

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrgUnit_DefaultsAndAudit(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating an org unit with only a name
	// THEN: Overhead and currency take defaults and the actor is audited

	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/org-units", `{"name": "Design"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	unit := decodeBody[OrgUnitDTO](t, rec)
	assert.NotEmpty(t, unit.ID)
	assert.Equal(t, "BRL", unit.Currency)
	assertDecimal(t, "1", unit.OverheadMultiplier)
	assert.True(t, unit.Active)

	rec = do(t, srv, http.MethodGet, "/api/admin/audit-logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ActorID)
	assert.Equal(t, "CREATE", entries[0].Action)
	assert.Equal(t, unit.ID, entries[0].EntityID)
}

func TestCreateOrgUnit_Validation(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing name", `{"name": " "}`, http.StatusBadRequest},
		{"negative overhead", `{"name": "Ops", "overhead_multiplier": "-0.5"}`, http.StatusBadRequest},
		{"malformed body", `{"name":`, http.StatusBadRequest},
		{"duplicate id", `{"id": "ou-eng", "name": "Eng again"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/org-units", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/org-units/ou-none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BUDGETS
// =============================================================================

func TestUpsertBudget_LockedMonthConflicts(t *testing.T) {
	// GIVEN: An org unit with a March budget
	// WHEN: March is locked and updated again
	// THEN: The update is refused with 409 and the amount is unchanged

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-03", "approved_amount": "90000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-03", "approved_amount": "95000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertDecimal(t, "95000", decodeBody[BudgetDTO](t, rec).ApprovedAmount)

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/lock-month", `{"month": "2026-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	locked := decodeBody[BudgetDTO](t, rec)
	assert.True(t, locked.Locked)
	assert.Equal(t, "alice", locked.LockedBy)

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-03", "approved_amount": "1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/budgets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	budgets := decodeBody[[]BudgetDTO](t, rec)
	require.Len(t, budgets, 3)
	assert.Equal(t, "2026-03", budgets[2].Month.String())
	assertDecimal(t, "95000", budgets[2].ApprovedAmount)
}

func TestBudgetEndpoints_Validation(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-3", "approved_amount": "1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-03", "approved_amount": "-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/lock-month", `{"month": "2027-01"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-none/budgets", `{"month": "2026-03", "approved_amount": "1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// HEALTH & SUMMARY
// =============================================================================

func TestMonthHealth_ActualBaselineIsYellow(t *testing.T) {
	// GIVEN: approved 850000 and an actual of 775000 for January
	// WHEN: Requesting January health
	// THEN: remaining is 75000, under 20% of approved, so YELLOW

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/org-units/ou-eng/budgets", `{"month": "2026-01", "approved_amount": "850000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/forecasts", `{"month": "2026-01", "amount": "780000", "source": "fp&a"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodPost, "/api/org-units/ou-eng/actuals", `{"month": "2026-01", "amount": "775000", "finalized": true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	health := decodeBody[MonthHealthDTO](t, rec)
	assert.Equal(t, "2026-01", health.Month.String())
	assertDecimal(t, "775000", health.Baseline)
	assert.Equal(t, "actual", health.BaselineSource)
	assertDecimal(t, "75000", health.Remaining)
	assert.Equal(t, "yellow", health.Status)

	// Defaults to the current month
	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-01", decodeBody[MonthHealthDTO](t, rec).Month.String())

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=January", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary_LastMonthFirst(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodGet, "/api/org-units/ou-eng/summary?months=6", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decodeBody[SummaryDTO](t, rec)
	assert.Equal(t, "Engineering", summary.OrgUnitName)
	require.Len(t, summary.Months, 7)
	assert.Equal(t, "2025-12", summary.Months[0].Month.String())
	assert.Equal(t, "2026-01", summary.Months[1].Month.String())
	assert.Equal(t, "2026-06", summary.Months[6].Month.String())
	assert.Equal(t, "red", summary.Months[0].Status, "no budget last month")
	assert.Equal(t, "green", summary.Months[1].Status)

	tests := []struct {
		path string
		want int
	}{
		{"/api/org-units/ou-eng/summary?months=abc", http.StatusBadRequest},
		{"/api/org-units/ou-eng/summary?months=-1", http.StatusBadRequest},
		{"/api/org-units/ou-eng/summary?months=500", http.StatusBadRequest},
		{"/api/org-units/ou-none/summary", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodGet, tt.path, "")
		assert.Equal(t, tt.want, rec.Code, tt.path)
	}
}

// =============================================================================
// REQUISITIONS
// =============================================================================

func TestCreateRequisition_DefaultsFromJobCatalog(t *testing.T) {
	// GIVEN: A job costing 10000
	// WHEN: Creating a requisition without estimate, title or priority
	// THEN: It is a P2 DRAFT estimated at the catalog cost

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be", "target_start_month": "2026-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := decodeBody[RequisitionDTO](t, rec)
	assert.Equal(t, "DRAFT", req.Status)
	assert.Equal(t, "P2", req.Priority)
	assert.Equal(t, "Backend Engineer", req.Title)
	require.NotNil(t, req.EstimatedMonthlyCost)
	assertDecimal(t, "10000", *req.EstimatedMonthlyCost)

	// Draft requisitions are not in the pipeline
	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	assertDecimal(t, "0", decodeBody[MonthHealthDTO](t, rec).PipelinePotential)

	rec = do(t, srv, http.MethodPost, "/api/requisitions/"+req.ID+"/transition", `{"status": "OPEN"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	assertDecimal(t, "18000", decodeBody[MonthHealthDTO](t, rec).PipelinePotential)
}

func TestCreateRequisition_Validation(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	tests := []struct {
		name string
		body string
	}{
		{"unknown job", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-none"}`},
		{"unknown org unit", `{"org_unit_id": "ou-none", "job_catalog_id": "job-be"}`},
		{"bad priority", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be", "priority": "P9"}`},
		{"bad month", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be", "target_start_month": "02/2026"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/requisitions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-none"}`)
	assert.Equal(t, "Invalid job catalog ID", decodeBody[ErrorResponse](t, rec).Error)
}

func TestTransitionRequisition_RejectsIllegalMove(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[RequisitionDTO](t, rec).ID

	rec = do(t, srv, http.MethodPost, "/api/requisitions/"+id+"/transition", `{"status": "FILLED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/requisitions/"+id+"/transition", `{"status": "ARCHIVED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/requisitions/r-none/transition", `{"status": "OPEN"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/requisitions?org_unit_id=ou-eng&status=DRAFT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]RequisitionDTO](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/requisitions?status=open", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OFFERS
// =============================================================================

// createOffer creates a requisition and a DRAFT offer of cost starting on
// start, returning the offer ID.
func createOffer(t *testing.T, srv http.Handler, cost, start string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reqID := decodeBody[RequisitionDTO](t, rec).ID

	body := `{"requisition_id": "` + reqID + `", "candidate_name": "Ana", "proposed_monthly_cost": "` + cost + `", "start_date": "` + start + `"}`
	rec = do(t, srv, http.MethodPost, "/api/offers", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	offer := decodeBody[OfferDTO](t, rec)
	require.Equal(t, "DRAFT", offer.Status)
	require.Equal(t, "ou-eng", offer.OrgUnitID)
	return offer.ID
}

func TestOfferLifecycle_AcceptCommitsCostAndFillsRequisition(t *testing.T) {
	// GIVEN: A draft offer of 10000 starting Feb 15
	// WHEN: It is proposed, approved, sent and accepted at 11000
	// THEN: February committed is 11000 x 1.8 x 14/28 and the requisition is FILLED

	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-15")

	for _, action := range []string{"propose", "approve", "send"} {
		rec := do(t, srv, http.MethodPost, "/api/offers/"+id+"/"+action, "")
		require.Equal(t, http.StatusOK, rec.Code, action+": "+rec.Body.String())
	}

	rec := do(t, srv, http.MethodPost, "/api/offers/"+id+"/accept", `{"final_monthly_cost": "11000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	offer := decodeBody[OfferDTO](t, rec)
	assert.Equal(t, "ACCEPTED", offer.Status)
	require.NotNil(t, offer.FinalMonthlyCost)
	assertDecimal(t, "11000", *offer.FinalMonthlyCost)

	rec = do(t, srv, http.MethodGet, "/api/requisitions/"+offer.RequisitionID, "")
	assert.Equal(t, "FILLED", decodeBody[RequisitionDTO](t, rec).Status)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	health := decodeBody[MonthHealthDTO](t, rec)
	assertDecimal(t, "9900", health.Committed)
	assertDecimal(t, "90100", health.Remaining)
	assert.Equal(t, "green", health.Status)
}

func TestOfferActions_OutOfOrderIsBadRequest(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/"+id+"/send", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot send offer in DRAFT status", decodeBody[ErrorResponse](t, rec).Details)

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/accept", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/offers/o-none/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOfferHoldAndChangeStartDate(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/"+id+"/propose", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/hold", `{"reason": "budget freeze", "until": "2026-04-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	held := decodeBody[OfferDTO](t, rec)
	assert.Equal(t, "HOLD", held.Status)
	require.NotNil(t, held.HoldUntil)
	assert.Equal(t, "2026-04-01", *held.HoldUntil)

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/change-start-date", `{"start_date": "2026-05-04", "notes": "visa delay"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[OfferDTO](t, rec)
	require.NotNil(t, moved.StartDate)
	assert.Equal(t, "2026-05-04", *moved.StartDate)
	assert.Contains(t, moved.Notes, "[Date change] visa delay")

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/change-start-date", `{"start_date": "soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOffer_InvalidRequisition(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/offers", `{"requisition_id": "r-none", "candidate_name": "Ana", "proposed_monthly_cost": "10000"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid requisition ID", decodeBody[ErrorResponse](t, rec).Error)
}

// =============================================================================
// WHAT-IF PREVIEWS
// =============================================================================

func TestPreviewOfferImpact(t *testing.T) {
	// GIVEN: A DRAFT offer of 30000 starting Feb 1 (54000 with overhead)
	// WHEN: Previewing it over three months
	// THEN: February and March turn RED, only February is the bottleneck

	h, srv := newTestServer(t)
	seedEngineering(t, h)
	_, _, err := h.Store.UpsertBudget(context.Background(), budget.Budget{
		OrgUnitID: "ou-eng", Month: budget.MustParseMonth("2026-03"), ApprovedAmount: decimal.NewFromInt(100000),
	}, testNow)
	require.NoError(t, err)
	_, _, err = h.Store.UpsertForecast(context.Background(), budget.Forecast{
		OrgUnitID: "ou-eng", Month: budget.MustParseMonth("2026-02"), Amount: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	_, _, err = h.Store.UpsertForecast(context.Background(), budget.Forecast{
		OrgUnitID: "ou-eng", Month: budget.MustParseMonth("2026-03"), Amount: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)

	id := createOffer(t, srv, "30000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`"], "months_ahead": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"2026-01"`), strings.Index(body, `"2026-02"`))
	assert.Less(t, strings.Index(body, `"2026-02"`), strings.Index(body, `"2026-03"`))

	got := decodeBody[struct {
		Impacts map[string]MonthImpactDTO `json:"impacts"`
	}](t, rec)
	require.Len(t, got.Impacts, 3)

	jan := got.Impacts["2026-01"]
	assertDecimal(t, "0", jan.Delta)
	assert.Equal(t, "green", jan.StatusAfter)
	assert.False(t, jan.IsBottleneck)

	feb := got.Impacts["2026-02"]
	assertDecimal(t, "50000", feb.RemainingBefore)
	assertDecimal(t, "-54000", feb.Delta)
	assertDecimal(t, "-4000", feb.RemainingAfter)
	assert.Equal(t, "green", feb.StatusBefore)
	assert.Equal(t, "red", feb.StatusAfter)
	assert.True(t, feb.IsBottleneck)

	mar := got.Impacts["2026-03"]
	assert.Equal(t, "red", mar.StatusAfter)
	assert.False(t, mar.IsBottleneck)
}

func TestPreviewOfferImpact_Errors(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No offer IDs provided", decodeBody[ErrorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["o-none"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`", "o-none"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`"], "months_ahead": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewNewPositions_CatalogCostAndYearBoundary(t *testing.T) {
	// GIVEN: A position priced from the catalog (10000) with overhead 1.0
	// WHEN: Previewing 13 months from January 2026
	// THEN: The window runs through January 2027 in order and the cost
	//       applies from the start month on

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	body := `{"org_unit_id": "ou-eng", "months_ahead": 13, "positions": [
		{"job_catalog_id": "job-be", "start_date": "2026-02-01", "overhead_multiplier": "1.0"}
	]}`
	rec := do(t, srv, http.MethodPost, "/api/offers/preview-new-positions", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	raw := rec.Body.String()
	assert.Less(t, strings.Index(raw, `"2026-12"`), strings.Index(raw, `"2027-01"`))

	got := decodeBody[struct {
		Impacts map[string]MonthImpactDTO `json:"impacts"`
	}](t, rec)
	require.Len(t, got.Impacts, 13)
	assertDecimal(t, "0", got.Impacts["2026-01"].Delta)
	assertDecimal(t, "-10000", got.Impacts["2026-02"].Delta)
	assertDecimal(t, "90000", got.Impacts["2026-02"].RemainingAfter)

	// No budget from March on: the first of those months is the bottleneck
	assert.True(t, got.Impacts["2026-03"].IsBottleneck)
	assert.False(t, got.Impacts["2027-01"].IsBottleneck)
}

func TestPreviewNewPositions_Validation(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown org unit", `{"org_unit_id": "ou-none", "positions": []}`, http.StatusNotFound},
		{"no cost source", `{"org_unit_id": "ou-eng", "positions": [{"start_date": "2026-02-01"}]}`, http.StatusBadRequest},
		{"unknown job", `{"org_unit_id": "ou-eng", "positions": [{"job_catalog_id": "job-none", "start_date": "2026-02-01"}]}`, http.StatusBadRequest},
		{"bad date", `{"org_unit_id": "ou-eng", "positions": [{"monthly_cost": "1", "start_date": "2026-02"}]}`, http.StatusBadRequest},
		{"window too large", `{"org_unit_id": "ou-eng", "months_ahead": 37, "positions": []}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/offers/preview-new-positions", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestImpactsDTO_MarshalKeepsReportOrder(t *testing.T) {
	dto := ToImpactsDTO(budget.ImpactReport{Months: []budget.MonthImpact{
		{Month: budget.MustParseMonth("2026-12"), StatusBefore: budget.HealthGreen, StatusAfter: budget.HealthRed, IsBottleneck: true},
		{Month: budget.MustParseMonth("2027-01"), StatusBefore: budget.HealthGreen, StatusAfter: budget.HealthRed},
	}})

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(dto))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `{"impacts":{"2026-12":{"month":"2026-12"`), out)
	assert.Less(t, strings.Index(out, `"2026-12":`), strings.Index(out, `"2027-01":`))

	empty, err := json.Marshal(ImpactsDTO{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"impacts":{}}`, string(empty))
}
