/*
edits_test.go - HTTP tests for partial updates, deletes, filters and
reference exports

Tests for:
- Org unit PATCH feeding the engine, DELETE with and without records
- Job catalog GET, PATCH, soft and hard DELETE
- Requisition PATCH through the transition rules
- Offer PATCH lifecycle guard, DELETE, list filters
- Org unit and job catalog CSV exports
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/headcount-budget/budget"
)

func lastAudit(t *testing.T, h *Handler) budget.AuditEntry {
	t.Helper()
	entries, err := h.Store.ListAudit(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0]
}

// openRequisition creates a requisition for job-be and moves it to OPEN with
// a February target.
func openRequisition(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be", "target_start_month": "2026-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[RequisitionDTO](t, rec).ID

	rec = do(t, srv, http.MethodPost, "/api/requisitions/"+id+"/transition", `{"status": "OPEN"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

// =============================================================================
// ORG UNITS
// =============================================================================

func TestUpdateOrgUnit_OverheadFeedsEngine(t *testing.T) {
	// GIVEN: An OPEN requisition estimating 10000 for February at overhead 1.8
	// WHEN: The org unit overhead is lowered to 1.5
	// THEN: February pipeline drops from 18000 to 15000

	h, srv := newTestServer(t)
	seedEngineering(t, h)
	openRequisition(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	assertDecimal(t, "18000", decodeBody[MonthHealthDTO](t, rec).PipelinePotential)

	rec = do(t, srv, http.MethodPatch, "/api/org-units/ou-eng", `{"overhead_multiplier": "1.5", "name": "Platform"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unit := decodeBody[OrgUnitDTO](t, rec)
	assertDecimal(t, "1.5", unit.OverheadMultiplier)
	assert.Equal(t, "Platform", unit.Name)
	assert.Equal(t, "BRL", unit.Currency, "omitted fields are unchanged")
	assert.True(t, unit.Active)

	entry := lastAudit(t, h)
	assert.Equal(t, budget.AuditUpdate, entry.Action)
	assert.Equal(t, "ou-eng", entry.EntityID)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	assertDecimal(t, "15000", decodeBody[MonthHealthDTO](t, rec).PipelinePotential)
}

func TestUpdateOrgUnit_Validation(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"negative overhead", "/api/org-units/ou-eng", `{"overhead_multiplier": "-1"}`, http.StatusBadRequest},
		{"blank name", "/api/org-units/ou-eng", `{"name": " "}`, http.StatusBadRequest},
		{"malformed body", "/api/org-units/ou-eng", `{"name":`, http.StatusBadRequest},
		{"unknown unit", "/api/org-units/ou-none", `{"name": "Ops"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/org-units/ou-eng", "")
	assertDecimal(t, "1.8", decodeBody[OrgUnitDTO](t, rec).OverheadMultiplier)
}

func TestDeleteOrgUnit(t *testing.T) {
	// GIVEN: An empty org unit and ou-eng holding budgets
	// WHEN: Deleting both
	// THEN: The empty one is gone; ou-eng is refused with 409 and kept

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/org-units", `{"id": "ou-design", "name": "Design"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/org-units/ou-design", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, budget.AuditDelete, lastAudit(t, h).Action)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-design", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/org-units/ou-eng", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot delete org unit", decodeBody[ErrorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/org-units/ou-none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// JOB CATALOG
// =============================================================================

func TestJobCatalog_GetUpdateDelete(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodGet, "/api/job-catalog/job-be", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Backend Engineer", decodeBody[JobDTO](t, rec).Title)

	rec = do(t, srv, http.MethodGet, "/api/job-catalog/job-none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPatch, "/api/job-catalog/job-be", `{"monthly_cost": "12000", "level": "Senior"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decodeBody[JobDTO](t, rec)
	assertDecimal(t, "12000", job.MonthlyCost)
	assert.Equal(t, "Senior", job.Level)
	assert.Equal(t, "Backend Engineer", job.Title)

	rec = do(t, srv, http.MethodPatch, "/api/job-catalog/job-be", `{"monthly_cost": "-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Default delete only deactivates
	rec = do(t, srv, http.MethodDelete, "/api/job-catalog/job-be", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, budget.AuditDeactivate, lastAudit(t, h).Action)

	rec = do(t, srv, http.MethodGet, "/api/job-catalog/job-be", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[JobDTO](t, rec).Active)

	rec = do(t, srv, http.MethodDelete, "/api/job-catalog/job-be?hard=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/job-catalog/job-be?hard=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, budget.AuditHardDelete, lastAudit(t, h).Action)

	rec = do(t, srv, http.MethodGet, "/api/job-catalog/job-be", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REQUISITIONS
// =============================================================================

func TestUpdateRequisition(t *testing.T) {
	// GIVEN: A DRAFT requisition
	// WHEN: Patching it straight to INTERVIEWING, then to OPEN with a new estimate
	// THEN: The skip is refused; the legal edit puts 5000 x 1.8 in the pipeline

	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodPost, "/api/requisitions", `{"org_unit_id": "ou-eng", "job_catalog_id": "job-be"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[RequisitionDTO](t, rec).ID

	rec = do(t, srv, http.MethodPatch, "/api/requisitions/"+id, `{"status": "INTERVIEWING", "title": "Skipped"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/requisitions/"+id, "")
	assert.Equal(t, "Backend Engineer", decodeBody[RequisitionDTO](t, rec).Title)

	body := `{"status": "OPEN", "priority": "P0", "target_start_month": "2026-02", "estimated_monthly_cost": "5000"}`
	rec = do(t, srv, http.MethodPatch, "/api/requisitions/"+id, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	req := decodeBody[RequisitionDTO](t, rec)
	assert.Equal(t, "OPEN", req.Status)
	assert.Equal(t, "P0", req.Priority)
	require.NotNil(t, req.TargetStartMonth)
	assert.Equal(t, "2026-02", req.TargetStartMonth.String())
	assert.Equal(t, budget.AuditUpdate, lastAudit(t, h).Action)

	rec = do(t, srv, http.MethodGet, "/api/org-units/ou-eng/month-health?month=2026-02", "")
	assertDecimal(t, "9000", decodeBody[MonthHealthDTO](t, rec).PipelinePotential)

	tests := []struct {
		name string
		body string
	}{
		{"bad priority", `{"priority": "P9"}`},
		{"bad status", `{"status": "ARCHIVED"}`},
		{"bad month", `{"target_start_month": "2026-13"}`},
		{"negative estimate", `{"estimated_monthly_cost": "-5"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPatch, "/api/requisitions/"+id, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec = do(t, srv, http.MethodPatch, "/api/requisitions/r-none", `{"title": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// OFFERS
// =============================================================================

func TestUpdateOffer_TermsFeedPreview(t *testing.T) {
	// GIVEN: A DRAFT offer of 10000 starting Feb 1
	// WHEN: It is patched to 12000 starting Mar 1
	// THEN: The preview charges nothing in February and 12000 x 1.8 in March

	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPatch, "/api/offers/"+id, `{"proposed_monthly_cost": "12000", "start_date": "2026-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	offer := decodeBody[OfferDTO](t, rec)
	assertDecimal(t, "12000", offer.ProposedMonthlyCost)
	require.NotNil(t, offer.StartDate)
	assert.Equal(t, "2026-03-01", *offer.StartDate)
	assert.Equal(t, "Ana", offer.CandidateName)

	entry := lastAudit(t, h)
	assert.Equal(t, budget.AuditUpdate, entry.Action)
	assert.Equal(t, "12000", entry.Changes["proposed_monthly_cost"])

	rec = do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`"], "months_ahead": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[struct {
		Impacts map[string]MonthImpactDTO `json:"impacts"`
	}](t, rec)
	assertDecimal(t, "0", got.Impacts["2026-02"].Delta)
	assertDecimal(t, "-21600", got.Impacts["2026-03"].Delta)
}

func TestUpdateOffer_FrozenOnceApproved(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/"+id+"/propose", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPatch, "/api/offers/"+id, `{"notes": "counter offer"}`)
	require.Equal(t, http.StatusOK, rec.Code, "PROPOSED is still editable")

	rec = do(t, srv, http.MethodPost, "/api/offers/"+id+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPatch, "/api/offers/"+id, `{"proposed_monthly_cost": "1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot update offer in APPROVED status", decodeBody[ErrorResponse](t, rec).Details)

	rec = do(t, srv, http.MethodGet, "/api/offers/"+id, "")
	assertDecimal(t, "10000", decodeBody[OfferDTO](t, rec).ProposedMonthlyCost)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad date", "/api/offers/" + id, `{"start_date": "March"}`, http.StatusBadRequest},
		{"blank candidate", "/api/offers/" + id, `{"candidate_name": ""}`, http.StatusBadRequest},
		{"unknown offer", "/api/offers/o-none", `{"notes": "x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteOffer(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodDelete, "/api/offers/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	entry := lastAudit(t, h)
	assert.Equal(t, budget.AuditDelete, entry.Action)
	assert.Equal(t, "DRAFT", entry.Changes["status"])

	rec = do(t, srv, http.MethodGet, "/api/offers/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/offers/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOffers_Filters(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	proposed := createOffer(t, srv, "10000", "2026-02-01")
	createOffer(t, srv, "9000", "2026-03-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/"+proposed+"/propose", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/offers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]OfferDTO](t, rec), 2)

	rec = do(t, srv, http.MethodGet, "/api/offers?status=PROPOSED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	offers := decodeBody[[]OfferDTO](t, rec)
	require.Len(t, offers, 1)
	assert.Equal(t, proposed, offers[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/offers?org_unit_id=ou-eng&requisition_id="+offers[0].RequisitionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]OfferDTO](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/offers?status=proposed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewOfferImpact_RepeatedIDCountsOnce(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)
	id := createOffer(t, srv, "10000", "2026-02-01")

	rec := do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`"], "months_ahead": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	single := rec.Body.String()

	rec = do(t, srv, http.MethodPost, "/api/offers/preview-impact", `{"offer_ids": ["`+id+`", "`+id+`"], "months_ahead": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, single, rec.Body.String())
}

// =============================================================================
// REFERENCE EXPORTS
// =============================================================================

func TestExportOrgUnitsAndJobs(t *testing.T) {
	h, srv := newTestServer(t)
	seedEngineering(t, h)

	rec := do(t, srv, http.MethodGet, "/api/export/org-units", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "org_units.csv")
	assert.Equal(t, "id,name,currency,overhead_multiplier,active\nou-eng,Engineering,BRL,1.8,true\n", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/export/job-catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "job_catalog.csv")
	want := "id,job_family,level,title,monthly_cost,hierarchy_level,currency,active\n" +
		"job-be,,,Backend Engineer,10000.00,0,BRL,true\n"
	assert.Equal(t, want, rec.Body.String())
}
