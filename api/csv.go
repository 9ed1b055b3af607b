/*
csv.go - CSV import and export of budgets, actuals and reference data

PURPOSE:
  Finance teams keep approved budgets and realized spend in spreadsheets.
  These endpoints move them in and out of the service one org unit at a time.

FORMATS:
  budgets:     month,approved_amount,currency,locked
  actuals:     month,amount,currency,finalized
  org units:   id,name,currency,overhead_multiplier,active (export only)
  job catalog: id,job_family,level,title,monthly_cost,hierarchy_level,currency,active (export only)

  Columns are matched by header name, so order does not matter. currency
  and the boolean column are optional.

IMPORT RULES:
  1. Every row is validated before anything is written; one bad row rejects
     the whole file with 400 and the row number
  2. Rows match existing records by month: create or update
  3. Budget rows for a locked month are skipped and counted, never changed
  4. A budget row with locked=true locks the month after writing it

  The body is either raw text/csv or a multipart form with a "file" field.

SEE ALSO:
  - handlers.go: Shared helpers and audit
  - store/sqlite/sqlite.go: UpsertBudget, UpsertActual, LockMonth
*/
package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/headcount-budget/budget"
)

// maxImportBytes bounds an uploaded CSV file.
const maxImportBytes = 10 << 20

var (
	budgetColumns  = []string{"month", "approved_amount", "currency", "locked"}
	actualColumns  = []string{"month", "amount", "currency", "finalized"}
	orgUnitColumns = []string{"id", "name", "currency", "overhead_multiplier", "active"}
	jobColumns     = []string{"id", "job_family", "level", "title", "monthly_cost", "hierarchy_level", "currency", "active"}
)

// =============================================================================
// EXPORT
// =============================================================================

// ExportOrgUnits streams every org unit as CSV, ordered by name.
// GET /api/export/org-units
func (h *Handler) ExportOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListOrgUnits(r.Context())
	if err != nil {
		h.fail(w, "Failed to list org units", err)
		return
	}

	rows := make([][]string, len(units))
	for i, u := range units {
		rows[i] = []string{string(u.ID), u.Name, u.Currency, u.OverheadMultiplier.String(), strconv.FormatBool(u.Active)}
	}
	h.writeCSV(w, "org_units.csv", orgUnitColumns, rows)
}

// ExportJobs streams the job catalog as CSV.
// GET /api/export/job-catalog
func (h *Handler) ExportJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context())
	if err != nil {
		h.fail(w, "Failed to list job catalog", err)
		return
	}

	rows := make([][]string, len(jobs))
	for i, j := range jobs {
		rows[i] = []string{
			string(j.ID), j.JobFamily, j.Level, j.Title, j.MonthlyCost.StringFixed(2),
			strconv.Itoa(j.HierarchyLevel), j.Currency, strconv.FormatBool(j.Active),
		}
	}
	h.writeCSV(w, "job_catalog.csv", jobColumns, rows)
}

// ExportBudgets streams the budgets of an org unit as CSV.
// GET /api/export/budgets/{id}
func (h *Handler) ExportBudgets(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	budgets, err := h.Store.ListBudgets(r.Context(), unit.ID)
	if err != nil {
		h.fail(w, "Failed to list budgets", err)
		return
	}

	rows := make([][]string, len(budgets))
	for i, b := range budgets {
		rows[i] = []string{b.Month.String(), b.ApprovedAmount.StringFixed(2), b.Currency, strconv.FormatBool(b.Locked)}
	}
	h.writeCSV(w, "budgets_"+unit.Name+".csv", budgetColumns, rows)
}

// ExportActuals streams the actuals of an org unit as CSV.
// GET /api/export/actuals/{id}
func (h *Handler) ExportActuals(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	actuals, err := h.Store.ListActuals(r.Context(), unit.ID)
	if err != nil {
		h.fail(w, "Failed to list actuals", err)
		return
	}

	rows := make([][]string, len(actuals))
	for i, a := range actuals {
		rows[i] = []string{a.Month.String(), a.Amount.StringFixed(2), a.Currency, strconv.FormatBool(a.Finalized)}
	}
	h.writeCSV(w, "actuals_"+unit.Name+".csv", actualColumns, rows)
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, header []string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(header)
	cw.WriteAll(rows)
	if err := cw.Error(); err != nil {
		h.Log.WithError(err).WithField("file", filename).Warn("csv export interrupted")
	}
}

// =============================================================================
// IMPORT
// =============================================================================

type budgetRow struct {
	month    budget.Month
	amount   decimal.Decimal
	currency string
	locked   bool
}

// ImportBudgets creates or updates budgets from CSV.
// POST /api/import/budgets/{id}
func (h *Handler) ImportBudgets(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	records, err := readCSVUpload(w, r, "month", "approved_amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}

	rows := make([]budgetRow, 0, len(records))
	for i, rec := range records {
		row, err := parseBudgetRow(rec)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid row %d", i+2), err)
			return
		}
		if row.currency == "" {
			row.currency = unit.Currency
		}
		rows = append(rows, row)
	}

	ctx := r.Context()
	now := h.now()
	actor := actorID(r)
	var result ImportResultDTO
	for _, row := range rows {
		_, created, err := h.Store.UpsertBudget(ctx, budget.Budget{
			OrgUnitID:      unit.ID,
			Month:          row.month,
			ApprovedAmount: row.amount,
			Currency:       row.currency,
		}, now)
		switch {
		case errors.Is(err, budget.ErrBudgetLocked):
			result.Skipped++
			continue
		case err != nil:
			h.fail(w, "Failed to import budgets", err)
			return
		case created:
			result.Created++
		default:
			result.Updated++
		}

		if row.locked {
			if _, err := h.Store.LockMonth(ctx, unit.ID, row.month, actor, now); err != nil {
				h.fail(w, "Failed to lock imported month", err)
				return
			}
		}
	}

	h.recordImport(r, "budget", unit.ID, result)
	writeJSON(w, http.StatusOK, result)
}

type actualRow struct {
	month     budget.Month
	amount    decimal.Decimal
	currency  string
	finalized bool
}

// ImportActuals creates or updates actuals from CSV.
// POST /api/import/actuals/{id}
func (h *Handler) ImportActuals(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.loadOrgUnit(w, r)
	if !ok {
		return
	}

	records, err := readCSVUpload(w, r, "month", "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}

	rows := make([]actualRow, 0, len(records))
	for i, rec := range records {
		row, err := parseActualRow(rec)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid row %d", i+2), err)
			return
		}
		if row.currency == "" {
			row.currency = unit.Currency
		}
		rows = append(rows, row)
	}

	ctx := r.Context()
	now := h.now()
	var result ImportResultDTO
	for _, row := range rows {
		_, created, err := h.Store.UpsertActual(ctx, budget.Actual{
			OrgUnitID: unit.ID,
			Month:     row.month,
			Amount:    row.amount,
			Currency:  row.currency,
			Finalized: row.finalized,
			CreatedAt: now,
		})
		if err != nil {
			h.fail(w, "Failed to import actuals", err)
			return
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	h.recordImport(r, "actual", unit.ID, result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordImport(r *http.Request, entityType string, id budget.OrgUnitID, result ImportResultDTO) {
	h.audit(r, budget.AuditImport, entityType, string(id), map[string]any{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
	h.Log.WithFields(logrus.Fields{
		"org_unit_id": id,
		"entity_type": entityType,
		"created":     result.Created,
		"updated":     result.Updated,
		"skipped":     result.Skipped,
	}).Info("csv import finished")
}

func parseBudgetRow(rec map[string]string) (budgetRow, error) {
	month, err := budget.ParseMonth(rec["month"])
	if err != nil {
		return budgetRow{}, err
	}
	amount, err := decimal.NewFromString(rec["approved_amount"])
	if err != nil {
		return budgetRow{}, fmt.Errorf("approved_amount: %w", err)
	}
	if amount.IsNegative() {
		return budgetRow{}, fmt.Errorf("approved_amount must not be negative")
	}
	locked, err := parseOptionalBool(rec["locked"])
	if err != nil {
		return budgetRow{}, fmt.Errorf("locked: %w", err)
	}
	return budgetRow{month: month, amount: amount, currency: rec["currency"], locked: locked}, nil
}

func parseActualRow(rec map[string]string) (actualRow, error) {
	month, err := budget.ParseMonth(rec["month"])
	if err != nil {
		return actualRow{}, err
	}
	amount, err := decimal.NewFromString(rec["amount"])
	if err != nil {
		return actualRow{}, fmt.Errorf("amount: %w", err)
	}
	finalized, err := parseOptionalBool(rec["finalized"])
	if err != nil {
		return actualRow{}, fmt.Errorf("finalized: %w", err)
	}
	return actualRow{month: month, amount: amount, currency: rec["currency"], finalized: finalized}, nil
}

func parseOptionalBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(s))
}

// readCSVUpload returns one map per data row keyed by lower-cased header.
func readCSVUpload(w http.ResponseWriter, r *http.Request, required ...string) ([]map[string]string, error) {
	body, err := csvBody(w, r)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	cr := csv.NewReader(body)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}
	for _, col := range required {
		if !contains(header, col) {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []map[string]string
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(fields) {
				rec[col] = strings.TrimSpace(fields[i])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func csvBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return http.MaxBytesReader(w, r.Body, maxImportBytes), nil
	}
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	return file, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
