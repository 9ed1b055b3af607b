/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for testing and demos. Scenarios are YAML files embedded in the
  binary (scenarios/*.yaml).

AVAILABLE SCENARIOS:
  healthy-team:   One unit in GREEN with an accepted hire next month
  tight-quarter:  YELLOW unit where the pending offer creates a RED month
  multi-unit:     GREEN, YELLOW and RED units side by side

RELATIVE MONTHS:
  Months are written as offsets from the current month (-1 is last month),
  so a scenario loaded any day shows the same picture in the summary.

  months:
    - org_unit: ou-eng
      from: -1          # last month
      to: 6             # six months ahead
      budget: "900000"
      forecast: "660000"

  offers:
    - start: {offset: 1, day: 15}   # 15th of next month

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create org units and the job catalog
 3. Write budgets, forecasts and actuals for each month range
 4. Create requisitions, then their offers

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "tight-quarter"}

USAGE VIA CLI:
  hrbudget scenario load tight-quarter

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler struct
  - cmd/hrbudget/main.go: scenario command
*/
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/warp/headcount-budget/budget"
	"github.com/warp/headcount-budget/store/sqlite"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// ErrUnknownScenario is returned when no embedded scenario has the ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioFile struct {
	ScenarioDTO  `yaml:",inline"`
	OrgUnits     []scenarioOrgUnit     `yaml:"org_units"`
	Jobs         []scenarioJob         `yaml:"jobs"`
	Months       []scenarioMonths      `yaml:"months"`
	Requisitions []scenarioRequisition `yaml:"requisitions"`
	Offers       []scenarioOffer       `yaml:"offers"`
}

type scenarioOrgUnit struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	Currency           string `yaml:"currency"`
	OverheadMultiplier string `yaml:"overhead_multiplier"`
}

type scenarioJob struct {
	ID             string `yaml:"id"`
	JobFamily      string `yaml:"job_family"`
	Level          string `yaml:"level"`
	Title          string `yaml:"title"`
	MonthlyCost    string `yaml:"monthly_cost"`
	HierarchyLevel int    `yaml:"hierarchy_level"`
}

// scenarioMonths writes the same figures to every month in [From, To].
// Empty amounts are not written.
type scenarioMonths struct {
	OrgUnit   string `yaml:"org_unit"`
	From      int    `yaml:"from"`
	To        int    `yaml:"to"`
	Budget    string `yaml:"budget"`
	Forecast  string `yaml:"forecast"`
	Actual    string `yaml:"actual"`
	Finalized bool   `yaml:"finalized"`
	Locked    bool   `yaml:"locked"`
}

type scenarioRequisition struct {
	ID                   string `yaml:"id"`
	OrgUnit              string `yaml:"org_unit"`
	Job                  string `yaml:"job"`
	Title                string `yaml:"title"`
	Priority             string `yaml:"priority"`
	Status               string `yaml:"status"`
	TargetOffset         *int   `yaml:"target_offset"`
	EstimatedMonthlyCost string `yaml:"estimated_monthly_cost"`
}

type scenarioOffer struct {
	ID                  string        `yaml:"id"`
	Requisition         string        `yaml:"requisition"`
	CandidateName       string        `yaml:"candidate_name"`
	Status              string        `yaml:"status"`
	ProposedMonthlyCost string        `yaml:"proposed_monthly_cost"`
	Start               *scenarioDate `yaml:"start"`
}

type scenarioDate struct {
	Offset int `yaml:"offset"`
	Day    int `yaml:"day"`
}

// resolve clamps Day into the target month.
func (d scenarioDate) resolve(current budget.Month) time.Time {
	m := current.AddMonths(d.Offset)
	day := d.Day
	if day < 1 {
		day = 1
	}
	if day > m.Days() {
		day = m.Days()
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

func loadScenarioFiles() ([]scenarioFile, error) {
	entries, err := scenarioFS.ReadDir("scenarios")
	if err != nil {
		return nil, err
	}

	files := make([]scenarioFile, 0, len(entries))
	for _, e := range entries {
		data, err := scenarioFS.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, err
		}
		var f scenarioFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", e.Name(), err)
		}
		files = append(files, f)
	}
	return files, nil
}

// Scenarios lists the embedded demo scenarios.
func Scenarios() ([]ScenarioDTO, error) {
	files, err := loadScenarioFiles()
	if err != nil {
		return nil, err
	}
	out := make([]ScenarioDTO, len(files))
	for i, f := range files {
		out[i] = f.ScenarioDTO
	}
	return out, nil
}

// ApplyScenario resets the store and loads the scenario with months placed
// relative to now.
func ApplyScenario(ctx context.Context, store *sqlite.Store, id string, now time.Time) error {
	files, err := loadScenarioFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.ID == id {
			if err := store.Reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			return f.apply(ctx, store, now)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownScenario, id)
}

func (f scenarioFile) apply(ctx context.Context, store *sqlite.Store, now time.Time) error {
	current := budget.MonthOf(now)

	for _, u := range f.OrgUnits {
		overhead, err := parseScenarioDecimal(u.OverheadMultiplier, budget.DefaultOverhead)
		if err != nil {
			return fmt.Errorf("org unit %s: %w", u.ID, err)
		}
		unit := budget.OrgUnit{
			ID:                 budget.OrgUnitID(orNewID(u.ID)),
			Name:               u.Name,
			Currency:           u.Currency,
			OverheadMultiplier: overhead,
			Active:             true,
			CreatedAt:          now,
		}
		if err := store.SaveOrgUnit(ctx, unit); err != nil {
			return fmt.Errorf("org unit %s: %w", u.ID, err)
		}
	}

	for _, j := range f.Jobs {
		cost, err := decimal.NewFromString(j.MonthlyCost)
		if err != nil {
			return fmt.Errorf("job %s: %w", j.ID, err)
		}
		job := budget.JobCatalog{
			ID:             budget.JobID(orNewID(j.ID)),
			JobFamily:      j.JobFamily,
			Level:          j.Level,
			Title:          j.Title,
			MonthlyCost:    cost,
			HierarchyLevel: j.HierarchyLevel,
			Active:         true,
		}
		if err := store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("job %s: %w", j.ID, err)
		}
	}

	for _, m := range f.Months {
		if err := m.apply(ctx, store, current, now); err != nil {
			return fmt.Errorf("months of %s: %w", m.OrgUnit, err)
		}
	}

	for _, r := range f.Requisitions {
		req, err := r.build(ctx, store, current, now)
		if err != nil {
			return fmt.Errorf("requisition %s: %w", r.ID, err)
		}
		if err := store.SaveRequisition(ctx, req); err != nil {
			return fmt.Errorf("requisition %s: %w", r.ID, err)
		}
	}

	for _, o := range f.Offers {
		offer, err := o.build(current, now)
		if err != nil {
			return fmt.Errorf("offer %s: %w", o.ID, err)
		}
		if err := store.SaveOffer(ctx, offer); err != nil {
			return fmt.Errorf("offer %s: %w", o.ID, err)
		}
	}
	return nil
}

func (m scenarioMonths) apply(ctx context.Context, store *sqlite.Store, current budget.Month, now time.Time) error {
	id := budget.OrgUnitID(m.OrgUnit)
	for offset := m.From; offset <= m.To; offset++ {
		month := current.AddMonths(offset)

		if m.Budget != "" {
			amount, err := decimal.NewFromString(m.Budget)
			if err != nil {
				return err
			}
			if _, _, err := store.UpsertBudget(ctx, budget.Budget{OrgUnitID: id, Month: month, ApprovedAmount: amount}, now); err != nil {
				return err
			}
		}
		if m.Locked {
			if _, err := store.LockMonth(ctx, id, month, "scenario", now); err != nil {
				return err
			}
		}
		if m.Forecast != "" {
			amount, err := decimal.NewFromString(m.Forecast)
			if err != nil {
				return err
			}
			if _, _, err := store.UpsertForecast(ctx, budget.Forecast{OrgUnitID: id, Month: month, Amount: amount, Source: "scenario", CreatedAt: now}); err != nil {
				return err
			}
		}
		if m.Actual != "" {
			amount, err := decimal.NewFromString(m.Actual)
			if err != nil {
				return err
			}
			if _, _, err := store.UpsertActual(ctx, budget.Actual{OrgUnitID: id, Month: month, Amount: amount, Finalized: m.Finalized, CreatedAt: now}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r scenarioRequisition) build(ctx context.Context, store *sqlite.Store, current budget.Month, now time.Time) (budget.Requisition, error) {
	status, err := budget.ParseRequisitionStatus(r.Status)
	if err != nil {
		return budget.Requisition{}, err
	}
	priority := budget.RequisitionPriority(r.Priority)
	if !priority.Valid() {
		priority = budget.PriorityP2
	}

	var estimate *decimal.Decimal
	if r.EstimatedMonthlyCost != "" {
		d, err := decimal.NewFromString(r.EstimatedMonthlyCost)
		if err != nil {
			return budget.Requisition{}, err
		}
		estimate = &d
	} else if r.Job != "" {
		job, err := store.GetJob(ctx, budget.JobID(r.Job))
		if err != nil {
			return budget.Requisition{}, err
		}
		if job == nil {
			return budget.Requisition{}, &budget.NotFoundError{Kind: "job", ID: r.Job}
		}
		cost := job.MonthlyCost
		estimate = &cost
	}

	var target *budget.Month
	if r.TargetOffset != nil {
		m := current.AddMonths(*r.TargetOffset)
		target = &m
	}

	return budget.Requisition{
		ID:                   budget.RequisitionID(orNewID(r.ID)),
		OrgUnitID:            budget.OrgUnitID(r.OrgUnit),
		JobCatalogID:         budget.JobID(r.Job),
		Title:                r.Title,
		Priority:             priority,
		Status:               status,
		TargetStartMonth:     target,
		EstimatedMonthlyCost: estimate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (o scenarioOffer) build(current budget.Month, now time.Time) (budget.Offer, error) {
	status, err := budget.ParseOfferStatus(o.Status)
	if err != nil {
		return budget.Offer{}, err
	}
	cost, err := decimal.NewFromString(o.ProposedMonthlyCost)
	if err != nil {
		return budget.Offer{}, err
	}

	offer := budget.Offer{
		ID:                  budget.OfferID(orNewID(o.ID)),
		RequisitionID:       budget.RequisitionID(o.Requisition),
		CandidateName:       o.CandidateName,
		Status:              status,
		ProposedMonthlyCost: cost,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if o.Start != nil {
		start := o.Start.resolve(current)
		offer.StartDate = &start
	}
	if status == budget.OfferAccepted {
		offer.FinalMonthlyCost = &cost
	}
	return offer, nil
}

func parseScenarioDecimal(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return fallback, nil
	}
	return decimal.NewFromString(s)
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := Scenarios()
	if err != nil {
		h.fail(w, "Failed to read scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	list, err := Scenarios()
	if err != nil {
		h.fail(w, "Failed to read scenarios", err)
		return
	}
	for _, s := range list {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	err := ApplyScenario(r.Context(), h.Store, req.ScenarioID, h.now())
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, http.StatusNotFound, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.audit(r, budget.AuditLoadScenario, "scenario", req.ScenarioID, nil)
	h.Log.WithFields(logrus.Fields{"scenario": req.ScenarioID}).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
