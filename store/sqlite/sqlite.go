/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists org units, the job catalog, monthly budgets/forecasts/actuals, the
  hiring pipeline (requisitions and offers) and the audit log. Implements
  budget.Store so the engine can read an org unit snapshot directly.

INTERFACES IMPLEMENTED:
  budget.Store: Read access used by the health and impact engine

KEY TABLES:
  org_units:    Budget-holding units with overhead multiplier
  job_catalog:  Reference monthly cost per role
  budgets:      Approved amount per (org unit, month), lockable
  forecasts:    Expected spend per (org unit, month)
  actuals:      Realized spend per (org unit, month)
  requisitions: Open headcount
  offers:       Candidate offers, linked to a requisition
  audit_log:    Who changed what

MONEY AND MONTHS:
  Decimal amounts are stored as TEXT to keep exact precision. Months are
  stored as "YYYY-MM" so ORDER BY month is chronological.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/hrbudget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := budget.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - budget/store.go: Interface definition
  - budget/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/headcount-budget/budget"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS org_units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		overhead_multiplier TEXT NOT NULL DEFAULT '1',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_catalog (
		id TEXT PRIMARY KEY,
		job_family TEXT NOT NULL,
		level TEXT NOT NULL,
		title TEXT NOT NULL,
		monthly_cost TEXT NOT NULL,
		hierarchy_level INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'BRL',
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- One row per (org unit, month) for each financial table
	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		approved_amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		locked_by TEXT,
		locked_at TEXT,
		updated_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		source TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS actuals (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		finalized BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS requisitions (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		job_catalog_id TEXT,
		title TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'P2',
		status TEXT NOT NULL DEFAULT 'DRAFT',
		target_start_month TEXT,
		estimated_monthly_cost TEXT,
		has_candidate_ready BOOLEAN NOT NULL DEFAULT FALSE,
		owner_id TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requisitions_org_unit
		ON requisitions(org_unit_id);
	CREATE INDEX IF NOT EXISTS idx_requisitions_status
		ON requisitions(status);

	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		requisition_id TEXT NOT NULL REFERENCES requisitions(id),
		candidate_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		proposed_monthly_cost TEXT NOT NULL,
		final_monthly_cost TEXT,
		currency TEXT NOT NULL DEFAULT 'BRL',
		start_date TEXT,
		hold_reason TEXT,
		hold_until TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offers_requisition
		ON offers(requisition_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		changes_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_at
		ON audit_log(at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORG UNITS
// =============================================================================

// SaveOrgUnit inserts or updates an org unit.
func (s *Store) SaveOrgUnit(ctx context.Context, u budget.OrgUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO org_units (id, name, currency, overhead_multiplier, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			overhead_multiplier = excluded.overhead_multiplier,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, currencyOrDefault(u.Currency), u.OverheadMultiplier.String(),
		u.Active, formatTime(u.CreatedAt),
	)
	return err
}

// DeleteOrgUnit removes an org unit that no longer owns any budget, forecast,
// actual or requisition. Otherwise budget.ErrOrgUnitInUse is returned.
func (s *Store) DeleteOrgUnit(ctx context.Context, id budget.OrgUnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM org_units WHERE id = ?", id)
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", budget.ErrOrgUnitInUse, id)
	}
	return err
}

// GetOrgUnit retrieves an org unit by ID.
func (s *Store) GetOrgUnit(ctx context.Context, id budget.OrgUnitID) (*budget.OrgUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, currency, overhead_multiplier, active, created_at FROM org_units WHERE id = ?",
		id,
	)
	u, err := scanOrgUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListOrgUnits returns all org units ordered by name.
func (s *Store) ListOrgUnits(ctx context.Context) ([]budget.OrgUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, currency, overhead_multiplier, active, created_at FROM org_units ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []budget.OrgUnit
	for rows.Next() {
		u, err := scanOrgUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func scanOrgUnit(row scanner) (budget.OrgUnit, error) {
	var u budget.OrgUnit
	var overhead, createdAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Currency, &overhead, &u.Active, &createdAt); err != nil {
		return u, err
	}
	var err error
	if u.OverheadMultiplier, err = decimal.NewFromString(overhead); err != nil {
		return u, fmt.Errorf("org unit %s overhead: %w", u.ID, err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, fmt.Errorf("org unit %s created_at: %w", u.ID, err)
	}
	return u, nil
}

// =============================================================================
// JOB CATALOG
// =============================================================================

// SaveJob inserts or updates a catalog entry.
func (s *Store) SaveJob(ctx context.Context, j budget.JobCatalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO job_catalog (id, job_family, level, title, monthly_cost, hierarchy_level, currency, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_family = excluded.job_family,
			level = excluded.level,
			title = excluded.title,
			monthly_cost = excluded.monthly_cost,
			hierarchy_level = excluded.hierarchy_level,
			currency = excluded.currency,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID, j.JobFamily, j.Level, j.Title, j.MonthlyCost.String(),
		j.HierarchyLevel, currencyOrDefault(j.Currency), j.Active,
	)
	return err
}

// DeleteJob removes a catalog entry. Requisitions keep the ID and their
// estimate.
func (s *Store) DeleteJob(ctx context.Context, id budget.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM job_catalog WHERE id = ?", id)
	return err
}

// GetJob retrieves a catalog entry by ID.
func (s *Store) GetJob(ctx context.Context, id budget.JobID) (*budget.JobCatalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, job_family, level, title, monthly_cost, hierarchy_level, currency, active FROM job_catalog WHERE id = ?",
		id,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns the catalog ordered by family and hierarchy level.
func (s *Store) ListJobs(ctx context.Context) ([]budget.JobCatalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_family, level, title, monthly_cost, hierarchy_level, currency, active FROM job_catalog ORDER BY job_family, hierarchy_level",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []budget.JobCatalog
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row scanner) (budget.JobCatalog, error) {
	var j budget.JobCatalog
	var cost string
	if err := row.Scan(&j.ID, &j.JobFamily, &j.Level, &j.Title, &cost, &j.HierarchyLevel, &j.Currency, &j.Active); err != nil {
		return j, err
	}
	var err error
	if j.MonthlyCost, err = decimal.NewFromString(cost); err != nil {
		return j, fmt.Errorf("job %s monthly cost: %w", j.ID, err)
	}
	return j, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

// UpsertBudget creates the budget for (org unit, month) or updates the
// approved amount of the existing one. Locked months are refused with
// budget.ErrBudgetLocked. Returns the stored row and whether it was created.
func (s *Store) UpsertBudget(ctx context.Context, b budget.Budget, now time.Time) (budget.Budget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getBudget(ctx, b.OrgUnitID, b.Month)
	if err != nil {
		return budget.Budget{}, false, err
	}

	if existing != nil {
		if err := existing.SetApproved(b.ApprovedAmount, b.Currency, now); err != nil {
			return *existing, false, err
		}
		_, err := s.db.ExecContext(ctx,
			"UPDATE budgets SET approved_amount = ?, currency = ?, updated_at = ? WHERE id = ?",
			existing.ApprovedAmount.String(), existing.Currency, formatTime(existing.UpdatedAt), existing.ID,
		)
		return *existing, false, err
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Currency = currencyOrDefault(b.Currency)
	b.UpdatedAt = now
	if err := s.writeBudget(ctx, b); err != nil {
		return budget.Budget{}, false, err
	}
	return b, true, nil
}

// LockMonth freezes the budget of a month. Returns a budget NotFoundError
// when the month has no budget.
func (s *Store) LockMonth(ctx context.Context, orgUnitID budget.OrgUnitID, month budget.Month, actor string, now time.Time) (budget.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBudget(ctx, orgUnitID, month)
	if err != nil {
		return budget.Budget{}, err
	}
	if b == nil {
		return budget.Budget{}, &budget.NotFoundError{Kind: "budget", ID: string(orgUnitID) + "/" + month.String()}
	}

	b.Lock(actor, now)
	if err := s.writeBudget(ctx, *b); err != nil {
		return budget.Budget{}, err
	}
	return *b, nil
}

// GetBudget returns the budget of a month, or nil when there is none.
func (s *Store) GetBudget(ctx context.Context, orgUnitID budget.OrgUnitID, month budget.Month) (*budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBudget(ctx, orgUnitID, month)
}

func (s *Store) getBudget(ctx context.Context, orgUnitID budget.OrgUnitID, month budget.Month) (*budget.Budget, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_unit_id, month, approved_amount, currency, locked, locked_by, locked_at, updated_at
		FROM budgets WHERE org_unit_id = ? AND month = ?`,
		orgUnitID, month.String(),
	)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) writeBudget(ctx context.Context, b budget.Budget) error {
	query := `
		INSERT INTO budgets (id, org_unit_id, month, approved_amount, currency, locked, locked_by, locked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approved_amount = excluded.approved_amount,
			currency = excluded.currency,
			locked = excluded.locked,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.OrgUnitID, b.Month.String(), b.ApprovedAmount.String(), b.Currency,
		b.Locked, nullString(b.LockedBy), nullTime(b.LockedAt), formatTime(b.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("budget for %s %s already exists: %w", b.OrgUnitID, b.Month, err)
	}
	return err
}

// ListBudgets returns the budgets of an org unit in month order.
func (s *Store) ListBudgets(ctx context.Context, orgUnitID budget.OrgUnitID) ([]budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_unit_id, month, approved_amount, currency, locked, locked_by, locked_at, updated_at
		FROM budgets WHERE org_unit_id = ? ORDER BY month`,
		orgUnitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []budget.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func scanBudget(row scanner) (budget.Budget, error) {
	var b budget.Budget
	var month, amount, updatedAt string
	var lockedBy, lockedAt sql.NullString
	if err := row.Scan(&b.ID, &b.OrgUnitID, &month, &amount, &b.Currency, &b.Locked, &lockedBy, &lockedAt, &updatedAt); err != nil {
		return b, err
	}
	var err error
	if b.Month, err = budget.ParseMonth(month); err != nil {
		return b, err
	}
	if b.ApprovedAmount, err = decimal.NewFromString(amount); err != nil {
		return b, fmt.Errorf("budget %s amount: %w", b.ID, err)
	}
	b.LockedBy = lockedBy.String
	if b.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return b, fmt.Errorf("budget %s locked_at: %w", b.ID, err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return b, fmt.Errorf("budget %s updated_at: %w", b.ID, err)
	}
	return b, nil
}

// =============================================================================
// FORECASTS & ACTUALS
// =============================================================================

// UpsertForecast creates or replaces the forecast of a month. Returns whether
// a new row was created.
func (s *Store) UpsertForecast(ctx context.Context, f budget.Forecast) (budget.Forecast, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM forecasts WHERE org_unit_id = ? AND month = ?",
		f.OrgUnitID, f.Month.String(),
	).Scan(&existingID)
	created := err == sql.ErrNoRows
	if err != nil && !created {
		return budget.Forecast{}, false, err
	}

	switch {
	case !created:
		f.ID = existingID
	case f.ID == "":
		f.ID = uuid.NewString()
	}
	f.Currency = currencyOrDefault(f.Currency)

	query := `
		INSERT INTO forecasts (id, org_unit_id, month, amount, currency, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			source = excluded.source
	`
	_, err = s.db.ExecContext(ctx, query,
		f.ID, f.OrgUnitID, f.Month.String(), f.Amount.String(), f.Currency,
		nullString(f.Source), formatTime(f.CreatedAt),
	)
	return f, created, err
}

// ListForecasts returns the forecasts of an org unit in month order.
func (s *Store) ListForecasts(ctx context.Context, orgUnitID budget.OrgUnitID) ([]budget.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_unit_id, month, amount, currency, source, created_at
		FROM forecasts WHERE org_unit_id = ? ORDER BY month`,
		orgUnitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []budget.Forecast
	for rows.Next() {
		var f budget.Forecast
		var month, amount, createdAt string
		var source sql.NullString
		if err := rows.Scan(&f.ID, &f.OrgUnitID, &month, &amount, &f.Currency, &source, &createdAt); err != nil {
			return nil, err
		}
		if f.Month, err = budget.ParseMonth(month); err != nil {
			return nil, err
		}
		if f.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("forecast %s amount: %w", f.ID, err)
		}
		f.Source = source.String
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("forecast %s created_at: %w", f.ID, err)
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// UpsertActual creates or replaces the actual spend of a month. Returns
// whether a new row was created.
func (s *Store) UpsertActual(ctx context.Context, a budget.Actual) (budget.Actual, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM actuals WHERE org_unit_id = ? AND month = ?",
		a.OrgUnitID, a.Month.String(),
	).Scan(&existingID)
	created := err == sql.ErrNoRows
	if err != nil && !created {
		return budget.Actual{}, false, err
	}

	switch {
	case !created:
		a.ID = existingID
	case a.ID == "":
		a.ID = uuid.NewString()
	}
	a.Currency = currencyOrDefault(a.Currency)

	query := `
		INSERT INTO actuals (id, org_unit_id, month, amount, currency, finalized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			finalized = excluded.finalized
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.OrgUnitID, a.Month.String(), a.Amount.String(), a.Currency,
		a.Finalized, formatTime(a.CreatedAt),
	)
	return a, created, err
}

// ListActuals returns the actuals of an org unit in month order.
func (s *Store) ListActuals(ctx context.Context, orgUnitID budget.OrgUnitID) ([]budget.Actual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_unit_id, month, amount, currency, finalized, created_at
		FROM actuals WHERE org_unit_id = ? ORDER BY month`,
		orgUnitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query actuals: %w", err)
	}
	defer rows.Close()

	var actuals []budget.Actual
	for rows.Next() {
		var a budget.Actual
		var month, amount, createdAt string
		if err := rows.Scan(&a.ID, &a.OrgUnitID, &month, &amount, &a.Currency, &a.Finalized, &createdAt); err != nil {
			return nil, err
		}
		if a.Month, err = budget.ParseMonth(month); err != nil {
			return nil, err
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("actual %s amount: %w", a.ID, err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("actual %s created_at: %w", a.ID, err)
		}
		actuals = append(actuals, a)
	}
	return actuals, rows.Err()
}

// =============================================================================
// REQUISITIONS
// =============================================================================

const requisitionColumns = `id, org_unit_id, job_catalog_id, title, priority, status,
	target_start_month, estimated_monthly_cost, has_candidate_ready, owner_id, notes,
	created_at, updated_at`

// RequisitionFilter narrows QueryRequisitions. Empty fields match everything.
type RequisitionFilter struct {
	OrgUnitID budget.OrgUnitID
	Status    budget.RequisitionStatus
}

// SaveRequisition inserts or updates a requisition.
func (s *Store) SaveRequisition(ctx context.Context, r budget.Requisition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequisition(ctx, s.db, r)
}

func saveRequisition(ctx context.Context, db execer, r budget.Requisition) error {
	query := `
		INSERT INTO requisitions (` + requisitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_catalog_id = excluded.job_catalog_id,
			title = excluded.title,
			priority = excluded.priority,
			status = excluded.status,
			target_start_month = excluded.target_start_month,
			estimated_monthly_cost = excluded.estimated_monthly_cost,
			has_candidate_ready = excluded.has_candidate_ready,
			owner_id = excluded.owner_id,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	var target sql.NullString
	if r.TargetStartMonth != nil {
		target = sql.NullString{String: r.TargetStartMonth.String(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		r.ID, r.OrgUnitID, nullString(string(r.JobCatalogID)), r.Title, r.Priority, r.Status,
		target, nullDecimal(r.EstimatedMonthlyCost), r.HasCandidateReady,
		nullString(r.OwnerID), nullString(r.Notes),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return err
}

// GetRequisition retrieves a requisition by ID.
func (s *Store) GetRequisition(ctx context.Context, id budget.RequisitionID) (*budget.Requisition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+requisitionColumns+" FROM requisitions WHERE id = ?", id)
	r, err := scanRequisition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequisitions returns every requisition of an org unit.
func (s *Store) ListRequisitions(ctx context.Context, orgUnitID budget.OrgUnitID) ([]budget.Requisition, error) {
	return s.QueryRequisitions(ctx, RequisitionFilter{OrgUnitID: orgUnitID})
}

// QueryRequisitions returns requisitions matching the filter, oldest first.
func (s *Store) QueryRequisitions(ctx context.Context, f RequisitionFilter) ([]budget.Requisition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.OrgUnitID != "" {
		where = append(where, "org_unit_id = ?")
		args = append(args, f.OrgUnitID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := "SELECT " + requisitionColumns + " FROM requisitions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requisitions: %w", err)
	}
	defer rows.Close()

	var reqs []budget.Requisition
	for rows.Next() {
		r, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func scanRequisition(row scanner) (budget.Requisition, error) {
	var r budget.Requisition
	var jobID, target, estimate, ownerID, notes sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&r.ID, &r.OrgUnitID, &jobID, &r.Title, &r.Priority, &r.Status,
		&target, &estimate, &r.HasCandidateReady, &ownerID, &notes,
		&createdAt, &updatedAt,
	); err != nil {
		return r, err
	}

	r.JobCatalogID = budget.JobID(jobID.String)
	r.OwnerID = ownerID.String
	r.Notes = notes.String
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, fmt.Errorf("requisition %s created_at: %w", r.ID, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, fmt.Errorf("requisition %s updated_at: %w", r.ID, err)
	}

	if target.Valid {
		m, err := budget.ParseMonth(target.String)
		if err != nil {
			return r, err
		}
		r.TargetStartMonth = &m
	}
	est, err := parseNullDecimal(estimate)
	if err != nil {
		return r, fmt.Errorf("requisition %s estimate: %w", r.ID, err)
	}
	r.EstimatedMonthlyCost = est
	return r, nil
}

// =============================================================================
// OFFERS
// =============================================================================

// Offers carry the org unit of their requisition.
const offerSelect = `
	SELECT o.id, o.requisition_id, COALESCE(r.org_unit_id, ''), o.candidate_name, o.status,
		o.proposed_monthly_cost, o.final_monthly_cost, o.currency, o.start_date,
		o.hold_reason, o.hold_until, o.notes, o.created_at, o.updated_at
	FROM offers o
	LEFT JOIN requisitions r ON r.id = o.requisition_id`

// SaveOffer inserts or updates an offer.
func (s *Store) SaveOffer(ctx context.Context, o budget.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveOffer(ctx, s.db, o)
}

// SaveAcceptance stores an accepted offer together with its now filled
// requisition in one transaction.
func (s *Store) SaveAcceptance(ctx context.Context, o budget.Offer, r budget.Requisition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveOffer(ctx, tx, o); err != nil {
		return err
	}
	if err := saveRequisition(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func saveOffer(ctx context.Context, db execer, o budget.Offer) error {
	query := `
		INSERT INTO offers (id, requisition_id, candidate_name, status, proposed_monthly_cost,
			final_monthly_cost, currency, start_date, hold_reason, hold_until, notes,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			candidate_name = excluded.candidate_name,
			status = excluded.status,
			proposed_monthly_cost = excluded.proposed_monthly_cost,
			final_monthly_cost = excluded.final_monthly_cost,
			currency = excluded.currency,
			start_date = excluded.start_date,
			hold_reason = excluded.hold_reason,
			hold_until = excluded.hold_until,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		o.ID, o.RequisitionID, o.CandidateName, o.Status, o.ProposedMonthlyCost.String(),
		nullDecimal(o.FinalMonthlyCost), currencyOrDefault(o.Currency), nullDate(o.StartDate),
		nullString(o.HoldReason), nullDate(o.HoldUntil), nullString(o.Notes),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	return err
}

// GetOffer retrieves an offer by ID.
func (s *Store) GetOffer(ctx context.Context, id budget.OfferID) (*budget.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, offerSelect+" WHERE o.id = ?", id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffers returns every offer whose requisition belongs to the org unit.
func (s *Store) ListOffers(ctx context.Context, orgUnitID budget.OrgUnitID) ([]budget.Offer, error) {
	return s.queryOffers(ctx, offerSelect+" WHERE r.org_unit_id = ? ORDER BY o.created_at, o.id", orgUnitID)
}

// OfferFilter narrows QueryOffers. Empty fields match everything.
type OfferFilter struct {
	OrgUnitID     budget.OrgUnitID
	RequisitionID budget.RequisitionID
	Status        budget.OfferStatus
}

// QueryOffers returns offers matching the filter, oldest first.
func (s *Store) QueryOffers(ctx context.Context, f OfferFilter) ([]budget.Offer, error) {
	var where []string
	var args []any
	if f.OrgUnitID != "" {
		where = append(where, "r.org_unit_id = ?")
		args = append(args, f.OrgUnitID)
	}
	if f.RequisitionID != "" {
		where = append(where, "o.requisition_id = ?")
		args = append(args, f.RequisitionID)
	}
	if f.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, f.Status)
	}

	query := offerSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.queryOffers(ctx, query+" ORDER BY o.created_at, o.id", args...)
}

// DeleteOffer removes an offer. Deleting a missing offer is not an error.
func (s *Store) DeleteOffer(ctx context.Context, id budget.OfferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM offers WHERE id = ?", id)
	return err
}

func (s *Store) queryOffers(ctx context.Context, query string, args ...any) ([]budget.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	var offers []budget.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func scanOffer(row scanner) (budget.Offer, error) {
	var o budget.Offer
	var proposed, createdAt, updatedAt string
	var final, startDate, holdReason, holdUntil, notes sql.NullString
	if err := row.Scan(
		&o.ID, &o.RequisitionID, &o.OrgUnitID, &o.CandidateName, &o.Status,
		&proposed, &final, &o.Currency, &startDate,
		&holdReason, &holdUntil, &notes, &createdAt, &updatedAt,
	); err != nil {
		return o, err
	}

	var err error
	if o.ProposedMonthlyCost, err = decimal.NewFromString(proposed); err != nil {
		return o, fmt.Errorf("offer %s proposed cost: %w", o.ID, err)
	}
	if o.FinalMonthlyCost, err = parseNullDecimal(final); err != nil {
		return o, fmt.Errorf("offer %s final cost: %w", o.ID, err)
	}
	if o.StartDate, err = parseNullDate(startDate); err != nil {
		return o, fmt.Errorf("offer %s start date: %w", o.ID, err)
	}
	if o.HoldUntil, err = parseNullDate(holdUntil); err != nil {
		return o, fmt.Errorf("offer %s hold until: %w", o.ID, err)
	}
	o.HoldReason = holdReason.String
	o.Notes = notes.String
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return o, fmt.Errorf("offer %s created_at: %w", o.ID, err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return o, fmt.Errorf("offer %s updated_at: %w", o.ID, err)
	}
	return o, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit records a change. ID and At are filled in when empty.
func (s *Store) AppendAudit(ctx context.Context, e budget.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	var changes sql.NullString
	if len(e.Changes) > 0 {
		data, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("failed to encode audit changes: %w", err)
		}
		changes = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, entity_type, entity_id, changes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.At), e.ActorID, e.Action, e.EntityType, e.EntityID, changes,
	)
	return err
}

// ListAudit returns the most recent entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]budget.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor_id, action, entity_type, entity_id, changes_json
		FROM audit_log ORDER BY at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []budget.AuditEntry
	for rows.Next() {
		var e budget.AuditEntry
		var at string
		var changes sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &changes); err != nil {
			return nil, err
		}
		var err error
		if e.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("audit %s at: %w", e.ID, err)
		}
		if changes.Valid {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, fmt.Errorf("audit %s changes: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// children before parents
	tables := []string{"offers", "requisitions", "budgets", "forecasts", "actuals", "job_catalog", "org_units", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

var _ budget.Store = (*Store)(nil)

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func currencyOrDefault(c string) string {
	if c == "" {
		return budget.DefaultCurrency
	}
	return c
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
