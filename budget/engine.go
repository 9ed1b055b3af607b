/*
engine.go - Month health, impact previews and multi-month summaries

PURPOSE:
  Engine is the entry point the HTTP and CLI layers call. Each call loads
  one Snapshot of the org unit through the Store and computes from it, so
  results are always fresh and nothing is cached between calls.

HEALTH FORMULA:
  Remaining = Approved - Baseline - Committed
  Status    = GetHealthStatus(Approved, Remaining)
  Pipeline potential is reported next to Remaining but never subtracted.

WINDOWS:
  PreviewOfferImpact / PreviewNewPositions:
    monthsAhead consecutive months starting at the current month.
  Summary:
    last month, then monthsCount months starting at the current month.

EXAMPLE:
  engine := budget.NewEngine(store)
  report, err := engine.PreviewNewPositions(ctx, "ou-eng", []budget.Position{{
      MonthlyCost: decimal.NewFromInt(10000),
      StartDate:   time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC),
  }}, 6)
  if b, ok := report.Bottleneck(); ok {
      fmt.Println("first red month:", b.Month)
  }

SEE ALSO:
  - snapshot.go: Per-month calculation
  - impact.go: Simulation fold and bottleneck detection
*/
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxWindow bounds simulation and summary windows, in months.
const MaxWindow = 36

// Engine computes budget health for org units read from Store.
type Engine struct {
	Store Store

	// Now returns the current time; the current month anchors every window.
	Now func() time.Time
}

// NewEngine creates an engine reading from store with the wall clock.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// CurrentMonth returns the month containing Now.
func (e *Engine) CurrentMonth() Month {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return MonthOf(now())
}

// Snapshot loads every record of the org unit in one pass.
func (e *Engine) Snapshot(ctx context.Context, id OrgUnitID) (*Snapshot, error) {
	unit, err := e.Store.GetOrgUnit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load org unit: %w", err)
	}
	budgets, err := e.Store.ListBudgets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	forecasts, err := e.Store.ListForecasts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	actuals, err := e.Store.ListActuals(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}
	reqs, err := e.Store.ListRequisitions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load requisitions: %w", err)
	}
	offers, err := e.Store.ListOffers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	return NewSnapshot(id, unit, budgets, forecasts, actuals, reqs, offers), nil
}

// =============================================================================
// SINGLE-MONTH QUERIES
// =============================================================================

// Baseline resolves the already-spent amount for a month (actual, then
// forecast, then zero).
func (e *Engine) Baseline(ctx context.Context, id OrgUnitID, month Month) (decimal.Decimal, BaselineSource, error) {
	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return decimal.Zero, BaselineNone, err
	}
	amount, source := s.Baseline(month)
	return amount, source, nil
}

// CommittedForMonth sums accepted offers for a month using the given overhead.
func (e *Engine) CommittedForMonth(ctx context.Context, id OrgUnitID, month Month, overhead decimal.Decimal) (decimal.Decimal, error) {
	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Committed(month, overhead), nil
}

// PipelinePotential sums active requisitions targeting a month.
func (e *Engine) PipelinePotential(ctx context.Context, id OrgUnitID, month Month, overhead decimal.Decimal) (decimal.Decimal, error) {
	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.PipelinePotential(month, overhead), nil
}

// MonthHealth computes the health of one month.
func (e *Engine) MonthHealth(ctx context.Context, id OrgUnitID, month Month) (MonthHealth, error) {
	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return MonthHealth{}, err
	}
	return s.MonthHealth(month), nil
}

// =============================================================================
// WHAT-IF PREVIEWS
// =============================================================================

// PreviewOfferImpact simulates approving the given offers over monthsAhead
// months starting at the current month. Repeated IDs count once.
func (e *Engine) PreviewOfferImpact(ctx context.Context, id OrgUnitID, offerIDs []OfferID, monthsAhead int) (ImpactReport, error) {
	if len(offerIDs) == 0 {
		return ImpactReport{}, ErrNoOffers
	}
	if err := checkWindow(monthsAhead, 1); err != nil {
		return ImpactReport{}, err
	}

	offers := make([]Offer, 0, len(offerIDs))
	seen := make(map[OfferID]bool, len(offerIDs))
	for _, oid := range offerIDs {
		if seen[oid] {
			continue
		}
		seen[oid] = true
		o, err := e.Store.GetOffer(ctx, oid)
		if err != nil {
			return ImpactReport{}, fmt.Errorf("load offer %s: %w", oid, err)
		}
		if o == nil {
			return ImpactReport{}, &NotFoundError{Kind: "offer", ID: string(oid)}
		}
		offers = append(offers, *o)
	}

	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return ImpactReport{}, err
	}

	months := MonthRange(e.CurrentMonth(), monthsAhead)
	return Simulate(s, months, OfferCommitments(offers, s.Overhead())), nil
}

// PreviewNewPositions simulates hypothetical hires that exist only in the
// request, not in the store.
func (e *Engine) PreviewNewPositions(ctx context.Context, id OrgUnitID, positions []Position, monthsAhead int) (ImpactReport, error) {
	if err := checkWindow(monthsAhead, 1); err != nil {
		return ImpactReport{}, err
	}

	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return ImpactReport{}, err
	}

	months := MonthRange(e.CurrentMonth(), monthsAhead)
	return Simulate(s, months, PositionCommitments(positions, s.Overhead())), nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary returns monthsCount+1 months of health: last month first, then the
// current month and the months after it.
func (e *Engine) Summary(ctx context.Context, id OrgUnitID, monthsCount int) ([]MonthHealth, error) {
	if err := checkWindow(monthsCount, 0); err != nil {
		return nil, err
	}

	s, err := e.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	current := e.CurrentMonth()
	months := append([]Month{current.AddMonths(-1)}, MonthRange(current, monthsCount)...)

	out := make([]MonthHealth, len(months))
	for i, m := range months {
		out[i] = s.MonthHealth(m)
	}
	return out, nil
}

func checkWindow(n, min int) error {
	if n < min || n > MaxWindow {
		return fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidWindow, n, min, MaxWindow)
	}
	return nil
}
