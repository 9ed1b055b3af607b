package budget

import "github.com/shopspring/decimal"

// =============================================================================
// SNAPSHOT - One consistent read of an org unit's records
// =============================================================================

// Snapshot holds every record the engine needs for one org unit. All health
// and impact calculations are pure functions of a Snapshot, so one snapshot
// can be shared across goroutines once built.
type Snapshot struct {
	OrgUnitID    OrgUnitID
	OrgUnit      *OrgUnit // nil when the unit is unknown
	Offers       []Offer
	Requisitions []Requisition

	budgets   map[Month]Budget
	forecasts map[Month]Forecast
	actuals   map[Month]Actual
}

// NewSnapshot indexes the monthly records by month. If the store ever hands
// back two rows for the same month the later one wins.
func NewSnapshot(id OrgUnitID, unit *OrgUnit, budgets []Budget, forecasts []Forecast, actuals []Actual, reqs []Requisition, offers []Offer) *Snapshot {
	s := &Snapshot{
		OrgUnitID:    id,
		OrgUnit:      unit,
		Offers:       offers,
		Requisitions: reqs,
		budgets:      make(map[Month]Budget, len(budgets)),
		forecasts:    make(map[Month]Forecast, len(forecasts)),
		actuals:      make(map[Month]Actual, len(actuals)),
	}
	for _, b := range budgets {
		s.budgets[b.Month] = b
	}
	for _, f := range forecasts {
		s.forecasts[f.Month] = f
	}
	for _, a := range actuals {
		s.actuals[a.Month] = a
	}
	return s
}

// Overhead is the unit-wide multiplier applied to every computed cost.
func (s *Snapshot) Overhead() decimal.Decimal {
	return s.OrgUnit.Overhead()
}

// Approved returns the approved budget for month, zero when absent.
func (s *Snapshot) Approved(month Month) decimal.Decimal {
	if b, ok := s.budgets[month]; ok {
		return b.ApprovedAmount
	}
	return decimal.Zero
}

// Budget returns the budget row for month, if any.
func (s *Snapshot) Budget(month Month) (Budget, bool) {
	b, ok := s.budgets[month]
	return b, ok
}

func (s *Snapshot) Baseline(month Month) (decimal.Decimal, BaselineSource) {
	var actual *Actual
	if a, ok := s.actuals[month]; ok {
		actual = &a
	}
	var forecast *Forecast
	if f, ok := s.forecasts[month]; ok {
		forecast = &f
	}
	return ResolveBaseline(actual, forecast)
}

func (s *Snapshot) Committed(month Month, overhead decimal.Decimal) decimal.Decimal {
	return CommittedForMonth(month, overhead, s.Offers)
}

func (s *Snapshot) PipelinePotential(month Month, overhead decimal.Decimal) decimal.Decimal {
	return PipelinePotential(month, overhead, s.Requisitions)
}

// MonthHealth computes the health snapshot for month.
func (s *Snapshot) MonthHealth(month Month) MonthHealth {
	overhead := s.Overhead()
	approved := s.Approved(month)
	baseline, source := s.Baseline(month)
	committed := s.Committed(month, overhead)
	pipeline := s.PipelinePotential(month, overhead)

	remaining := approved.Sub(baseline).Sub(committed)

	return MonthHealth{
		Month:             month,
		Approved:          approved,
		Baseline:          baseline,
		BaselineSource:    source,
		Committed:         committed,
		PipelinePotential: pipeline,
		Remaining:         remaining,
		Status:            GetHealthStatus(approved, remaining),
	}
}
