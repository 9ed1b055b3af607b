package budget

import "github.com/shopspring/decimal"

// =============================================================================
// BASELINE - Actual > Forecast > nothing
// =============================================================================

// ResolveBaseline picks the authoritative already-spent amount for a month.
// Either argument may be nil.
func ResolveBaseline(actual *Actual, forecast *Forecast) (decimal.Decimal, BaselineSource) {
	if actual != nil {
		return actual.Amount, BaselineActual
	}
	if forecast != nil {
		return forecast.Amount, BaselineForecast
	}
	return decimal.Zero, BaselineNone
}

// =============================================================================
// COMMITTED - Accepted offers that have started
// =============================================================================

// CommittedForMonth sums the monthly cost of accepted offers with a start
// date on or before month. The start month is pro-rated; later months pay in
// full. Each term is already rounded to cents so the sum is not re-rounded.
func CommittedForMonth(month Month, overhead decimal.Decimal, offers []Offer) decimal.Decimal {
	total := decimal.Zero
	for _, o := range offers {
		if !o.IsCommitted() {
			continue
		}
		if MonthOf(*o.StartDate).After(month) {
			continue
		}
		total = total.Add(CalculateMonthlyCost(o.CommittedCost(), overhead, *o.StartDate, month))
	}
	return total
}

// =============================================================================
// PIPELINE POTENTIAL - Informational, never subtracted from remaining
// =============================================================================

// PipelinePotential sums estimate * overhead for OPEN and INTERVIEWING
// requisitions targeting month. No pro-rata; rounded to cents once.
func PipelinePotential(month Month, overhead decimal.Decimal, reqs []Requisition) decimal.Decimal {
	total := decimal.Zero
	for _, r := range reqs {
		if !r.Status.InPipeline() || r.TargetStartMonth == nil || r.EstimatedMonthlyCost == nil {
			continue
		}
		if !r.TargetStartMonth.Equal(month) {
			continue
		}
		total = total.Add(r.EstimatedMonthlyCost.Mul(overhead))
	}
	return RoundMoney(total)
}
