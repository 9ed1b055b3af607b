package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMMITMENT - A hypothetical monthly cost stream
// =============================================================================

// Commitment is a cost that would start on StartDate if approved. Offers and
// what-if positions both reduce to commitments before simulation.
type Commitment struct {
	MonthlyCost decimal.Decimal
	Overhead    decimal.Decimal
	StartDate   time.Time
}

// CostFor returns the commitment's cost in month, zero before it starts.
func (c Commitment) CostFor(month Month) decimal.Decimal {
	if MonthOf(c.StartDate).After(month) {
		return decimal.Zero
	}
	return CalculateMonthlyCost(c.MonthlyCost, c.Overhead, c.StartDate, month)
}

// OfferCommitments previews offers as if approved, at their proposed cost and
// the unit overhead, regardless of current status. Offers without a start
// date cannot be placed on the calendar and are skipped.
func OfferCommitments(offers []Offer, overhead decimal.Decimal) []Commitment {
	out := make([]Commitment, 0, len(offers))
	for _, o := range offers {
		if o.StartDate == nil {
			continue
		}
		out = append(out, Commitment{
			MonthlyCost: o.ProposedMonthlyCost,
			Overhead:    overhead,
			StartDate:   *o.StartDate,
		})
	}
	return out
}

// PositionCommitments uses each position's own overhead, falling back to
// defaultOverhead when unset.
func PositionCommitments(positions []Position, defaultOverhead decimal.Decimal) []Commitment {
	out := make([]Commitment, 0, len(positions))
	for _, p := range positions {
		overhead := defaultOverhead
		if p.OverheadMultiplier != nil {
			overhead = *p.OverheadMultiplier
		}
		out = append(out, Commitment{
			MonthlyCost: p.MonthlyCost,
			Overhead:    overhead,
			StartDate:   p.StartDate,
		})
	}
	return out
}

// =============================================================================
// IMPACT REPORT
// =============================================================================

// ImpactReport is the per-month result of a simulation in chronological
// order. At most one month has IsBottleneck set.
type ImpactReport struct {
	Months []MonthImpact
}

// Get looks up the impact for a month.
func (r ImpactReport) Get(month Month) (MonthImpact, bool) {
	for _, m := range r.Months {
		if m.Month.Equal(month) {
			return m, true
		}
	}
	return MonthImpact{}, false
}

// Bottleneck returns the first month that would turn RED, if any.
func (r ImpactReport) Bottleneck() (MonthImpact, bool) {
	for _, m := range r.Months {
		if m.IsBottleneck {
			return m, true
		}
	}
	return MonthImpact{}, false
}

// =============================================================================
// SIMULATION
// =============================================================================

// Simulate applies commitments on top of the snapshot for each month. The
// first month whose after-status is RED is flagged as the bottleneck; later
// RED months are not.
func Simulate(s *Snapshot, months []Month, commitments []Commitment) ImpactReport {
	report := ImpactReport{Months: make([]MonthImpact, 0, len(months))}
	foundRed := false

	for _, month := range months {
		current := s.MonthHealth(month)

		additional := decimal.Zero
		for _, c := range commitments {
			additional = additional.Add(c.CostFor(month))
		}

		remainingAfter := current.Remaining.Sub(additional)
		statusAfter := GetHealthStatus(current.Approved, remainingAfter)

		bottleneck := false
		if statusAfter == HealthRed && !foundRed {
			foundRed = true
			bottleneck = true
		}

		report.Months = append(report.Months, MonthImpact{
			Month:           month,
			RemainingBefore: current.Remaining,
			RemainingAfter:  remainingAfter,
			Delta:           additional.Neg(),
			StatusBefore:    current.Status,
			StatusAfter:     statusAfter,
			IsBottleneck:    bottleneck,
		})
	}

	return report
}
