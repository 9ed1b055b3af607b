package budget

import "github.com/shopspring/decimal"

// HealthStatus classifies remaining headroom against the approved budget.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "green"  // remaining >= 20% of approved
	HealthYellow HealthStatus = "yellow" // 0 < remaining < 20% of approved
	HealthRed    HealthStatus = "red"    // remaining <= 0
)

// YellowThreshold is the share of the approved budget below which a month
// turns yellow.
var YellowThreshold = decimal.RequireFromString("0.20")

// GetHealthStatus maps (approved, remaining) to a status. With no approved
// budget any positive remaining is GREEN.
func GetHealthStatus(approved, remaining decimal.Decimal) HealthStatus {
	if !approved.IsPositive() {
		if !remaining.IsPositive() {
			return HealthRed
		}
		return HealthGreen
	}

	threshold := approved.Mul(YellowThreshold)
	switch {
	case !remaining.IsPositive():
		return HealthRed
	case remaining.LessThan(threshold):
		return HealthYellow
	default:
		return HealthGreen
	}
}
