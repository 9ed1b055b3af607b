package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/headcount-budget/budget"
)

func TestGetHealthStatus(t *testing.T) {
	tests := []struct {
		name      string
		approved  string
		remaining string
		want      budget.HealthStatus
	}{
		{"exactly at threshold is green", "1000", "200", budget.HealthGreen},
		{"just below threshold is yellow", "1000", "199.99", budget.HealthYellow},
		{"one cent left is yellow", "1000", "0.01", budget.HealthYellow},
		{"zero remaining is red", "1000", "0", budget.HealthRed},
		{"overspent is red", "1000", "-1", budget.HealthRed},
		{"plenty left is green", "1000", "900", budget.HealthGreen},
		{"no budget with headroom is green", "0", "100", budget.HealthGreen},
		{"no budget and nothing left is red", "0", "0", budget.HealthRed},
		{"no budget and overspent is red", "0", "-5", budget.HealthRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, budget.GetHealthStatus(dec(tt.approved), dec(tt.remaining)))
		})
	}
}
