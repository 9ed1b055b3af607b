package budget_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/headcount-budget/budget"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// =============================================================================
// PRO-RATA
// =============================================================================

func TestProRata_StartedInEarlierMonth_IsFull(t *testing.T) {
	got := budget.CalculateProRata(date(2025, time.December, 10), budget.MustParseMonth("2026-01"))
	assertDecimal(t, "1", got)
}

func TestProRata_StartsInLaterMonth_IsZero(t *testing.T) {
	got := budget.CalculateProRata(date(2026, time.February, 1), budget.MustParseMonth("2026-01"))
	assert.True(t, got.IsZero())
}

func TestProRata_FirstDayOfMonth_IsFull(t *testing.T) {
	got := budget.CalculateProRata(date(2026, time.January, 1), budget.MustParseMonth("2026-01"))
	assertDecimal(t, "1", got)
}

func TestProRata_MidMonth_RoundsToFourPlaces(t *testing.T) {
	// GIVEN: Start on Jan 15, 31-day month
	// WHEN: Computing the factor for January
	// THEN: 17/31 = 0.548387... rounds to 0.5484

	got := budget.CalculateProRata(date(2026, time.January, 15), budget.MustParseMonth("2026-01"))
	assertDecimal(t, "0.5484", got)
}

func TestProRata_LastDayOfMonth_IsNeverZero(t *testing.T) {
	got := budget.CalculateProRata(date(2026, time.January, 31), budget.MustParseMonth("2026-01"))
	assertDecimal(t, "0.0323", got)
}

func TestProRata_LeapFebruary(t *testing.T) {
	// 15/29 = 0.517241...
	got := budget.CalculateProRata(date(2024, time.February, 15), budget.MustParseMonth("2024-02"))
	assertDecimal(t, "0.5172", got)

	// 15/28 = 0.535714...
	got = budget.CalculateProRata(date(2026, time.February, 14), budget.MustParseMonth("2026-02"))
	assertDecimal(t, "0.5357", got)
}

// =============================================================================
// MONTHLY COST
// =============================================================================

func TestMonthlyCost_AppliesOverheadAndProRata(t *testing.T) {
	// 10000 * 1.8 * 0.5484 = 9871.20
	got := budget.CalculateMonthlyCost(dec("10000"), dec("1.8"), date(2026, time.January, 15), budget.MustParseMonth("2026-01"))
	assertDecimal(t, "9871.20", got)
}

func TestMonthlyCost_FullMonthAfterStart(t *testing.T) {
	got := budget.CalculateMonthlyCost(dec("10000"), dec("1.8"), date(2026, time.January, 15), budget.MustParseMonth("2026-03"))
	assertDecimal(t, "18000", got)
}

func TestMonthlyCost_BeforeStart_IsZero(t *testing.T) {
	got := budget.CalculateMonthlyCost(dec("10000"), dec("1.8"), date(2026, time.June, 1), budget.MustParseMonth("2026-03"))
	assert.True(t, got.IsZero())
}

func TestRoundMoney_HalfUp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0.125", "0.13"},
		{"0.124", "0.12"},
		{"0.005", "0.01"},
		{"-0.125", "-0.13"},
		{"1234.5650", "1234.57"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assertDecimal(t, tt.want, budget.RoundMoney(dec(tt.in)))
		})
	}
}
