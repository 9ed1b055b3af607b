package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	one  = decimal.NewFromInt(1)
	zero = decimal.Zero
)

const (
	proRataPlaces = 4
	moneyPlaces   = 2
)

// CalculateProRata returns the fraction of month a position starting on
// start is active: 1 when it started in an earlier month, 0 when it starts in
// a later month, otherwise (days - startDay + 1) / days rounded half-up to 4
// places. Starting on the last day yields 1/days, never 0.
func CalculateProRata(start time.Time, month Month) decimal.Decimal {
	startMonth := MonthOf(start)
	switch {
	case startMonth.Before(month):
		return one
	case startMonth.After(month):
		return zero
	}

	days := month.Days()
	worked := days - start.Day() + 1
	return decimal.NewFromInt(int64(worked)).DivRound(decimal.NewFromInt(int64(days)), proRataPlaces)
}

// CalculateMonthlyCost is baseCost * overhead * pro-rata, rounded half-up to
// cents.
func CalculateMonthlyCost(baseCost, overhead decimal.Decimal, start time.Time, month Month) decimal.Decimal {
	factor := CalculateProRata(start, month)
	if factor.IsZero() {
		return RoundMoney(zero)
	}
	return RoundMoney(baseCost.Mul(overhead).Mul(factor))
}

// RoundMoney rounds half-up to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}
