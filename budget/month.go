package budget

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Calendar month key used by every budget record
// =============================================================================

// Month identifies a calendar month. Budgets, forecasts and actuals are keyed
// by it and it renders as "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month, normalizing out-of-range month numbers.
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: time.January}.AddMonths(int(month) - 1)
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" label. Anything else is ErrInvalidMonth.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	year, ok := digits(s[0:4])
	if !ok {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	month, ok := digits(s[5:7])
	if !ok || month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// MustParseMonth is ParseMonth for literals in tests and fixtures.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func digits(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Comparison
func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }
func (m Month) Before(other Month) bool { return m.index() < other.index() }
func (m Month) After(other Month) bool { return m.index() > other.index() }
func (m Month) Equal(other Month) bool { return m.index() == other.index() }

// AddMonths shifts by n calendar months. Only (year, month) is kept, so there
// is no day-of-month overflow.
func (m Month) AddMonths(n int) Month {
	idx := m.index() + n
	year := idx / 12
	mon := idx % 12
	if mon < 0 {
		mon += 12
		year--
	}
	return Month{Year: year, Month: time.Month(mon + 1)}
}

// Start returns the first day of the month (UTC midnight).
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the month (UTC midnight).
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Days returns the number of days in the month (28..31).
func (m Month) Days() int {
	return m.End().Day()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthRange returns count consecutive months starting at from.
func MonthRange(from Month, count int) []Month {
	if count <= 0 {
		return nil
	}
	months := make([]Month, count)
	for i := range months {
		months[i] = from.AddMonths(i)
	}
	return months
}
