package core

import "time"

// WindowMonths is the number of calendar months covered by MonthWindows: two
// full prior months plus the current month to date.
const WindowMonths = 3

// MonthTotal is the expense and income sum for one aggregation range.
type MonthTotal struct {
	Year       int
	MonthIndex int // 0 = January
	Start      time.Time
	End        time.Time // exclusive
	ExpenseSum int64
	IncomeSum  int64
}

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// MonthWindows returns the aggregation ranges for now, oldest first:
// [start of M-2, start of M-1), [start of M-1, start of M), [start of M, now).
// Month starts are computed in loc.
func MonthWindows(now time.Time, loc *time.Location) []Range {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	bounds := make([]time.Time, 0, WindowMonths+1)
	for i := WindowMonths - 1; i >= 0; i-- {
		bounds = append(bounds, current.AddDate(0, -i, 0))
	}
	bounds = append(bounds, now)

	ranges := make([]Range, WindowMonths)
	for i := range ranges {
		ranges[i] = Range{Start: bounds[i], End: bounds[i+1]}
	}
	return ranges
}

// SumWindow adds up expense and income across all months.
func SumWindow(totals []MonthTotal) (expense, income int64) {
	for _, t := range totals {
		expense += t.ExpenseSum
		income += t.IncomeSum
	}
	return expense, income
}
