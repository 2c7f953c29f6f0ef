package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountbook/internal/core"
)

func insertAll(t *testing.T, repo *EntryRepository, drafts ...core.Draft) {
	t.Helper()
	for _, d := range drafts {
		_, err := repo.Insert(context.Background(), d)
		require.NoError(t, err)
	}
}

func TestMonthlyTotals_ThreeMonthScenario(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 12, 0, 0, 0, kst))
	d := newTestDB(t, clock)
	repo := NewEntryRepository(d)

	insertAll(t, repo,
		core.Draft{Kind: core.KindExpense, Amount: 10000, OccurredAt: time.Date(2026, 8, 10, 9, 0, 0, 0, kst)},
		core.Draft{Kind: core.KindIncome, Amount: 20000, OccurredAt: time.Date(2026, 9, 5, 9, 0, 0, 0, kst)},
		core.Draft{Kind: core.KindExpense, Amount: 5000, OccurredAt: time.Date(2026, 10, 3, 9, 0, 0, 0, kst)},
		core.Draft{Kind: core.KindIncome, Amount: 3000, OccurredAt: time.Date(2026, 10, 3, 9, 0, 0, 0, kst)},
	)

	totals, err := NewAggregator(d).MonthlyTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 3)

	want := []struct {
		month   int
		expense int64
		income  int64
	}{
		{7, 10000, 0},
		{8, 0, 20000},
		{9, 5000, 3000},
	}
	for i, w := range want {
		assert.Equal(t, w.month, totals[i].MonthIndex, "range %d month", i)
		assert.Equal(t, 2026, totals[i].Year)
		assert.Equal(t, w.expense, totals[i].ExpenseSum, "range %d expense", i)
		assert.Equal(t, w.income, totals[i].IncomeSum, "range %d income", i)
	}
	assert.True(t, totals[2].End.Equal(clock.Now()), "current range ends at now")
}

func TestMonthlyTotals_EmptyStoreIsZero(t *testing.T) {
	d := newTestDB(t, newFakeClock(time.Date(2026, 1, 20, 0, 0, 0, 0, kst)))

	totals, err := NewAggregator(d).MonthlyTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 3)

	assert.Equal(t, []int{10, 11, 0}, []int{totals[0].MonthIndex, totals[1].MonthIndex, totals[2].MonthIndex})
	assert.Equal(t, 2025, totals[0].Year)
	assert.Equal(t, 2026, totals[2].Year)
	for _, m := range totals {
		assert.Zero(t, m.ExpenseSum)
		assert.Zero(t, m.IncomeSum)
	}
}

func TestMonthlyTotals_RangesAreHalfOpen(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, kst)
	clock := newFakeClock(now)
	d := newTestDB(t, clock)
	repo := NewEntryRepository(d)

	insertAll(t, repo,
		// first instant of the window counts toward M-2
		core.Draft{Kind: core.KindExpense, Amount: 1, OccurredAt: time.Date(2026, 8, 1, 0, 0, 0, 0, kst)},
		// last millisecond before the window is excluded
		core.Draft{Kind: core.KindExpense, Amount: 100, OccurredAt: time.Date(2026, 8, 1, 0, 0, 0, 0, kst).Add(-time.Millisecond)},
		// a month boundary belongs to the later month
		core.Draft{Kind: core.KindIncome, Amount: 7, OccurredAt: time.Date(2026, 10, 1, 0, 0, 0, 0, kst)},
		// now itself and later dates are outside the month-to-date range
		core.Draft{Kind: core.KindIncome, Amount: 1000, OccurredAt: now},
		core.Draft{Kind: core.KindExpense, Amount: 1000, OccurredAt: now.AddDate(0, 0, 3)},
	)

	totals, err := NewAggregator(d).MonthlyTotals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), totals[0].ExpenseSum)
	assert.Zero(t, totals[1].IncomeSum)
	assert.Equal(t, int64(7), totals[2].IncomeSum)
	assert.Zero(t, totals[2].ExpenseSum)

	// once time passes the future-dated entry enters the current range
	clock.Advance(4 * 24 * time.Hour)
	totals, err = NewAggregator(d).MonthlyTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), totals[2].ExpenseSum)
	assert.Equal(t, int64(1007), totals[2].IncomeSum)
}

func TestMonthlyTotals_UsesOccurredAtNotCreatedAt(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 12, 0, 0, 0, kst))
	d := newTestDB(t, clock)
	repo := NewEntryRepository(d)

	// recorded today, dated two months back
	insertAll(t, repo, core.Draft{Kind: core.KindIncome, Amount: 42, OccurredAt: time.Date(2026, 8, 20, 0, 0, 0, 0, kst)})

	totals, err := NewAggregator(d).MonthlyTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), totals[0].IncomeSum)
	assert.Zero(t, totals[2].IncomeSum)
}

func TestMonthlyTotals_QueryFailureIsReadError(t *testing.T) {
	d := newTestDB(t, newFakeClock(time.Now()))

	db, err := d.Open(context.Background())
	require.NoError(t, err)
	_, err = db.Exec(`DROP TABLE account_history`)
	require.NoError(t, err)

	totals, err := NewAggregator(d).MonthlyTotals(context.Background())
	require.ErrorIs(t, err, core.ErrRead)
	assert.Nil(t, totals, "no partial aggregation on failure")
}

func TestRangeTotals_KeepsRequestedOrder(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 12, 0, 0, 0, kst))
	d := newTestDB(t, clock)
	insertAll(t, NewEntryRepository(d),
		core.Draft{Kind: core.KindExpense, Amount: 300, OccurredAt: time.Date(2026, 3, 2, 0, 0, 0, 0, kst)},
		core.Draft{Kind: core.KindIncome, Amount: 40, OccurredAt: time.Date(2026, 5, 2, 0, 0, 0, 0, kst)},
	)

	may := core.Range{Start: time.Date(2026, 5, 1, 0, 0, 0, 0, kst), End: time.Date(2026, 6, 1, 0, 0, 0, 0, kst)}
	march := core.Range{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, kst), End: time.Date(2026, 4, 1, 0, 0, 0, 0, kst)}

	totals, err := NewAggregator(d).RangeTotals(context.Background(), []core.Range{may, march})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 4, totals[0].MonthIndex)
	assert.Equal(t, int64(40), totals[0].IncomeSum)
	assert.Equal(t, 2, totals[1].MonthIndex)
	assert.Equal(t, int64(300), totals[1].ExpenseSum)

	none, err := NewAggregator(d).RangeTotals(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
