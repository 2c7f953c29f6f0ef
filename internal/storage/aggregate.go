package storage

import (
	"context"
	"database/sql"
	"fmt"

	"accountbook/internal/core"
)

const rangeSumSQL = `SELECT COALESCE(SUM(price), 0) FROM account_history
	WHERE date >= ? AND date < ? AND type = ?`

// Aggregator computes income and expense sums over recent calendar months.
type Aggregator struct {
	db *DB
}

func NewAggregator(db *DB) *Aggregator {
	return &Aggregator{db: db}
}

// MonthlyTotals returns exactly core.WindowMonths totals, oldest first: the
// two months before the current one and the current month up to now. Each
// total comes from two independent range-sum queries, one per kind. The first
// failing query aborts the whole call.
func (a *Aggregator) MonthlyTotals(ctx context.Context) ([]core.MonthTotal, error) {
	return a.RangeTotals(ctx, core.MonthWindows(a.db.now(), a.db.loc))
}

// RangeTotals sums expense and income over each range, in the given order,
// inside one read transaction.
func (a *Aggregator) RangeTotals(ctx context.Context, ranges []core.Range) ([]core.MonthTotal, error) {
	totals, err := WithTransaction(ctx, a.db, func(ctx context.Context, tx *sql.Tx) ([]core.MonthTotal, error) {
		stmt, err := tx.PrepareContext(ctx, rangeSumSQL)
		if err != nil {
			return nil, fmt.Errorf("prepare range sum: %w", err)
		}
		defer stmt.Close()

		totals := make([]core.MonthTotal, 0, len(ranges))
		for _, rg := range ranges {
			expense, err := rangeSum(ctx, stmt, rg, core.KindExpense)
			if err != nil {
				return nil, err
			}
			income, err := rangeSum(ctx, stmt, rg, core.KindIncome)
			if err != nil {
				return nil, err
			}

			totals = append(totals, core.MonthTotal{
				Year:       rg.Start.Year(),
				MonthIndex: int(rg.Start.Month()) - 1,
				Start:      rg.Start,
				End:        rg.End,
				ExpenseSum: expense,
				IncomeSum:  income,
			})
		}
		return totals, nil
	})
	if err != nil {
		return nil, classify(core.ErrRead, "monthly totals", err)
	}

	logger().DebugContext(ctx, "Range totals computed", "ranges", len(totals))
	return totals, nil
}

func rangeSum(ctx context.Context, stmt *sql.Stmt, rg core.Range, kind core.Kind) (int64, error) {
	var sum int64
	err := stmt.QueryRowContext(ctx, rg.Start.UnixMilli(), rg.End.UnixMilli(), kind.Label()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum %s for %s: %w", kind, rg.Start.Format("2006-01"), err)
	}
	return sum, nil
}
