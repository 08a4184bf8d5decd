package services

import (
	"context"
	"fmt"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/ports"
)

// LocalAnalytics computes the analytics views from the full expense list of a
// local store, the same way the remote backend does.
type LocalAnalytics struct {
	expenses ports.ExpenseLister
	budget   core.Budget
	now      func() time.Time
}

func NewLocalAnalytics(expenses ports.ExpenseLister, budget core.Budget) *LocalAnalytics {
	return &LocalAnalytics{expenses: expenses, budget: budget, now: time.Now}
}

func (a *LocalAnalytics) MonthlySummary(ctx context.Context) ([]core.MonthSummary, error) {
	list, err := a.expenses.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly summary: %w", err)
	}
	return core.MonthlySummaries(list), nil
}

func (a *LocalAnalytics) CategorySummary(ctx context.Context) ([]core.CategoryAmount, error) {
	list, err := a.expenses.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	return core.CategoryTotals(list), nil
}

// SpendingAlert compares the current month's total with the budget.
func (a *LocalAnalytics) SpendingAlert(ctx context.Context) (core.AlertReport, error) {
	list, err := a.expenses.ListExpenses(ctx)
	if err != nil {
		return core.AlertReport{}, fmt.Errorf("spending alert: %w", err)
	}
	return core.SpendingAlerts(core.MonthTotal(list, a.now()), a.budget), nil
}
