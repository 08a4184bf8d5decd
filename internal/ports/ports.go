package ports

import (
	"context"

	"smartexpense/internal/core"
)

// Ports for the stores that can stand behind the views.
type (
	ExpenseLister interface {
		// ListExpenses returns every expense, newest first.
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	ExpenseWriter interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	ExpenseUpdater interface {
		UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error)
	}

	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id int64) error
	}

	// AnalyticsReader serves the aggregated views of the backend.
	AnalyticsReader interface {
		MonthlySummary(ctx context.Context) ([]core.MonthSummary, error)
		CategorySummary(ctx context.Context) ([]core.CategoryAmount, error)
		SpendingAlert(ctx context.Context) (core.AlertReport, error)
	}

	// ExpenseStore is everything the expense tracker needs.
	ExpenseStore interface {
		ExpenseLister
		ExpenseWriter
		ExpenseUpdater
		ExpenseDeleter
	}
)
