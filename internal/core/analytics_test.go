package core

import (
	"testing"
	"time"
)

func TestMonthlySummaries(t *testing.T) {
	list := []Expense{
		{Amount: Money{Cents: 1000}, Category: CategoryFood, Date: NewDate(2024, 1, 5)},
		{Amount: Money{Cents: 300}, Category: CategoryFood, Date: NewDate(2024, 2, 1)},
		{Amount: Money{Cents: 700}, Category: CategoryTransport, Date: NewDate(2024, 2, 9)},
		{Amount: Money{Cents: 200}, Category: CategoryFood, Date: NewDate(2024, 2, 20)},
	}
	got := MonthlySummaries(list)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %d", len(got))
	}
	if got[0].Month != "2024-02" || got[1].Month != "2024-01" {
		t.Fatalf("expected newest month first, got %s, %s", got[0].Month, got[1].Month)
	}
	if got[0].Total.Cents != 1200 {
		t.Fatalf("expected Feb total 1200, got %d", got[0].Total.Cents)
	}
	if got[0].ByCategory[0].Category != CategoryTransport || got[0].ByCategory[1].Amount.Cents != 500 {
		t.Fatalf("unexpected Feb categories: %+v", got[0].ByCategory)
	}
}

func TestCategoryTotals(t *testing.T) {
	list := []Expense{
		{Amount: Money{Cents: 100}, Category: CategoryOther},
		{Amount: Money{Cents: 900}, Category: CategoryShopping},
		{Amount: Money{Cents: 250}, Category: CategoryOther},
	}
	got := CategoryTotals(list)
	if len(got) != 2 || got[0].Category != CategoryShopping || got[1].Amount.Cents != 350 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if len(CategoryTotals(nil)) != 0 {
		t.Fatalf("expected no totals for empty list")
	}
}

func TestMonthTotal(t *testing.T) {
	list := []Expense{
		{Amount: Money{Cents: 100}, Date: NewDate(2024, 3, 1)},
		{Amount: Money{Cents: 200}, Date: NewDate(2024, 3, 31)},
		{Amount: Money{Cents: 400}, Date: NewDate(2024, 4, 1)},
	}
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if got := MonthTotal(list, now).Cents; got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}
}

func TestSpendingAlerts(t *testing.T) {
	budget := DefaultBudget()
	cases := []struct {
		name    string
		total   int64
		level   AlertLevel
		message string
	}{
		{"under threshold", 50000, "", ""},
		{"just below threshold", 79999, "", ""},
		{"at threshold", 80000, AlertWarning, "You have used 80.0% of your monthly budget"},
		{"warning", 85050, AlertWarning, "You have used 85.1% of your monthly budget"},
		{"at limit", 100000, AlertDanger, "You have exceeded your monthly budget of €1000.00!"},
		{"over limit", 150000, AlertDanger, "You have exceeded your monthly budget of €1000.00!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := SpendingAlerts(Money{Cents: tc.total}, budget)
			if report.MonthlyTotal.Cents != tc.total || report.MonthlyLimit.Cents != 100000 {
				t.Fatalf("unexpected report totals: %+v", report)
			}
			if report.Alerts == nil {
				t.Fatalf("alerts must never be nil")
			}
			if tc.level == "" {
				if len(report.Alerts) != 0 {
					t.Fatalf("expected no alerts, got %+v", report.Alerts)
				}
				return
			}
			if len(report.Alerts) != 1 {
				t.Fatalf("expected one alert, got %d", len(report.Alerts))
			}
			a := report.Alerts[0]
			if a.Type != tc.level || a.Message != tc.message {
				t.Fatalf("expected %s %q, got %s %q", tc.level, tc.message, a.Type, a.Message)
			}
		})
	}
}

func TestSpendingAlertsWithoutLimit(t *testing.T) {
	report := SpendingAlerts(Money{Cents: 999999}, Budget{})
	if len(report.Alerts) != 0 {
		t.Fatalf("expected no alerts without a limit")
	}
}
