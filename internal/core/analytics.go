package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

type (
	AlertLevel string

	// Budget is the monthly spending limit that drives spending alerts.
	Budget struct {
		MonthlyLimit Money
		WarningRatio float64 // fraction of the limit that triggers a warning
	}

	Alert struct {
		Type    AlertLevel
		Message string
		Current Money
		Limit   Money
	}

	AlertReport struct {
		MonthlyTotal Money
		MonthlyLimit Money
		Alerts       []Alert
	}
)

// DefaultBudget is €1000 per month with a warning at 80%.
func DefaultBudget() Budget {
	return Budget{MonthlyLimit: Money{Cents: 100000}, WarningRatio: 0.8}
}

// Title returns the banner heading for an alert level.
func (l AlertLevel) Title() string {
	if l == AlertDanger {
		return "Budget Exceeded!"
	}
	return "Budget Warning"
}

// MonthlySummaries groups expenses by YYYY-MM month and category,
// newest month first.
func MonthlySummaries(expenses []Expense) []MonthSummary {
	byMonth := make(map[string]map[Category]Money)
	for _, e := range expenses {
		key := e.Date.MonthKey()
		if byMonth[key] == nil {
			byMonth[key] = make(map[Category]Money)
		}
		byMonth[key][e.Category] = byMonth[key][e.Category].Add(e.Amount)
	}

	out := make([]MonthSummary, 0, len(byMonth))
	for month, cats := range byMonth {
		ms := MonthSummary{Month: month, ByCategory: RankCategories(cats)}
		for _, amount := range cats {
			ms.Total = ms.Total.Add(amount)
		}
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

// CategoryTotals sums every category over the whole list, largest first.
func CategoryTotals(expenses []Expense) []CategoryAmount {
	byCategory := make(map[Category]Money)
	for _, e := range expenses {
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
	}
	return RankCategories(byCategory)
}

// MonthTotal sums the expenses dated in the month of t.
func MonthTotal(expenses []Expense, t time.Time) Money {
	key := t.Format("2006-01")
	var total Money
	for _, e := range expenses {
		if e.Date.MonthKey() == key {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// SpendingAlerts compares the month total with the budget. At most one alert is
// raised: danger once the limit is reached, warning past the warning ratio.
func SpendingAlerts(monthTotal Money, b Budget) AlertReport {
	report := AlertReport{
		MonthlyTotal: monthTotal,
		MonthlyLimit: b.MonthlyLimit,
		Alerts:       []Alert{},
	}
	if b.MonthlyLimit.Cents <= 0 {
		return report
	}

	total := decimal.NewFromInt(monthTotal.Cents)
	limit := decimal.NewFromInt(b.MonthlyLimit.Cents)
	threshold := limit.Mul(decimal.NewFromFloat(b.WarningRatio))

	switch {
	case total.GreaterThanOrEqual(limit):
		report.Alerts = append(report.Alerts, Alert{
			Type:    AlertDanger,
			Message: fmt.Sprintf("You have exceeded your monthly budget of €%s!", b.MonthlyLimit.Decimal().StringFixed(2)),
			Current: monthTotal,
			Limit:   b.MonthlyLimit,
		})
	case total.GreaterThanOrEqual(threshold):
		pct := total.Div(limit).Mul(decimal.NewFromInt(100))
		report.Alerts = append(report.Alerts, Alert{
			Type:    AlertWarning,
			Message: fmt.Sprintf("You have used %s%% of your monthly budget", pct.StringFixed(1)),
			Current: monthTotal,
			Limit:   b.MonthlyLimit,
		})
	}
	return report
}
