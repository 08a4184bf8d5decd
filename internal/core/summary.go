package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// TopCategoryLimit bounds the ranked category list shown in summaries.
	TopCategoryLimit = 5
	// RecentLimit bounds the recent expenses list on the dashboard.
	RecentLimit = 10
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// Summary holds the aggregates derived from a list of expenses.
// It is recomputed from scratch for every list; nothing is maintained incrementally.
type Summary struct {
	Total       Money
	Count       int
	Average     Money
	ByCategory  map[Category]Money
	Top         []CategoryAmount
	MaxCategory Money // never below one cent, used as a divisor for bar widths
	Recent      []Expense
}

// MonthSummary is a compact summary for a YYYY-MM month.
type MonthSummary struct {
	Month      string
	Total      Money
	ByCategory []CategoryAmount
}

// Summarize computes totals, average, per-category sums and the top categories.
// The input order is preserved for Recent, so backends returning newest first
// yield the most recent expenses.
func Summarize(expenses []Expense) Summary {
	s := Summary{
		Count:      len(expenses),
		ByCategory: make(map[Category]Money),
	}
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
	}
	s.Average = Average(s.Total, s.Count)

	ranked := RankCategories(s.ByCategory)
	if len(ranked) > TopCategoryLimit {
		ranked = ranked[:TopCategoryLimit]
	}
	s.Top = ranked

	s.MaxCategory = Money{Cents: 1}
	for _, amount := range s.ByCategory {
		if amount.Cents > s.MaxCategory.Cents {
			s.MaxCategory = amount
		}
	}

	n := len(expenses)
	if n > RecentLimit {
		n = RecentLimit
	}
	s.Recent = append([]Expense(nil), expenses[:n]...)
	return s
}

// Average divides total by count, rounding half-up to the cent. Zero when count is zero.
func Average(total Money, count int) Money {
	if count <= 0 {
		return Money{}
	}
	avg := decimal.NewFromInt(total.Cents).Div(decimal.NewFromInt(int64(count))).Round(0)
	return Money{Cents: avg.IntPart()}
}

// RankCategories sorts category sums descending by amount; equal sums are
// ordered by category name.
func RankCategories(byCategory map[Category]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(byCategory))
	for c, amount := range byCategory {
		out = append(out, CategoryAmount{Category: c, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// BarWidth returns amount as a rounded percentage of max, clamped to 0..100.
// Non-zero amounts get at least 2 so that tiny categories stay visible.
func BarWidth(amount, max Money) int {
	if max.Cents <= 0 || amount.Cents <= 0 {
		return 0
	}
	width := int((amount.Cents*100 + max.Cents/2) / max.Cents)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}
