// Package contract holds the JSON shapes exchanged with the expense backend.
//
// Every response is wrapped in an Envelope: {success, data?, error?}. Amounts
// travel as JSON numbers in euros and are converted to cents at this boundary.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"smartexpense/internal/core"
)

type (
	Envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data,omitempty"`
		Error   string          `json:"error,omitempty"`
	}

	Expense struct {
		ID          int64   `json:"id"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Date        string  `json:"date"`
		Description string  `json:"description"`
		CreatedAt   string  `json:"created_at,omitempty"`
	}

	// ExpenseInput is the body of create and update requests.
	ExpenseInput struct {
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Date        string  `json:"date"`
		Description string  `json:"description"`
	}

	CategoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
	}

	MonthlySummary struct {
		Month      string          `json:"month"`
		Categories []CategoryTotal `json:"categories"`
		Total      float64         `json:"total"`
	}

	Alert struct {
		Type    string  `json:"type"`
		Message string  `json:"message"`
		Current float64 `json:"current"`
		Limit   float64 `json:"limit"`
	}

	SpendingAlert struct {
		MonthlyTotal float64 `json:"monthly_total"`
		MonthlyLimit float64 `json:"monthly_limit"`
		Alerts       []Alert `json:"alerts"`
	}
)

// OK wraps data in a successful envelope.
func OK(data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal envelope data: %w", err)
	}
	return Envelope{Success: true, Data: raw}, nil
}

// Fail builds an error envelope.
func Fail(msg string) Envelope {
	return Envelope{Success: false, Error: msg}
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseCreatedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func FromExpense(e core.Expense) Expense {
	out := Expense{
		ID:          e.ID,
		Amount:      e.Amount.Euros(),
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Description: e.Description,
	}
	if !e.CreatedAt.IsZero() {
		out.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func FromExpenses(list []core.Expense) []Expense {
	out := make([]Expense, len(list))
	for i, e := range list {
		out[i] = FromExpense(e)
	}
	return out
}

// maxAmount is the largest euro amount whose cents fit in a Money.
const maxAmount = float64(math.MaxInt64 / 100)

// Core converts a wire expense. Categories outside the known set are kept
// as-is so that data written by other clients still renders. Amounts must be
// positive once rounded to cents.
func (e Expense) Core() (core.Expense, error) {
	date, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	if !(e.Amount > 0) || e.Amount > maxAmount {
		return core.Expense{}, fmt.Errorf("expense %d: amount %v: %w", e.ID, e.Amount, core.ErrInvalidAmount)
	}
	amount := core.MoneyFromFloat(e.Amount)
	if amount.Cents <= 0 {
		return core.Expense{}, fmt.Errorf("expense %d: amount %v: %w", e.ID, e.Amount, core.ErrInvalidAmount)
	}
	category, _ := core.ParseCategory(e.Category)
	return core.Expense{
		ID:          e.ID,
		Amount:      amount,
		Category:    category,
		Date:        date,
		Description: e.Description,
		CreatedAt:   parseCreatedAt(e.CreatedAt),
	}, nil
}

func ToExpenses(list []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(list))
	for _, e := range list {
		ce, err := e.Core()
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, nil
}

func InputFromExpense(e core.Expense) ExpenseInput {
	return ExpenseInput{
		Amount:      e.Amount.Euros(),
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Description: e.Description,
	}
}

func fromCategoryAmounts(in []core.CategoryAmount) []CategoryTotal {
	out := make([]CategoryTotal, len(in))
	for i, c := range in {
		out[i] = CategoryTotal{Category: string(c.Category), Total: c.Amount.Euros()}
	}
	return out
}

func toCategoryAmounts(in []CategoryTotal) []core.CategoryAmount {
	out := make([]core.CategoryAmount, len(in))
	for i, c := range in {
		out[i] = core.CategoryAmount{Category: core.Category(c.Category), Amount: core.MoneyFromFloat(c.Total)}
	}
	return out
}

func FromCategoryTotals(in []core.CategoryAmount) []CategoryTotal {
	return fromCategoryAmounts(in)
}

func ToCategoryTotals(in []CategoryTotal) []core.CategoryAmount {
	return toCategoryAmounts(in)
}

func FromMonthSummaries(in []core.MonthSummary) []MonthlySummary {
	out := make([]MonthlySummary, len(in))
	for i, m := range in {
		out[i] = MonthlySummary{
			Month:      m.Month,
			Categories: fromCategoryAmounts(m.ByCategory),
			Total:      m.Total.Euros(),
		}
	}
	return out
}

func ToMonthSummaries(in []MonthlySummary) []core.MonthSummary {
	out := make([]core.MonthSummary, len(in))
	for i, m := range in {
		out[i] = core.MonthSummary{
			Month:      m.Month,
			Total:      core.MoneyFromFloat(m.Total),
			ByCategory: toCategoryAmounts(m.Categories),
		}
	}
	return out
}

func FromAlertReport(r core.AlertReport) SpendingAlert {
	out := SpendingAlert{
		MonthlyTotal: r.MonthlyTotal.Euros(),
		MonthlyLimit: r.MonthlyLimit.Euros(),
		Alerts:       make([]Alert, len(r.Alerts)),
	}
	for i, a := range r.Alerts {
		out.Alerts[i] = Alert{
			Type:    string(a.Type),
			Message: a.Message,
			Current: a.Current.Euros(),
			Limit:   a.Limit.Euros(),
		}
	}
	return out
}

// ToAlertReport converts the wire alert. Older backends only send type and
// message, so missing amounts stay zero.
func ToAlertReport(s SpendingAlert) core.AlertReport {
	out := core.AlertReport{
		MonthlyTotal: core.MoneyFromFloat(s.MonthlyTotal),
		MonthlyLimit: core.MoneyFromFloat(s.MonthlyLimit),
		Alerts:       make([]core.Alert, 0, len(s.Alerts)),
	}
	for _, a := range s.Alerts {
		out.Alerts = append(out.Alerts, core.Alert{
			Type:    core.AlertLevel(a.Type),
			Message: a.Message,
			Current: core.MoneyFromFloat(a.Current),
			Limit:   core.MoneyFromFloat(a.Limit),
		})
	}
	return out
}
