package contract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"smartexpense/internal/core"
)

func TestExpenseCore(t *testing.T) {
	raw := `{"id":7,"amount":12.5,"category":"food","date":"2024-01-01","description":"lunch","created_at":"2024-01-01T12:30:00.123456"}`
	var e Expense
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ce, err := e.Core()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ce.ID != 7 || ce.Amount.Cents != 1250 || ce.Category != core.CategoryFood || ce.Date.String() != "2024-01-01" {
		t.Fatalf("unexpected expense: %+v", ce)
	}
	if ce.CreatedAt.IsZero() || ce.CreatedAt.Hour() != 12 {
		t.Fatalf("expected created_at to be parsed, got %v", ce.CreatedAt)
	}
}

func TestExpenseCoreRejectsBadDate(t *testing.T) {
	_, err := Expense{ID: 3, Amount: 1, Category: "Food", Date: "soon"}.Core()
	if err == nil || !strings.Contains(err.Error(), "expense 3") {
		t.Fatalf("expected error naming the expense, got %v", err)
	}
}

func TestExpenseCoreRejectsBadAmount(t *testing.T) {
	for _, amount := range []float64{0, -12.5, 0.004, 1e17, 1e300} {
		_, err := Expense{ID: 4, Amount: amount, Category: "Food", Date: "2024-01-01"}.Core()
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	list := []Expense{
		{ID: 1, Amount: 3, Category: "Food", Date: "2024-01-01"},
		{ID: 2, Amount: -3, Category: "Food", Date: "2024-01-02"},
	}
	if _, err := ToExpenses(list); err == nil || !strings.Contains(err.Error(), "expense 2") {
		t.Fatalf("expected error naming the expense, got %v", err)
	}

	ce, err := Expense{ID: 5, Amount: 0.005, Category: "Food", Date: "2024-01-01"}.Core()
	if err != nil || ce.Amount.Cents != 1 {
		t.Fatalf("half a cent rounds up to one: %+v, %v", ce, err)
	}
}

func TestFromExpense(t *testing.T) {
	e := FromExpense(core.Expense{
		ID:       1,
		Amount:   core.Money{Cents: 1999},
		Category: core.CategoryTransport,
		Date:     core.NewDate(2024, 5, 6),
	})
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":1,"amount":19.99,"category":"Transport","date":"2024-05-06","description":""}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestEnvelope(t *testing.T) {
	env, err := OK([]int{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := json.Marshal(env)
	if string(b) != `{"success":true,"data":[1,2]}` {
		t.Fatalf("unexpected envelope: %s", b)
	}
	b, _ = json.Marshal(Fail("boom"))
	if string(b) != `{"success":false,"error":"boom"}` {
		t.Fatalf("unexpected failure envelope: %s", b)
	}
}

func TestAlertRoundTrip(t *testing.T) {
	report := core.SpendingAlerts(core.Money{Cents: 120000}, core.DefaultBudget())
	wire := FromAlertReport(report)
	if wire.MonthlyTotal != 1200 || wire.MonthlyLimit != 1000 || len(wire.Alerts) != 1 || wire.Alerts[0].Type != "danger" {
		t.Fatalf("unexpected wire alert: %+v", wire)
	}
	back := ToAlertReport(SpendingAlert{Alerts: []Alert{{Type: "warning", Message: "careful"}}})
	if len(back.Alerts) != 1 || back.Alerts[0].Type != core.AlertWarning || back.Alerts[0].Current.Cents != 0 {
		t.Fatalf("unexpected core alert: %+v", back)
	}
}

func TestMonthSummariesConversion(t *testing.T) {
	in := []core.MonthSummary{{
		Month:      "2024-02",
		Total:      core.Money{Cents: 1500},
		ByCategory: []core.CategoryAmount{{Category: core.CategoryFood, Amount: core.Money{Cents: 1500}}},
	}}
	out := ToMonthSummaries(FromMonthSummaries(in))
	if len(out) != 1 || out[0].Total.Cents != 1500 || out[0].ByCategory[0].Category != core.CategoryFood {
		t.Fatalf("unexpected conversion: %+v", out)
	}
}
