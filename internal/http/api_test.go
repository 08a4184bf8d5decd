package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/backend"
	"smartexpense/internal/contract"
	"smartexpense/internal/core"
	"smartexpense/internal/memory"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) contract.Envelope {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var env contract.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, rr.Body.String())
	}
	if data != nil && env.Success {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAPIListExpenses(t *testing.T) {
	srv := newTestServer(t, memory.New(seedExpenses()...))

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var list []contract.Expense
	env := decodeEnvelope(t, rr, &list)
	if !env.Success {
		t.Fatalf("success = false: %s", env.Error)
	}
	if len(list) != 2 || list[0].ID != 1 || list[0].Amount != 12.5 || list[0].Date != "2026-10-03" {
		t.Errorf("list = %+v", list)
	}
}

func TestAPIListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, memory.New())
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	if !strings.Contains(rr.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want empty array data", rr.Body.String())
	}
}

func TestAPICreateExpense(t *testing.T) {
	tests := []struct {
		name        string
		req         *http.Request
		wantStatus  int
		wantSuccess bool
		wantError   string
	}{
		{
			name:        "json body",
			req:         jsonRequest(http.MethodPost, "/api/expenses", `{"amount": 12.34, "category": "Food", "date": "2026-10-05", "description": "Groceries"}`),
			wantStatus:  http.StatusCreated,
			wantSuccess: true,
		},
		{
			name:        "form body",
			req:         postForm("/api/expenses", url.Values{"amount": {"3"}, "category": {"Other"}, "date": {"2026-10-05"}}),
			wantStatus:  http.StatusCreated,
			wantSuccess: true,
		},
		{
			name:       "validation messages are joined",
			req:        jsonRequest(http.MethodPost, "/api/expenses", `{"amount": 0, "category": "", "date": "2026-10-05"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Amount must be greater than 0; Please select a category",
		},
		{
			name:       "unknown category",
			req:        jsonRequest(http.MethodPost, "/api/expenses", `{"amount": 1, "category": "Travel", "date": "2026-10-05"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Unknown category",
		},
		{
			name:       "empty body",
			req:        jsonRequest(http.MethodPost, "/api/expenses", ""),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "malformed json",
			req:        jsonRequest(http.MethodPost, "/api/expenses", `{"amount": `),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			srv := newTestServer(t, store)

			rr := serve(srv, tt.req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			var created contract.Expense
			env := decodeEnvelope(t, rr, &created)
			if env.Success != tt.wantSuccess {
				t.Fatalf("success = %v, want %v", env.Success, tt.wantSuccess)
			}
			if env.Error != tt.wantError {
				t.Errorf("error = %q, want %q", env.Error, tt.wantError)
			}
			if tt.wantSuccess {
				if created.ID == 0 {
					t.Error("created expense has no id")
				}
				if store.Len() != 1 {
					t.Errorf("store has %d expenses, want 1", store.Len())
				}
			} else if store.Len() != 0 {
				t.Errorf("store has %d expenses after a rejected create", store.Len())
			}
		})
	}
}

func TestAPIUpdateExpense(t *testing.T) {
	store := memory.New(seedExpenses()...)
	srv := newTestServer(t, store)

	rr := serve(srv, jsonRequest(http.MethodPut, "/api/expenses/2", `{"amount": "9.99", "category": "Transport", "date": "2026-10-02", "description": "Bus"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var updated contract.Expense
	decodeEnvelope(t, rr, &updated)
	if updated.ID != 2 || updated.Amount != 9.99 || updated.Description != "Bus" {
		t.Errorf("updated = %+v", updated)
	}

	rr = serve(srv, jsonRequest(http.MethodPut, "/api/expenses/42", `{"amount": 1, "category": "Food", "date": "2026-10-02"}`))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rr.Code)
	}
}

func TestAPIDeleteExpense(t *testing.T) {
	store := memory.New(seedExpenses()...)
	srv := newTestServer(t, store)

	rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/api/expenses/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr, nil); !env.Success {
		t.Fatalf("success = false: %s", env.Error)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d expenses, want 1", store.Len())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/expenses/1", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/expenses/abc", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("malformed id status = %d, want 404", rr.Code)
	}
}

func TestAPIBackendFailures(t *testing.T) {
	tests := []struct {
		name       string
		remote     bool
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "remote backend unreachable",
			remote:     true,
			err:        &apiclient.APIError{Message: "backend unreachable: connection refused"},
			wantStatus: http.StatusBadGateway,
			wantError:  "backend unreachable: connection refused",
		},
		{
			name:       "remote backend error status",
			remote:     true,
			err:        &apiclient.APIError{Status: http.StatusInternalServerError, Message: "Database error"},
			wantStatus: http.StatusBadGateway,
			wantError:  "Database error",
		},
		{
			name:       "local store failure",
			remote:     false,
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := failingStore{err: tt.err}
			srv := newTestServer(t, store, func(d *Dependencies) {
				d.Backend = &backend.BackendResult{
					Backend: testBackend{ExpenseStore: store, AnalyticsReader: fakeAnalytics{err: tt.err}},
					Remote:  tt.remote,
				}
			})

			for _, path := range []string{"/api/expenses", "/api/analytics/monthly", "/api/analytics/categories", "/api/analytics/spending-alert"} {
				rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
				if rr.Code != tt.wantStatus {
					t.Fatalf("%s status = %d, want %d", path, rr.Code, tt.wantStatus)
				}
				env := decodeEnvelope(t, rr, nil)
				if env.Success || env.Error != tt.wantError {
					t.Errorf("%s envelope = %+v", path, env)
				}
			}

			rr := serve(srv, jsonRequest(http.MethodPost, "/api/expenses", `{"amount": 1, "category": "Food", "date": "2026-10-02"}`))
			if rr.Code != tt.wantStatus {
				t.Fatalf("create status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if env := decodeEnvelope(t, rr, nil); !strings.Contains(env.Error, tt.wantError) {
				t.Errorf("create error = %q, want it to contain %q", env.Error, tt.wantError)
			}
		})
	}
}

func TestAPIAnalytics(t *testing.T) {
	store := memory.New(
		core.Expense{ID: 1, Amount: core.Money{Cents: 3000}, Category: core.CategoryFood, Date: core.NewDate(2026, 9, 1)},
		core.Expense{ID: 2, Amount: core.Money{Cents: 1000}, Category: core.CategoryFood, Date: core.NewDate(2026, 10, 2)},
		core.Expense{ID: 3, Amount: core.Money{Cents: 2000}, Category: core.CategoryTransport, Date: core.NewDate(2026, 10, 3)},
	)
	srv := newTestServer(t, store)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/analytics/monthly", nil))
	var monthly []contract.MonthlySummary
	decodeEnvelope(t, rr, &monthly)
	if len(monthly) != 2 || monthly[0].Month != "2026-10" || monthly[0].Total != 30 {
		t.Errorf("monthly = %+v", monthly)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/analytics/categories", nil))
	var cats []contract.CategoryTotal
	decodeEnvelope(t, rr, &cats)
	if len(cats) != 2 || cats[0].Category != "Food" || cats[0].Total != 40 {
		t.Errorf("categories = %+v", cats)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/analytics/spending-alert", nil))
	var alert contract.SpendingAlert
	decodeEnvelope(t, rr, &alert)
	if alert.MonthlyLimit != 1000 || alert.Alerts == nil {
		t.Errorf("alert = %+v", alert)
	}
}

func TestAPIWritesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, memory.New(), func(d *Dependencies) { d.RateLimitPerMinute = 1 })

	body := `{"amount": 1, "category": "Food", "date": "2026-10-02"}`
	if rr := serve(srv, jsonRequest(http.MethodPost, "/api/expenses", body)); rr.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", rr.Code)
	}
	rr := serve(srv, jsonRequest(http.MethodPost, "/api/expenses", body))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second create status = %d, want 429", rr.Code)
	}
	if env := decodeEnvelope(t, rr, nil); env.Success || env.Error == "" {
		t.Errorf("envelope = %+v", env)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Error("missing Retry-After")
	}

	// Reads are never limited.
	for i := 0; i < 3; i++ {
		if rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil)); rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d", i, rr.Code)
		}
	}
}

type panickingStore struct{ failingStore }

func (panickingStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	panic("boom")
}

func TestAPIRecoversFromPanics(t *testing.T) {
	store := panickingStore{}
	srv := newTestServer(t, memory.New(), func(d *Dependencies) {
		d.Backend = &backend.BackendResult{
			Backend: testBackend{ExpenseStore: store, AnalyticsReader: fakeAnalytics{}},
		}
	})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if env := decodeEnvelope(t, rr, nil); env.Success {
		t.Errorf("envelope = %+v", env)
	}

	// The server keeps serving after a panic.
	if rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}
