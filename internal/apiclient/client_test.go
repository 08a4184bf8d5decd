package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartexpense/internal/core"
)

// fakeBackend is a minimal in-memory implementation of the backend contract.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	items    []map[string]any
	noPut    bool
	creates  int32
	lastReq  *http.Request
	fail     map[string]int
	failBody string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 1, fail: map[string]int{}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = r

	key := r.Method + " " + r.URL.Path
	if status, ok := f.fail[key]; ok {
		if f.failBody != "" {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, f.failBody)
			return
		}
		writeJSON(w, status, map[string]any{"success": false, "error": "backend exploded"})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/expenses":
		writeJSON(w, 200, map[string]any{"success": true, "data": f.items})
	case r.Method == http.MethodPost && r.URL.Path == "/api/expenses":
		atomic.AddInt32(&f.creates, 1)
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		in["id"] = f.nextID
		f.nextID++
		f.items = append([]map[string]any{in}, f.items...)
		writeJSON(w, 201, map[string]any{"success": true, "data": in})
	case strings.HasPrefix(r.URL.Path, "/api/expenses/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
		idx := -1
		for i, it := range f.items {
			if jsonID(it["id"]) == id {
				idx = i
			}
		}
		if r.Method == http.MethodPut && f.noPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = io.WriteString(w, "<html>Method Not Allowed</html>")
			return
		}
		if idx < 0 {
			writeJSON(w, 404, map[string]any{"success": false, "error": "Expense not found"})
			return
		}
		switch r.Method {
		case http.MethodDelete:
			f.items = append(f.items[:idx], f.items[idx+1:]...)
			writeJSON(w, 200, map[string]any{"success": true})
		case http.MethodPut:
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			in["id"] = f.items[idx]["id"]
			f.items[idx] = in
			writeJSON(w, 200, map[string]any{"success": true, "data": in})
		}
	case r.URL.Path == "/api/analytics/monthly":
		writeJSON(w, 200, map[string]any{"success": true, "data": []map[string]any{
			{"month": "2024-02", "total": 30.5, "categories": []map[string]any{{"category": "Food", "total": 30.5}}},
		}})
	case r.URL.Path == "/api/analytics/categories":
		writeJSON(w, 200, map[string]any{"success": true, "data": []map[string]any{
			{"category": "Food", "total": 30.5},
		}})
	case r.URL.Path == "/api/analytics/spending-alert":
		writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{
			"monthly_total": 850.0, "monthly_limit": 1000.0,
			"alerts": []map[string]any{{"type": "warning", "message": "You have used 85.0% of your monthly budget"}},
		}})
	default:
		http.NotFound(w, r)
	}
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func sample() core.Expense {
	return core.Expense{
		Amount:      core.Money{Cents: 1250},
		Category:    core.CategoryFood,
		Date:        core.NewDate(2024, 1, 1),
		Description: "lunch",
	}
}

func TestClient_CreateAndList(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	defer srv.Close()
	c := New(srv.URL)

	created, err := c.CreateExpense(context.Background(), sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 || created.Amount.Cents != 1250 {
		t.Fatalf("unexpected created expense: %+v", created)
	}
	if ct := fb.lastReq.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON body, got %q", ct)
	}

	list, err := c.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Description != "lunch" || list[0].Date.String() != "2024-01-01" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	fb := newFakeBackend()
	fb.fail["GET /api/expenses"] = http.StatusInternalServerError
	srv := httptest.NewServer(fb)
	defer srv.Close()

	_, err := New(srv.URL).ListExpenses(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != 500 || apiErr.Message != "backend exploded" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if Message(err) != "backend exploded" {
		t.Fatalf("unexpected message: %q", Message(err))
	}
}

func TestClient_NonJSONError(t *testing.T) {
	fb := newFakeBackend()
	fb.fail["GET /api/expenses"] = http.StatusBadGateway
	fb.failBody = "<html>bad gateway</html>"
	srv := httptest.NewServer(fb)
	defer srv.Close()

	_, err := New(srv.URL).ListExpenses(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 502 || apiErr.Message != "Bad Gateway" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, WithTimeout(time.Second)).ListExpenses(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 0 {
		t.Fatalf("expected transport APIError, got %v", err)
	}
	if !strings.HasPrefix(apiErr.Message, "backend unreachable") {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestClient_DeleteNotFound(t *testing.T) {
	srv := httptest.NewServer(newFakeBackend())
	defer srv.Close()

	err := New(srv.URL).DeleteExpense(context.Background(), 42)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_UpdateInPlace(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	defer srv.Close()
	c := New(srv.URL)

	created, err := c.CreateExpense(context.Background(), sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	edited := sample()
	edited.Amount = core.Money{Cents: 2000}
	updated, err := c.UpdateExpense(context.Background(), created.ID, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.Amount.Cents != 2000 {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if atomic.LoadInt32(&fb.creates) != 1 {
		t.Fatalf("expected a single create, got %d", fb.creates)
	}
}

func TestClient_UpdateFallsBackToReplace(t *testing.T) {
	fb := newFakeBackend()
	fb.noPut = true
	srv := httptest.NewServer(fb)
	defer srv.Close()
	c := New(srv.URL)

	created, err := c.CreateExpense(context.Background(), sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	edited := sample()
	edited.Description = "dinner"
	updated, err := c.UpdateExpense(context.Background(), created.ID, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID == created.ID || updated.Description != "dinner" {
		t.Fatalf("expected a replacement expense, got %+v", updated)
	}

	list, err := c.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != updated.ID {
		t.Fatalf("expected only the replacement to remain, got %+v", list)
	}
}

func TestClient_Analytics(t *testing.T) {
	srv := httptest.NewServer(newFakeBackend())
	defer srv.Close()

	a, err := New(srv.URL).Analytics(context.Background())
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(a.Monthly) != 1 || a.Monthly[0].Total.Cents != 3050 {
		t.Fatalf("unexpected monthly: %+v", a.Monthly)
	}
	if len(a.Categories) != 1 || a.Categories[0].Category != core.CategoryFood {
		t.Fatalf("unexpected categories: %+v", a.Categories)
	}
	if len(a.Alert.Alerts) != 1 || a.Alert.Alerts[0].Type != core.AlertWarning || a.Alert.MonthlyTotal.Cents != 85000 {
		t.Fatalf("unexpected alert: %+v", a.Alert)
	}
}

func TestClient_AnalyticsFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.fail["GET /api/analytics/categories"] = http.StatusInternalServerError
	srv := httptest.NewServer(fb)
	defer srv.Close()

	if _, err := New(srv.URL).Analytics(context.Background()); err == nil {
		t.Fatal("expected analytics to fail when one view fails")
	}
}
