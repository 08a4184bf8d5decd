package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"smartexpense/internal/config"
	"smartexpense/internal/core"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"api with url", Config{Type: APIBackend, BackendURL: "http://x"}, false},
		{"api without url", Config{Type: APIBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:        "memory",
		SeedFile:           "seed.json",
		MonthlyBudget:      "500",
		BudgetWarningRatio: 0.5,
		BackendTimeout:     time.Second,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != MemoryBackend || cfg.SeedFile != "seed.json" || cfg.Budget.MonthlyLimit.Cents != 50000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	body := `[{"id": 1, "amount": 900, "category": "Shopping", "date": "` + time.Now().Format("2006-01-02") + `"}]`
	if err := os.WriteFile(seed, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		SeedFile: seed,
		Budget:   core.DefaultBudget(),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	list, err := res.Backend.ListExpenses(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}
	alert, err := res.Backend.SpendingAlert(context.Background())
	if err != nil || len(alert.Alerts) != 1 || alert.Alerts[0].Type != core.AlertWarning {
		t.Fatalf("expected a warning for 90%% of the budget, got %+v err=%v", alert, err)
	}
	if res.Remote {
		t.Fatal("memory backend is local")
	}
}

func TestCreateSQLiteBackendWithoutBroker(t *testing.T) {
	res, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "db", "expenses.db"),
		Budget:       core.DefaultBudget(),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	ctx := context.Background()
	if err := res.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	created, err := res.Backend.CreateExpense(ctx, core.Expense{Amount: core.Money{Cents: 1250}, Category: core.CategoryFood, Date: core.NewDate(2024, 1, 1)})
	if err != nil || created.ID == 0 {
		t.Fatalf("CreateExpense: %+v err=%v", created, err)
	}
	cats, err := res.Backend.CategorySummary(ctx)
	if err != nil || len(cats) != 1 || cats[0].Amount.Cents != 1250 {
		t.Fatalf("unexpected categories: %+v err=%v", cats, err)
	}
}

func TestCreateAPIBackendCachesAnalytics(t *testing.T) {
	var analyticsCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/analytics/categories":
			analyticsCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    []map[string]any{{"category": "Food", "total": 12.5}},
			})
		case r.URL.Path == "/api/expenses" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"id": 1, "amount": 12.5, "category": "Food", "date": "2024-01-01"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{Type: APIBackend, BackendURL: srv.URL, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()
	ctx := context.Background()

	res.Backend.CategorySummary(ctx)
	res.Backend.CategorySummary(ctx)
	if n := analyticsCalls.Load(); n != 1 {
		t.Fatalf("expected cached analytics, got %d calls", n)
	}

	if _, err := res.Backend.CreateExpense(ctx, core.Expense{Amount: core.Money{Cents: 1250}, Category: core.CategoryFood, Date: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	res.Backend.CategorySummary(ctx)
	if n := analyticsCalls.Load(); n != 2 {
		t.Fatalf("write should invalidate the cache, got %d calls", n)
	}
	if !res.Remote {
		t.Fatal("api backend is remote")
	}
}
