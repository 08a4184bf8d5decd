package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"smartexpense/internal/core"
	"smartexpense/internal/ports"
)

const (
	keyMonthly    = "monthly"
	keyCategories = "categories"
)

// LookupObserver is told about every cache lookup.
type LookupObserver interface {
	CacheLookup(hit bool)
}

// Analytics caches the analytics views of a slower reader, typically the
// remote backend. Concurrent misses for the same view share one fetch.
type Analytics struct {
	reader     ports.AnalyticsReader
	observer   LookupObserver
	monthly    *LRUCache[[]core.MonthSummary]
	categories *LRUCache[[]core.CategoryAmount]
	alerts     *LRUCache[core.AlertReport]
	group      singleflight.Group
	generation atomic.Uint64
	now        func() time.Time
}

// NewAnalytics wraps reader with caches holding entries for ttl. observer may be nil.
func NewAnalytics(reader ports.AnalyticsReader, ttl time.Duration, observer LookupObserver) *Analytics {
	return &Analytics{
		reader:     reader,
		observer:   observer,
		monthly:    NewLRUCache[[]core.MonthSummary](1, ttl),
		categories: NewLRUCache[[]core.CategoryAmount](1, ttl),
		alerts:     NewLRUCache[core.AlertReport](2, ttl),
		now:        time.Now,
	}
}

// Register adds the underlying caches to m for periodic cleanup.
func (a *Analytics) Register(m *Manager) {
	m.Register(a.monthly)
	m.Register(a.categories)
	m.Register(a.alerts)
}

// Invalidate drops every cached view. Fetches already in flight are not stored.
func (a *Analytics) Invalidate() {
	a.generation.Add(1)
	a.group.Forget(keyMonthly)
	a.group.Forget(keyCategories)
	a.group.Forget(a.alertKey())
	a.monthly.Clear()
	a.categories.Clear()
	a.alerts.Clear()
}

func (a *Analytics) MonthlySummary(ctx context.Context) ([]core.MonthSummary, error) {
	return lookup(ctx, a, a.monthly, keyMonthly, a.reader.MonthlySummary)
}

func (a *Analytics) CategorySummary(ctx context.Context) ([]core.CategoryAmount, error) {
	return lookup(ctx, a, a.categories, keyCategories, a.reader.CategorySummary)
}

// SpendingAlert is keyed by month so that a new month never sees last month's report.
func (a *Analytics) SpendingAlert(ctx context.Context) (core.AlertReport, error) {
	return lookup(ctx, a, a.alerts, a.alertKey(), a.reader.SpendingAlert)
}

func (a *Analytics) alertKey() string {
	return "alert:" + a.now().Format("2006-01")
}

func lookup[T any](ctx context.Context, a *Analytics, c *LRUCache[T], key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		a.observe(true)
		return v, nil
	}
	a.observe(false)

	gen := a.generation.Load()
	v, err, _ := a.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if a.generation.Load() == gen {
			c.Set(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (a *Analytics) observe(hit bool) {
	if a.observer != nil {
		a.observer.CacheLookup(hit)
	}
}

// Invalidator drops cached data derived from the expense list.
type Invalidator interface {
	Invalidate()
}

// InvalidatingStore invalidates the analytics cache after every write attempt,
// successful or not, since a failed replace may still have changed the backend.
type InvalidatingStore struct {
	ports.ExpenseStore
	inv Invalidator
}

func NewInvalidatingStore(store ports.ExpenseStore, inv Invalidator) *InvalidatingStore {
	return &InvalidatingStore{ExpenseStore: store, inv: inv}
}

func (s *InvalidatingStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	defer s.inv.Invalidate()
	return s.ExpenseStore.CreateExpense(ctx, e)
}

func (s *InvalidatingStore) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	defer s.inv.Invalidate()
	return s.ExpenseStore.UpdateExpense(ctx, id, e)
}

func (s *InvalidatingStore) DeleteExpense(ctx context.Context, id int64) error {
	defer s.inv.Invalidate()
	return s.ExpenseStore.DeleteExpense(ctx, id)
}
