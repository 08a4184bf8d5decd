// Package tracker keeps the list of expenses shown by the views in sync with
// the selected backend.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/ports"
)

const refetchKey = "expenses"

// Snapshot is a copy of the tracker state at one point in time.
type Snapshot struct {
	Expenses  []core.Expense
	Loading   bool
	Error     string
	FetchedAt time.Time
}

// Loaded reports whether at least one fetch has succeeded.
func (s Snapshot) Loaded() bool {
	return !s.FetchedAt.IsZero()
}

// Find returns the expense with the given id from the snapshot.
func (s Snapshot) Find(id int64) (core.Expense, bool) {
	for _, e := range s.Expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

// Tracker holds the current list of expenses. The list is only ever replaced
// wholesale by a successful fetch; writes go to the store and are followed by
// a full refetch.
type Tracker struct {
	store  ports.ExpenseStore
	logger *applog.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	expenses  []core.Expense
	loading   bool
	errMsg    string
	fetchedAt time.Time
}

type Option func(*Tracker)

func WithLogger(l *applog.Logger) Option {
	return func(t *Tracker) { t.logger = l.WithComponent(applog.ComponentTracker) }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(store ports.ExpenseStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: applog.FromContext(context.Background()).WithComponent(applog.ComponentTracker),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refetch reloads the full list. On failure the previous list is kept and the
// error message is recorded. Concurrent calls share a single fetch, which is
// not cancelled when the caller that started it goes away.
func (t *Tracker) Refetch(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)
	_, err, _ := t.group.Do(refetchKey, func() (any, error) {
		return nil, t.fetch(shared)
	})
	return err
}

func (t *Tracker) fetch(ctx context.Context) error {
	t.mu.Lock()
	t.loading = true
	t.errMsg = ""
	t.mu.Unlock()

	list, err := t.store.ListExpenses(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	if err != nil {
		t.errMsg = apiclient.Message(err)
		t.logger.WarnContext(ctx, "Failed to fetch expenses",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		return fmt.Errorf("fetch expenses: %w", err)
	}
	t.expenses = list
	t.fetchedAt = t.now()
	t.logger.DebugContext(ctx, "Fetched expenses", applog.FieldCount, len(list))
	return nil
}

// refetchAfterWrite starts a new fetch even if one is in flight, since an
// earlier fetch may not observe the write.
func (t *Tracker) refetchAfterWrite(ctx context.Context) {
	t.group.Forget(refetchKey)
	_ = t.Refetch(ctx)
}

// Add validates the submission and creates the expense with exactly one
// store call, then refetches. Invalid submissions never reach the store.
func (t *Tracker) Add(ctx context.Context, sub core.Submission) (core.Expense, error) {
	e, err := sub.Expense()
	if err != nil {
		return core.Expense{}, err
	}
	created, err := t.store.CreateExpense(ctx, e)
	if err != nil {
		t.recordError(ctx, applog.OpCreate, err)
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	t.refetchAfterWrite(ctx)
	return created, nil
}

// Edit validates the submission and updates expense id, then refetches.
func (t *Tracker) Edit(ctx context.Context, id int64, sub core.Submission) (core.Expense, error) {
	e, err := sub.Expense()
	if err != nil {
		return core.Expense{}, err
	}
	updated, err := t.store.UpdateExpense(ctx, id, e)
	if err != nil {
		t.recordError(ctx, applog.OpUpdate, err)
		// A partially applied replace still changed the list.
		t.refetchAfterWrite(ctx)
		return updated, fmt.Errorf("update expense %d: %w", id, err)
	}
	t.refetchAfterWrite(ctx)
	return updated, nil
}

// Delete removes expense id and refetches.
func (t *Tracker) Delete(ctx context.Context, id int64) error {
	if err := t.store.DeleteExpense(ctx, id); err != nil {
		t.recordError(ctx, applog.OpDelete, err)
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	t.refetchAfterWrite(ctx)
	return nil
}

func (t *Tracker) recordError(ctx context.Context, op string, err error) {
	t.mu.Lock()
	t.errMsg = apiclient.Message(err)
	t.mu.Unlock()
	t.logger.WarnContext(ctx, "Expense write failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Expenses:  append([]core.Expense(nil), t.expenses...),
		Loading:   t.loading,
		Error:     t.errMsg,
		FetchedAt: t.fetchedAt,
	}
}

// Summary recomputes the aggregates of the current list.
func (t *Tracker) Summary() core.Summary {
	return core.Summarize(t.Snapshot().Expenses)
}

// EnsureLoaded fetches the list unless a fetch already succeeded within maxAge.
func (t *Tracker) EnsureLoaded(ctx context.Context, maxAge time.Duration) Snapshot {
	snap := t.Snapshot()
	if snap.Loaded() && t.now().Sub(snap.FetchedAt) < maxAge {
		return snap
	}
	_ = t.Refetch(ctx)
	return t.Snapshot()
}
