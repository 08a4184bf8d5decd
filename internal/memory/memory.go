// Package memory is an in-process expense store for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"smartexpense/internal/contract"
	"smartexpense/internal/core"
)

type Store struct {
	mu     sync.Mutex
	items  []core.Expense
	nextID int64
	now    func() time.Time
}

func New(seed ...core.Expense) *Store {
	s := &Store{now: time.Now}
	for _, e := range seed {
		if e.ID > s.nextID {
			s.nextID = e.ID
		}
	}
	for _, e := range seed {
		if e.ID == 0 {
			s.nextID++
			e.ID = s.nextID
		}
		s.items = append(s.items, e)
	}
	return s
}

// NewFromFile seeds the store from a JSON array of expenses in wire format.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var wire []contract.Expense
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	seed, err := contract.ToExpenses(wire)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return New(seed...), nil
}

// ListExpenses returns every expense, newest date first, ties by newest id.
func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	out := append([]core.Expense(nil), s.items...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CreateExpense stores the expense under a new id.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = s.now().UTC()
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			e.ID = id
			e.CreatedAt = s.items[i].CreatedAt
			s.items[i] = e
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// Len returns the number of stored expenses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
