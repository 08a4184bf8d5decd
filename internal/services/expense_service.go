package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	"smartexpense/internal/ports"
)

// ExpenseRepository is the local store behind the offline backend.
type ExpenseRepository interface {
	ports.ExpenseStore
	Close() error
}

// ChangePublisher announces local writes to the sync worker.
type ChangePublisher interface {
	PublishChange(ctx context.Context, id int64, kind amqp.ChangeKind) error
	Close() error
}

// ExpenseService orchestrates expense writes across the local store and AMQP.
// Writes succeed once stored locally; a failed publish is logged and left to
// the worker's periodic sweep of pending rows.
type ExpenseService struct {
	storage   ExpenseRepository
	publisher ChangePublisher
}

// NewExpenseService builds the service. publisher may be nil when the broker is
// unavailable.
func NewExpenseService(storage ExpenseRepository, publisher ChangePublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.storage.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// CreateExpense saves an expense locally and publishes a change message.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	created, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.publish(ctx, created.ID, amqp.KindCreated)
	return created, nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	updated, err := s.storage.UpdateExpense(ctx, id, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, id, amqp.KindUpdated)
	return updated, nil
}

// DeleteExpense soft deletes an expense locally and publishes a change message.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, id, amqp.KindDeleted)
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, id int64, kind amqp.ChangeKind) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping change message", "id", id, "kind", kind)
		return
	}
	if err := s.publisher.PublishChange(ctx, id, kind); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"id", id,
			"kind", kind,
			"error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
