package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	"smartexpense/internal/storage"
)

// Sync operations reported to the recorder.
const (
	SyncCreate = "create"
	SyncUpdate = "update"
	SyncDelete = "delete"
)

// LocalStore is the replication view of the offline store.
type LocalStore interface {
	GetExpense(ctx context.Context, id int64) (storage.StoredExpense, error)
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]storage.StoredExpense, error)
	MarkSynced(ctx context.Context, row storage.StoredExpense, remoteID int64) error
	MarkSyncError(ctx context.Context, id int64) error
	RetryErrored(ctx context.Context) (int64, error)
}

// Remote is the backend the local changes are replayed against.
type Remote interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// Recorder receives the outcome of every replication attempt.
type Recorder interface {
	SyncResult(kind string, err error)
}

// SyncWorker replays local expense changes against the remote backend.
// A failed row is marked as errored and picked up again by the next sweep.
// Replays are serialized, so the change consumer and the sweep never push the
// same row twice.
type SyncWorker struct {
	mu        sync.Mutex
	storage   LocalStore
	remote    Remote
	recorder  Recorder
	batchSize int
}

func NewSyncWorker(storage LocalStore, remote Remote, recorder Recorder, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SyncWorker{
		storage:   storage,
		remote:    remote,
		recorder:  recorder,
		batchSize: batchSize,
	}
}

// HandleChange processes a single change message from AMQP. Only failures to
// read the local row are returned, so that the message is redelivered.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ExpenseChangeMessage) error {
	row, err := w.storage.GetExpense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Change message for unknown expense, dropping", "id", msg.ID, "kind", msg.Kind)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}
	if row.SyncStatus == storage.SyncSynced {
		slog.DebugContext(ctx, "Expense already synced", "id", msg.ID, "kind", msg.Kind)
		return nil
	}
	w.syncRow(ctx, row)
	return nil
}

// ProcessPendingExpenses replays one batch of pending rows. It is the backup
// path for lost messages and returns the number of rows synced.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck replays a larger batch when the worker starts, to catch up
// after downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.GetPendingSyncExpenses(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	synced := 0
	for _, row := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if w.syncRow(ctx, row) == nil {
			synced++
		}
	}
	return synced, nil
}

// Run sweeps errored and pending rows every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SyncWorker) sweep(ctx context.Context) {
	if n, err := w.storage.RetryErrored(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to reset errored expenses", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Retrying errored expenses", "count", n)
	}
	if _, err := w.ProcessPendingExpenses(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
	}
}

// syncRow brings the remote copy of row up to date and records the outcome.
func (w *SyncWorker) syncRow(ctx context.Context, row storage.StoredExpense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The row may have been replayed while waiting for the lock.
	current, err := w.storage.GetExpense(ctx, row.ID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload expense %d: %w", row.ID, err)
	}
	if current.SyncStatus == storage.SyncSynced {
		slog.DebugContext(ctx, "Expense already synced", "id", row.ID)
		return nil
	}
	row = current

	kind, remoteID, err := w.replay(ctx, row)
	if w.recorder != nil {
		w.recorder.SyncResult(kind, err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to sync expense",
			"id", row.ID,
			"remote_id", row.RemoteID,
			"operation", kind,
			"error", err)
		if markErr := w.storage.MarkSyncError(ctx, row.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", row.ID, "error", markErr)
		}
		return err
	}

	if err := w.storage.MarkSynced(ctx, row, remoteID); err != nil {
		// The remote is up to date; the row will be replayed again, which is harmless.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", row.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced expense",
		"id", row.ID,
		"remote_id", remoteID,
		"operation", kind,
		"amount_cents", row.Amount.Cents)
	return nil
}

func (w *SyncWorker) replay(ctx context.Context, row storage.StoredExpense) (string, int64, error) {
	e := row.Expense
	e.ID = 0

	switch {
	case row.Deleted():
		if row.RemoteID == 0 {
			// Never reached the remote backend, nothing to delete there.
			return SyncDelete, 0, nil
		}
		if err := w.remote.DeleteExpense(ctx, row.RemoteID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return SyncDelete, 0, err
		}
		return SyncDelete, 0, nil

	case row.RemoteID == 0:
		created, err := w.remote.CreateExpense(ctx, e)
		if err != nil {
			return SyncCreate, 0, err
		}
		return SyncCreate, created.ID, nil

	default:
		updated, err := w.remote.UpdateExpense(ctx, row.RemoteID, e)
		if err != nil && updated.ID != 0 {
			// The replacement exists but the original could not be removed.
			slog.WarnContext(ctx, "Remote kept the original of a replaced expense",
				"id", row.ID,
				"remote_id", row.RemoteID,
				"error", err)
			return SyncUpdate, updated.ID, nil
		}
		if errors.Is(err, core.ErrNotFound) {
			// Deleted remotely; recreate it from the local copy.
			created, err := w.remote.CreateExpense(ctx, e)
			if err != nil {
				return SyncCreate, 0, err
			}
			return SyncCreate, created.ID, nil
		}
		if err != nil {
			return SyncUpdate, 0, err
		}
		return SyncUpdate, updated.ID, nil
	}
}
