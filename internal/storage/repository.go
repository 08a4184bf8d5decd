package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartexpense/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a stored expense.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const timeLayout = time.RFC3339Nano

// StoredExpense is an expense row together with its replication state.
type StoredExpense struct {
	core.Expense
	SyncStatus string
	RemoteID   int64 // zero until the expense exists on the remote backend
	DeletedAt  *time.Time
	Version    string // updated_at of the row, changes with every local write
}

// Deleted reports whether the row was soft-deleted locally.
func (s StoredExpense) Deleted() bool {
	return s.DeletedAt != nil
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

const selectColumns = `id, amount_cents, category, date, description, created_at, updated_at, deleted_at, sync_status, remote_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (StoredExpense, error) {
	var (
		s         StoredExpense
		category  string
		date      string
		createdAt string
		deletedAt sql.NullString
		remoteID  sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Amount.Cents, &category, &date, &s.Description, &createdAt, &s.Version, &deletedAt, &s.SyncStatus, &remoteID); err != nil {
		return StoredExpense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return StoredExpense{}, fmt.Errorf("expense %d: %w", s.ID, err)
	}
	s.Date = d
	s.Category = core.Category(category)
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		s.CreatedAt = t
	}
	if deletedAt.Valid {
		if t, err := time.Parse(timeLayout, deletedAt.String); err == nil {
			s.DeletedAt = &t
		}
	}
	s.RemoteID = remoteID.Int64
	return s, nil
}

// ListExpenses returns live expenses, newest date first, ties by newest id.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM expenses WHERE deleted_at IS NULL ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		s, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, s.Expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// CreateExpense inserts the expense as pending replication.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (amount_cents, category, date, description, created_at, updated_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Amount.Cents, string(e.Category), e.Date.String(), strings.TrimSpace(e.Description), now, now, SyncPending)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.Date.String())

	stored, err := r.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	return stored.Expense, nil
}

// UpdateExpense rewrites a live expense and marks it pending again.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount_cents = ?, category = ?, date = ?, description = ?, updated_at = ?, sync_status = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		e.Amount.Cents, string(e.Category), e.Date.String(), strings.TrimSpace(e.Description), r.timestamp(), SyncPending, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Expense{}, err
	}
	stored, err := r.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	return stored.Expense, nil
}

// DeleteExpense soft-deletes the row so the deletion can still be replicated.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = ?, updated_at = ?, sync_status = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, SyncPending, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetExpense returns a row by id, deleted rows included.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (StoredExpense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM expenses WHERE id = ?`, id)
	s, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredExpense{}, core.ErrNotFound
	}
	if err != nil {
		return StoredExpense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return s, nil
}

// GetPendingSyncExpenses returns up to limit rows whose changes have not
// reached the remote backend, oldest change first.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]StoredExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM expenses WHERE sync_status = ? ORDER BY updated_at ASC, id ASC LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var out []StoredExpense
	for rows.Next() {
		s, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSynced records a successful replication of row. A zero remoteID keeps
// the current one. The row stays pending if it was written again since it
// was read, so the newer change is replicated too.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, row StoredExpense, remoteID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET remote_id = COALESCE(NULLIF(?, 0), remote_id),
		     sync_status = CASE WHEN updated_at = ? THEN ? ELSE sync_status END
		 WHERE id = ?`,
		remoteID, row.Version, SyncSynced, row.ID)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", row.ID, "remote_id", remoteID)
	return nil
}

// MarkSyncError records a failed replication attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// RetryErrored moves every errored row back to pending.
func (r *SQLiteRepository) RetryErrored(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_status = ? WHERE sync_status = ?`, SyncPending, SyncError)
	if err != nil {
		return 0, fmt.Errorf("retry errored expenses: %w", err)
	}
	return res.RowsAffected()
}
