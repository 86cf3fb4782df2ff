// Package opstore persists the hypervisor operations the CLI waits on.
//
// An interrupted wait (Ctrl+C, crash, a wait that timed out) leaves its
// record in "running" so the wait can be re-issued later. Only the wait is
// ever repeated; the action that produced the operation is not.
//
// Storage shares the SQLite database opened by the database package.
package opstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/lxdm/internal/database"
	"nathanbeddoewebdev/lxdm/internal/domain"
)

// Repository defines the persistence interface for operation records.
type Repository interface {
	// Save inserts or updates a record. On insert (ID == 0), an ID is
	// assigned to the record.
	Save(record *OperationRecord) error

	// Get retrieves a single record by ID. A missing record yields nil.
	Get(id int64) (*OperationRecord, error)

	// FindByOperationID returns the newest record for a remote operation,
	// or nil.
	FindByOperationID(remote, operationID string) (*OperationRecord, error)

	// ListPending returns records still marked running, newest first.
	ListPending() ([]OperationRecord, error)

	// ListRecent returns the most recent n records, newest first.
	ListRecent(n int) ([]OperationRecord, error)

	// DeleteOlderThan removes finished records older than d and returns
	// how many were removed.
	DeleteOlderThan(d time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository on the shared SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens the repository at the default database path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenAt(path)
}

// OpenAt opens the repository at path, creating the schema when needed.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS operations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_id  TEXT    NOT NULL,
			remote        TEXT    NOT NULL DEFAULT '',
			container     TEXT    NOT NULL DEFAULT '',
			command       TEXT    NOT NULL DEFAULT '',
			status        TEXT    NOT NULL DEFAULT 'running',
			error_message TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at    TEXT    NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
		CREATE INDEX IF NOT EXISTS idx_operations_operation_id ON operations(remote, operation_id);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("operations: migration failed: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `
	SELECT id, operation_id, remote, container, command, status, error_message, created_at, updated_at
	FROM operations`

// Save inserts a new record (ID == 0) or updates an existing one.
func (r *SQLiteRepository) Save(record *OperationRecord) error {
	record.UpdatedAt = time.Now().UTC()
	if record.Status == "" {
		record.Status = domain.OperationStatusRunning
	}

	if record.ID == 0 {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = record.UpdatedAt
		}
		result, err := r.db.Exec(`
			INSERT INTO operations (operation_id, remote, container, command, status, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.OperationID, record.Remote, record.Container, record.Command,
			record.Status, record.ErrorMessage,
			record.CreatedAt.Format(timeLayout), record.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("operations: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("operations: failed to get last insert ID: %w", err)
		}
		record.ID = id
		return nil
	}

	result, err := r.db.Exec(`
		UPDATE operations SET operation_id=?, remote=?, container=?, command=?,
		       status=?, error_message=?, updated_at=?
		WHERE id=?`,
		record.OperationID, record.Remote, record.Container, record.Command,
		record.Status, record.ErrorMessage, record.UpdatedAt.Format(timeLayout), record.ID,
	)
	if err != nil {
		return fmt.Errorf("operations: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("operations: record with ID %d not found", record.ID)
	}
	return nil
}

func (r *SQLiteRepository) Get(id int64) (*OperationRecord, error) {
	record, err := scanRow(r.db.QueryRow(selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("operations: query failed: %w", err)
	}
	return record, nil
}

func (r *SQLiteRepository) FindByOperationID(remote, operationID string) (*OperationRecord, error) {
	record, err := scanRow(r.db.QueryRow(
		selectColumns+` WHERE remote = ? AND operation_id = ? ORDER BY id DESC LIMIT 1`, remote, operationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("operations: query failed: %w", err)
	}
	return record, nil
}

func (r *SQLiteRepository) ListPending() ([]OperationRecord, error) {
	rows, err := r.db.Query(selectColumns+` WHERE status = ? ORDER BY created_at DESC, id DESC`,
		domain.OperationStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("operations: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (r *SQLiteRepository) ListRecent(n int) ([]OperationRecord, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("operations: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(timeLayout)
	result, err := r.db.Exec(`DELETE FROM operations WHERE status != ? AND updated_at < ?`,
		domain.OperationStatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("operations: delete failed: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*OperationRecord, error) {
	var record OperationRecord
	var createdStr, updatedStr string
	err := s.Scan(
		&record.ID, &record.OperationID, &record.Remote, &record.Container, &record.Command,
		&record.Status, &record.ErrorMessage, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}
	record.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	record.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	return &record, nil
}

func scanRow(row *sql.Row) (*OperationRecord, error) {
	return scan(row)
}

func scanRows(rows *sql.Rows) ([]OperationRecord, error) {
	var records []OperationRecord
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("operations: scan failed: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
