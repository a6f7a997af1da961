package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"qupload/internal/config"
	"qupload/internal/queue"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must then be cleared.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Record is one finished upload as stored in the history ledger. Only
// terminal outcomes are recorded; the live queue is never persisted.
type Record struct {
	ID         int64
	TaskID     string
	FileName   string
	FileSize   int64
	MIME       string
	Status     queue.Status
	URL        string
	ErrMessage string
	RetryCount int
	UploadedAt time.Time
}

// Stats summarizes the ledger.
type Stats struct {
	Total      int
	Completed  int
	Failed     int
	TotalBytes int64
}

// Store appends terminal upload outcomes to a SQLite ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: cfg.Paths.HistoryDB}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'qupload history clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Record appends one settled task to the ledger. Tasks that have not reached
// a terminal status are refused.
func (s *Store) Record(ctx context.Context, task queue.Task) error {
	if !task.Status.IsTerminal() {
		return fmt.Errorf("record %s: status %q is not terminal", task.File.Name, task.Status)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_history (
            task_id, file_name, file_size, mime_type, status,
            url, error_message, retry_count, uploaded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.File.Name,
		task.File.Size,
		task.File.MIME,
		string(task.Status),
		nullableString(task.URL),
		nullableString(task.ErrMessage),
		task.RetryCount,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

// RecordAll appends every settled task from the given snapshot, skipping
// tasks that are still pending or in flight.
func (s *Store) RecordAll(ctx context.Context, tasks []queue.Task) error {
	for _, task := range tasks {
		if !task.Status.IsTerminal() {
			continue
		}
		if err := s.Record(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// List returns the most recent records, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, task_id, file_name, file_size, mime_type, status,
        url, error_message, retry_count, uploaded_at
        FROM upload_history ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Stats returns aggregate totals for the ledger.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = ? THEN file_size ELSE 0 END), 0)
        FROM upload_history`,
		string(queue.StatusComplete),
		string(queue.StatusError),
		string(queue.StatusComplete),
	).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("query history stats: %w", err)
	}
	return stats, nil
}

// Clear removes every record and returns the number deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM upload_history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record     Record
		status     string
		url        sql.NullString
		message    sql.NullString
		uploadedAt string
	)
	if err := rows.Scan(
		&record.ID,
		&record.TaskID,
		&record.FileName,
		&record.FileSize,
		&record.MIME,
		&status,
		&url,
		&message,
		&record.RetryCount,
		&uploadedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan history record: %w", err)
	}
	record.Status = queue.Status(status)
	record.URL = url.String
	record.ErrMessage = message.String
	if parsed, err := time.Parse(time.RFC3339Nano, uploadedAt); err == nil {
		record.UploadedAt = parsed
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
