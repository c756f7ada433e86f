package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO needed)
)

// Store provides methods to persist and retrieve print jobs and settings.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// querier is the subset of *sql.DB and *sql.Tx used by the query helpers.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStore opens (or creates) the SQLite database and ensures schema exists.
func NewStore(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn) // NOTE: driver name is "sqlite", not "sqlite3"
	if err != nil {
		return nil, err
	}
	// One connection serializes writers; the watcher and HTTP handlers
	// queue on the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}
	return s, nil
}

// migrate creates the tables if they don't exist.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return err
	}
	q := `
	CREATE TABLE IF NOT EXISTS print_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		copies INTEGER NOT NULL DEFAULT 1 CHECK (copies >= 1),
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		printed_at DATETIME NULL,
		error TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_print_jobs_created ON print_jobs(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_print_jobs_status ON print_jobs(status);
	CREATE TABLE IF NOT EXISTS settings (
		"key" TEXT PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(q)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a unit of work bound to a single SQL transaction.
type Tx struct {
	q querier
}

// WithTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// CreateJob inserts a pending job and returns it with ID and timestamps set.
func (t *Tx) CreateJob(ctx context.Context, filename, storagePath string, copies int) (*PrintJob, error) {
	j := &PrintJob{Filename: filename, StoragePath: storagePath, Copies: copies}
	if err := j.ValidateBasic(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := t.q.ExecContext(ctx, `INSERT INTO print_jobs(filename, storage_path, copies, status, created_at) VALUES(?,?,?,?,?)`,
		j.Filename, j.StoragePath, j.Copies, string(StatusPending), now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	j.ID = id
	j.Status = StatusPending
	j.CreatedAt = now
	return j, nil
}

// UpdateJobOutcome moves a pending job to its terminal status. Printed jobs get
// printed_at and a cleared error; failed jobs get msg as their error.
func (t *Tx) UpdateJobOutcome(ctx context.Context, j *PrintJob, status JobStatus, msg string) error {
	var (
		printedAt sql.NullTime
		errMsg    sql.NullString
	)
	switch status {
	case StatusPrinted:
		printedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	case StatusFailed:
		if msg == "" {
			return fmt.Errorf("%w: failed status requires an error message", ErrInvalidTransition)
		}
		errMsg = sql.NullString{String: msg, Valid: true}
	default:
		return fmt.Errorf("%w: %q is not a terminal status", ErrInvalidTransition, status)
	}

	res, err := t.q.ExecContext(ctx, `UPDATE print_jobs SET status = ?, printed_at = ?, error = ? WHERE id = ? AND status = ?`,
		string(status), nullableTime(printedAt), nullableString(errMsg), j.ID, string(StatusPending))
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		if _, err := getJob(ctx, t.q, j.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %d is not pending", ErrInvalidTransition, j.ID)
	}

	j.Status = status
	j.PrintedAt = printedAt
	j.Error = errMsg
	return nil
}

// GetJob retrieves a job by id inside the transaction.
func (t *Tx) GetJob(ctx context.Context, id int64) (*PrintJob, error) {
	return getJob(ctx, t.q, id)
}

func nullableString(ns sql.NullString) interface{} {
	if ns.Valid {
		return ns.String
	}
	return nil
}

func nullableTime(nt sql.NullTime) interface{} {
	if nt.Valid {
		return nt.Time
	}
	return nil
}

const jobColumns = `id, filename, storage_path, copies, status, created_at, printed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*PrintJob, error) {
	var (
		j      PrintJob
		status string
	)
	if err := row.Scan(&j.ID, &j.Filename, &j.StoragePath, &j.Copies, &status, &j.CreatedAt, &j.PrintedAt, &j.Error); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

func getJob(ctx context.Context, q querier, id int64) (*PrintJob, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM print_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return j, err
}

// CreateJob inserts a pending job in its own transaction.
func (s *Store) CreateJob(ctx context.Context, filename, storagePath string, copies int) (*PrintJob, error) {
	var j *PrintJob
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		j, err = tx.CreateJob(ctx, filename, storagePath, copies)
		return err
	})
	return j, err
}

// UpdateJobOutcome records the terminal status of a job in its own transaction.
func (s *Store) UpdateJobOutcome(ctx context.Context, j *PrintJob, status JobStatus, msg string) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateJobOutcome(ctx, j, status, msg)
	})
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*PrintJob, error) {
	return getJob(ctx, s.db, id)
}

// ListRecentJobs returns at most limit jobs, newest first.
func (s *Store) ListRecentJobs(ctx context.Context, limit int) ([]*PrintJob, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM print_jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountJobs returns the number of job rows.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM print_jobs`).Scan(&n)
	return n, err
}

// CountJobsByStatus returns the number of jobs currently in status.
func (s *Store) CountJobsByStatus(ctx context.Context, status JobStatus) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("unknown job status %q", status)
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM print_jobs WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}
