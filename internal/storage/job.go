package storage

import (
	"database/sql"
	"errors"
	"time"
)

// JobStatus enumerates possible states for a print job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusPrinted JobStatus = "printed"
	StatusFailed  JobStatus = "failed"
)

// Terminal reports whether a job in this status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == StatusPrinted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

var (
	// ErrNotFound is returned when a job id does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when an outcome is recorded for a job
	// that is no longer pending, or with a non-terminal status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// PrintJob is the record kept for every submitted file.
type PrintJob struct {
	ID          int64
	Filename    string
	StoragePath string
	Copies      int
	Status      JobStatus
	CreatedAt   time.Time
	PrintedAt   sql.NullTime
	Error       sql.NullString
}

// ValidateBasic checks minimal requirements before a job row is inserted.
func (j *PrintJob) ValidateBasic() error {
	if j.Filename == "" {
		return errors.New("filename is required")
	}
	if j.StoragePath == "" {
		return errors.New("storage path is required")
	}
	if j.Copies < 1 {
		return errors.New("copies must be at least 1")
	}
	return nil
}

// Setting is a single named configuration value.
type Setting struct {
	Key   string
	Value string
}

// CopiesKey is the settings key holding the copies-per-job value.
const CopiesKey = "copies"

// DefaultCopies is used when no copies setting has been stored yet.
const DefaultCopies = 1
