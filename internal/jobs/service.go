// Package jobs accepts files for printing and drives each job from pending to
// its terminal status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"drop2print/internal/printer"
	"drop2print/internal/spool"
	"drop2print/internal/storage"
)

const instrumentationName = "drop2print/internal/jobs"

var (
	// ErrInvalidCopies is returned for an explicit copies value below 1.
	ErrInvalidCopies = errors.New("copies must be at least 1")

	// ErrInvalidRequest is returned when a request has neither a body nor a
	// source path, or has both.
	ErrInvalidRequest = errors.New("invalid submit request")

	// ErrStore wraps failures to place the file in server storage. No job is
	// created when it is returned.
	ErrStore = errors.New("store upload")
)

// Printer dispatches a stored file to the print command.
type Printer interface {
	Dispatch(ctx context.Context, path string, copies int) printer.Result
}

// Source records where a submission came from, for logs and metrics.
type Source string

const (
	SourceUpload Source = "upload"
	SourceWatch  Source = "watch"
	SourceCLI    Source = "cli"
)

// Request describes one file to print. Exactly one of Body and SourcePath is
// set. A SourcePath file is copied into storage and then deleted.
type Request struct {
	Filename   string
	Body       io.Reader
	SourcePath string
	// Copies overrides the copies setting when positive.
	Copies int
	Source Source
}

func (r Request) validate() error {
	if (r.Body == nil) == (r.SourcePath == "") {
		return fmt.Errorf("%w: exactly one of body and source path is required", ErrInvalidRequest)
	}
	if r.Body != nil && r.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	}
	if r.Copies < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidCopies, r.Copies)
	}
	return nil
}

// Service is the only writer of job state and the only caller of the printer.
type Service struct {
	store   *storage.Store
	spool   spool.Storage
	printer Printer
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
}

// NewService wires the job lifecycle to its collaborators.
func NewService(store *storage.Store, sp spool.Storage, p Printer, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create job metrics: %w", err)
	}
	return &Service{
		store:   store,
		spool:   sp,
		printer: p,
		logger:  logger.With("component", "jobs"),
		tracer:  otel.Tracer(instrumentationName),
		metrics: m,
	}, nil
}

// SubmitUpload prints the bytes read from r under filename. copies of zero
// uses the stored setting.
func (s *Service) SubmitUpload(ctx context.Context, filename string, r io.Reader, copies int) (*storage.PrintJob, error) {
	return s.Submit(ctx, Request{Filename: filename, Body: r, Copies: copies, Source: SourceUpload})
}

// SubmitFile prints the file at path and removes it once it has been copied
// into storage.
func (s *Service) SubmitFile(ctx context.Context, path string) (*storage.PrintJob, error) {
	return s.Submit(ctx, Request{SourcePath: path, Source: SourceWatch})
}

// Submit stores the file, records a pending job, dispatches it and records the
// outcome. A print failure is not an error: the returned job is marked failed.
// Errors are returned only when the request is invalid or the file or job row
// could not be stored.
func (s *Service) Submit(ctx context.Context, req Request) (*storage.PrintJob, error) {
	if req.Filename == "" && req.SourcePath != "" {
		req.Filename = filepath.Base(req.SourcePath)
	}
	if req.Source == "" {
		req.Source = SourceUpload
	}

	ctx, span := s.tracer.Start(ctx, "jobs.Submit", trace.WithAttributes(
		attribute.String("job.source", string(req.Source)),
		attribute.String("job.filename", req.Filename),
	))
	defer span.End()

	if err := req.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	path, size, err := s.storeFile(ctx, req)
	if err != nil {
		s.logger.Error("failed to store file", "filename", req.Filename, "source", req.Source, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	s.logger.Debug("stored file", "filename", req.Filename, "path", path, "size", humanize.Bytes(uint64(size)))

	var job *storage.PrintJob
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		copies := req.Copies
		if copies == 0 {
			var err error
			copies, err = tx.Copies(ctx)
			if errors.Is(err, storage.ErrInvalidSetting) {
				s.logger.Warn("ignoring stored copies setting", "error", err, "default", copies)
			} else if err != nil {
				return fmt.Errorf("resolve copies: %w", err)
			}
		}
		var err error
		job, err = tx.CreateJob(ctx, req.Filename, path, copies)
		return err
	})
	if err != nil {
		if rmErr := s.spool.Remove(path); rmErr != nil {
			s.logger.Warn("unable to remove stored file after failed insert", "path", path, "error", rmErr)
		}
		s.logger.Error("failed to create job", "filename", req.Filename, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create job failed")
		return nil, fmt.Errorf("%w: create job: %w", ErrStore, err)
	}
	span.SetAttributes(attribute.Int64("job.id", job.ID), attribute.Int("job.copies", job.Copies))
	s.metrics.submitted(ctx, req.Source)

	// The job row now owns the copy; the watched source can go.
	if req.SourcePath != "" {
		if err := os.Remove(req.SourcePath); err != nil {
			s.logger.Warn("unable to delete source file after copying", "source", req.SourcePath, "error", err)
		}
	}

	s.logger.Info("printing job",
		"job_id", job.ID,
		"filename", job.Filename,
		"copies", job.Copies,
		"path", job.StoragePath,
	)
	res := s.printer.Dispatch(ctx, job.StoragePath, job.Copies)

	status, msg := storage.StatusPrinted, ""
	if !res.OK() {
		status, msg = storage.StatusFailed, res.Failure.Error()
	}

	// The outcome must land even if the caller went away mid-print.
	if err := s.store.UpdateJobOutcome(context.WithoutCancel(ctx), job, status, msg); err != nil {
		s.logger.Error("failed to record job outcome", "job_id", job.ID, "status", status, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "record outcome failed")
		return job, fmt.Errorf("record outcome of job %d: %w", job.ID, err)
	}

	s.metrics.finished(ctx, req.Source, status, res.Duration)
	span.SetAttributes(attribute.String("job.status", string(status)))
	if status == storage.StatusFailed {
		span.SetStatus(codes.Error, msg)
		s.logger.Error("job failed", "job_id", job.ID, "error", msg)
	} else {
		s.logger.Info("job finished", "job_id", job.ID, "status", status)
	}
	return job, nil
}

func (s *Service) storeFile(ctx context.Context, req Request) (string, int64, error) {
	if req.SourcePath != "" {
		return s.spool.Import(ctx, req.SourcePath)
	}
	return s.spool.Save(ctx, req.Filename, req.Body)
}
