// Package watcher polls a drop directory and feeds new PDFs to the job service.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"drop2print/internal/storage"
)

// DefaultInterval is used when no poll interval is configured.
const DefaultInterval = 5 * time.Second

// Submitter consumes a file from the watch directory. On success the file
// must no longer be in the directory.
type Submitter interface {
	SubmitFile(ctx context.Context, path string) (*storage.PrintJob, error)
}

// Watcher scans one directory on a fixed interval.
type Watcher struct {
	dir      string
	interval time.Duration
	sub      Submitter
	logger   *slog.Logger
}

// New creates a watcher for dir. A non-positive interval means DefaultInterval.
func New(dir string, interval time.Duration, sub Submitter, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		sub:      sub,
		logger:   logger.With("component", "watcher", "dir", dir),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Interval returns the poll interval.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// Scan submits every PDF currently in the directory, in name order, and
// returns how many were submitted. A file that fails is logged and left for
// the next scan; only a failure to list the directory is returned.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read watch dir: %w", err)
	}

	submitted := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn("skipping unreadable entry", "file", e.Name(), "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		w.logger.Info("detected PDF", "file", path)
		job, err := w.sub.SubmitFile(ctx, path)
		if err != nil {
			w.logger.Error("failed to submit watched file", "file", path, "error", err)
			continue
		}
		submitted++
		w.logger.Info("watched file processed", "file", e.Name(), "job_id", job.ID, "status", job.Status)
	}
	return submitted, nil
}

// Run scans immediately and then once per interval until ctx is cancelled.
// Scan errors never stop the loop.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("watcher loop started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("watcher encountered an error while scanning", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return
		case <-ticker.C:
		}
	}
}

// Supervisor owns the single background watcher task of the process.
type Supervisor struct {
	w       *Watcher
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewSupervisor wraps w. It does not start anything.
func NewSupervisor(w *Watcher) *Supervisor {
	return &Supervisor{w: w, done: make(chan struct{})}
}

// Start creates the watch directory and launches the loop. Only the first
// call starts a task; later calls return false.
func (s *Supervisor) Start(ctx context.Context) (bool, error) {
	if !s.started.CompareAndSwap(false, true) {
		return false, nil
	}
	if err := os.MkdirAll(s.w.dir, 0o755); err != nil {
		s.started.Store(false)
		return false, fmt.Errorf("create watch dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.w.Run(ctx)
	}()
	s.w.logger.Info("started file watcher", "interval", s.w.interval)
	return true, nil
}

// Stop cancels the loop and waits for the in-flight scan to finish. It is a
// no-op when the watcher never started.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.done
}

// Running reports whether Start has launched the loop.
func (s *Supervisor) Running() bool {
	return s.started.Load()
}
