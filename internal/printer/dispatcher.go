// Package printer runs the external print command for a stored file.
package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// DefaultCommand is the CUPS client used when no command template is set.
const DefaultCommand = "lp"

// maxStderrLen bounds the stderr summary kept in a failure.
const maxStderrLen = 200

// waitDelay bounds how long a killed command may hold its output pipes open.
const waitDelay = 2 * time.Second

// Config controls how the dispatcher builds and runs the print command.
type Config struct {
	// PrinterName selects a destination; empty means the system default.
	PrinterName string
	// Command is an optional template such as "lp -n {copies} -d {printer} {file}".
	// Arguments that expand to an empty string are dropped.
	Command string
	// Timeout bounds a single dispatch. Zero waits for the command indefinitely.
	Timeout time.Duration
}

// Dispatcher invokes the print command once per job.
type Dispatcher struct {
	cfg      Config
	template []string
	logger   *slog.Logger
}

// New creates a dispatcher. It fails only when the command template cannot be
// split into arguments.
func New(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{cfg: cfg, logger: logger.With("component", "printer")}
	if strings.TrimSpace(cfg.Command) != "" {
		words, err := shellquote.Split(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse print command %q: %w", cfg.Command, err)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("print command %q has no program", cfg.Command)
		}
		d.template = words
	}
	return d, nil
}

// PrinterName returns the configured destination, empty for the default printer.
func (d *Dispatcher) PrinterName() string {
	return d.cfg.PrinterName
}

// Args returns the program and arguments used to print path.
func (d *Dispatcher) Args(path string, copies int) []string {
	if d.template == nil {
		args := []string{DefaultCommand, "-n", strconv.Itoa(copies), path}
		if d.cfg.PrinterName != "" {
			args = append(args, "-d", d.cfg.PrinterName)
		}
		return args
	}

	r := strings.NewReplacer(
		"{file}", path,
		"{copies}", strconv.Itoa(copies),
		"{printer}", d.cfg.PrinterName,
	)
	args := make([]string, 0, len(d.template))
	for _, w := range d.template {
		// "-d {printer}" collapses to nothing when no printer is configured.
		if w == "{printer}" && d.cfg.PrinterName == "" {
			if len(args) > 1 && strings.HasPrefix(args[len(args)-1], "-") {
				args = args[:len(args)-1]
			}
			continue
		}
		if v := r.Replace(w); v != "" {
			args = append(args, v)
		}
	}
	return args
}

// Dispatch runs the print command for path and reports the outcome. It never
// retries.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, copies int) Result {
	args := d.Args(path, copies)
	res := Result{Args: args}
	if len(args) == 0 {
		res.Failure = &Failure{Kind: KindStart, Err: errors.New("print command expanded to nothing")}
		return res
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)

	if err == nil {
		d.logger.Info("sent to printer",
			"file", path,
			"copies", copies,
			"printer", d.destination(),
			"duration", res.Duration,
		)
		return res
	}

	res.Failure = classify(ctx, args[0], err, stderr.String())
	d.logger.Error("print command failed",
		"file", path,
		"printer", d.destination(),
		"kind", res.Failure.Kind,
		"error", res.Failure.Error(),
	)
	return res
}

func (d *Dispatcher) destination() string {
	if d.cfg.PrinterName == "" {
		return "<default>"
	}
	return d.cfg.PrinterName
}

func classify(ctx context.Context, program string, err error, stderr string) *Failure {
	f := &Failure{Command: program, Stderr: summarize(stderr), Err: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		f.Kind = KindNotFound
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		f.Kind = KindTimeout
		f.Err = ctx.Err()
	case ctx.Err() != nil:
		f.Kind = KindCanceled
		f.Err = ctx.Err()
	case errors.As(err, &exitErr):
		f.Kind = KindExitStatus
		f.ExitCode = exitErr.ExitCode()
	default:
		f.Kind = KindStart
	}
	return f
}

func summarize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxStderrLen {
		return s
	}
	return s[:maxStderrLen-3] + "..."
}
