package printer

import (
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies why a dispatch did not succeed.
type FailureKind string

const (
	KindNotFound   FailureKind = "command_not_found"
	KindExitStatus FailureKind = "exit_status"
	KindTimeout    FailureKind = "timeout"
	KindCanceled   FailureKind = "canceled"
	KindStart      FailureKind = "start"
)

// Failure describes an unsuccessful dispatch.
type Failure struct {
	Kind     FailureKind
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindNotFound:
		return fmt.Sprintf("print command %q not found", f.Command)
	case KindExitStatus:
		msg := fmt.Sprintf("print command %q exited with status %d", f.Command, f.ExitCode)
		if f.Stderr != "" {
			msg += ": " + f.Stderr
		}
		return msg
	case KindTimeout:
		return fmt.Sprintf("print command %q timed out", f.Command)
	case KindCanceled:
		return fmt.Sprintf("print command %q canceled", f.Command)
	default:
		return fmt.Sprintf("print command %q could not start: %v", f.Command, f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one dispatch. A nil Failure means the command
// exited zero.
type Result struct {
	Args     []string
	Duration time.Duration
	Failure  *Failure
}

// OK reports whether the print command succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// String renders the command line for logs.
func (r Result) String() string {
	return strings.Join(r.Args, " ")
}
