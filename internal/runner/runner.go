// Package runner executes external utilities (lsof, kill) with a bounded
// timeout and reports failures as typed errors.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every external command when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// waitDelay caps how long Run waits for the output pipes to close after the
// command is killed. Children of the command (lsof forks helpers) can keep
// stdout open long after the direct child is gone.
const waitDelay = time.Second

// CmdRunner abstracts shell command execution for testability.
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Kind classifies how an external command failed.
type Kind int

const (
	// KindLaunch means the process could not be started at all.
	KindLaunch Kind = iota
	// KindExit means the process ran but exited non-zero.
	KindExit
	// KindTimeout means the process was killed after exceeding its deadline.
	KindTimeout
	// KindCanceled means the caller's context was canceled before the
	// process finished.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindExit:
		return "exit"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CommandError describes a failed external command.
type CommandError struct {
	Name     string
	Args     []string
	Kind     Kind
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	cmd := e.Name
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	switch e.Kind {
	case KindExit:
		if e.Stderr != "" {
			return fmt.Sprintf("%s exited with code %d: %s", cmd, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("%s exited with code %d", cmd, e.ExitCode)
	case KindTimeout:
		return fmt.Sprintf("%s timed out: %v", cmd, e.Err)
	case KindCanceled:
		return fmt.Sprintf("%s canceled: %v", cmd, e.Err)
	default:
		return fmt.Sprintf("failed to start %s: %v", cmd, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsExit reports whether err is a CommandError for a process that ran and
// exited non-zero. Output returned alongside such an error is still usable.
func IsExit(err error) bool {
	var cerr *CommandError
	return errors.As(err, &cerr) && cerr.Kind == KindExit
}

// Exec executes real commands, each bounded by Timeout.
type Exec struct {
	Timeout time.Duration
}

// NewExec returns an Exec with the given timeout, or DefaultTimeout if it is
// not positive.
func NewExec(timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{Timeout: timeout}
}

// Run executes a command and returns its stdout. Stderr is captured into the
// returned error instead of leaking into TUI output. When the command exits
// non-zero, stdout is returned together with a KindExit error.
func (r *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	cerr := &CommandError{
		Name:   name,
		Args:   args,
		Stderr: strings.TrimSpace(stderr.String()),
		Err:    err,
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cerr.Kind = KindTimeout
		cerr.Err = ctx.Err()
	case errors.Is(ctx.Err(), context.Canceled):
		cerr.Kind = KindCanceled
		cerr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		cerr.Kind = KindExit
		cerr.ExitCode = exitErr.ExitCode()
	default:
		cerr.Kind = KindLaunch
	}
	return out, cerr
}

// Mock returns canned responses for testing.
type Mock struct {
	Output []byte
	Err    error
}

// Run returns the pre-configured output and error.
func (m *Mock) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.Output, m.Err
}

// MultiMock returns different responses based on the command.
// Keys are "name arg1 arg2 ..." strings.
type MultiMock struct {
	Responses map[string]Response
	Calls     []string
}

// Response holds a single command's output and error.
type Response struct {
	Output []byte
	Err    error
}

// Run looks up the command key and returns its pre-configured response.
// Falls back to empty output and nil error if no match is found.
func (m *MultiMock) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name
	if len(args) > 0 {
		key = name + " " + strings.Join(args, " ")
	}
	m.Calls = append(m.Calls, key)
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return nil, nil
}
