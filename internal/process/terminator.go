package process

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lu-zhengda/portsniper/internal/runner"
	"go.uber.org/zap"
)

// Signal is one of the signals the terminator can deliver via kill(1).
type Signal string

const (
	SIGKILL Signal = "KILL"
	SIGTERM Signal = "TERM"
	SIGINT  Signal = "INT"
	SIGHUP  Signal = "HUP"
)

// String returns the conventional SIG-prefixed name.
func (s Signal) String() string {
	return "SIG" + string(s)
}

// ParseSignal accepts "KILL", "SIGKILL", "kill" and so on.
func ParseSignal(s string) (Signal, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "SIG")
	switch Signal(name) {
	case SIGKILL, SIGTERM, SIGINT, SIGHUP:
		return Signal(name), nil
	default:
		return "", fmt.Errorf("unsupported signal %q (use KILL, TERM, INT or HUP)", s)
	}
}

// killFailedMessage is reported when kill(1) fails without saying why.
const killFailedMessage = "Failed to kill process"

// KillError reports a failed termination request.
type KillError struct {
	PID     uint32
	Message string
}

func (e *KillError) Error() string {
	return e.Message
}

// Terminator delivers signals to processes through the kill utility. It does
// not retry and does not wait for the process to exit.
type Terminator struct {
	runner runner.CmdRunner
	logger *zap.Logger
}

// NewTerminator creates a Terminator.
func NewTerminator(r runner.CmdRunner, logger *zap.Logger) *Terminator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminator{runner: r, logger: logger}
}

// Kill sends SIGKILL to pid.
func (t *Terminator) Kill(ctx context.Context, pid uint32) error {
	return t.Send(ctx, pid, SIGKILL)
}

// Send delivers sig to pid. Failures are returned as *KillError.
func (t *Terminator) Send(ctx context.Context, pid uint32, sig Signal) error {
	// kill -9 0 would signal our own process group.
	if pid == 0 {
		return &KillError{PID: pid, Message: "invalid process id 0"}
	}

	_, err := t.runner.Run(ctx, "kill", "-"+string(sig), strconv.FormatUint(uint64(pid), 10))
	if err == nil {
		t.logger.Info("signal delivered", zap.Uint32("pid", pid), zap.Stringer("signal", sig))
		return nil
	}

	kerr := &KillError{PID: pid, Message: killMessage(err)}
	t.logger.Warn("failed to signal process",
		zap.Uint32("pid", pid), zap.Stringer("signal", sig), zap.Error(err))
	return kerr
}

func killMessage(err error) string {
	var cerr *runner.CommandError
	if !errors.As(err, &cerr) {
		return err.Error()
	}
	switch cerr.Kind {
	case runner.KindExit:
		if cerr.Stderr != "" {
			return cerr.Stderr
		}
		return killFailedMessage
	default:
		return cerr.Error()
	}
}
