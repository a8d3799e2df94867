package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
)

// maxOutput bounds the captured output kept for error reports.
const maxOutput = 64 << 10

// ExecResult is the outcome of a finished process.
type ExecResult struct {
	ExitCode int
	Output   string
}

// Executor runs external commands. Run blocks until the process exits.
//
// A non-zero exit is reported through ExecResult, not as an error; the error is reserved for
// processes that could not be started or were killed by ctx.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (ExecResult, error)
}

// CommandExecutor runs commands with os/exec, capturing combined output.
type CommandExecutor struct {
	Dir     string
	Timeout time.Duration
	logger  *log.Logger
}

// NewCommandExecutor creates an executor. A zero timeout means no limit beyond ctx.
func NewCommandExecutor(timeout time.Duration, logger *log.Logger) *CommandExecutor {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &CommandExecutor{Timeout: timeout, logger: logger}
}

func (e *CommandExecutor) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	out := &tailBuffer{limit: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	e.logger.Debug("running command", "cmd", name, "args", strings.Join(args, " "))
	err := cmd.Run()
	res := ExecResult{Output: out.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.ExitCode = -1
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%w: %s exceeded %v", shared.ErrTimeout, name, e.Timeout)
		}
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, err
	}

	e.logger.Debug("command finished", "cmd", name, "exit", res.ExitCode, "elapsed", time.Since(start))
	return res, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
		t.dropped = true
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	if t.dropped {
		return "..." + t.buf.String()
	}
	return t.buf.String()
}
