package tasks

import (
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// ProcessError reports an external command that could not start or exited non-zero.
//
// ExitCode is -1 when the process never produced an exit status.
type ProcessError struct {
	Command  []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	name := strings.Join(e.Command, " ")
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", shared.ErrProcessExecution, name, e.Err)
	}
	return fmt.Sprintf("%v: %s: exit status %d", shared.ErrProcessExecution, name, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool {
	return target == shared.ErrProcessExecution
}

// StageError is the failure of one run stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
