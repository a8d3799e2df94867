package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Catalog and source service errors
	ErrTransport          = fmt.Errorf("transport error")
	ErrProtocol           = fmt.Errorf("protocol error")
	ErrRemoteStatus       = fmt.Errorf("remote status failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Acquisition errors
	ErrProcessExecution = fmt.Errorf("process execution failed")
	ErrFilesystem       = fmt.Errorf("filesystem error")
	ErrRunInProgress    = fmt.Errorf("run already in progress")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ValidationError reports conflicting or missing parameters detected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidArgument, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidArgument, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// IsValidation reports whether err is (or wraps) a [ValidationError].
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
