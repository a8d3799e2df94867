package catalog

import (
	"errors"
	"fmt"
	"net"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// TransportError reports a request that never produced a usable HTTP response.
//
// StatusCode is zero when the connection itself failed. Reason holds the status text and the
// start of the response body for HTTP failures.
type TransportError struct {
	View       string
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Reason != "" {
			return fmt.Sprintf("%v: %s: HTTP %d %s", shared.ErrTransport, e.View, e.StatusCode, e.Reason)
		}
		return fmt.Sprintf("%v: %s: HTTP %d", shared.ErrTransport, e.View, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s: %v", shared.ErrTransport, e.View, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == shared.ErrTransport
}

// Timeout reports whether the request was abandoned because a deadline passed.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Err, shared.ErrTimeout)
}

// ProtocolError reports a response body that does not match the expected envelope or payload shape.
type ProtocolError struct {
	View   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %s: %v", shared.ErrProtocol, e.View, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s: %s", shared.ErrProtocol, e.View, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool {
	return target == shared.ErrProtocol
}

// RemoteStatusError is a well-formed envelope whose status is "failed".
type RemoteStatusError struct {
	View    string
	Code    int
	Message string
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("%v: %s: [%d] %s", shared.ErrRemoteStatus, e.View, e.Code, e.Message)
}

func (e *RemoteStatusError) Is(target error) bool {
	switch target {
	case shared.ErrRemoteStatus:
		return true
	case shared.ErrPlaylistNotFound:
		return e.Code == CodeNotFound
	case shared.ErrAuthFailed:
		return e.Code == CodeWrongCredentials || e.Code == CodeTokenAuthUnsupported || e.Code == CodeUnauthorized
	}
	return false
}

// Subsonic error codes.
const (
	CodeGeneric              = 0
	CodeMissingParameter     = 10
	CodeClientTooOld         = 20
	CodeServerTooOld         = 30
	CodeWrongCredentials     = 40
	CodeTokenAuthUnsupported = 41
	CodeUnauthorized         = 50
	CodeTrialExpired         = 60
	CodeNotFound             = 70
)
