package deviceapi

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// ErrMissingToken is returned when a call is made without a bearer token.
var ErrMissingToken = errors.New("deviceapi: missing token")

// RemoteCommandError is a non-2xx response from the device-control API.
// Use errors.As to inspect it.
type RemoteCommandError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteCommandError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("deviceapi: %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("deviceapi: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
